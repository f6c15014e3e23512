package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	masterdata "site-registry/internal/masterdata/domain"
)

const (
	sitesTable       = "sites"
	membershipsTable = "site_group_association"
)

const siteColumns = `id, name, installation_date, max_power_megawatt, min_power_megawatt,
	useful_energy_at_1_megawatt, efficiency, country, created_at, updated_at`

// SiteRepository is a Postgres implementation for sites.
type SiteRepository struct {
	db DBTX
}

// NewSiteRepository constructs a repository.
func NewSiteRepository(db DBTX) *SiteRepository {
	return &SiteRepository{db: db}
}

// Get loads a site and its groups by id.
func (r *SiteRepository) Get(ctx context.Context, id int64) (*masterdata.Site, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("site repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, siteColumns, sitesTable)

	site, err := scanSite(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	groups, err := r.groupsBySite(ctx, []int64{site.ID})
	if err != nil {
		return nil, err
	}
	attachGroups(site, groups[site.ID])
	return site, nil
}

// List loads every site ordered by id.
func (r *SiteRepository) List(ctx context.Context) ([]masterdata.Site, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("site repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
ORDER BY id ASC`, siteColumns, sitesTable)
	return r.listWithGroups(ctx, query)
}

// ListConflicts loads sites a new candidate may collide with.
func (r *SiteRepository) ListConflicts(ctx context.Context, name string, country masterdata.Country, since time.Time) ([]masterdata.Site, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("site repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE name = $1 OR (country = $2 AND installation_date >= $3)
ORDER BY id ASC`, siteColumns, sitesTable)
	return r.list(ctx, query, name, string(country), masterdata.DateOnly(since))
}

// ListByName loads sites with exactly this name.
func (r *SiteRepository) ListByName(ctx context.Context, name string) ([]masterdata.Site, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("site repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE name = $1
ORDER BY id ASC`, siteColumns, sitesTable)
	return r.list(ctx, query, name)
}

// Create inserts a site and its memberships.
func (r *SiteRepository) Create(ctx context.Context, site *masterdata.Site) error {
	if r == nil || r.db == nil {
		return errors.New("site repo: nil db")
	}
	if site == nil {
		return errors.New("site repo: nil site")
	}
	if err := site.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	name,
	installation_date,
	max_power_megawatt,
	min_power_megawatt,
	useful_energy_at_1_megawatt,
	efficiency,
	country
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)
RETURNING id, created_at, updated_at`, sitesTable)

	if err := r.db.QueryRowContext(
		ctx,
		query,
		site.Name,
		masterdata.DateOnly(site.InstallationDate),
		site.MaxPowerMegawatt,
		site.MinPowerMegawatt,
		nullFloat(site.UsefulEnergyAt1Megawatt),
		nullFloat(site.Efficiency),
		string(site.Country),
	).Scan(&site.ID, &site.CreatedAt, &site.UpdatedAt); err != nil {
		return translateError(err)
	}
	site.CreatedAt = site.CreatedAt.UTC()
	site.UpdatedAt = site.UpdatedAt.UTC()
	return r.ReplaceGroups(ctx, site.ID, site.GroupIDs)
}

// Update overwrites a site's scalar fields.
func (r *SiteRepository) Update(ctx context.Context, site *masterdata.Site) error {
	if r == nil || r.db == nil {
		return errors.New("site repo: nil db")
	}
	if site == nil {
		return errors.New("site repo: nil site")
	}
	if err := site.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
UPDATE %s
SET name = $1,
	installation_date = $2,
	max_power_megawatt = $3,
	min_power_megawatt = $4,
	useful_energy_at_1_megawatt = $5,
	efficiency = $6,
	country = $7,
	updated_at = NOW()
WHERE id = $8
RETURNING updated_at`, sitesTable)

	if err := r.db.QueryRowContext(
		ctx,
		query,
		site.Name,
		masterdata.DateOnly(site.InstallationDate),
		site.MaxPowerMegawatt,
		site.MinPowerMegawatt,
		nullFloat(site.UsefulEnergyAt1Megawatt),
		nullFloat(site.Efficiency),
		string(site.Country),
		site.ID,
	).Scan(&site.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return masterdata.ErrSiteNotFound
		}
		return translateError(err)
	}
	site.UpdatedAt = site.UpdatedAt.UTC()
	return nil
}

// Delete removes a site and its memberships.
func (r *SiteRepository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return errors.New("site repo: nil db")
	}
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE site_id = $1`, membershipsTable), id); err != nil {
		return translateError(err)
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, sitesTable), id)
	if err != nil {
		return translateError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return masterdata.ErrSiteNotFound
	}
	return nil
}

// ReplaceGroups sets the site's memberships to exactly groupIDs.
func (r *SiteRepository) ReplaceGroups(ctx context.Context, siteID int64, groupIDs []int64) error {
	if r == nil || r.db == nil {
		return errors.New("site repo: nil db")
	}
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE site_id = $1`, membershipsTable), siteID); err != nil {
		return translateError(err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (site_id, group_id) VALUES ($1, $2)`, membershipsTable)
	for _, groupID := range masterdata.UniqueIDs(groupIDs) {
		if _, err := r.db.ExecContext(ctx, query, siteID, groupID); err != nil {
			return translateError(err)
		}
	}
	return nil
}

func (r *SiteRepository) list(ctx context.Context, query string, args ...any) ([]masterdata.Site, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *site)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SiteRepository) listWithGroups(ctx context.Context, query string, args ...any) ([]masterdata.Site, error) {
	sites, err := r.list(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(sites) == 0 {
		return sites, nil
	}
	ids := make([]int64, 0, len(sites))
	for _, site := range sites {
		ids = append(ids, site.ID)
	}
	groups, err := r.groupsBySite(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sites {
		attachGroups(&sites[i], groups[sites[i].ID])
	}
	return sites, nil
}

func (r *SiteRepository) groupsBySite(ctx context.Context, siteIDs []int64) (map[int64][]masterdata.Group, error) {
	query := fmt.Sprintf(`
SELECT a.site_id, g.id, g.name, g.type, g.created_at, g.updated_at
FROM %s a
JOIN %s g ON g.id = a.group_id
WHERE a.site_id = ANY($1)
ORDER BY a.site_id ASC, g.id ASC`, membershipsTable, groupsTable)

	rows, err := r.db.QueryContext(ctx, query, siteIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[int64][]masterdata.Group)
	for rows.Next() {
		var (
			siteID int64
			group  masterdata.Group
			typ    string
		)
		if err := rows.Scan(&siteID, &group.ID, &group.Name, &typ, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return nil, err
		}
		group.Type = masterdata.GroupType(typ)
		group.CreatedAt = group.CreatedAt.UTC()
		group.UpdatedAt = group.UpdatedAt.UTC()
		result[siteID] = append(result[siteID], group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSite(row rowScanner) (*masterdata.Site, error) {
	var (
		site         masterdata.Site
		usefulEnergy sql.NullFloat64
		efficiency   sql.NullFloat64
		country      string
	)
	if err := row.Scan(
		&site.ID,
		&site.Name,
		&site.InstallationDate,
		&site.MaxPowerMegawatt,
		&site.MinPowerMegawatt,
		&usefulEnergy,
		&efficiency,
		&country,
		&site.CreatedAt,
		&site.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if usefulEnergy.Valid {
		v := usefulEnergy.Float64
		site.UsefulEnergyAt1Megawatt = &v
	}
	if efficiency.Valid {
		v := efficiency.Float64
		site.Efficiency = &v
	}
	site.Country = masterdata.Country(country)
	site.InstallationDate = masterdata.DateOnly(site.InstallationDate)
	site.CreatedAt = site.CreatedAt.UTC()
	site.UpdatedAt = site.UpdatedAt.UTC()
	return &site, nil
}

func attachGroups(site *masterdata.Site, groups []masterdata.Group) {
	site.Groups = groups
	site.GroupIDs = make([]int64, 0, len(groups))
	for _, group := range groups {
		site.GroupIDs = append(site.GroupIDs, group.ID)
	}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
