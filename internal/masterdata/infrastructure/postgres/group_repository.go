package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "site-registry/internal/masterdata/domain"
)

const groupsTable = "groups"

const groupColumns = `id, name, type, created_at, updated_at`

// GroupRepository is a Postgres implementation for groups.
type GroupRepository struct {
	db DBTX
}

// NewGroupRepository constructs a repository.
func NewGroupRepository(db DBTX) *GroupRepository {
	return &GroupRepository{db: db}
}

// Get loads a group by id.
func (r *GroupRepository) Get(ctx context.Context, id int64) (*masterdata.Group, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("group repo: nil db")
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = $1
LIMIT 1`, groupColumns, groupsTable)

	group, err := scanGroup(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return group, nil
}

// GetMany loads the groups among ids that exist.
func (r *GroupRepository) GetMany(ctx context.Context, ids []int64) ([]masterdata.Group, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("group repo: nil db")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE id = ANY($1)
ORDER BY id ASC`, groupColumns, groupsTable)
	return r.list(ctx, query, ids)
}

// List loads every group ordered by id.
func (r *GroupRepository) List(ctx context.Context) ([]masterdata.Group, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("group repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
ORDER BY id ASC`, groupColumns, groupsTable)
	return r.list(ctx, query)
}

// ListByName loads groups with exactly this name.
func (r *GroupRepository) ListByName(ctx context.Context, name string) ([]masterdata.Group, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("group repo: nil db")
	}
	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE name = $1
ORDER BY id ASC`, groupColumns, groupsTable)
	return r.list(ctx, query, name)
}

// Exists reports whether a group id is taken.
func (r *GroupRepository) Exists(ctx context.Context, id int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("group repo: nil db")
	}
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, groupsTable)
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts a group. A client-supplied id is kept and the identity
// sequence is moved past it so later generated ids do not collide.
func (r *GroupRepository) Create(ctx context.Context, group *masterdata.Group) error {
	if r == nil || r.db == nil {
		return errors.New("group repo: nil db")
	}
	if group == nil {
		return errors.New("group repo: nil group")
	}
	if err := group.Validate(); err != nil {
		return err
	}

	if group.ID == 0 {
		query := fmt.Sprintf(`
INSERT INTO %s (name, type)
VALUES ($1, $2)
RETURNING id, created_at, updated_at`, groupsTable)
		if err := r.db.QueryRowContext(ctx, query, group.Name, string(group.Type)).
			Scan(&group.ID, &group.CreatedAt, &group.UpdatedAt); err != nil {
			return translateError(err)
		}
	} else {
		query := fmt.Sprintf(`
INSERT INTO %s (id, name, type)
VALUES ($1, $2, $3)
RETURNING created_at, updated_at`, groupsTable)
		if err := r.db.QueryRowContext(ctx, query, group.ID, group.Name, string(group.Type)).
			Scan(&group.CreatedAt, &group.UpdatedAt); err != nil {
			return translateError(err)
		}
		// Only ever move the identity sequence forward.
		resync := fmt.Sprintf(`
SELECT setval(seq::regclass, GREATEST($1::bigint, nextval(seq::regclass) - 1))
FROM pg_get_serial_sequence('%s', 'id') AS seq`, groupsTable)
		if _, err := r.db.ExecContext(ctx, resync, group.ID); err != nil {
			return fmt.Errorf("group repo: resync identity: %w", err)
		}
	}
	group.CreatedAt = group.CreatedAt.UTC()
	group.UpdatedAt = group.UpdatedAt.UTC()
	return nil
}

// Update overwrites a group's name and type.
func (r *GroupRepository) Update(ctx context.Context, group *masterdata.Group) error {
	if r == nil || r.db == nil {
		return errors.New("group repo: nil db")
	}
	if group == nil {
		return errors.New("group repo: nil group")
	}
	if err := group.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
UPDATE %s
SET name = $1, type = $2, updated_at = NOW()
WHERE id = $3
RETURNING updated_at`, groupsTable)

	if err := r.db.QueryRowContext(ctx, query, group.Name, string(group.Type), group.ID).Scan(&group.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return masterdata.ErrGroupNotFound
		}
		return translateError(err)
	}
	group.UpdatedAt = group.UpdatedAt.UTC()
	return nil
}

// Delete removes a group. Memberships must be detached first.
func (r *GroupRepository) Delete(ctx context.Context, id int64) error {
	if r == nil || r.db == nil {
		return errors.New("group repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, groupsTable), id)
	if err != nil {
		return translateError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return masterdata.ErrGroupNotFound
	}
	return nil
}

// DetachSites removes every membership of a group.
func (r *GroupRepository) DetachSites(ctx context.Context, groupID int64) error {
	if r == nil || r.db == nil {
		return errors.New("group repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE group_id = $1`, membershipsTable), groupID)
	return translateError(err)
}

// HasSites reports whether any site belongs to the group.
func (r *GroupRepository) HasSites(ctx context.Context, groupID int64) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("group repo: nil db")
	}
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE group_id = $1)`, membershipsTable)
	if err := r.db.QueryRowContext(ctx, query, groupID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *GroupRepository) list(ctx context.Context, query string, args ...any) ([]masterdata.Group, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []masterdata.Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func scanGroup(row rowScanner) (*masterdata.Group, error) {
	var (
		group masterdata.Group
		typ   string
	)
	if err := row.Scan(&group.ID, &group.Name, &typ, &group.CreatedAt, &group.UpdatedAt); err != nil {
		return nil, err
	}
	group.Type = masterdata.GroupType(typ)
	group.CreatedAt = group.CreatedAt.UTC()
	group.UpdatedAt = group.UpdatedAt.UTC()
	return &group, nil
}
