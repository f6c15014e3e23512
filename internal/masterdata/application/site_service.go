package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	masterdata "site-registry/internal/masterdata/domain"
)

// SitePatch lists the fields of a partial site update. Nil fields are kept.
// A non-nil GroupIDs replaces the site's memberships.
type SitePatch struct {
	Name                    *string
	InstallationDate        *time.Time
	MaxPowerMegawatt        *float64
	MinPowerMegawatt        *float64
	UsefulEnergyAt1Megawatt NullableFloat
	Efficiency              NullableFloat
	Country                 *masterdata.Country
	GroupIDs                *[]int64
}

// NullableFloat is a patch value for an optional column. Set with a nil Value
// clears the column.
type NullableFloat struct {
	Set   bool
	Value *float64
}

// SetFloat returns a NullableFloat that stores v.
func SetFloat(v float64) NullableFloat {
	return NullableFloat{Set: true, Value: &v}
}

func (n NullableFloat) apply(current *float64) *float64 {
	if !n.Set {
		return current
	}
	if n.Value == nil {
		return nil
	}
	v := *n.Value
	return &v
}

// SiteService runs site commands and queries, one transaction each.
type SiteService struct {
	store  masterdata.Store
	clock  Clock
	logger *zap.Logger
}

// NewSiteService constructs a site service.
func NewSiteService(store masterdata.Store, clock Clock, logger *zap.Logger) (*SiteService, error) {
	if store == nil {
		return nil, errors.New("site service: nil store")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteService{store: store, clock: clock, logger: logger}, nil
}

// Create validates a new site against the registry and persists it with its memberships.
func (s *SiteService) Create(ctx context.Context, site masterdata.Site) (result *masterdata.Site, err error) {
	start := time.Now()
	defer func() { observe(s.logger, entitySite, "create", start, err) }()

	today := s.clock.Now()
	candidate := site.Clone()
	candidate.ID = 0
	candidate.Groups = nil
	candidate.GroupIDs = masterdata.UniqueIDs(candidate.GroupIDs)
	if country, ok := masterdata.ParseCountry(string(candidate.Country)); ok {
		candidate.Country = country
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos masterdata.Repositories) error {
		existing, err := repos.Sites.ListConflicts(ctx, candidate.Name, candidate.Country, masterdata.FrenchWindowStart(today))
		if err != nil {
			return err
		}
		groups, err := repos.Groups.GetMany(ctx, candidate.GroupIDs)
		if err != nil {
			return err
		}
		if err := masterdata.ValidateSiteCreation(candidate, existing, groups, today); err != nil {
			return err
		}
		if err := repos.Sites.Create(ctx, &candidate); err != nil {
			return err
		}
		result, err = repos.Sites.Get(ctx, candidate.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("site created",
		zap.Int64("site_id", result.ID),
		zap.String("name", result.Name),
		zap.String("country", string(result.Country)),
	)
	return result, nil
}

// Get loads one site with its groups.
func (s *SiteService) Get(ctx context.Context, id int64) (result *masterdata.Site, err error) {
	start := time.Now()
	defer func() { observe(s.logger, entitySite, "get", start, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos masterdata.Repositories) error {
		site, err := repos.Sites.Get(ctx, id)
		if err != nil {
			return err
		}
		if site == nil {
			return masterdata.ErrSiteNotFound
		}
		result = site
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List loads every site.
func (s *SiteService) List(ctx context.Context) (result []masterdata.Site, err error) {
	start := time.Now()
	defer func() { observe(s.logger, entitySite, "list", start, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos masterdata.Repositories) error {
		result, err = repos.Sites.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update overwrites the supplied fields of a site. Country rules only apply at creation.
func (s *SiteService) Update(ctx context.Context, id int64, patch SitePatch) (result *masterdata.Site, err error) {
	start := time.Now()
	defer func() { observe(s.logger, entitySite, "update", start, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos masterdata.Repositories) error {
		target, err := repos.Sites.Get(ctx, id)
		if err != nil {
			return err
		}
		if target == nil {
			return masterdata.ErrSiteNotFound
		}

		candidate := applySitePatch(*target, patch)
		existing, err := repos.Sites.ListByName(ctx, candidate.Name)
		if err != nil {
			return err
		}

		check := candidate.Clone()
		check.GroupIDs = nil
		var groups []masterdata.Group
		if patch.GroupIDs != nil {
			check.GroupIDs = candidate.GroupIDs
			groups, err = repos.Groups.GetMany(ctx, candidate.GroupIDs)
			if err != nil {
				return err
			}
		}
		if err := masterdata.ValidateSiteUpdate(check, *target, existing, groups); err != nil {
			return err
		}

		if err := repos.Sites.Update(ctx, &candidate); err != nil {
			return err
		}
		if patch.GroupIDs != nil {
			if err := repos.Sites.ReplaceGroups(ctx, candidate.ID, candidate.GroupIDs); err != nil {
				return err
			}
		}
		result, err = repos.Sites.Get(ctx, candidate.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("site updated", zap.Int64("site_id", result.ID))
	return result, nil
}

// Delete removes a site and its memberships.
func (s *SiteService) Delete(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { observe(s.logger, entitySite, "delete", start, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos masterdata.Repositories) error {
		return repos.Sites.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("site deleted", zap.Int64("site_id", id))
	return nil
}

func applySitePatch(site masterdata.Site, patch SitePatch) masterdata.Site {
	out := site.Clone()
	if patch.Name != nil {
		out.Name = *patch.Name
	}
	if patch.InstallationDate != nil {
		out.InstallationDate = masterdata.DateOnly(*patch.InstallationDate)
	}
	if patch.MaxPowerMegawatt != nil {
		out.MaxPowerMegawatt = *patch.MaxPowerMegawatt
	}
	if patch.MinPowerMegawatt != nil {
		out.MinPowerMegawatt = *patch.MinPowerMegawatt
	}
	out.UsefulEnergyAt1Megawatt = patch.UsefulEnergyAt1Megawatt.apply(out.UsefulEnergyAt1Megawatt)
	out.Efficiency = patch.Efficiency.apply(out.Efficiency)
	if patch.Country != nil {
		out.Country = *patch.Country
		if country, ok := masterdata.ParseCountry(string(*patch.Country)); ok {
			out.Country = country
		}
	}
	if patch.GroupIDs != nil {
		out.GroupIDs = masterdata.UniqueIDs(*patch.GroupIDs)
	}
	return out
}
