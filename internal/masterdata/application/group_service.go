package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	masterdata "site-registry/internal/masterdata/domain"
	"site-registry/internal/observability/metrics"
)

// GroupPatch lists the fields of a partial group update. Nil fields are kept.
type GroupPatch struct {
	Name *string
	Type *masterdata.GroupType
}

// BulkResult reports the outcome of a bulk group creation.
type BulkResult struct {
	Created []masterdata.Group
	Skipped []int64
}

// GroupService runs group commands and queries, one transaction each.
type GroupService struct {
	store  masterdata.Store
	logger *zap.Logger
}

// NewGroupService constructs a group service.
func NewGroupService(store masterdata.Store, logger *zap.Logger) (*GroupService, error) {
	if store == nil {
		return nil, errors.New("group service: nil store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GroupService{store: store, logger: logger}, nil
}

// Create persists a new group. A client-supplied id that is already taken
// is an integrity violation.
func (s *GroupService) Create(ctx context.Context, group masterdata.Group) (result *masterdata.Group, err error) {
	start := time.Now()
	defer func() { observe(s.logger, entityGroup, "create", start, err) }()

	candidate := normalizeGroup(group)
	err = s.store.WithinTx(ctx, func(ctx context.Context, repos masterdata.Repositories) error {
		if candidate.ID != 0 {
			taken, err := repos.Groups.Exists(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if taken {
				return masterdata.IntegrityViolation(fmt.Sprintf("Group with id %d already exists", candidate.ID), nil)
			}
		}
		created, err := s.create(ctx, repos, candidate)
		result = created
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("group created", zap.Int64("group_id", result.ID), zap.String("type", string(result.Type)))
	return result, nil
}

// BulkCreate creates every group whose id is not taken yet. Entries with a
// taken id are skipped; any other failure rolls back the whole batch.
func (s *GroupService) BulkCreate(ctx context.Context, groups []masterdata.Group) (result BulkResult, err error) {
	start := time.Now()
	defer func() { observe(s.logger, entityGroup, "bulk_create", start, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos masterdata.Repositories) error {
		result = BulkResult{}
		for _, group := range groups {
			candidate := normalizeGroup(group)
			if candidate.ID != 0 {
				taken, err := repos.Groups.Exists(ctx, candidate.ID)
				if err != nil {
					return err
				}
				if taken {
					result.Skipped = append(result.Skipped, candidate.ID)
					continue
				}
			}
			created, err := s.create(ctx, repos, candidate)
			if err != nil {
				return err
			}
			result.Created = append(result.Created, *created)
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, err
	}
	metrics.AddBulkCreate(len(result.Created), len(result.Skipped))
	s.logger.Info("groups bulk created",
		zap.Int("created", len(result.Created)),
		zap.Int64s("skipped", result.Skipped),
	)
	return result, nil
}

// Get loads one group.
func (s *GroupService) Get(ctx context.Context, id int64) (result *masterdata.Group, err error) {
	start := time.Now()
	defer func() { observe(s.logger, entityGroup, "get", start, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos masterdata.Repositories) error {
		group, err := repos.Groups.Get(ctx, id)
		if err != nil {
			return err
		}
		if group == nil {
			return masterdata.ErrGroupNotFound
		}
		result = group
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// List loads every group.
func (s *GroupService) List(ctx context.Context) (result []masterdata.Group, err error) {
	start := time.Now()
	defer func() { observe(s.logger, entityGroup, "list", start, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos masterdata.Repositories) error {
		result, err = repos.Groups.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update overwrites the supplied fields of a group. A group that still has
// sites cannot become GROUP3.
func (s *GroupService) Update(ctx context.Context, id int64, patch GroupPatch) (result *masterdata.Group, err error) {
	start := time.Now()
	defer func() { observe(s.logger, entityGroup, "update", start, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos masterdata.Repositories) error {
		target, err := repos.Groups.Get(ctx, id)
		if err != nil {
			return err
		}
		if target == nil {
			return masterdata.ErrGroupNotFound
		}

		candidate := *target
		if patch.Name != nil {
			candidate.Name = *patch.Name
		}
		if patch.Type != nil {
			candidate.Type = *patch.Type
		}
		candidate = normalizeGroup(candidate)

		existing, err := repos.Groups.ListByName(ctx, candidate.Name)
		if err != nil {
			return err
		}
		if err := masterdata.ValidateGroupUpdate(candidate, *target, existing); err != nil {
			return err
		}
		if candidate.Type == masterdata.GroupType3 && target.Type != masterdata.GroupType3 {
			linked, err := repos.Groups.HasSites(ctx, candidate.ID)
			if err != nil {
				return err
			}
			if linked {
				return masterdata.ErrForbiddenGroupType
			}
		}

		if err := repos.Groups.Update(ctx, &candidate); err != nil {
			return err
		}
		result = &candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("group updated", zap.Int64("group_id", result.ID))
	return result, nil
}

// Delete detaches a group from its sites and removes it.
func (s *GroupService) Delete(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { observe(s.logger, entityGroup, "delete", start, err) }()

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos masterdata.Repositories) error {
		group, err := repos.Groups.Get(ctx, id)
		if err != nil {
			return err
		}
		if group == nil {
			return masterdata.ErrGroupNotFound
		}
		if err := repos.Groups.DetachSites(ctx, id); err != nil {
			return err
		}
		return repos.Groups.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("group deleted", zap.Int64("group_id", id))
	return nil
}

func (s *GroupService) create(ctx context.Context, repos masterdata.Repositories, candidate masterdata.Group) (*masterdata.Group, error) {
	existing, err := repos.Groups.ListByName(ctx, candidate.Name)
	if err != nil {
		return nil, err
	}
	if err := masterdata.ValidateGroupCreation(candidate, existing); err != nil {
		return nil, err
	}
	if err := repos.Groups.Create(ctx, &candidate); err != nil {
		return nil, err
	}
	return &candidate, nil
}

func normalizeGroup(group masterdata.Group) masterdata.Group {
	if typ, ok := masterdata.ParseGroupType(string(group.Type)); ok {
		group.Type = typ
	}
	return group
}
