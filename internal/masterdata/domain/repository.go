package masterdata

import (
	"context"
	"time"
)

// SiteRepository manages site persistence. Get returns (nil, nil) when absent.
type SiteRepository interface {
	Get(ctx context.Context, id int64) (*Site, error)
	List(ctx context.Context) ([]Site, error)
	// ListConflicts returns sites named name plus sites of country installed on or after since.
	ListConflicts(ctx context.Context, name string, country Country, since time.Time) ([]Site, error)
	ListByName(ctx context.Context, name string) ([]Site, error)
	Create(ctx context.Context, site *Site) error
	Update(ctx context.Context, site *Site) error
	Delete(ctx context.Context, id int64) error
	ReplaceGroups(ctx context.Context, siteID int64, groupIDs []int64) error
}

// GroupRepository manages group persistence. Get returns (nil, nil) when absent.
type GroupRepository interface {
	Get(ctx context.Context, id int64) (*Group, error)
	GetMany(ctx context.Context, ids []int64) ([]Group, error)
	List(ctx context.Context) ([]Group, error)
	ListByName(ctx context.Context, name string) ([]Group, error)
	Exists(ctx context.Context, id int64) (bool, error)
	// Create inserts a group; a non-zero ID is kept as supplied.
	Create(ctx context.Context, group *Group) error
	Update(ctx context.Context, group *Group) error
	Delete(ctx context.Context, id int64) error
	DetachSites(ctx context.Context, groupID int64) error
	HasSites(ctx context.Context, groupID int64) (bool, error)
}

// Repositories bundles repositories bound to one transaction.
type Repositories struct {
	Sites  SiteRepository
	Groups GroupRepository
}

// Store runs units of work. fn's writes commit together when it returns nil
// and are rolled back otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
