package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	masterdata "site-registry/internal/masterdata/domain"
)

// Store is an in-memory registry for demo/testing. Units of work are
// serialized and a failed unit restores the state it started from.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

type state struct {
	sites       map[int64]masterdata.Site
	groups      map[int64]masterdata.Group
	memberships map[int64][]int64
	nextSiteID  int64
	nextGroupID int64
}

// NewStore constructs an empty store.
func NewStore() *Store {
	return &Store{
		state: &state{
			sites:       make(map[int64]masterdata.Site),
			groups:      make(map[int64]masterdata.Group),
			memberships: make(map[int64][]int64),
			nextSiteID:  1,
			nextGroupID: 1,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithinTx runs fn against the store, discarding its writes when it fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos masterdata.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state.clone()
	defer func() {
		if p := recover(); p != nil {
			s.state = snapshot
			panic(p)
		}
	}()

	repos := masterdata.Repositories{
		Sites:  &siteRepository{st: s.state, now: s.now},
		Groups: &groupRepository{st: s.state, now: s.now},
	}
	if err := fn(ctx, repos); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

// Counts reports the number of stored sites and groups.
func (s *Store) Counts() (sites, groups int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.sites), len(s.state.groups)
}

func (st *state) clone() *state {
	out := &state{
		sites:       make(map[int64]masterdata.Site, len(st.sites)),
		groups:      make(map[int64]masterdata.Group, len(st.groups)),
		memberships: make(map[int64][]int64, len(st.memberships)),
		nextSiteID:  st.nextSiteID,
		nextGroupID: st.nextGroupID,
	}
	for id, site := range st.sites {
		out.sites[id] = site.Clone()
	}
	for id, group := range st.groups {
		out.groups[id] = group
	}
	for id, groupIDs := range st.memberships {
		out.memberships[id] = append([]int64(nil), groupIDs...)
	}
	return out
}

func (st *state) hydrate(site masterdata.Site) masterdata.Site {
	out := site.Clone()
	ids := append([]int64(nil), st.memberships[site.ID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out.GroupIDs = ids
	out.Groups = make([]masterdata.Group, 0, len(ids))
	for _, id := range ids {
		out.Groups = append(out.Groups, st.groups[id])
	}
	return out
}

type siteRepository struct {
	st  *state
	now func() time.Time
}

func (r *siteRepository) Get(ctx context.Context, id int64) (*masterdata.Site, error) {
	_ = ctx
	site, ok := r.st.sites[id]
	if !ok {
		return nil, nil
	}
	out := r.st.hydrate(site)
	return &out, nil
}

func (r *siteRepository) List(ctx context.Context) ([]masterdata.Site, error) {
	return r.filter(ctx, func(masterdata.Site) bool { return true }), nil
}

func (r *siteRepository) ListConflicts(ctx context.Context, name string, country masterdata.Country, since time.Time) ([]masterdata.Site, error) {
	since = masterdata.DateOnly(since)
	return r.filter(ctx, func(site masterdata.Site) bool {
		if site.Name == name {
			return true
		}
		return site.Country == country && !site.InstallationDate.Before(since)
	}), nil
}

func (r *siteRepository) ListByName(ctx context.Context, name string) ([]masterdata.Site, error) {
	return r.filter(ctx, func(site masterdata.Site) bool { return site.Name == name }), nil
}

func (r *siteRepository) Create(ctx context.Context, site *masterdata.Site) error {
	if site == nil {
		return errors.New("site repo: nil site")
	}
	if err := site.Validate(); err != nil {
		return err
	}
	if r.nameTaken(site.Name, 0) {
		return masterdata.IntegrityViolation("duplicate key value violates unique constraint \"sites_name_key\"", nil)
	}
	if err := r.checkGroups(site.GroupIDs); err != nil {
		return err
	}

	site.ID = r.st.nextSiteID
	r.st.nextSiteID++
	now := r.now()
	site.CreatedAt = now
	site.UpdatedAt = now
	site.InstallationDate = masterdata.DateOnly(site.InstallationDate)

	stored := site.Clone()
	stored.GroupIDs = nil
	stored.Groups = nil
	r.st.sites[site.ID] = stored
	return r.ReplaceGroups(ctx, site.ID, site.GroupIDs)
}

func (r *siteRepository) Update(ctx context.Context, site *masterdata.Site) error {
	_ = ctx
	if site == nil {
		return errors.New("site repo: nil site")
	}
	if err := site.Validate(); err != nil {
		return err
	}
	current, ok := r.st.sites[site.ID]
	if !ok {
		return masterdata.ErrSiteNotFound
	}
	if r.nameTaken(site.Name, site.ID) {
		return masterdata.IntegrityViolation("duplicate key value violates unique constraint \"sites_name_key\"", nil)
	}
	site.CreatedAt = current.CreatedAt
	site.UpdatedAt = r.now()
	site.InstallationDate = masterdata.DateOnly(site.InstallationDate)

	stored := site.Clone()
	stored.GroupIDs = nil
	stored.Groups = nil
	r.st.sites[site.ID] = stored
	return nil
}

func (r *siteRepository) Delete(ctx context.Context, id int64) error {
	_ = ctx
	if _, ok := r.st.sites[id]; !ok {
		return masterdata.ErrSiteNotFound
	}
	delete(r.st.memberships, id)
	delete(r.st.sites, id)
	return nil
}

func (r *siteRepository) ReplaceGroups(ctx context.Context, siteID int64, groupIDs []int64) error {
	_ = ctx
	if _, ok := r.st.sites[siteID]; !ok {
		return masterdata.IntegrityViolation(fmt.Sprintf("site %d does not exist", siteID), nil)
	}
	if err := r.checkGroups(groupIDs); err != nil {
		return err
	}
	ids := masterdata.UniqueIDs(groupIDs)
	if len(ids) == 0 {
		delete(r.st.memberships, siteID)
		return nil
	}
	r.st.memberships[siteID] = ids
	return nil
}

func (r *siteRepository) checkGroups(ids []int64) error {
	for _, id := range ids {
		if _, ok := r.st.groups[id]; !ok {
			return masterdata.IntegrityViolation(fmt.Sprintf("group %d does not exist", id), nil)
		}
	}
	return nil
}

func (r *siteRepository) filter(ctx context.Context, keep func(masterdata.Site) bool) []masterdata.Site {
	_ = ctx
	result := make([]masterdata.Site, 0, len(r.st.sites))
	for _, site := range r.st.sites {
		if keep(site) {
			result = append(result, r.st.hydrate(site))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (r *siteRepository) nameTaken(name string, selfID int64) bool {
	for id, site := range r.st.sites {
		if id != selfID && site.Name == name {
			return true
		}
	}
	return false
}

type groupRepository struct {
	st  *state
	now func() time.Time
}

func (r *groupRepository) Get(ctx context.Context, id int64) (*masterdata.Group, error) {
	_ = ctx
	group, ok := r.st.groups[id]
	if !ok {
		return nil, nil
	}
	return &group, nil
}

func (r *groupRepository) GetMany(ctx context.Context, ids []int64) ([]masterdata.Group, error) {
	_ = ctx
	var result []masterdata.Group
	for _, id := range masterdata.UniqueIDs(ids) {
		if group, ok := r.st.groups[id]; ok {
			result = append(result, group)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *groupRepository) List(ctx context.Context) ([]masterdata.Group, error) {
	_ = ctx
	result := make([]masterdata.Group, 0, len(r.st.groups))
	for _, group := range r.st.groups {
		result = append(result, group)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *groupRepository) ListByName(ctx context.Context, name string) ([]masterdata.Group, error) {
	all, _ := r.List(ctx)
	var result []masterdata.Group
	for _, group := range all {
		if group.Name == name {
			result = append(result, group)
		}
	}
	return result, nil
}

func (r *groupRepository) Exists(ctx context.Context, id int64) (bool, error) {
	_ = ctx
	_, ok := r.st.groups[id]
	return ok, nil
}

func (r *groupRepository) Create(ctx context.Context, group *masterdata.Group) error {
	_ = ctx
	if group == nil {
		return errors.New("group repo: nil group")
	}
	if err := group.Validate(); err != nil {
		return err
	}
	if group.ID == 0 {
		group.ID = r.st.nextGroupID
	} else if _, ok := r.st.groups[group.ID]; ok {
		return masterdata.IntegrityViolation("duplicate key value violates unique constraint \"groups_pkey\"", nil)
	}
	for _, existing := range r.st.groups {
		if existing.Name == group.Name {
			return masterdata.IntegrityViolation("duplicate key value violates unique constraint \"groups_name_key\"", nil)
		}
	}
	if group.ID >= r.st.nextGroupID {
		r.st.nextGroupID = group.ID + 1
	}
	now := r.now()
	group.CreatedAt = now
	group.UpdatedAt = now
	r.st.groups[group.ID] = *group
	return nil
}

func (r *groupRepository) Update(ctx context.Context, group *masterdata.Group) error {
	_ = ctx
	if group == nil {
		return errors.New("group repo: nil group")
	}
	if err := group.Validate(); err != nil {
		return err
	}
	current, ok := r.st.groups[group.ID]
	if !ok {
		return masterdata.ErrGroupNotFound
	}
	for id, existing := range r.st.groups {
		if id != group.ID && existing.Name == group.Name {
			return masterdata.IntegrityViolation("duplicate key value violates unique constraint \"groups_name_key\"", nil)
		}
	}
	group.CreatedAt = current.CreatedAt
	group.UpdatedAt = r.now()
	r.st.groups[group.ID] = *group
	return nil
}

func (r *groupRepository) Delete(ctx context.Context, id int64) error {
	_ = ctx
	if _, ok := r.st.groups[id]; !ok {
		return masterdata.ErrGroupNotFound
	}
	for siteID, groupIDs := range r.st.memberships {
		for _, groupID := range groupIDs {
			if groupID == id {
				return masterdata.IntegrityViolation(fmt.Sprintf("group %d is still referenced by site %d", id, siteID), nil)
			}
		}
	}
	delete(r.st.groups, id)
	return nil
}

func (r *groupRepository) DetachSites(ctx context.Context, groupID int64) error {
	_ = ctx
	for siteID, groupIDs := range r.st.memberships {
		kept := groupIDs[:0]
		for _, id := range groupIDs {
			if id != groupID {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(r.st.memberships, siteID)
			continue
		}
		r.st.memberships[siteID] = kept
	}
	return nil
}

func (r *groupRepository) HasSites(ctx context.Context, groupID int64) (bool, error) {
	_ = ctx
	for _, groupIDs := range r.st.memberships {
		for _, id := range groupIDs {
			if id == groupID {
				return true, nil
			}
		}
	}
	return false, nil
}
