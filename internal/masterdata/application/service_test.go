package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	masterdata "site-registry/internal/masterdata/domain"
	"site-registry/internal/masterdata/infrastructure/memory"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

var (
	wednesday = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	saturday  = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
)

type fixture struct {
	store  *memory.Store
	sites  *SiteService
	groups *GroupService
}

func newFixture(t *testing.T, now time.Time) fixture {
	t.Helper()
	store := memory.NewStore()
	sites, err := NewSiteService(store, fixedClock{now: now}, nil)
	require.NoError(t, err)
	groups, err := NewGroupService(store, nil)
	require.NoError(t, err)
	return fixture{store: store, sites: sites, groups: groups}
}

func (f fixture) group(t *testing.T, name string, typ masterdata.GroupType) masterdata.Group {
	t.Helper()
	created, err := f.groups.Create(context.Background(), masterdata.Group{Name: name, Type: typ})
	require.NoError(t, err)
	return *created
}

func newSite(name string, country masterdata.Country, date time.Time, groupIDs ...int64) masterdata.Site {
	return masterdata.Site{
		Name:             name,
		InstallationDate: masterdata.DateOnly(date),
		MaxPowerMegawatt: 10,
		MinPowerMegawatt: 1,
		Country:          country,
		GroupIDs:         groupIDs,
	}
}

func TestSiteService_CreateRoundTripWithGroups(t *testing.T) {
	f := newFixture(t, wednesday)
	ctx := context.Background()
	g1 := f.group(t, "North", masterdata.GroupType1)
	g2 := f.group(t, "South", masterdata.GroupType2)

	efficiency := 0.92
	site := newSite("Lyon-1", masterdata.CountryFrance, wednesday, g1.ID, g2.ID)
	site.Efficiency = &efficiency

	created, err := f.sites.Create(ctx, site)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	loaded, err := f.sites.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lyon-1", loaded.Name)
	assert.Equal(t, masterdata.DateOnly(wednesday), loaded.InstallationDate)
	assert.Equal(t, []int64{g1.ID, g2.ID}, loaded.GroupIDs)
	require.Len(t, loaded.Groups, 2)
	assert.Equal(t, "North", loaded.Groups[0].Name)
	assert.Equal(t, masterdata.GroupType2, loaded.Groups[1].Type)
	require.NotNil(t, loaded.Efficiency)
	assert.InDelta(t, 0.92, *loaded.Efficiency, 1e-9)
	assert.Nil(t, loaded.UsefulEnergyAt1Megawatt)
}

func TestSiteService_CreateRejections(t *testing.T) {
	f := newFixture(t, wednesday)
	ctx := context.Background()
	restricted := f.group(t, "Restricted", masterdata.GroupType3)

	_, err := f.sites.Create(ctx, newSite("Paris-1", masterdata.CountryFrance, wednesday))
	require.NoError(t, err)

	_, err = f.sites.Create(ctx, newSite("Paris-1", masterdata.CountryItaly, saturday))
	assert.ErrorIs(t, err, masterdata.ErrDuplicateSiteName)

	_, err = f.sites.Create(ctx, newSite("Paris-2", masterdata.CountryFrance, wednesday.AddDate(0, 0, 3)))
	assert.ErrorIs(t, err, masterdata.ErrFrenchSiteDailyLimit)

	_, err = f.sites.Create(ctx, newSite("Roma-1", masterdata.CountryItaly, saturday))
	assert.ErrorIs(t, err, masterdata.ErrItalianSiteWeekday)

	_, err = f.sites.Create(ctx, newSite("Paris-3", masterdata.CountryFrance, wednesday.AddDate(0, 0, -5), restricted.ID))
	assert.ErrorIs(t, err, masterdata.ErrFrenchSiteDailyLimit)

	sites, err := f.sites.List(ctx)
	require.NoError(t, err)
	assert.Len(t, sites, 1)
}

func TestSiteService_ItalianSiteOnWeekend(t *testing.T) {
	f := newFixture(t, saturday)
	ctx := context.Background()

	created, err := f.sites.Create(ctx, newSite("Roma-1", masterdata.CountryItaly, wednesday))
	require.NoError(t, err)
	assert.Equal(t, masterdata.CountryItaly, created.Country)
}

func TestSiteService_GroupAssociationRejected(t *testing.T) {
	f := newFixture(t, saturday)
	ctx := context.Background()
	restricted := f.group(t, "Restricted", masterdata.GroupType3)

	_, err := f.sites.Create(ctx, newSite("Milano-1", masterdata.CountryItaly, saturday, restricted.ID))
	assert.ErrorIs(t, err, masterdata.ErrForbiddenGroupType)
	assert.Equal(t, "Sites cannot be associated with group type 'group3'.", err.Error())

	_, err = f.sites.Create(ctx, newSite("Milano-2", masterdata.CountryItaly, saturday, 99))
	assert.ErrorIs(t, err, masterdata.ErrUnknownGroup)
	assert.Equal(t, "Group 99 not found", err.Error())

	sites, _ := f.store.Counts()
	assert.Zero(t, sites)
}

func TestSiteService_Update(t *testing.T) {
	f := newFixture(t, wednesday)
	ctx := context.Background()
	g1 := f.group(t, "North", masterdata.GroupType1)
	g2 := f.group(t, "South", masterdata.GroupType2)
	restricted := f.group(t, "Restricted", masterdata.GroupType3)

	second, err := f.sites.Create(ctx, newSite("Lyon-2", masterdata.CountryFrance, wednesday.AddDate(0, 0, -10)))
	require.NoError(t, err)
	first, err := f.sites.Create(ctx, newSite("Lyon-1", masterdata.CountryFrance, wednesday, g1.ID))
	require.NoError(t, err)

	taken := "Lyon-1"
	_, err = f.sites.Update(ctx, second.ID, SitePatch{Name: &taken})
	assert.ErrorIs(t, err, masterdata.ErrDuplicateSiteName)

	same := "Lyon-1"
	power := 12.5
	updated, err := f.sites.Update(ctx, first.ID, SitePatch{Name: &same, MaxPowerMegawatt: &power})
	require.NoError(t, err)
	assert.InDelta(t, 12.5, updated.MaxPowerMegawatt, 1e-9)
	assert.Equal(t, []int64{g1.ID}, updated.GroupIDs)

	groups := []int64{g2.ID}
	updated, err = f.sites.Update(ctx, first.ID, SitePatch{GroupIDs: &groups})
	require.NoError(t, err)
	assert.Equal(t, []int64{g2.ID}, updated.GroupIDs)

	forbidden := []int64{restricted.ID}
	_, err = f.sites.Update(ctx, first.ID, SitePatch{GroupIDs: &forbidden})
	assert.ErrorIs(t, err, masterdata.ErrForbiddenGroupType)

	_, err = f.sites.Update(ctx, 404, SitePatch{Name: &same})
	assert.ErrorIs(t, err, masterdata.ErrSiteNotFound)
}

func TestSiteService_UpdateClearsOptionalFields(t *testing.T) {
	f := newFixture(t, wednesday)
	ctx := context.Background()

	site := newSite("Lyon-3", masterdata.CountryFrance, wednesday)
	efficiency := 0.9
	energy := 3.5
	site.Efficiency = &efficiency
	site.UsefulEnergyAt1Megawatt = &energy
	created, err := f.sites.Create(ctx, site)
	require.NoError(t, err)

	updated, err := f.sites.Update(ctx, created.ID, SitePatch{UsefulEnergyAt1Megawatt: SetFloat(4)})
	require.NoError(t, err)
	require.NotNil(t, updated.UsefulEnergyAt1Megawatt)
	assert.InDelta(t, 4.0, *updated.UsefulEnergyAt1Megawatt, 1e-9)
	require.NotNil(t, updated.Efficiency)
	assert.InDelta(t, 0.9, *updated.Efficiency, 1e-9)

	updated, err = f.sites.Update(ctx, created.ID, SitePatch{Efficiency: NullableFloat{Set: true}})
	require.NoError(t, err)
	assert.Nil(t, updated.Efficiency)
	require.NotNil(t, updated.UsefulEnergyAt1Megawatt)

	loaded, err := f.sites.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.Efficiency)
}

func TestSiteService_Delete(t *testing.T) {
	f := newFixture(t, wednesday)
	ctx := context.Background()

	created, err := f.sites.Create(ctx, newSite("Nice-1", masterdata.CountryFrance, wednesday))
	require.NoError(t, err)

	require.NoError(t, f.sites.Delete(ctx, created.ID))
	_, err = f.sites.Get(ctx, created.ID)
	assert.ErrorIs(t, err, masterdata.ErrSiteNotFound)
	assert.ErrorIs(t, f.sites.Delete(ctx, created.ID), masterdata.ErrSiteNotFound)
}

func TestGroupService_CreateNormalizesType(t *testing.T) {
	f := newFixture(t, wednesday)
	ctx := context.Background()

	created, err := f.groups.Create(ctx, masterdata.Group{Name: "Lower", Type: "group2"})
	require.NoError(t, err)
	assert.Equal(t, masterdata.GroupType2, created.Type)

	_, err = f.groups.Create(ctx, masterdata.Group{Name: "Lower", Type: masterdata.GroupType1})
	assert.ErrorIs(t, err, masterdata.ErrDuplicateGroupName)

	_, err = f.groups.Create(ctx, masterdata.Group{ID: created.ID, Name: "Other", Type: masterdata.GroupType1})
	require.Error(t, err)
	assert.Equal(t, masterdata.KindIntegrity, masterdata.KindOf(err))
}

func TestGroupService_BulkCreateSkipsExistingIDs(t *testing.T) {
	f := newFixture(t, wednesday)
	ctx := context.Background()

	_, err := f.groups.Create(ctx, masterdata.Group{ID: 7, Name: "Seven", Type: masterdata.GroupType1})
	require.NoError(t, err)

	result, err := f.groups.BulkCreate(ctx, []masterdata.Group{
		{ID: 7, Name: "Seven again", Type: masterdata.GroupType2},
		{ID: 8, Name: "Eight", Type: masterdata.GroupType2},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, result.Skipped)
	require.Len(t, result.Created, 1)
	assert.Equal(t, int64(8), result.Created[0].ID)

	seven, err := f.groups.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Seven", seven.Name)
	assert.Equal(t, masterdata.GroupType1, seven.Type)

	next, err := f.groups.Create(ctx, masterdata.Group{Name: "Generated", Type: masterdata.GroupType1})
	require.NoError(t, err)
	assert.Equal(t, int64(9), next.ID)
}

func TestGroupService_BulkCreateRollsBackOnFailure(t *testing.T) {
	f := newFixture(t, wednesday)
	ctx := context.Background()
	f.group(t, "Taken", masterdata.GroupType1)

	_, err := f.groups.BulkCreate(ctx, []masterdata.Group{
		{ID: 20, Name: "Fresh", Type: masterdata.GroupType1},
		{ID: 21, Name: "Taken", Type: masterdata.GroupType2},
	})
	assert.ErrorIs(t, err, masterdata.ErrDuplicateGroupName)

	_, err = f.groups.Get(ctx, 20)
	assert.ErrorIs(t, err, masterdata.ErrGroupNotFound)
	_, groups := f.store.Counts()
	assert.Equal(t, 1, groups)
}

func TestGroupService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t, wednesday)
	ctx := context.Background()
	g1 := f.group(t, "North", masterdata.GroupType1)
	g2 := f.group(t, "South", masterdata.GroupType2)

	site, err := f.sites.Create(ctx, newSite("Lyon-1", masterdata.CountryFrance, wednesday, g1.ID, g2.ID))
	require.NoError(t, err)

	taken := "South"
	_, err = f.groups.Update(ctx, g1.ID, GroupPatch{Name: &taken})
	assert.ErrorIs(t, err, masterdata.ErrDuplicateGroupName)

	group3 := masterdata.GroupType("group3")
	_, err = f.groups.Update(ctx, g1.ID, GroupPatch{Type: &group3})
	assert.ErrorIs(t, err, masterdata.ErrForbiddenGroupType)

	renamed := "North-East"
	updated, err := f.groups.Update(ctx, g1.ID, GroupPatch{Name: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "North-East", updated.Name)
	assert.Equal(t, masterdata.GroupType1, updated.Type)

	require.NoError(t, f.groups.Delete(ctx, g1.ID))
	_, err = f.groups.Get(ctx, g1.ID)
	assert.ErrorIs(t, err, masterdata.ErrGroupNotFound)

	loaded, err := f.sites.Get(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{g2.ID}, loaded.GroupIDs)

	err = f.groups.Delete(ctx, g1.ID)
	assert.True(t, errors.Is(err, masterdata.ErrGroupNotFound))
}
