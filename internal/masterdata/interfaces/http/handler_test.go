package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"site-registry/internal/audit"
	masterdataapp "site-registry/internal/masterdata/application"
	"site-registry/internal/masterdata/infrastructure/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *recordingAudit) Log(_ context.Context, entry audit.Entry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

func (a *recordingAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, entry := range a.entries {
		out = append(out, entry.Action)
	}
	return out
}

var (
	wednesday = time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	saturday  = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)
)

func newTestHandler(t *testing.T, now time.Time) (http.Handler, *recordingAudit) {
	t.Helper()
	store := memory.NewStore()
	sites, err := masterdataapp.NewSiteService(store, fixedClock{now: now}, nil)
	require.NoError(t, err)
	groups, err := masterdataapp.NewGroupService(store, nil)
	require.NoError(t, err)
	recorder := &recordingAudit{}
	handler, err := NewHandler(sites, groups, recorder, nil)
	require.NoError(t, err)

	mux := http.NewServeMux()
	handler.Register(mux)
	return mux, recorder
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func detail(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &payload))
	return payload.Detail
}

func TestSiteLifecycle(t *testing.T) {
	h, recorder := newTestHandler(t, wednesday)

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/groups/", `{"name":"North","type":"group1"}`).Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/groups/", `{"name":"South","type":"GROUP2"}`).Code)

	resp := do(t, h, http.MethodPost, "/sites/", `{
		"name": "Lyon-1",
		"installation_date": "2026-10-14",
		"max_power_megawatt": 10,
		"min_power_megawatt": 1.5,
		"efficiency": 0.9,
		"country": "FR",
		"groups": [1, 2]
	}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var created siteResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "2026-10-14", created.InstallationDate)
	assert.Nil(t, created.UsefulEnergyAt1Megawatt)
	require.Len(t, created.Groups, 2)
	assert.Equal(t, groupResponse{ID: 1, Name: "North", Type: "GROUP1"}, created.Groups[0])

	resp = do(t, h, http.MethodGet, "/sites/1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var loaded siteResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &loaded))
	assert.Equal(t, created, loaded)

	resp = do(t, h, http.MethodPatch, "/sites/1", `{"max_power_megawatt": 12, "groups": [2]}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var patched siteResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &patched))
	assert.Equal(t, "Lyon-1", patched.Name)
	assert.InDelta(t, 12, patched.MaxPowerMegawatt, 1e-9)
	assert.Equal(t, []groupResponse{{ID: 2, Name: "South", Type: "GROUP2"}}, patched.Groups)

	resp = do(t, h, http.MethodGet, "/sites/", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var list []siteResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	resp = do(t, h, http.MethodDelete, "/sites/1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"message":"Site deleted successfully"}`, resp.Body.String())

	resp = do(t, h, http.MethodGet, "/sites/1", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Site not found", detail(t, resp))

	assert.Equal(t, []string{"group.create", "group.create", "site.create", "site.update", "site.delete"}, recorder.actions())
}

func TestSitePatchClearsOptionalFields(t *testing.T) {
	h, _ := newTestHandler(t, wednesday)

	resp := do(t, h, http.MethodPost, "/sites/", `{"name":"Lyon-1","installation_date":"2026-10-14",
		"max_power_megawatt":10,"min_power_megawatt":1,"useful_energy_at_1_megawatt":3.5,
		"efficiency":0.9,"country":"FR"}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = do(t, h, http.MethodPatch, "/sites/1", `{"name":"Lyon-1","installation_date":"2026-10-14",
		"max_power_megawatt":10,"min_power_megawatt":1,"efficiency":null,"country":"FR","groups":[]}`)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = do(t, h, http.MethodGet, "/sites/1", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var loaded siteResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &loaded))
	assert.Nil(t, loaded.Efficiency)
	require.NotNil(t, loaded.UsefulEnergyAt1Megawatt)
	assert.InDelta(t, 3.5, *loaded.UsefulEnergyAt1Megawatt, 1e-9)

	resp = do(t, h, http.MethodPatch, "/sites/1", `{"useful_energy_at_1_megawatt":"high"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid json", detail(t, resp))
}

func TestPatchUnknownIDIsNotFoundBeforeValidation(t *testing.T) {
	h, _ := newTestHandler(t, wednesday)

	resp := do(t, h, http.MethodPatch, "/sites/99", `{"installation_date":"bad"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Site not found", detail(t, resp))

	resp = do(t, h, http.MethodPatch, "/groups/99", `{"type":"GROUP7"}`)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Group not found", detail(t, resp))

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/groups/", `{"name":"North","type":"GROUP1"}`).Code)
	resp = do(t, h, http.MethodPatch, "/groups/1", `{"type":"GROUP7"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestSiteCreationRules(t *testing.T) {
	h, _ := newTestHandler(t, wednesday)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/groups/", `{"name":"Restricted","type":"group3"}`).Code)

	site := func(name, country, date, groups string) string {
		return `{"name":"` + name + `","installation_date":"` + date + `","max_power_megawatt":5,` +
			`"min_power_megawatt":1,"country":"` + country + `","groups":` + groups + `}`
	}

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/sites/", site("Paris-1", "FR", "2026-10-14", "[]")).Code)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"duplicate name", site("Paris-1", "IT", "2026-10-17", "[]"), "Site name already exists"},
		{"second french site", site("Paris-2", "FR", "2026-10-13", "[]"), "Only one French site can be installed per day."},
		{"italian site on a weekday", site("Roma-1", "IT", "2026-10-17", "[]"), "Italian sites can only be installed on weekends."},
		{"country rule precedes group checks", site("Roma-2", "it", "2026-10-17", "[42]"), "Italian sites can only be installed on weekends."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, h, http.MethodPost, "/sites/", tc.body)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Equal(t, tc.want, detail(t, resp))
		})
	}
}

func TestSiteGroupAssociationOnWeekend(t *testing.T) {
	h, _ := newTestHandler(t, saturday)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/groups/", `{"name":"Restricted","type":"group3"}`).Code)

	resp := do(t, h, http.MethodPost, "/sites/", `{"name":"Roma-1","installation_date":"2026-10-17",
		"max_power_megawatt":5,"min_power_megawatt":1,"country":"IT","groups":[1]}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Sites cannot be associated with group type 'group3'.", detail(t, resp))

	resp = do(t, h, http.MethodPost, "/sites/", `{"name":"Roma-1","installation_date":"2026-10-17",
		"max_power_megawatt":5,"min_power_megawatt":1,"country":"IT","groups":[42]}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Group 42 not found", detail(t, resp))

	resp = do(t, h, http.MethodPost, "/sites/", `{"name":"Roma-1","installation_date":"2026-10-17",
		"max_power_megawatt":5,"min_power_megawatt":1,"country":"IT"}`)
	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestRequestValidation(t *testing.T) {
	h, _ := newTestHandler(t, wednesday)

	resp := do(t, h, http.MethodPost, "/sites/", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid json", detail(t, resp))

	resp = do(t, h, http.MethodPost, "/sites/", `{"name":"X","installation_date":"14/10/2026","country":"DE"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	msg := detail(t, resp)
	assert.Contains(t, msg, "installation_date must be a date in YYYY-MM-DD format")
	assert.Contains(t, msg, "max_power_megawatt is required")
	assert.Contains(t, msg, "country must be one of FR, IT")

	resp = do(t, h, http.MethodPost, "/groups/", `{"name":"G","type":"GROUP7"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = do(t, h, http.MethodGet, "/sites/abc", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = do(t, h, http.MethodPut, "/sites/", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)

	resp = do(t, h, http.MethodGet, "/groups/bulk_create", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.Code)
}

func TestGroupEndpoints(t *testing.T) {
	h, _ := newTestHandler(t, wednesday)

	resp := do(t, h, http.MethodPost, "/groups/", `{"id":5,"name":"Five","type":"group1"}`)
	require.Equal(t, http.StatusCreated, resp.Code)
	assert.JSONEq(t, `{"id":5,"name":"Five","type":"GROUP1"}`, resp.Body.String())

	resp = do(t, h, http.MethodPost, "/groups/", `{"name":"Five","type":"group2"}`)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "Group name already exists", detail(t, resp))

	resp = do(t, h, http.MethodPost, "/groups/bulk_create", `[
		{"id":5,"name":"Five again","type":"group2"},
		{"id":6,"name":"Six","type":"group2"}
	]`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var bulk bulkCreateResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &bulk))
	assert.Equal(t, []int64{5}, bulk.Skipped)
	assert.Equal(t, []groupResponse{{ID: 6, Name: "Six", Type: "GROUP2"}}, bulk.Created)

	resp = do(t, h, http.MethodGet, "/groups/5", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"id":5,"name":"Five","type":"GROUP1"}`, resp.Body.String())

	resp = do(t, h, http.MethodPatch, "/groups/6", `{"name":"Six-B"}`)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"id":6,"name":"Six-B","type":"GROUP2"}`, resp.Body.String())

	resp = do(t, h, http.MethodGet, "/groups/", "")
	require.Equal(t, http.StatusOK, resp.Code)
	var groups []groupResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &groups))
	assert.Len(t, groups, 2)

	resp = do(t, h, http.MethodDelete, "/groups/5", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"message":"Group deleted successfully"}`, resp.Body.String())

	resp = do(t, h, http.MethodGet, "/groups/5", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Group not found", detail(t, resp))

	resp = do(t, h, http.MethodDelete, "/groups/5", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestExports(t *testing.T) {
	h, _ := newTestHandler(t, wednesday)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/sites/", `{"name":"Lyon-1","installation_date":"2026-10-14",
		"max_power_megawatt":5,"min_power_megawatt":1,"country":"FR"}`).Code)

	resp := do(t, h, http.MethodGet, "/exports/sites.xlsx", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", resp.Header().Get("Content-Type"))
	assert.NotEmpty(t, resp.Body.Bytes())

	resp = do(t, h, http.MethodGet, "/exports/sites.pdf", "")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "application/pdf", resp.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(resp.Body.String(), "%PDF"))

	resp = do(t, h, http.MethodGet, "/exports/sites.csv", "")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
