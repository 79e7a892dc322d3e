package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T) (*apiClient, *App) {
	t.Helper()
	a := newTestApp(t, nil)
	a.Log = zap.NewNop()
	router := gin.New()
	router.Use(RequestID(), RequestLogger(a.Log))
	a.Routes(router)
	return &apiClient{t: t, router: router}, a
}

func (c *apiClient) do(method, path, token string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	return w
}

func (c *apiClient) register(username string, role Role, team string) {
	c.t.Helper()
	w := c.do(http.MethodPost, "/api/register", "", gin.H{
		"username": username, "password": "pw-" + username, "role": role, "team": team,
	})
	require.Equal(c.t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(c.t, w.Body.String(), "pw-"+username)
}

func (c *apiClient) login(username string) string {
	c.t.Helper()
	w := c.do(http.MethodPost, "/api/login", "", gin.H{"username": username, "password": "pw-" + username})
	require.Equal(c.t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(c.t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestAPI_DeclareApproveRosterNotify(t *testing.T) {
	api, _ := newAPI(t)
	api.register("boss", RoleManager, "X")
	api.register("alice", RoleEmployee, "X")
	boss, alice := api.login("boss"), api.login("alice")

	w := api.do(http.MethodPost, "/api/availability", alice, gin.H{
		"status": "Leave", "start_date": "2024-06-10", "end_date": "2024-06-11",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	declared := decode[struct {
		Days []struct {
			Date    Date   `json:"date"`
			Created bool   `json:"created"`
			Error   string `json:"error"`
		} `json:"days"`
	}](t, w)
	require.Len(t, declared.Days, 2)
	assert.True(t, declared.Days[0].Created)

	w = api.do(http.MethodGet, "/api/approvals?from=2024-06-01", boss, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pending := decode[struct {
		Days []PendingDay `json:"days"`
	}](t, w)
	require.Len(t, pending.Days, 2)

	w = api.do(http.MethodPost, "/api/approvals", boss, gin.H{
		"decision": "Approved",
		"records":  []RecordKey{{Owner: "alice", Date: "2024-06-10"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(http.MethodGet, "/api/teams/X/roster?date=2024-06-10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ro := decode[Roster](t, w)
	assert.Equal(t, []string{"alice"}, usernames(ro.Unavailable))

	w = api.do(http.MethodGet, "/api/teams/X/roster?date=2024-06-11", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ro = decode[Roster](t, w)
	assert.Equal(t, []string{"alice"}, usernames(ro.Onsite))

	w = api.do(http.MethodGet, "/api/notifications", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	notes := decode[struct {
		Count int `json:"count"`
	}](t, w)
	assert.Equal(t, 1, notes.Count)

	w = api.do(http.MethodGet, "/api/notifications", alice, nil)
	notes = decode[struct {
		Count int `json:"count"`
	}](t, w)
	assert.Equal(t, 0, notes.Count)

	w = api.do(http.MethodGet, "/api/teams", "", nil)
	assert.JSONEq(t, `{"teams":["X"]}`, w.Body.String())
}

func TestAPI_DeclareErrors(t *testing.T) {
	api, _ := newAPI(t)
	api.register("boss", RoleManager, "X")
	api.register("alice", RoleEmployee, "X")
	alice := api.login("alice")

	w := api.do(http.MethodPost, "/api/availability", alice, gin.H{
		"status": "Leave", "start_date": "2024-06-12", "end_date": "2024-06-10",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, "/api/availability", alice, gin.H{
		"status": "Leave", "start_date": "2024-06-10", "end_date": "2024-06-10",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	w = api.do(http.MethodPost, "/api/availability", alice, gin.H{
		"status": "Leave", "start_date": "2024-06-10", "end_date": "2024-06-10",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate record")

	w = api.do(http.MethodPost, "/api/availability", "", gin.H{
		"status": "Leave", "start_date": "2024-06-10", "end_date": "2024-06-10",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAPI_Withdraw(t *testing.T) {
	api, _ := newAPI(t)
	api.register("boss", RoleManager, "X")
	api.register("alice", RoleEmployee, "X")
	alice := api.login("alice")

	api.do(http.MethodPost, "/api/availability", alice, gin.H{
		"status": "WFH", "start_date": "2024-06-03", "end_date": "2024-06-03",
	})
	w := api.do(http.MethodGet, "/api/availability", alice, nil)
	assert.Len(t, decode[[]AvailabilityRecord](t, w), 1)

	w = api.do(http.MethodDelete, "/api/availability/2024-06-03", alice, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodDelete, "/api/availability/2024-06-03", alice, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = api.do(http.MethodDelete, "/api/availability/junk", alice, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/availability", alice, nil)
	assert.Empty(t, decode[[]AvailabilityRecord](t, w))
}

func TestAPI_ManagerScope(t *testing.T) {
	api, _ := newAPI(t)
	api.register("boss", RoleManager, "X")
	api.register("other", RoleManager, "Y")
	api.register("alice", RoleEmployee, "X")
	alice, other := api.login("alice"), api.login("other")

	api.do(http.MethodPost, "/api/availability", alice, gin.H{
		"status": "Leave", "start_date": "2024-06-10", "end_date": "2024-06-10",
	})

	w := api.do(http.MethodGet, "/api/approvals", alice, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodPost, "/api/approvals", other, gin.H{
		"decision": "Approved",
		"records":  []RecordKey{{Owner: "alice", Date: "2024-06-10"}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = api.do(http.MethodGet, "/api/approvals", other, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"days":[]}`, w.Body.String())
}

func TestAPI_ResolveConflict(t *testing.T) {
	api, _ := newAPI(t)
	api.register("boss", RoleManager, "X")
	api.register("alice", RoleEmployee, "X")
	boss, alice := api.login("boss"), api.login("alice")
	api.do(http.MethodPost, "/api/availability", alice, gin.H{
		"status": "Leave", "start_date": "2024-06-10", "end_date": "2024-06-10",
	})
	records := []RecordKey{{Owner: "alice", Date: "2024-06-10"}}

	w := api.do(http.MethodPost, "/api/approvals", boss, gin.H{"decision": "Rejected", "records": records})
	require.Equal(t, http.StatusOK, w.Code)
	w = api.do(http.MethodPost, "/api/approvals", boss, gin.H{"decision": "Approved", "records": records})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = api.do(http.MethodPost, "/api/approvals", boss, gin.H{"decision": "Maybe", "records": records})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPost, "/api/approvals", boss, gin.H{"decision": "Approved", "records": []RecordKey{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_RegisterAndLoginErrors(t *testing.T) {
	api, _ := newAPI(t)
	api.register("boss", RoleManager, "X")

	w := api.do(http.MethodPost, "/api/register", "", gin.H{
		"username": "boss", "password": "x", "role": "Manager", "team": "Z",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	w = api.do(http.MethodPost, "/api/register", "", gin.H{
		"username": "alice", "password": "x", "role": "Employee", "team": "Nope",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = api.do(http.MethodPost, "/api/login", "", gin.H{"username": "boss", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = api.do(http.MethodGet, "/api/teams/X/roster?date=tomorrow", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_RequestID(t *testing.T) {
	api, _ := newAPI(t)
	w := api.do(http.MethodGet, "/api/teams", "", nil)
	assert.Len(t, w.Header().Get(requestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/api/teams", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestAPI_CalendarNotConfigured(t *testing.T) {
	api, _ := newAPI(t)
	api.register("boss", RoleManager, "X")
	boss := api.login("boss")

	w := api.do(http.MethodGet, "/api/calendar/auth", boss, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	w = api.do(http.MethodGet, "/oauth2callback?code=abc", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
