package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"lunar-card/internal/apperr"
	"lunar-card/internal/auth"
	"lunar-card/internal/flow"
	"lunar-card/internal/game/fortune"
	"lunar-card/internal/game/wheel"
	"lunar-card/internal/identity"
	"lunar-card/internal/notify"
	"lunar-card/internal/pkg/lock"
	"lunar-card/internal/registry"
	"lunar-card/internal/service"
	"lunar-card/internal/unlock"
)

const (
	testJWTSecret = "test-integration-secret-key-needs-to-be-long-enough"
	adminPassword = "dashboard-pass"
)

const manifest = `[
	{"key": "boss", "label": "Chủ Thiệp", "pass": "owner-pass", "role": "owner"},
	{"key": "mai", "label": "Mai", "pass": "hoa-mai"}
]`

type testServer struct {
	router *gin.Engine
	tasks  *notify.Tasks
}

func setupTestServer(t *testing.T, health func(context.Context) error) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg, err := registry.Parse([]byte(manifest))
	require.NoError(t, err)

	hash, err := auth.HashPassword(adminPassword, 4)
	require.NoError(t, err)
	issuer, err := auth.NewIssuer(testJWTSecret, time.Hour, hash)
	require.NoError(t, err)

	m := identity.NewMatcher(identity.DefaultAliases())
	tasks := notify.NewTasks(time.Second)
	gw := notify.NewGateway(notify.NewMemoryStore(), tasks, notify.Options{OwnerKey: "tet"})
	ledger := unlock.NewLedger(unlock.NewMemoryStore(), m)
	controller := flow.NewController(wheel.New(m, nil), fortune.New(m), m, flow.NewMemoryBankStore(), gw, tasks)
	cards := service.NewCardService(reg, ledger, controller, gw, lock.NewKeyLock(), service.Options{Year: "2026"})

	srv := NewServer(cards, gw, issuer, Options{Health: health})
	return &testServer{router: srv.Router(), tasks: tasks}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) newVisit(t *testing.T) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/visits", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	token := gjson.Get(w.Body.String(), "token").String()
	require.NotEmpty(t, token)
	return token
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, nil)
	w := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	ts = setupTestServer(t, func(context.Context) error { return errors.New("db down") })
	w = ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestVisitRoutes_RequireToken(t *testing.T) {
	ts := setupTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/visit", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/visit", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Admin tokens are not visit tokens.
	w = ts.do(t, http.MethodPost, "/api/admin/login", "", gin.H{"password": adminPassword})
	require.Equal(t, http.StatusOK, w.Code)
	adminToken := gjson.Get(w.Body.String(), "token").String()
	w = ts.do(t, http.MethodGet, "/api/visit", adminToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProfilesAndHint(t *testing.T) {
	ts := setupTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/profiles?q=mai", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, int64(1), gjson.Get(body, "#").Int())
	assert.Equal(t, "mai", gjson.Get(body, "0.key").String())
	assert.False(t, gjson.Get(body, "0.pass").Exists())

	w = ts.do(t, http.MethodGet, "/api/profiles/mai/hint", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hoa-mai", gjson.Get(w.Body.String(), "hint").String())

	w = ts.do(t, http.MethodGet, "/api/profiles/nobody/hint", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCardJourney(t *testing.T) {
	ts := setupTestServer(t, nil)
	token := ts.newVisit(t)

	w := ts.do(t, http.MethodPost, "/api/visit/select", token, gin.H{"key": "mai"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/visit/unlock", token, gin.H{"passphrase": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodPost, "/api/visit/unlock", token, gin.H{"passphrase": "hoa-mai"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "loggedIn").Bool())
	assert.NotEmpty(t, gjson.Get(w.Body.String(), "greeting").String())

	w = ts.do(t, http.MethodPost, "/api/visit/luck", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPost, "/api/visit/wish", token, gin.H{"message": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/visit/wish", token, gin.H{"message": "Happy new year"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "unlocked").Bool())

	w = ts.do(t, http.MethodPost, "/api/visit/luck", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "intro", gjson.Get(w.Body.String(), "flow.stage").String())

	w = ts.do(t, http.MethodPost, "/api/visit/flow/start", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/visit/flow/bank", token, gin.H{"bankName": "VCB"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/visit/flow/bank", token, gin.H{"bankName": "VCB", "bankAccount": "0123"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/visit/flow/next", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/api/visit/flow/spin", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "none", gjson.Get(w.Body.String(), "spin.outcome").String())

	w = ts.do(t, http.MethodPost, "/api/visit/flow/spin", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/api/visit/flow/next", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/visit/flow/finish", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPost, "/api/visit/flow/shake", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "50.000đ", gjson.Get(w.Body.String(), "reveal.money").String())

	w = ts.do(t, http.MethodPost, "/api/visit/flow/finish", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "sent").Bool())
	assert.True(t, gjson.Get(w.Body.String(), "saved").Bool())
	assert.False(t, gjson.Get(w.Body.String(), "emailed").Bool())

	w = ts.do(t, http.MethodPost, "/api/visit/flow/finish", token, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = ts.do(t, http.MethodPut, "/api/visit/year", token, gin.H{"year": "2027"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2027", gjson.Get(w.Body.String(), "year").String())

	w = ts.do(t, http.MethodPost, "/api/visit/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, gjson.Get(w.Body.String(), "loggedIn").Bool())

	w = ts.do(t, http.MethodDelete, "/api/visit", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = ts.do(t, http.MethodGet, "/api/visit", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	ts.tasks.Wait()
}

func TestAdminRoutes(t *testing.T) {
	ts := setupTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/admin/login", "", gin.H{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/admin/wishes", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	visitToken := ts.newVisit(t)
	w = ts.do(t, http.MethodGet, "/api/admin/wishes", visitToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	ts.do(t, http.MethodPost, "/api/visit/select", visitToken, gin.H{"key": "mai"})
	ts.do(t, http.MethodPost, "/api/visit/unlock", visitToken, gin.H{"passphrase": "hoa-mai"})
	w = ts.do(t, http.MethodPost, "/api/visit/wish", visitToken, gin.H{"message": "chúc mừng"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/admin/login", "", gin.H{"password": adminPassword})
	require.Equal(t, http.StatusOK, w.Code)
	adminToken := gjson.Get(w.Body.String(), "token").String()

	w = ts.do(t, http.MethodGet, "/api/admin/wishes?limit=10", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	require.Equal(t, int64(1), gjson.Get(body, "#").Int())
	assert.Equal(t, "chúc mừng", gjson.Get(body, "0.message").String())
	id := gjson.Get(body, "0.id").String()

	w = ts.do(t, http.MethodDelete, "/api/admin/users/"+id, adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/admin/wishes/"+id, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/admin/wishes/"+id, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	ts.tasks.Wait()
	w = ts.do(t, http.MethodGet, "/api/admin/views", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), gjson.Get(w.Body.String(), "#").Int())

	w = ts.do(t, http.MethodGet, "/api/admin/fortunes", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: x", apperr.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: x", apperr.ErrAuth), http.StatusUnauthorized},
		{fmt.Errorf("%w: x", apperr.ErrPermission), http.StatusForbidden},
		{fmt.Errorf("%w: x", apperr.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: x", apperr.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: x", apperr.ErrPersistence), http.StatusBadGateway},
		{fmt.Errorf("%w: x", apperr.ErrLoad), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}
