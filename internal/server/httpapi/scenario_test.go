package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskauth/internal/common"
	"github.com/dmitrijs2005/taskauth/internal/dbx"
	"github.com/dmitrijs2005/taskauth/internal/logging"
	"github.com/dmitrijs2005/taskauth/internal/server/auth"
	"github.com/dmitrijs2005/taskauth/internal/server/ratelimit"
	"github.com/dmitrijs2005/taskauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskauth/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSQLiteHandler wires the real services over an in-memory database and
// bootstraps admin@x.com / adminpass.
func newSQLiteHandler(t *testing.T, lim *ratelimit.Limiter) http.Handler {
	t.Helper()
	ctx := context.Background()

	db, err := dbx.Open(ctx, dbx.SQLite, ":memory:", dbx.OpenOptions{InitialDelay: time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rm := repomanager.NewSQLRepositoryManager(dbx.SQLite)
	require.NoError(t, rm.RunMigrations(ctx, db))

	hasher := &auth.Hasher{SaltSize: auth.DefaultSaltSize, Iterations: 16, KeyLength: auth.DefaultKeyLength}
	codec := newCodec(nil)
	as := services.NewAuthService(db, rm, hasher, codec, logging.Discard(), nil)
	ms := services.NewModerationService(db, rm, logging.Discard(), nil)
	boot := services.NewBootstrap(db, rm, as, ms, logging.Discard())
	require.NoError(t, boot.SeedRoles(ctx))
	_, err = boot.BootstrapAdmin(ctx, "admin@x.com", "Admin", "adminpass", false)
	require.NoError(t, err)

	return NewHTTPServer(Options{}, nopLogger{}, as, ms, codec, lim, nil).Handler()
}

func login(t *testing.T, h http.Handler, email, password string) (int, string) {
	t.Helper()
	code, body := doJSON(t, h, http.MethodPost, "/api/auth/login", map[string]string{"email": email, "password": password}, "")
	token, _ := body["token"].(string)
	return code, token
}

func TestScenario_RegisterLoginBanUnban(t *testing.T) {
	h := newSQLiteHandler(t, nil)

	code, body := doJSON(t, h, http.MethodPost, "/api/auth/register",
		map[string]string{"email": "a@x.com", "fullName": "A", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, code)
	userID := int64(body["userId"].(float64))

	code, token := login(t, h, "a@x.com", "secret1")
	require.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, token)

	code, _ = login(t, h, "a@x.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)

	_, adminToken := login(t, h, "admin@x.com", "adminpass")
	require.NotEmpty(t, adminToken)

	// a regular user cannot ban anyone
	code, _ = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/admin/ban/%d", userID), nil, token)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/admin/ban/%d", userID), nil, adminToken)
	require.Equal(t, http.StatusOK, code)

	code, _ = login(t, h, "a@x.com", "secret1")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/admin/ban/%d", userID), nil, adminToken)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/admin/unban/%d", userID), nil, adminToken)
	require.Equal(t, http.StatusOK, code)

	code, token = login(t, h, "a@x.com", "secret1")
	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, token)
}

func TestScenario_DuplicateRegistration(t *testing.T) {
	h := newSQLiteHandler(t, nil)
	req := map[string]string{"email": "dup@x.com", "fullName": "D", "password": "secret1"}

	code, _ := doJSON(t, h, http.MethodPost, "/api/auth/register", req, "")
	require.Equal(t, http.StatusOK, code)

	code, body := doJSON(t, h, http.MethodPost, "/api/auth/register", req, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Email already in use.", body["message"])
}

func TestScenario_AssignRoleAndSelfUpdate(t *testing.T) {
	h := newSQLiteHandler(t, nil)

	code, body := doJSON(t, h, http.MethodPost, "/api/auth/register",
		map[string]string{"email": "r@x.com", "fullName": "R", "password": "secret1"}, "")
	require.Equal(t, http.StatusOK, code)
	userID := int64(body["userId"].(float64))

	_, adminToken := login(t, h, "admin@x.com", "adminpass")

	path := fmt.Sprintf("/api/admin/assign-role/%d?role=%s", userID, common.RoleAdmin)
	code, _ = doJSON(t, h, http.MethodPost, path, nil, adminToken)
	require.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, h, http.MethodPost, path, nil, adminToken)
	assert.Equal(t, http.StatusBadRequest, code)

	path = fmt.Sprintf("/api/admin/assign-role/%d?role=%s", userID, common.RoleUser)
	code, _ = doJSON(t, h, http.MethodPost, path, nil, adminToken)
	require.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, h, http.MethodPost, fmt.Sprintf("/api/admin/assign-role/%d?role=Ghost", userID), nil, adminToken)
	assert.Equal(t, http.StatusNotFound, code)

	_, token := login(t, h, "r@x.com", "secret1")
	code, body = doJSON(t, h, http.MethodGet, "/api/users/me", nil, token)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{common.RoleUser}, body["roles"])

	code, _ = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/users/%d", userID),
		map[string]string{"email": "admin@x.com"}, token)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doJSON(t, h, http.MethodPut, fmt.Sprintf("/api/users/%d", userID),
		map[string]string{"password": "newpass1"}, token)
	require.Equal(t, http.StatusOK, code)

	code, _ = login(t, h, "r@x.com", "newpass1")
	assert.Equal(t, http.StatusOK, code)

	code, _ = doJSON(t, h, http.MethodPut, "/api/admin/ban/9999", nil, adminToken)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestScenario_LoginRateLimit(t *testing.T) {
	lim, err := ratelimit.New(context.Background(), ratelimit.Options{Rate: "3-M"})
	require.NoError(t, err)
	h := newSQLiteHandler(t, lim)

	for i := 0; i < 3; i++ {
		code, _ := login(t, h, "admin@x.com", "wrong")
		assert.Equal(t, http.StatusUnauthorized, code)
	}

	code, _ := login(t, h, "admin@x.com", "adminpass")
	assert.Equal(t, http.StatusTooManyRequests, code)

	// registration is not throttled
	code, _ = doJSON(t, h, http.MethodPost, "/api/auth/register",
		map[string]string{"email": "n@x.com", "fullName": "N", "password": "secret1"}, "")
	assert.Equal(t, http.StatusOK, code)
}
