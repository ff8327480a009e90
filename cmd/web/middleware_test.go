package main

import (
	"net/http"
	"testing"
	"time"

	"bookshop/internal/auth"
	"bookshop/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func TestRequireAdmin(t *testing.T) {
	customer := newUser("reader@example.com", models.RoleUser)
	admin := newUser("owner@example.com", models.RoleAdmin)
	founder := newUser("Founder@Example.com", models.RoleUser)

	tests := []struct {
		name       string
		principal  auth.Principal
		wantStatus int
	}{
		{"anonymous", auth.Principal{}, http.StatusUnauthorized},
		{"customer", principalOf(customer), http.StatusForbidden},
		{"admin", principalOf(admin), http.StatusOK},
		{"legacy email", principalOf(founder), http.StatusOK},
		{"unknown account", principalOf(newUser("gone@example.com", models.RoleAdmin)), http.StatusUnauthorized},
		{"malformed id", auth.Principal{UserID: "u1", Role: models.RoleAdmin}, http.StatusUnauthorized},
	}

	app := newTestApplication(t)
	app.users = newMemUsers(customer, admin, founder)
	app.policy = &auth.Policy{
		LegacyAdminEmails: []string{"founder@example.com"},
		LegacyUntil:       time.Now().Add(24 * time.Hour),
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := asPrincipal(app, tt.principal, app.requireAdmin(ok))
			rr := do(t, h, http.MethodGet, "/api/admin/dashboard", nil, nil)
			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "OK", rr.Body.String())
				assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
			}
		})
	}
}

func TestRequireAdminLegacyExpired(t *testing.T) {
	founder := newUser("founder@example.com", models.RoleUser)
	app := newTestApplication(t)
	app.users = newMemUsers(founder)
	app.policy = &auth.Policy{
		LegacyAdminEmails: []string{"founder@example.com"},
		LegacyUntil:       time.Now().Add(-time.Hour),
	}

	rr := do(t, asPrincipal(app, principalOf(founder), app.requireAdmin(ok)), http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireAdminFollowsStoredRole(t *testing.T) {
	owner := newUser("owner@example.com", models.RoleAdmin)
	clerk := newUser("clerk@example.com", models.RoleAdmin)
	app := newTestApplication(t)
	app.users = newMemUsers(owner, clerk)

	// The clerk's session was written while they were still an admin.
	clerkSession := principalOf(clerk)
	rr := do(t, asPrincipal(app, clerkSession, app.requireAdmin(ok)), http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	target := "/api/admin/users/" + clerk.ID.Hex() + "/role?:id=" + clerk.ID.Hex()
	rr = do(t, asPrincipal(app, principalOf(owner), app.requireAdmin(app.adminSetUserRole)), http.MethodPut, target,
		map[string]string{"role": "user"}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, asPrincipal(app, clerkSession, app.requireAdmin(ok)), http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	target = "/api/admin/users/" + clerk.ID.Hex() + "?:id=" + clerk.ID.Hex()
	rr = do(t, asPrincipal(app, principalOf(owner), app.requireAdmin(app.adminDeleteUser)), http.MethodDelete, target, nil, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	clerkSession.Role = models.RoleAdmin
	rr = do(t, asPrincipal(app, clerkSession, app.requireAdmin(ok)), http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireAuthentication(t *testing.T) {
	app := newTestApplication(t)

	rr := do(t, asPrincipal(app, auth.Principal{}, app.requireAuthentication(ok)), http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "unauthorized", errorBody(t, rr))

	p := auth.Principal{UserID: "u1", Role: models.RoleUser}
	rr = do(t, asPrincipal(app, p, app.requireAuthentication(ok)), http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequestID(t *testing.T) {
	app := newTestApplication(t)
	var seen string
	h := app.requestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFrom(r.Context())
	}))

	rr := do(t, h, http.MethodGet, "/", nil, http.Header{"X-Request-Id": {"abc-123"}})
	assert.Equal(t, "abc-123", rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "abc-123", seen)

	rr = do(t, h, http.MethodGet, "/", nil, nil)
	assert.Len(t, rr.Header().Get("X-Request-ID"), 36)
	assert.Equal(t, rr.Header().Get("X-Request-ID"), seen)
}

func TestRecoverPanic(t *testing.T) {
	app := newTestApplication(t)
	h := app.recoverPanic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := do(t, h, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "close", rr.Header().Get("Connection"))
	assert.Equal(t, "internal server error", errorBody(t, rr))
}
