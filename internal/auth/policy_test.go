package auth

import (
	"testing"
	"time"

	"bookshop/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	pol := &Policy{
		LegacyAdminEmails: []string{"Owner@Example.com"},
		LegacyUntil:       now.Add(24 * time.Hour),
		Now:               func() time.Time { return now },
	}

	tests := []struct {
		name      string
		principal Principal
		req       Requirement
		allowed   bool
		status    int
		viaLegacy bool
	}{
		{"anonymous", Principal{}, Authenticated, false, 401, false},
		{"anonymous admin route", Principal{}, Admin, false, 401, false},
		{"user", Principal{UserID: "u1", Role: models.RoleUser}, Authenticated, true, 0, false},
		{"user on admin route", Principal{UserID: "u1", Email: "a@b.c", Role: models.RoleUser}, Admin, false, 403, false},
		{"admin", Principal{UserID: "u2", Role: models.RoleAdmin}, Admin, true, 0, false},
		{"legacy email", Principal{UserID: "u3", Email: "owner@example.com", Role: models.RoleUser}, Admin, true, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := pol.Authorize(tt.principal, tt.req)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.status, d.Status)
			assert.Equal(t, tt.viaLegacy, d.ViaLegacy)
		})
	}
}

func TestLegacyBypassExpires(t *testing.T) {
	until := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := until
	pol := &Policy{
		LegacyAdminEmails: []string{"owner@example.com"},
		LegacyUntil:       until,
		Now:               func() time.Time { return now },
	}
	p := Principal{UserID: "u3", Email: "owner@example.com", Role: models.RoleUser}

	assert.False(t, pol.Authorize(p, Admin).Allowed)

	now = until.Add(-time.Second)
	assert.True(t, pol.Authorize(p, Admin).Allowed)
}

func TestLegacyBypassDisabledWithoutDeadline(t *testing.T) {
	pol := &Policy{LegacyAdminEmails: []string{"owner@example.com"}}
	d := pol.Authorize(Principal{UserID: "u", Email: "owner@example.com"}, Admin)
	assert.False(t, d.Allowed)
	assert.Equal(t, 403, d.Status)
}
