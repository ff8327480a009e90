// Package auth decides who may call what. Every privileged route asks the
// same Policy, so role checks never drift between handlers.
package auth

import (
	"net/http"
	"strings"
	"time"

	"bookshop/internal/models"
)

// Principal is the caller as recorded in the session.
type Principal struct {
	UserID string
	Email  string
	Role   models.Role
}

func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

type Requirement int

const (
	Authenticated Requirement = iota
	Admin
)

// Decision is the outcome of one authorization check.
type Decision struct {
	Allowed bool
	// Status is the HTTP status to answer with when Allowed is false.
	Status int
	// ViaLegacy is set when admin access was granted by the email list
	// rather than by role.
	ViaLegacy bool
}

// Policy holds the rules. LegacyAdminEmails lets a fixed set of accounts
// act as admin until LegacyUntil, after which only the stored role counts.
type Policy struct {
	LegacyAdminEmails []string
	LegacyUntil       time.Time
	Now               func() time.Time
}

func (pol *Policy) now() time.Time {
	if pol.Now != nil {
		return pol.Now()
	}
	return time.Now()
}

func (pol *Policy) legacyAdmin(email string) bool {
	if email == "" || pol.LegacyUntil.IsZero() || !pol.now().Before(pol.LegacyUntil) {
		return false
	}
	for _, e := range pol.LegacyAdminEmails {
		if strings.EqualFold(strings.TrimSpace(e), email) {
			return true
		}
	}
	return false
}

func (pol *Policy) Authorize(p Principal, req Requirement) Decision {
	if !p.Authenticated() {
		return Decision{Status: http.StatusUnauthorized}
	}
	switch req {
	case Authenticated:
		return Decision{Allowed: true}
	case Admin:
		if p.Role == models.RoleAdmin {
			return Decision{Allowed: true}
		}
		if pol.legacyAdmin(p.Email) {
			return Decision{Allowed: true, ViaLegacy: true}
		}
		return Decision{Status: http.StatusForbidden}
	}
	return Decision{Status: http.StatusForbidden}
}
