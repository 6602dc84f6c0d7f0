// Package auth holds the domain model for authentication: roles, the
// identity a provider reports, and the session the API persists. It has no
// adapter or transport concerns; those live in internal/adapters and
// internal/http.
package auth

import "time"

// Role is the application-level authorization role. It stays a plain string
// so it survives cookies, Redis, and log lines without translation.
type Role string

const (
	// RoleManager can export datasets and administer saved views.
	RoleManager Role = "manager"
	// RoleClerk can browse datasets and manage their own saved views.
	RoleClerk Role = "clerk"
	// RoleGuest is an authenticated user whose groups map to nothing.
	RoleGuest Role = "guest"
)

// rank orders roles for privilege comparison. Unknown roles rank below
// guest.
func (r Role) rank() int {
	switch r {
	case RoleManager:
		return 3
	case RoleClerk:
		return 2
	case RoleGuest:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r carries at least the privilege of min.
func (r Role) AtLeast(min Role) bool { return r.rank() >= min.rank() }

// Valid reports whether the role is one of the defined constants.
func (r Role) Valid() bool { return r.rank() > 0 }

// Identity is the authenticated principal an identity provider reports.
// Adapters map provider-specific claims into this shape; nothing past the
// adapter layer sees raw claims.
type Identity struct {
	UserID    string // stable identifier, sub or samAccountName
	FirstName string
	LastName  string
	Email     string
	Groups    []string
	ExpiresAt time.Time // token expiry as reported by the provider
}

// Session is the server-side record persisted for a logged-in user. The ID
// is opaque and is the only value that leaves the server, in the session
// cookie.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsGuest reports whether the session carries the guest role.
func (s Session) IsGuest() bool { return s.Role == RoleGuest }

// CanExport reports whether the session role may export dataset records.
func (s Session) CanExport() bool { return s.Role == RoleManager }
