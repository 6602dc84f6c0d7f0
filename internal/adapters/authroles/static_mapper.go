// Package authroles maps directory groups onto opsdesk roles.
package authroles

import (
	"strings"

	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/ports"
)

var _ ports.RoleMapper = StaticRoleMapper{}

// StaticRoleMapper resolves a role from directory group membership. A group
// matches when it equals the configured name, or when it is a distinguished
// name whose leading CN equals it, so plain group claims and AD-style
// memberof values both work unchanged. Manager membership wins over clerk.
type StaticRoleMapper struct {
	ManagerGroup string
	ClerkGroup   string
}

func (m StaticRoleMapper) Map(groups []string) domainauth.Role {
	for _, g := range groups {
		if groupMatches(g, m.ManagerGroup) {
			return domainauth.RoleManager
		}
	}
	for _, g := range groups {
		if groupMatches(g, m.ClerkGroup) {
			return domainauth.RoleClerk
		}
	}
	return domainauth.RoleGuest
}

// groupMatches reports whether group names want, either verbatim or as the
// CN of a distinguished name. Comparison is case-insensitive to match
// directory semantics.
func groupMatches(group, want string) bool {
	if want == "" {
		return false
	}
	if strings.EqualFold(group, want) {
		return true
	}
	first, _, _ := strings.Cut(group, ",")
	first = strings.TrimSpace(first)
	if len(first) > 3 && strings.EqualFold(first[:3], "cn=") {
		return strings.EqualFold(first[3:], want)
	}
	return false
}
