package authroles

import (
	"testing"

	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/stretchr/testify/assert"
)

func TestStaticRoleMapper_Map(t *testing.T) {
	mapper := StaticRoleMapper{
		ManagerGroup: "OpsDesk-Managers",
		ClerkGroup:   "OpsDesk-Clerks",
	}

	tests := []struct {
		name   string
		groups []string
		want   domainauth.Role
	}{
		{
			name:   "plain manager group",
			groups: []string{"everyone", "OpsDesk-Managers"},
			want:   domainauth.RoleManager,
		},
		{
			name:   "plain clerk group",
			groups: []string{"OpsDesk-Clerks"},
			want:   domainauth.RoleClerk,
		},
		{
			name:   "manager wins over clerk",
			groups: []string{"OpsDesk-Clerks", "OpsDesk-Managers"},
			want:   domainauth.RoleManager,
		},
		{
			name:   "no matching groups",
			groups: []string{"everyone", "helpdesk"},
			want:   domainauth.RoleGuest,
		},
		{
			name:   "empty groups",
			groups: nil,
			want:   domainauth.RoleGuest,
		},
		{
			name:   "distinguished name manager",
			groups: []string{"CN=OpsDesk-Managers,OU=Application,DC=corp,DC=meridianbank,DC=example"},
			want:   domainauth.RoleManager,
		},
		{
			name:   "distinguished name clerk lowercase cn",
			groups: []string{"cn=opsdesk-clerks,ou=application,dc=corp,dc=meridianbank,dc=example"},
			want:   domainauth.RoleClerk,
		},
		{
			name:   "case-insensitive plain match",
			groups: []string{"opsdesk-managers"},
			want:   domainauth.RoleManager,
		},
		{
			name:   "DN with different CN does not match",
			groups: []string{"CN=Payroll-Admins,OU=Application,DC=corp,DC=meridianbank,DC=example"},
			want:   domainauth.RoleGuest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapper.Map(tt.groups))
		})
	}
}

func TestStaticRoleMapper_EmptyConfigMapsNothing(t *testing.T) {
	mapper := StaticRoleMapper{}
	got := mapper.Map([]string{"", "OpsDesk-Managers", "anything"})
	assert.Equal(t, domainauth.RoleGuest, got)
}
