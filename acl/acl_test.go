package acl

import (
	"testing"

	"github.com/shoenig/test/must"
)

func TestValidRole(t *testing.T) {
	must.True(t, ValidRole(RoleReader))
	must.True(t, ValidRole(RoleSupervisor))
	must.True(t, ValidRole(RoleAdmin))
	must.False(t, ValidRole(""))
	must.False(t, ValidRole("reader"))
	must.False(t, ValidRole("ROOT"))
}

func TestIdentity_AllowsCapability(t *testing.T) {
	cases := []struct {
		role  string
		read  bool
		write bool
	}{
		{RoleReader, true, false},
		{RoleSupervisor, true, true},
		{RoleAdmin, true, true},
		{"bogus", false, false},
	}
	for _, tc := range cases {
		id := &Identity{Subject: "user:x", Role: tc.role}
		must.Eq(t, tc.read, id.AllowsCapability(CapabilityReadPlan), must.Sprintf("role %s read", tc.role))
		must.Eq(t, tc.write, id.AllowsCapability(CapabilityWritePlan), must.Sprintf("role %s write", tc.role))
	}
}

func TestAnonymousAdmin(t *testing.T) {
	must.Eq(t, RoleAdmin, AnonymousAdmin.Role)
	must.True(t, AnonymousAdmin.AllowsCapability(CapabilityWritePlan))
}
