// Package acl defines the caller roles and the capability checks the plan
// service enforces. The engine consumes an opaque caller identity; how the
// bearer credential was verified is the HTTP layer's concern.
package acl

// Roles, in ascending privilege order.
const (
	RoleReader     = "READER"
	RoleSupervisor = "SUPERVISOR"
	RoleAdmin      = "ADMIN"
)

// Capabilities the plan service checks.
const (
	CapabilityReadPlan  = "read-plan"
	CapabilityWritePlan = "write-plan"
)

// Identity is the resolved caller: an opaque subject plus one role.
type Identity struct {
	Subject string
	Role    string
}

// AnonymousAdmin is the identity used when authentication is disabled,
// mirroring an ACL-disabled agent where every caller is management.
var AnonymousAdmin = &Identity{Subject: "anonymous", Role: RoleAdmin}

// ValidRole reports whether role is one of the three known roles.
func ValidRole(role string) bool {
	switch role {
	case RoleReader, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

// AllowsCapability checks a capability against the identity's role. Any
// authenticated role may read; SUPERVISOR and ADMIN may generate and
// simulate.
func (i *Identity) AllowsCapability(capability string) bool {
	if i == nil || !ValidRole(i.Role) {
		return false
	}
	switch capability {
	case CapabilityReadPlan:
		return true
	case CapabilityWritePlan:
		return i.Role == RoleSupervisor || i.Role == RoleAdmin
	}
	return false
}
