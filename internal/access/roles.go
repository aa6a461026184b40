package access

import "slices"

// Role is one of the fixed user roles.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleTrainer  Role = "trainer"
	RoleAdmin    Role = "admin"
)

// Permission names a capability granted by a role bundle.
type Permission string

const (
	PermQueryRAG            Permission = "can_query_rag"
	PermViewOwnAnalytics    Permission = "can_view_own_analytics"
	PermViewOrgAnalytics    Permission = "can_view_org_analytics"
	PermModifyKnowledgeBase Permission = "can_modify_knowledge_base"
	PermManageUsers         Permission = "can_manage_users"
	PermViewAuditLogs       Permission = "can_view_audit_logs"
)

// Access levels reported alongside each bundle.
const (
	AccessStandard = "standard"
	AccessElevated = "elevated"
	AccessFull     = "full"
)

// Bundle is the complete permission set of a role.
type Bundle struct {
	Permissions []Permission
	AccessLevel string
}

// Has reports whether the bundle grants p.
func (b Bundle) Has(p Permission) bool {
	return slices.Contains(b.Permissions, p)
}

var roleOrder = []Role{RoleEmployee, RoleTrainer, RoleAdmin}

var bundles = map[Role]Bundle{
	RoleEmployee: {
		Permissions: []Permission{PermQueryRAG, PermViewOwnAnalytics},
		AccessLevel: AccessStandard,
	},
	RoleTrainer: {
		Permissions: []Permission{PermQueryRAG, PermViewOwnAnalytics, PermViewOrgAnalytics, PermViewAuditLogs},
		AccessLevel: AccessElevated,
	},
	RoleAdmin: {
		Permissions: []Permission{PermQueryRAG, PermViewOwnAnalytics, PermViewOrgAnalytics, PermViewAuditLogs, PermModifyKnowledgeBase, PermManageUsers},
		AccessLevel: AccessFull,
	},
}

// Roles returns every role from least to most privileged.
func Roles() []Role {
	return slices.Clone(roleOrder)
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := bundles[r]
	return ok
}

// BundleFor returns the bundle of r.
func BundleFor(r Role) (Bundle, bool) {
	b, ok := bundles[r]
	if !ok {
		return Bundle{}, false
	}
	return Bundle{Permissions: slices.Clone(b.Permissions), AccessLevel: b.AccessLevel}, true
}

func permissionNames(ps []Permission) []string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return names
}
