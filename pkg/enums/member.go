package enums

import "fmt"

// ActorRole represents a platform-level permissions role carried in JWT claims.
type ActorRole string

const (
	ActorRoleMember   ActorRole = "member"
	ActorRoleOperator ActorRole = "operator"
	ActorRoleAdmin    ActorRole = "admin"
)

var validActorRoles = []ActorRole{
	ActorRoleMember,
	ActorRoleOperator,
	ActorRoleAdmin,
}

// String implements fmt.Stringer.
func (a ActorRole) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActorRole.
func (a ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActorRole converts raw input into an ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}

// GroupMemberStatus tracks whether a phone still belongs to its group.
type GroupMemberStatus string

const (
	GroupMemberStatusActive  GroupMemberStatus = "active"
	GroupMemberStatusRemoved GroupMemberStatus = "removed"
)

var validGroupMemberStatuses = []GroupMemberStatus{
	GroupMemberStatusActive,
	GroupMemberStatusRemoved,
}

// String implements fmt.Stringer.
func (g GroupMemberStatus) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GroupMemberStatus.
func (g GroupMemberStatus) IsValid() bool {
	for _, candidate := range validGroupMemberStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}
