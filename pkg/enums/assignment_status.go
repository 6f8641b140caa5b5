package enums

import "fmt"

// AssignmentStatus tracks the lifecycle of a provider assignment.
type AssignmentStatus string

const (
	AssignmentStatusAssigned  AssignmentStatus = "assigned"
	AssignmentStatusEnRoute   AssignmentStatus = "en_route"
	AssignmentStatusArrived   AssignmentStatus = "arrived"
	AssignmentStatusCompleted AssignmentStatus = "completed"
	AssignmentStatusCancelled AssignmentStatus = "cancelled"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusAssigned,
	AssignmentStatusEnRoute,
	AssignmentStatusArrived,
	AssignmentStatusCompleted,
	AssignmentStatusCancelled,
}

// String implements fmt.Stringer.
func (a AssignmentStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssignmentStatus.
func (a AssignmentStatus) IsValid() bool {
	for _, candidate := range validAssignmentStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsOpen reports whether the assignment still holds its provider.
func (a AssignmentStatus) IsOpen() bool {
	return a != AssignmentStatusCompleted && a != AssignmentStatusCancelled
}

// ParseAssignmentStatus converts raw input into an AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	for _, candidate := range validAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment status %q", value)
}
