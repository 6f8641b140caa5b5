package enums

import "fmt"

// ProviderType identifies the kind of response unit a firm operates.
type ProviderType string

const (
	ProviderTypeAmbulance ProviderType = "ambulance"
	ProviderTypeTowTruck  ProviderType = "tow_truck"
	ProviderTypeSecurity  ProviderType = "security"
	ProviderTypeFire      ProviderType = "fire"
	ProviderTypeMedical   ProviderType = "medical"
)

var validProviderTypes = []ProviderType{
	ProviderTypeAmbulance,
	ProviderTypeTowTruck,
	ProviderTypeSecurity,
	ProviderTypeFire,
	ProviderTypeMedical,
}

// String implements fmt.Stringer.
func (p ProviderType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProviderType.
func (p ProviderType) IsValid() bool {
	for _, candidate := range validProviderTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProviderType converts raw input into a ProviderType.
func ParseProviderType(value string) (ProviderType, error) {
	for _, candidate := range validProviderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider type %q", value)
}

// ProviderStatus tracks whether a response unit can take work.
type ProviderStatus string

const (
	ProviderStatusAvailable   ProviderStatus = "available"
	ProviderStatusBusy        ProviderStatus = "busy"
	ProviderStatusOffline     ProviderStatus = "offline"
	ProviderStatusMaintenance ProviderStatus = "maintenance"
)

var validProviderStatuses = []ProviderStatus{
	ProviderStatusAvailable,
	ProviderStatusBusy,
	ProviderStatusOffline,
	ProviderStatusMaintenance,
}

// String implements fmt.Stringer.
func (p ProviderStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProviderStatus.
func (p ProviderStatus) IsValid() bool {
	for _, candidate := range validProviderStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProviderStatus converts raw input into a ProviderStatus.
func ParseProviderStatus(value string) (ProviderStatus, error) {
	for _, candidate := range validProviderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid provider status %q", value)
}
