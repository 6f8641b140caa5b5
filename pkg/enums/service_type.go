package enums

import "fmt"

// ServiceType identifies the kind of emergency a panic request asks for.
type ServiceType string

const (
	ServiceTypeCall      ServiceType = "call"
	ServiceTypeSecurity  ServiceType = "security"
	ServiceTypeAmbulance ServiceType = "ambulance"
	ServiceTypeFire      ServiceType = "fire"
	ServiceTypeTowing    ServiceType = "towing"
)

var validServiceTypes = []ServiceType{
	ServiceTypeCall,
	ServiceTypeSecurity,
	ServiceTypeAmbulance,
	ServiceTypeFire,
	ServiceTypeTowing,
}

// String implements fmt.Stringer.
func (s ServiceType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ServiceType.
func (s ServiceType) IsValid() bool {
	for _, candidate := range validServiceTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseServiceType converts raw input into a ServiceType.
func ParseServiceType(value string) (ServiceType, error) {
	for _, candidate := range validServiceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid service type %q", value)
}

// ProviderType resolves which provider fleet serves this service type.
// Call panics dispatch armed response.
func (s ServiceType) ProviderType() ProviderType {
	switch s {
	case ServiceTypeAmbulance:
		return ProviderTypeAmbulance
	case ServiceTypeFire:
		return ProviderTypeFire
	case ServiceTypeTowing:
		return ProviderTypeTowTruck
	default:
		return ProviderTypeSecurity
	}
}
