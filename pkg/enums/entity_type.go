package enums

import "fmt"

// EntityType distinguishes the two billable subject kinds.
type EntityType string

const (
	EntityTypeShop       EntityType = "shop"
	EntityTypeMembership EntityType = "membership"
)

var validEntityTypes = []EntityType{
	EntityTypeShop,
	EntityTypeMembership,
}

// String implements fmt.Stringer.
func (t EntityType) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t EntityType) IsValid() bool {
	for _, candidate := range validEntityTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseEntityType converts raw input into an EntityType.
func ParseEntityType(value string) (EntityType, error) {
	for _, candidate := range validEntityTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid entity type %q", value)
}
