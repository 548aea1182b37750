package enums

import "fmt"

// MembershipTier is the DripClub consumer membership level.
type MembershipTier string

const (
	MembershipTierNone   MembershipTier = "none"
	MembershipTierActive MembershipTier = "active"
)

var validMembershipTiers = []MembershipTier{
	MembershipTierNone,
	MembershipTierActive,
}

// String implements fmt.Stringer.
func (t MembershipTier) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t MembershipTier) IsValid() bool {
	for _, candidate := range validMembershipTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseMembershipTier converts raw input into a MembershipTier.
func ParseMembershipTier(value string) (MembershipTier, error) {
	for _, candidate := range validMembershipTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid membership tier %q", value)
}
