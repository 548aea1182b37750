package enums

import "fmt"

// ShopTier is the purchased feature level for a shop listing.
type ShopTier string

const (
	ShopTierFree    ShopTier = "free"
	ShopTierPro     ShopTier = "pro"
	ShopTierProPlus ShopTier = "pro_plus"
)

var validShopTiers = []ShopTier{
	ShopTierFree,
	ShopTierPro,
	ShopTierProPlus,
}

// String implements fmt.Stringer.
func (t ShopTier) String() string {
	return string(t)
}

// IsValid reports whether the value is known.
func (t ShopTier) IsValid() bool {
	for _, candidate := range validShopTiers {
		if candidate == t {
			return true
		}
	}
	return false
}

// Rank orders tiers so "at or above" comparisons stay in one place.
func (t ShopTier) Rank() int {
	switch t {
	case ShopTierPro:
		return 1
	case ShopTierProPlus:
		return 2
	default:
		return 0
	}
}

// ParseShopTier converts raw input into a ShopTier.
func ParseShopTier(value string) (ShopTier, error) {
	for _, candidate := range validShopTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shop tier %q", value)
}
