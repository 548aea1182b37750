package entitlements

import (
	"time"

	"github.com/dripspot/dripspot-backend/pkg/db/models"
	"github.com/dripspot/dripspot-backend/pkg/enums"
)

// Policy answers every "does this entity currently get paid features"
// question. All feature gates route through here so the grace-window rule
// lives in exactly one place.
type Policy struct {
	// GraceWindow bounds how long past_due keeps entitlement after the
	// current period end. Zero means indefinite grace.
	GraceWindow time.Duration

	// Now is overridable for tests.
	Now func() time.Time
}

// NewPolicy builds an entitlement policy with the given grace window.
func NewPolicy(graceWindow time.Duration) *Policy {
	return &Policy{GraceWindow: graceWindow, Now: time.Now}
}

func (p *Policy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Entitled reports whether a status/period pair still grants paid features.
// active and trialing always do; past_due does until the grace window runs
// out; everything else does not.
func (p *Policy) Entitled(status enums.SubscriptionStatus, currentPeriodEnd *time.Time) bool {
	switch status {
	case enums.SubscriptionStatusActive, enums.SubscriptionStatusTrialing:
		return true
	case enums.SubscriptionStatusPastDue:
		if p.GraceWindow <= 0 {
			return true
		}
		if currentPeriodEnd == nil {
			return true
		}
		return p.now().Before(currentPeriodEnd.Add(p.GraceWindow))
	default:
		return false
	}
}

// ShopHasTier reports whether the shop currently gets features of the given
// tier. free is always granted; paid tiers require entitlement at or above
// the requested rank.
func (p *Policy) ShopHasTier(shop *models.Shop, tier enums.ShopTier) bool {
	if tier == enums.ShopTierFree {
		return true
	}
	if shop == nil {
		return false
	}
	if !p.Entitled(shop.SubscriptionStatus, shop.CurrentPeriodEnd) {
		return false
	}
	return shop.Tier.Rank() >= tier.Rank()
}

// ShopIsPro reports whether the shop gets pro features.
func (p *Policy) ShopIsPro(shop *models.Shop) bool {
	return p.ShopHasTier(shop, enums.ShopTierPro)
}

// ShopIsProPlus reports whether the shop gets pro plus features.
func (p *Policy) ShopIsProPlus(shop *models.Shop) bool {
	return p.ShopHasTier(shop, enums.ShopTierProPlus)
}

// MemberIsActive reports whether the membership currently grants DripClub
// benefits.
func (p *Policy) MemberIsActive(membership *models.Membership) bool {
	if membership == nil {
		return false
	}
	if membership.Tier != enums.MembershipTierActive {
		return false
	}
	return p.Entitled(membership.SubscriptionStatus, membership.CurrentPeriodEnd)
}

// DiscountActive reports whether the shop's member discount is live: the
// toggle must be on and the shop must still hold pro_plus, the only tier
// the discount applies to.
func (p *Policy) DiscountActive(shop *models.Shop) bool {
	if shop == nil || !shop.DiscountEnabled {
		return false
	}
	return p.ShopIsProPlus(shop)
}

// NeedsAttention reports whether the subscription is in a state the owner
// should act on.
func NeedsAttention(status enums.SubscriptionStatus) bool {
	return status == enums.SubscriptionStatusPastDue || status == enums.SubscriptionStatusUnpaid
}
