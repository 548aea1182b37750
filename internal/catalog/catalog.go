package catalog

import (
	"fmt"
	"strings"

	"github.com/dripspot/dripspot-backend/pkg/config"
	"github.com/dripspot/dripspot-backend/pkg/enums"
)

// PriceMapping ties a Stripe price id to the local plan it purchases.
type PriceMapping struct {
	PriceID    string
	EntityType enums.EntityType
	ShopTier   enums.ShopTier
	Interval   enums.BillingInterval
}

// Catalog resolves between Stripe price ids and local plans. It is built once
// at startup from configuration and is read-only afterwards.
type Catalog struct {
	byPriceID map[string]PriceMapping
	mappings  []PriceMapping
}

// New builds the catalog from the configured price ids. Unset price ids are
// skipped so partial environments (for example membership-only test setups)
// still boot; duplicate price ids are rejected outright.
func New(cfg config.StripeConfig) (*Catalog, error) {
	candidates := []PriceMapping{
		{PriceID: cfg.PriceShopProMonthly, EntityType: enums.EntityTypeShop, ShopTier: enums.ShopTierPro, Interval: enums.BillingIntervalMonthly},
		{PriceID: cfg.PriceShopProAnnual, EntityType: enums.EntityTypeShop, ShopTier: enums.ShopTierPro, Interval: enums.BillingIntervalAnnual},
		{PriceID: cfg.PriceShopProPlusMonthly, EntityType: enums.EntityTypeShop, ShopTier: enums.ShopTierProPlus, Interval: enums.BillingIntervalMonthly},
		{PriceID: cfg.PriceShopProPlusAnnual, EntityType: enums.EntityTypeShop, ShopTier: enums.ShopTierProPlus, Interval: enums.BillingIntervalAnnual},
		{PriceID: cfg.PriceMembershipMonthly, EntityType: enums.EntityTypeMembership, Interval: enums.BillingIntervalMonthly},
		{PriceID: cfg.PriceMembershipAnnual, EntityType: enums.EntityTypeMembership, Interval: enums.BillingIntervalAnnual},
	}

	catalog := &Catalog{byPriceID: make(map[string]PriceMapping, len(candidates))}
	for _, mapping := range candidates {
		mapping.PriceID = strings.TrimSpace(mapping.PriceID)
		if mapping.PriceID == "" {
			continue
		}
		if _, exists := catalog.byPriceID[mapping.PriceID]; exists {
			return nil, fmt.Errorf("duplicate stripe price id %q", mapping.PriceID)
		}
		catalog.byPriceID[mapping.PriceID] = mapping
		catalog.mappings = append(catalog.mappings, mapping)
	}
	if len(catalog.mappings) == 0 {
		return nil, fmt.Errorf("no stripe price ids configured")
	}
	return catalog, nil
}

// Resolve returns the plan a price id purchases.
func (c *Catalog) Resolve(priceID string) (PriceMapping, bool) {
	mapping, ok := c.byPriceID[strings.TrimSpace(priceID)]
	return mapping, ok
}

// ShopPrice returns the price id for a shop tier/interval pair.
func (c *Catalog) ShopPrice(tier enums.ShopTier, interval enums.BillingInterval) (string, error) {
	if tier != enums.ShopTierPro && tier != enums.ShopTierProPlus {
		return "", fmt.Errorf("tier %q is not purchasable", tier)
	}
	for _, mapping := range c.mappings {
		if mapping.EntityType == enums.EntityTypeShop && mapping.ShopTier == tier && mapping.Interval == interval {
			return mapping.PriceID, nil
		}
	}
	return "", fmt.Errorf("no price configured for shop tier %q interval %q", tier, interval)
}

// MembershipPrice returns the price id for a membership interval.
func (c *Catalog) MembershipPrice(interval enums.BillingInterval) (string, error) {
	for _, mapping := range c.mappings {
		if mapping.EntityType == enums.EntityTypeMembership && mapping.Interval == interval {
			return mapping.PriceID, nil
		}
	}
	return "", fmt.Errorf("no price configured for membership interval %q", interval)
}
