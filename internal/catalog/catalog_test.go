package catalog

import (
	"testing"

	"github.com/dripspot/dripspot-backend/pkg/config"
	"github.com/dripspot/dripspot-backend/pkg/enums"
)

func fullStripeConfig() config.StripeConfig {
	return config.StripeConfig{
		PriceShopProMonthly:     "price_shop_pro_m",
		PriceShopProAnnual:      "price_shop_pro_a",
		PriceShopProPlusMonthly: "price_shop_pp_m",
		PriceShopProPlusAnnual:  "price_shop_pp_a",
		PriceMembershipMonthly:  "price_member_m",
		PriceMembershipAnnual:   "price_member_a",
	}
}

func TestNew_RejectsEmptyConfig(t *testing.T) {
	if _, err := New(config.StripeConfig{}); err == nil {
		t.Fatalf("expected error for config with no price ids")
	}
}

func TestNew_RejectsDuplicatePriceIDs(t *testing.T) {
	cfg := fullStripeConfig()
	cfg.PriceShopProAnnual = cfg.PriceShopProMonthly
	if _, err := New(cfg); err == nil {
		t.Fatalf("expected error for duplicate price id")
	}
}

func TestNew_SkipsUnsetPrices(t *testing.T) {
	cfg := config.StripeConfig{PriceMembershipMonthly: "price_member_m"}
	catalog, err := New(cfg)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	if _, ok := catalog.Resolve("price_member_m"); !ok {
		t.Fatalf("expected configured price to resolve")
	}
	if _, err := catalog.ShopPrice(enums.ShopTierPro, enums.BillingIntervalMonthly); err == nil {
		t.Fatalf("expected error for unconfigured shop price")
	}
}

func TestResolve(t *testing.T) {
	catalog, err := New(fullStripeConfig())
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}

	mapping, ok := catalog.Resolve("price_shop_pp_a")
	if !ok {
		t.Fatalf("expected price to resolve")
	}
	if mapping.EntityType != enums.EntityTypeShop {
		t.Fatalf("expected shop entity, got %s", mapping.EntityType)
	}
	if mapping.ShopTier != enums.ShopTierProPlus {
		t.Fatalf("expected pro_plus tier, got %s", mapping.ShopTier)
	}
	if mapping.Interval != enums.BillingIntervalAnnual {
		t.Fatalf("expected annual interval, got %s", mapping.Interval)
	}

	if _, ok := catalog.Resolve("price_unknown"); ok {
		t.Fatalf("unknown price should not resolve")
	}
	if _, ok := catalog.Resolve(" price_shop_pp_a "); !ok {
		t.Fatalf("expected whitespace-padded price id to resolve")
	}
}

func TestShopPrice(t *testing.T) {
	catalog, err := New(fullStripeConfig())
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}

	priceID, err := catalog.ShopPrice(enums.ShopTierPro, enums.BillingIntervalMonthly)
	if err != nil {
		t.Fatalf("shop price: %v", err)
	}
	if priceID != "price_shop_pro_m" {
		t.Fatalf("unexpected price id %s", priceID)
	}

	if _, err := catalog.ShopPrice(enums.ShopTierFree, enums.BillingIntervalMonthly); err == nil {
		t.Fatalf("free tier must not be purchasable")
	}
}

func TestMembershipPrice(t *testing.T) {
	catalog, err := New(fullStripeConfig())
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}

	priceID, err := catalog.MembershipPrice(enums.BillingIntervalAnnual)
	if err != nil {
		t.Fatalf("membership price: %v", err)
	}
	if priceID != "price_member_a" {
		t.Fatalf("unexpected price id %s", priceID)
	}
}
