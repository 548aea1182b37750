package shops

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dripspot/dripspot-backend/internal/entitlements"
	"github.com/dripspot/dripspot-backend/internal/ownership"
	"github.com/dripspot/dripspot-backend/pkg/db/models"
	"github.com/dripspot/dripspot-backend/pkg/enums"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
)

// Service exposes the owner-facing billing surface of a shop.
type Service interface {
	Billing(ctx context.Context, userID, shopID uuid.UUID) (*BillingSnapshot, error)
	ToggleDiscount(ctx context.Context, userID, shopID uuid.UUID, enabled bool) (*BillingSnapshot, error)
}

// ServiceParams groups dependencies for the shop service.
type ServiceParams struct {
	Repo     Repository
	Resolver *ownership.Resolver
	Policy   *entitlements.Policy
}

// BillingSnapshot is the owner-visible billing state of a shop, with the
// entitlement answers precomputed so clients never re-derive the grace rules.
type BillingSnapshot struct {
	ShopID             uuid.UUID                `json:"shop_id"`
	Tier               enums.ShopTier           `json:"tier"`
	SubscriptionStatus enums.SubscriptionStatus `json:"subscription_status"`
	StripeCustomerID   *string                  `json:"stripe_customer_id,omitempty"`
	CurrentPeriodEnd   *time.Time               `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool                     `json:"cancel_at_period_end"`
	DiscountEnabled    bool                     `json:"discount_enabled"`
	ProFeatures        bool                     `json:"pro_features"`
	ProPlusFeatures    bool                     `json:"pro_plus_features"`
	DiscountActive     bool                     `json:"discount_active"`
	NeedsAttention     bool                     `json:"needs_attention"`
}

type service struct {
	repo     Repository
	resolver *ownership.Resolver
	policy   *entitlements.Policy
}

// NewService builds a shop service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("shop repo required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("ownership resolver required")
	}
	if params.Policy == nil {
		return nil, fmt.Errorf("entitlement policy required")
	}
	return &service{repo: params.Repo, resolver: params.Resolver, policy: params.Policy}, nil
}

func (s *service) Billing(ctx context.Context, userID, shopID uuid.UUID) (*BillingSnapshot, error) {
	shop, err := s.resolver.VerifyShopOwner(ctx, shopID, userID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(shop), nil
}

// ToggleDiscount flips the member-discount flag. Turning it on requires a
// live pro_plus entitlement; turning it off is always allowed.
func (s *service) ToggleDiscount(ctx context.Context, userID, shopID uuid.UUID, enabled bool) (*BillingSnapshot, error) {
	shop, err := s.resolver.VerifyShopOwner(ctx, shopID, userID)
	if err != nil {
		return nil, err
	}

	if enabled && !s.policy.ShopIsProPlus(shop) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "discount requires an active pro_plus subscription")
	}

	if shop.DiscountEnabled != enabled {
		shop.DiscountEnabled = enabled
		if err := s.repo.Update(ctx, shop); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shop")
		}
	}
	return s.snapshot(shop), nil
}

func (s *service) snapshot(shop *models.Shop) *BillingSnapshot {
	return &BillingSnapshot{
		ShopID:             shop.ID,
		Tier:               shop.Tier,
		SubscriptionStatus: shop.SubscriptionStatus,
		StripeCustomerID:   shop.StripeCustomerID,
		CurrentPeriodEnd:   shop.CurrentPeriodEnd,
		CancelAtPeriodEnd:  shop.CancelAtPeriodEnd,
		DiscountEnabled:    shop.DiscountEnabled,
		ProFeatures:        s.policy.ShopIsPro(shop),
		ProPlusFeatures:    s.policy.ShopIsProPlus(shop),
		DiscountActive:     s.policy.DiscountActive(shop),
		NeedsAttention:     entitlements.NeedsAttention(shop.SubscriptionStatus),
	}
}
