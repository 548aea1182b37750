package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/dripspot/dripspot-backend/internal/memberships"
	"github.com/dripspot/dripspot-backend/internal/ownership"
	"github.com/dripspot/dripspot-backend/internal/shops"
	"github.com/dripspot/dripspot-backend/pkg/enums"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the subscription lifecycle surface owned by end users.
type Service interface {
	Cancel(ctx context.Context, userID uuid.UUID, input CancelInput) (*CancelResult, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	ShopRepo          shops.Repository
	MembershipRepo    memberships.Repository
	Resolver          *ownership.Resolver
	StripeClient      StripeSubscriptionClient
	TransactionRunner txRunner
}

// CancelInput selects the subscription to cancel and how.
type CancelInput struct {
	EntityType  enums.EntityType
	ShopID      uuid.UUID
	AtPeriodEnd bool
}

// CancelResult mirrors the local state written after the provider call. The
// webhook stream remains the source of truth; this is the optimistic view.
type CancelResult struct {
	EntityType        enums.EntityType         `json:"entity_type"`
	EntityID          uuid.UUID                `json:"entity_id"`
	Status            enums.SubscriptionStatus `json:"status"`
	CancelAtPeriodEnd bool                     `json:"cancel_at_period_end"`
	CurrentPeriodEnd  *time.Time               `json:"current_period_end,omitempty"`
}

type service struct {
	shopRepo       shops.Repository
	membershipRepo memberships.Repository
	resolver       *ownership.Resolver
	stripe         StripeSubscriptionClient
	txRunner       txRunner
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.ShopRepo == nil {
		return nil, fmt.Errorf("shop repo required")
	}
	if params.MembershipRepo == nil {
		return nil, fmt.Errorf("membership repo required")
	}
	if params.Resolver == nil {
		return nil, fmt.Errorf("ownership resolver required")
	}
	if params.StripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		shopRepo:       params.ShopRepo,
		membershipRepo: params.MembershipRepo,
		resolver:       params.Resolver,
		stripe:         params.StripeClient,
		txRunner:       params.TransactionRunner,
	}, nil
}

// Cancel ends the subscription for the selected entity, either at the period
// boundary or immediately. The acting user must own the entity.
func (s *service) Cancel(ctx context.Context, userID uuid.UUID, input CancelInput) (*CancelResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}

	switch input.EntityType {
	case enums.EntityTypeShop:
		return s.cancelShop(ctx, userID, input)
	case enums.EntityTypeMembership:
		return s.cancelMembership(ctx, userID, input)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "entity_type must be shop or membership")
	}
}

func (s *service) cancelShop(ctx context.Context, userID uuid.UUID, input CancelInput) (*CancelResult, error) {
	shop, err := s.resolver.VerifyShopOwner(ctx, input.ShopID, userID)
	if err != nil {
		return nil, err
	}
	if shop.StripeSubscriptionID == nil || *shop.StripeSubscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "shop has no subscription")
	}
	if shop.SubscriptionStatus == enums.SubscriptionStatusCanceled || shop.SubscriptionStatus == enums.SubscriptionStatusInactive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is not active")
	}

	sub, err := s.cancelStripe(ctx, *shop.StripeSubscriptionID, input.AtPeriodEnd)
	if err != nil {
		return nil, err
	}

	status := MapStripeStatus(sub.Status)
	periodEnd := periodEndFromSubscription(sub)
	// The scheduled-cancel flag cannot outlive the subscription itself.
	pendingCancel := sub.CancelAtPeriodEnd && status != enums.SubscriptionStatusCanceled

	if err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.shopRepo.WithTx(tx)
		stored, err := txRepo.FindByID(ctx, shop.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
		}
		if stored == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		stored.SubscriptionStatus = status
		stored.CancelAtPeriodEnd = pendingCancel
		if periodEnd != nil {
			stored.CurrentPeriodEnd = periodEnd
		}
		if status == enums.SubscriptionStatusCanceled {
			stored.Tier = enums.ShopTierFree
			stored.DiscountEnabled = false
		}
		return txRepo.Update(ctx, stored)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cancellation")
	}

	return &CancelResult{
		EntityType:        enums.EntityTypeShop,
		EntityID:          shop.ID,
		Status:            status,
		CancelAtPeriodEnd: pendingCancel,
		CurrentPeriodEnd:  periodEnd,
	}, nil
}

func (s *service) cancelMembership(ctx context.Context, userID uuid.UUID, input CancelInput) (*CancelResult, error) {
	membership, err := s.membershipRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership")
	}
	if membership == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
	}
	if membership.StripeSubscriptionID == nil || *membership.StripeSubscriptionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "membership has no subscription")
	}
	if membership.SubscriptionStatus == enums.SubscriptionStatusCanceled || membership.SubscriptionStatus == enums.SubscriptionStatusInactive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is not active")
	}

	sub, err := s.cancelStripe(ctx, *membership.StripeSubscriptionID, input.AtPeriodEnd)
	if err != nil {
		return nil, err
	}

	status := MapStripeStatus(sub.Status)
	periodEnd := periodEndFromSubscription(sub)
	pendingCancel := sub.CancelAtPeriodEnd && status != enums.SubscriptionStatusCanceled

	if err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.membershipRepo.WithTx(tx)
		stored, err := txRepo.FindByID(ctx, membership.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if stored == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}
		stored.SubscriptionStatus = status
		stored.CancelAtPeriodEnd = pendingCancel
		if periodEnd != nil {
			stored.CurrentPeriodEnd = periodEnd
		}
		if status == enums.SubscriptionStatusCanceled {
			stored.Tier = enums.MembershipTierNone
		}
		return txRepo.Update(ctx, stored)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cancellation")
	}

	return &CancelResult{
		EntityType:        enums.EntityTypeMembership,
		EntityID:          membership.ID,
		Status:            status,
		CancelAtPeriodEnd: pendingCancel,
		CurrentPeriodEnd:  periodEnd,
	}, nil
}

func (s *service) cancelStripe(ctx context.Context, subscriptionID string, atPeriodEnd bool) (*stripe.Subscription, error) {
	if atPeriodEnd {
		sub, err := s.stripe.Update(ctx, subscriptionID, &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "schedule stripe cancellation")
		}
		return sub, nil
	}

	sub, err := s.stripe.Cancel(ctx, subscriptionID, &stripe.SubscriptionCancelParams{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel stripe subscription")
	}
	return sub, nil
}
