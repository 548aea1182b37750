package memberships

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dripspot/dripspot-backend/internal/entitlements"
	"github.com/dripspot/dripspot-backend/pkg/enums"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
)

// Service exposes the member-facing billing surface.
type Service interface {
	Billing(ctx context.Context, userID uuid.UUID) (*BillingSnapshot, error)
}

// ServiceParams groups dependencies for the membership service.
type ServiceParams struct {
	Repo   Repository
	Policy *entitlements.Policy
}

// BillingSnapshot is the member-visible billing state. Users without a
// membership row get the inactive zero state rather than a 404.
type BillingSnapshot struct {
	Tier               enums.MembershipTier     `json:"tier"`
	SubscriptionStatus enums.SubscriptionStatus `json:"subscription_status"`
	StripeCustomerID   *string                  `json:"stripe_customer_id,omitempty"`
	CurrentPeriodEnd   *time.Time               `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool                     `json:"cancel_at_period_end"`
	Active             bool                     `json:"active"`
	NeedsAttention     bool                     `json:"needs_attention"`
}

type service struct {
	repo   Repository
	policy *entitlements.Policy
}

// NewService builds a membership service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("membership repo required")
	}
	if params.Policy == nil {
		return nil, fmt.Errorf("entitlement policy required")
	}
	return &service{repo: params.Repo, policy: params.Policy}, nil
}

func (s *service) Billing(ctx context.Context, userID uuid.UUID) (*BillingSnapshot, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}

	membership, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership")
	}
	if membership == nil {
		return &BillingSnapshot{
			Tier:               enums.MembershipTierNone,
			SubscriptionStatus: enums.SubscriptionStatusInactive,
		}, nil
	}

	return &BillingSnapshot{
		Tier:               membership.Tier,
		SubscriptionStatus: membership.SubscriptionStatus,
		StripeCustomerID:   membership.StripeCustomerID,
		CurrentPeriodEnd:   membership.CurrentPeriodEnd,
		CancelAtPeriodEnd:  membership.CancelAtPeriodEnd,
		Active:             s.policy.MemberIsActive(membership),
		NeedsAttention:     entitlements.NeedsAttention(membership.SubscriptionStatus),
	}, nil
}
