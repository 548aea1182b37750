package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/dripspot/dripspot-backend/internal/catalog"
	"github.com/dripspot/dripspot-backend/internal/ledger"
	"github.com/dripspot/dripspot-backend/internal/memberships"
	"github.com/dripspot/dripspot-backend/internal/ownership"
	"github.com/dripspot/dripspot-backend/internal/shops"
	"github.com/dripspot/dripspot-backend/internal/subscriptions"
	"github.com/dripspot/dripspot-backend/pkg/db/models"
	"github.com/dripspot/dripspot-backend/pkg/enums"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
	"github.com/dripspot/dripspot-backend/pkg/logger"
)

// Outcome classifies how an event delivery was handled.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeUnhandled Outcome = "unhandled"
	OutcomeError     Outcome = "error"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	ShopRepo          shops.Repository
	MembershipRepo    memberships.Repository
	Ledger            ledger.Service
	Catalog           *catalog.Catalog
	StripeClient      subscriptions.StripeSubscriptionClient
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service reconciles provider webhook deliveries into local billing state.
// Every delivery lands its ledger row and side effects in one transaction, so
// a failed event leaves no trace and a replayed event changes nothing.
type Service struct {
	shopRepo       shops.Repository
	membershipRepo memberships.Repository
	ledger         ledger.Service
	catalog        *catalog.Catalog
	stripe         subscriptions.StripeSubscriptionClient
	txRunner       txRunner
	logg           *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.ShopRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "shop repo required")
	}
	if params.MembershipRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "membership repo required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event ledger required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "price catalog required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	return &Service{
		shopRepo:       params.ShopRepo,
		membershipRepo: params.MembershipRepo,
		ledger:         params.Ledger,
		catalog:        params.Catalog,
		stripe:         params.StripeClient,
		txRunner:       params.TransactionRunner,
		logg:           params.Logger,
	}, nil
}

// HandleEvent processes a verified webhook event. Unrecognized event types are
// acknowledged without side effects so new provider events never break the
// endpoint.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) (Outcome, error) {
	if event == nil || event.Data == nil {
		return OutcomeError, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	apply, recognized, err := s.prepare(ctx, event)
	if err != nil {
		return OutcomeError, err
	}

	outcome := OutcomeApplied
	if !recognized {
		outcome = OutcomeUnhandled
		if s.logg != nil {
			s.logg.Info(s.logg.WithField(ctx, "event_type", string(event.Type)), "webhook.event_unhandled")
		}
	}

	txErr := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		alreadySeen, err := s.ledger.WithTx(tx).Record(ctx, event.ID, string(event.Type))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record event")
		}
		if alreadySeen {
			outcome = OutcomeDuplicate
			return nil
		}
		if apply == nil {
			return nil
		}
		return apply(tx)
	})
	if txErr != nil {
		return OutcomeError, txErr
	}
	return outcome, nil
}

// prepare resolves the event into a transactional apply step. Provider fetches
// happen here, outside the transaction.
func (s *Service) prepare(ctx context.Context, event *stripe.Event) (func(tx *gorm.DB) error, bool, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			// One-time payment sessions carry no subscription; nothing to sync.
			return nil, true, nil
		}
		stripeSub, err := s.stripe.Get(ctx, subscriptionID, &stripe.SubscriptionParams{})
		if err != nil {
			return nil, true, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		return func(tx *gorm.DB) error {
			return s.syncSubscription(ctx, tx, stripeSub)
		}, true, nil

	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return nil, true, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return func(tx *gorm.DB) error {
			return s.syncSubscription(ctx, tx, &stripeSub)
		}, true, nil

	case stripe.EventTypeInvoicePaymentSucceeded:
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			return nil, true, nil
		}
		stripeSub, err := s.stripe.Get(ctx, subscriptionID, &stripe.SubscriptionParams{})
		if err != nil {
			return nil, true, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		return func(tx *gorm.DB) error {
			return s.syncSubscription(ctx, tx, stripeSub)
		}, true, nil

	case stripe.EventTypeInvoicePaymentFailed:
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			return nil, true, nil
		}
		// No provider fetch here: a failed payment only ever demotes the
		// status to past_due, and the entity keeps its tier through the
		// grace window.
		return func(tx *gorm.DB) error {
			return s.markPastDue(ctx, tx, subscriptionID)
		}, true, nil

	default:
		return nil, false, nil
	}
}

// syncSubscription reconciles one provider subscription into the entity that
// owns it. Entity resolution is metadata-first with a subscription-id lookup
// as fallback for subscriptions created before metadata stamping.
func (s *Service) syncSubscription(ctx context.Context, tx *gorm.DB, stripeSub *stripe.Subscription) error {
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription is required")
	}

	facts, factsErr := subscriptions.FactsFromSubscription(stripeSub)

	owner, err := s.resolveOwner(ctx, tx, stripeSub, facts, factsErr)
	if err != nil {
		return err
	}
	if owner == nil {
		// Subscription belongs to nothing we know. Acknowledge rather than
		// retry forever; the ledger keeps the event id for forensics.
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "stripe_subscription_id", stripeSub.ID)
			s.logg.Warn(logCtx, "webhook.subscription_unresolved")
		}
		return nil
	}

	switch owner.Kind {
	case enums.EntityTypeShop:
		return s.applyToShop(ctx, tx, owner.Shop, stripeSub, facts)
	case enums.EntityTypeMembership:
		return s.applyToMembership(ctx, tx, owner.Membership, stripeSub, facts)
	default:
		return pkgerrors.New(pkgerrors.CodeInternal, "unknown owner kind")
	}
}

func (s *Service) resolveOwner(ctx context.Context, tx *gorm.DB, stripeSub *stripe.Subscription, facts *subscriptions.SubscriptionFacts, factsErr error) (*ownership.OwnerRef, error) {
	txShops := s.shopRepo.WithTx(tx)
	txMemberships := s.membershipRepo.WithTx(tx)

	if factsErr == nil && facts.EntityID != uuid.Nil {
		switch facts.EntityType {
		case enums.EntityTypeShop:
			shop, err := txShops.FindByID(ctx, facts.EntityID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
			}
			if shop != nil {
				return &ownership.OwnerRef{Kind: enums.EntityTypeShop, Shop: shop}, nil
			}
		case enums.EntityTypeMembership:
			membership, err := txMemberships.FindByID(ctx, facts.EntityID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
			}
			if membership != nil {
				return &ownership.OwnerRef{Kind: enums.EntityTypeMembership, Membership: membership}, nil
			}
		}
	}

	resolver, err := ownership.NewResolver(txShops, txMemberships)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build resolver")
	}
	return resolver.ResolveBySubscription(ctx, stripeSub.ID)
}

func (s *Service) applyToShop(ctx context.Context, tx *gorm.DB, shop *models.Shop, stripeSub *stripe.Subscription, facts *subscriptions.SubscriptionFacts) error {
	status := facts.Status

	shop.SubscriptionStatus = status
	shop.StripeSubscriptionID = &stripeSub.ID
	if stripeSub.Customer != nil && stripeSub.Customer.ID != "" {
		customerID := stripeSub.Customer.ID
		shop.StripeCustomerID = &customerID
	}
	if facts.CurrentPeriodEnd != nil {
		shop.CurrentPeriodEnd = facts.CurrentPeriodEnd
	}
	// A subscription that already ended has nothing pending: deletion events
	// still carry the provider's scheduled-cancel flag, which must not survive
	// alongside a canceled status.
	shop.CancelAtPeriodEnd = facts.CancelAtPeriodEnd && status != enums.SubscriptionStatusCanceled

	switch {
	case status == enums.SubscriptionStatusActive || status == enums.SubscriptionStatusTrialing:
		if tier := s.shopTierFor(stripeSub, facts); tier != enums.ShopTierFree {
			shop.Tier = tier
		}
	case status == enums.SubscriptionStatusCanceled ||
		status == enums.SubscriptionStatusUnpaid ||
		status == enums.SubscriptionStatusInactive:
		shop.Tier = enums.ShopTierFree
		shop.DiscountEnabled = false
	}
	// past_due keeps its tier; the entitlement policy handles the grace
	// window at read time.

	if err := s.shopRepo.WithTx(tx).Update(ctx, shop); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shop")
	}
	return nil
}

func (s *Service) applyToMembership(ctx context.Context, tx *gorm.DB, membership *models.Membership, stripeSub *stripe.Subscription, facts *subscriptions.SubscriptionFacts) error {
	status := facts.Status

	membership.SubscriptionStatus = status
	membership.StripeSubscriptionID = &stripeSub.ID
	if stripeSub.Customer != nil && stripeSub.Customer.ID != "" {
		customerID := stripeSub.Customer.ID
		membership.StripeCustomerID = &customerID
	}
	if facts.CurrentPeriodEnd != nil {
		membership.CurrentPeriodEnd = facts.CurrentPeriodEnd
	}
	membership.CancelAtPeriodEnd = facts.CancelAtPeriodEnd && status != enums.SubscriptionStatusCanceled

	switch {
	case status == enums.SubscriptionStatusActive || status == enums.SubscriptionStatusTrialing:
		membership.Tier = enums.MembershipTierActive
	case status == enums.SubscriptionStatusCanceled ||
		status == enums.SubscriptionStatusUnpaid ||
		status == enums.SubscriptionStatusInactive:
		membership.Tier = enums.MembershipTierNone
	}

	if err := s.membershipRepo.WithTx(tx).Update(ctx, membership); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update membership")
	}
	return nil
}

// markPastDue demotes the subscription's entity to past_due without touching
// its tier. Entities we cannot find locally are acknowledged and logged.
func (s *Service) markPastDue(ctx context.Context, tx *gorm.DB, subscriptionID string) error {
	txShops := s.shopRepo.WithTx(tx)
	txMemberships := s.membershipRepo.WithTx(tx)

	shop, err := txShops.FindByStripeSubscriptionID(ctx, subscriptionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup shop by subscription")
	}
	if shop != nil {
		shop.SubscriptionStatus = enums.SubscriptionStatusPastDue
		if err := txShops.Update(ctx, shop); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shop")
		}
		return nil
	}

	membership, err := txMemberships.FindByStripeSubscriptionID(ctx, subscriptionID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership by subscription")
	}
	if membership != nil {
		membership.SubscriptionStatus = enums.SubscriptionStatusPastDue
		if err := txMemberships.Update(ctx, membership); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update membership")
		}
		return nil
	}

	if s.logg != nil {
		logCtx := s.logg.WithField(ctx, "stripe_subscription_id", subscriptionID)
		s.logg.Warn(logCtx, "webhook.payment_failed_unresolved")
	}
	return nil
}

// shopTierFor derives the tier a subscription purchases. The tier stamped
// into metadata at checkout is authoritative; the price catalog only covers
// subscriptions whose metadata is missing or unparsable.
func (s *Service) shopTierFor(stripeSub *stripe.Subscription, facts *subscriptions.SubscriptionFacts) enums.ShopTier {
	if facts != nil && facts.ShopTier.IsValid() && facts.ShopTier != enums.ShopTierFree {
		return facts.ShopTier
	}
	if stripeSub.Items != nil && len(stripeSub.Items.Data) > 0 && stripeSub.Items.Data[0].Price != nil {
		if mapping, ok := s.catalog.Resolve(stripeSub.Items.Data[0].Price.ID); ok && mapping.EntityType == enums.EntityTypeShop {
			return mapping.ShopTier
		}
	}
	return enums.ShopTierFree
}
