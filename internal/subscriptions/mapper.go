package subscriptions

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/dripspot/dripspot-backend/pkg/enums"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
)

// Metadata keys stamped onto checkout sessions and subscriptions so webhook
// deliveries can be routed back to the local entity without a db scan.
const (
	MetadataKeyEntityID        = "entity_id"
	MetadataKeyEntityType      = "entity_type"
	MetadataKeyTier            = "tier"
	MetadataKeyBillingInterval = "billing_interval"
)

// SubscriptionFacts is everything the reconciler derives from a Stripe
// subscription: routing metadata plus the normalized lifecycle fields.
type SubscriptionFacts struct {
	EntityID   uuid.UUID
	EntityType enums.EntityType
	ShopTier   enums.ShopTier
	Interval   enums.BillingInterval

	Status            enums.SubscriptionStatus
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
}

// MapStripeStatus normalizes a provider status into the internal state set.
// The mapping is total: any status this table does not recognize, including
// ones added by the provider after this code shipped, degrades to inactive
// rather than failing the webhook.
func MapStripeStatus(raw stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch raw {
	case stripe.SubscriptionStatusActive:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue:
		return enums.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return enums.SubscriptionStatusCanceled
	case stripe.SubscriptionStatusUnpaid:
		return enums.SubscriptionStatusUnpaid
	case stripe.SubscriptionStatusIncomplete, stripe.SubscriptionStatusIncompleteExpired:
		return enums.SubscriptionStatusInactive
	default:
		return enums.SubscriptionStatusInactive
	}
}

// FactsFromSubscription extracts routing metadata and lifecycle fields from a
// provider subscription. Missing or malformed metadata is a validation error;
// the caller decides whether to fall back to a subscription-id lookup.
func FactsFromSubscription(sub *stripe.Subscription) (*SubscriptionFacts, error) {
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}

	facts := &SubscriptionFacts{
		Status:            MapStripeStatus(sub.Status),
		CurrentPeriodEnd:  periodEndFromSubscription(sub),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}

	entityID, entityType, err := entityFromMetadata(sub.Metadata)
	if err != nil {
		return facts, err
	}
	facts.EntityID = entityID
	facts.EntityType = entityType

	if tier, ok := sub.Metadata[MetadataKeyTier]; ok {
		if parsed, err := enums.ParseShopTier(strings.TrimSpace(tier)); err == nil {
			facts.ShopTier = parsed
		}
	}
	if interval, ok := sub.Metadata[MetadataKeyBillingInterval]; ok {
		if parsed, err := enums.ParseBillingInterval(strings.TrimSpace(interval)); err == nil {
			facts.Interval = parsed
		}
	}

	return facts, nil
}

func entityFromMetadata(metadata map[string]string) (uuid.UUID, enums.EntityType, error) {
	if len(metadata) == 0 {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeValidation, "subscription metadata is empty")
	}

	rawID := strings.TrimSpace(metadata[MetadataKeyEntityID])
	if rawID == "" {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeValidation, "entity_id missing from metadata")
	}
	entityID, err := uuid.Parse(rawID)
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entity_id metadata")
	}

	entityType, err := enums.ParseEntityType(strings.TrimSpace(metadata[MetadataKeyEntityType]))
	if err != nil {
		return uuid.Nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entity_type metadata")
	}

	return entityID, entityType, nil
}

func periodEndFromSubscription(sub *stripe.Subscription) *time.Time {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return nil
	}
	end := sub.Items.Data[0].CurrentPeriodEnd
	if end == 0 {
		return nil
	}
	t := time.Unix(end, 0).UTC()
	return &t
}
