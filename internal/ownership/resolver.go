package ownership

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dripspot/dripspot-backend/pkg/db/models"
	"github.com/dripspot/dripspot-backend/pkg/enums"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
)

// ShopRepository is the slice of the shop repo the resolver needs. Declared
// here so entity packages can depend on ownership without a cycle.
type ShopRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Shop, error)
	FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Shop, error)
}

// MembershipRepository is the slice of the membership repo the resolver needs.
type MembershipRepository interface {
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Membership, error)
	FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*models.Membership, error)
}

// OwnerRef is the billable entity a Stripe customer or subscription maps to.
// Exactly one of Shop or Membership is set, matching Kind.
type OwnerRef struct {
	Kind       enums.EntityType
	Shop       *models.Shop
	Membership *models.Membership
}

// EntityID returns the local id of the referenced entity.
func (o OwnerRef) EntityID() uuid.UUID {
	switch o.Kind {
	case enums.EntityTypeShop:
		if o.Shop != nil {
			return o.Shop.ID
		}
	case enums.EntityTypeMembership:
		if o.Membership != nil {
			return o.Membership.ID
		}
	}
	return uuid.Nil
}

// Resolver maps Stripe identifiers back to local entities and enforces that
// callers only touch billing state they own.
type Resolver struct {
	shopRepo       ShopRepository
	membershipRepo MembershipRepository
}

// NewResolver builds an ownership resolver with the required repositories.
func NewResolver(shopRepo ShopRepository, membershipRepo MembershipRepository) (*Resolver, error) {
	if shopRepo == nil {
		return nil, fmt.Errorf("shop repo required")
	}
	if membershipRepo == nil {
		return nil, fmt.Errorf("membership repo required")
	}
	return &Resolver{shopRepo: shopRepo, membershipRepo: membershipRepo}, nil
}

// ResolveByCustomer finds the entity holding the Stripe customer id. Shops are
// checked before memberships; customer ids are unique per table so at most one
// entity can match.
func (r *Resolver) ResolveByCustomer(ctx context.Context, customerID string) (*OwnerRef, error) {
	if customerID == "" {
		return nil, nil
	}

	shop, err := r.shopRepo.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup shop by customer")
	}
	if shop != nil {
		return &OwnerRef{Kind: enums.EntityTypeShop, Shop: shop}, nil
	}

	membership, err := r.membershipRepo.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership by customer")
	}
	if membership != nil {
		return &OwnerRef{Kind: enums.EntityTypeMembership, Membership: membership}, nil
	}

	return nil, nil
}

// ResolveBySubscription finds the entity holding the Stripe subscription id.
func (r *Resolver) ResolveBySubscription(ctx context.Context, subscriptionID string) (*OwnerRef, error) {
	if subscriptionID == "" {
		return nil, nil
	}

	shop, err := r.shopRepo.FindByStripeSubscriptionID(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup shop by subscription")
	}
	if shop != nil {
		return &OwnerRef{Kind: enums.EntityTypeShop, Shop: shop}, nil
	}

	membership, err := r.membershipRepo.FindByStripeSubscriptionID(ctx, subscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership by subscription")
	}
	if membership != nil {
		return &OwnerRef{Kind: enums.EntityTypeMembership, Membership: membership}, nil
	}

	return nil, nil
}

// VerifyShopOwner loads the shop and confirms the acting user owns it.
// Missing shops and foreign shops both come back as errors so handlers can
// fail closed.
func (r *Resolver) VerifyShopOwner(ctx context.Context, shopID, userID uuid.UUID) (*models.Shop, error) {
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop id is required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}

	shop, err := r.shopRepo.FindByID(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
	}
	if shop == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
	}
	if shop.OwnerUserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop does not belong to user")
	}
	return shop, nil
}

// VerifyCustomerOwner confirms the acting user controls the entity holding the
// Stripe customer id: the shop's owner for shops, the member themselves for
// memberships.
func (r *Resolver) VerifyCustomerOwner(ctx context.Context, customerID string, userID uuid.UUID) (*OwnerRef, error) {
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}

	owner, err := r.ResolveByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "billing customer not found")
	}

	switch owner.Kind {
	case enums.EntityTypeShop:
		if owner.Shop.OwnerUserID != userID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "billing customer does not belong to user")
		}
	case enums.EntityTypeMembership:
		if owner.Membership.UserID != userID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "billing customer does not belong to user")
		}
	}
	return owner, nil
}
