package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/dripspot/dripspot-backend/internal/catalog"
	"github.com/dripspot/dripspot-backend/internal/memberships"
	"github.com/dripspot/dripspot-backend/internal/ownership"
	"github.com/dripspot/dripspot-backend/internal/shops"
	"github.com/dripspot/dripspot-backend/internal/subscriptions"
	"github.com/dripspot/dripspot-backend/internal/users"
	"github.com/dripspot/dripspot-backend/pkg/db/models"
	"github.com/dripspot/dripspot-backend/pkg/enums"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service starts hosted checkout sessions for shop upgrades and memberships.
type Service interface {
	CreateShopSession(ctx context.Context, userID uuid.UUID, input ShopCheckoutInput) (*SessionResult, error)
	CreateMembershipSession(ctx context.Context, userID uuid.UUID, input MembershipCheckoutInput) (*SessionResult, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Catalog           *catalog.Catalog
	ShopRepo          shops.Repository
	MembershipRepo    memberships.Repository
	UserRepo          users.Repository
	Resolver          *ownership.Resolver
	StripeClient      StripeCheckoutClient
	TransactionRunner txRunner
}

// ShopCheckoutInput selects the plan a shop owner is buying.
type ShopCheckoutInput struct {
	ShopID     uuid.UUID
	Tier       enums.ShopTier
	Interval   enums.BillingInterval
	SuccessURL string
	CancelURL  string
	UserEmail  string
}

// MembershipCheckoutInput selects the membership cadence a consumer is buying.
type MembershipCheckoutInput struct {
	Interval   enums.BillingInterval
	SuccessURL string
	CancelURL  string
	UserEmail  string
}

// SessionResult is the redirect handle for a created checkout session.
type SessionResult struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

type service struct {
	catalog        *catalog.Catalog
	shopRepo       shops.Repository
	membershipRepo memberships.Repository
	userRepo       users.Repository
	resolver       *ownership.Resolver
	stripe         StripeCheckoutClient
	txRunner       txRunner
}

// NewService builds a checkout service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, fmt.Errorf("price catalog required")
	}
	if params.ShopRepo == nil {
		return nil, fmt.Errorf("shop repo required")
	}
	if params.MembershipRepo == nil {
		return nil, fmt.Errorf("membership repo required")
	}
	if params.UserRepo == nil {
		return nil, fmt.Errorf("user repo required")
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
		catalog:        params.Catalog,
		shopRepo:       params.ShopRepo,
		membershipRepo: params.MembershipRepo,
		userRepo:       params.UserRepo,
		resolver:       params.Resolver,
		stripe:         params.StripeClient,
		txRunner:       params.TransactionRunner,
	}, nil
}

// CreateShopSession starts a hosted checkout for a shop tier purchase. The
// acting user must own the shop, and a shop already entitled at or above the
// requested tier is rejected so owners cannot double-subscribe.
func (s *service) CreateShopSession(ctx context.Context, userID uuid.UUID, input ShopCheckoutInput) (*SessionResult, error) {
	shop, err := s.resolver.VerifyShopOwner(ctx, input.ShopID, userID)
	if err != nil {
		return nil, err
	}

	if shop.SubscriptionStatus.IsEntitled() && shop.Tier.Rank() >= input.Tier.Rank() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "shop already has an active subscription at or above this tier")
	}

	priceID, err := s.catalog.ShopPrice(input.Tier, input.Interval)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "resolve price")
	}

	customerID, err := s.ensureShopCustomer(ctx, shop, input.UserEmail)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		subscriptions.MetadataKeyEntityID:        shop.ID.String(),
		subscriptions.MetadataKeyEntityType:      enums.EntityTypeShop.String(),
		subscriptions.MetadataKeyTier:            input.Tier.String(),
		subscriptions.MetadataKeyBillingInterval: input.Interval.String(),
	}

	session, err := s.createSession(ctx, customerID, priceID, input.SuccessURL, input.CancelURL, metadata)
	if err != nil {
		return nil, err
	}

	return &SessionResult{SessionID: session.ID, URL: session.URL}, nil
}

// CreateMembershipSession starts a hosted checkout for a consumer membership.
// A placeholder membership row is created up front so webhook deliveries have
// an entity to land on.
func (s *service) CreateMembershipSession(ctx context.Context, userID uuid.UUID, input MembershipCheckoutInput) (*SessionResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id is required")
	}

	priceID, err := s.catalog.MembershipPrice(input.Interval)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "resolve price")
	}

	membership, err := s.membershipRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup membership")
	}
	if membership != nil && membership.SubscriptionStatus.IsEntitled() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "membership is already active")
	}
	if membership == nil {
		membership = &models.Membership{
			UserID:             userID,
			Tier:               enums.MembershipTierNone,
			SubscriptionStatus: enums.SubscriptionStatusInactive,
		}
		if err := s.membershipRepo.Create(ctx, membership); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create membership")
		}
	}

	customerID, err := s.ensureMembershipCustomer(ctx, membership, userID, input.UserEmail)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{
		subscriptions.MetadataKeyEntityID:        membership.ID.String(),
		subscriptions.MetadataKeyEntityType:      enums.EntityTypeMembership.String(),
		subscriptions.MetadataKeyBillingInterval: input.Interval.String(),
	}

	session, err := s.createSession(ctx, customerID, priceID, input.SuccessURL, input.CancelURL, metadata)
	if err != nil {
		return nil, err
	}

	return &SessionResult{SessionID: session.ID, URL: session.URL}, nil
}

// ensureShopCustomer reuses the shop's billing customer when one exists and
// creates one otherwise. The id is persisted before the session is created so
// a crash between the two calls cannot orphan the customer.
func (s *service) ensureShopCustomer(ctx context.Context, shop *models.Shop, email string) (string, error) {
	if shop.StripeCustomerID != nil && *shop.StripeCustomerID != "" {
		return *shop.StripeCustomerID, nil
	}

	created, err := s.createCustomer(ctx, email, shop.Name, map[string]string{
		subscriptions.MetadataKeyEntityID:   shop.ID.String(),
		subscriptions.MetadataKeyEntityType: enums.EntityTypeShop.String(),
	})
	if err != nil {
		return "", err
	}

	if err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.shopRepo.WithTx(tx)
		stored, err := txRepo.FindByID(ctx, shop.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shop")
		}
		if stored == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		if stored.StripeCustomerID != nil && *stored.StripeCustomerID != "" {
			shop.StripeCustomerID = stored.StripeCustomerID
			return nil
		}
		stored.StripeCustomerID = &created.ID
		if err := txRepo.Update(ctx, stored); err != nil {
			return err
		}
		shop.StripeCustomerID = &created.ID
		return nil
	}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist billing customer")
	}

	return *shop.StripeCustomerID, nil
}

// ensureMembershipCustomer reuses, in order, the membership's customer, the
// user's customer from any previous checkout, and only then creates a new one.
func (s *service) ensureMembershipCustomer(ctx context.Context, membership *models.Membership, userID uuid.UUID, email string) (string, error) {
	if membership.StripeCustomerID != nil && *membership.StripeCustomerID != "" {
		return *membership.StripeCustomerID, nil
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	var customerID string
	if user != nil && user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		customerID = *user.StripeCustomerID
	} else {
		created, err := s.createCustomer(ctx, email, "", map[string]string{
			subscriptions.MetadataKeyEntityID:   membership.ID.String(),
			subscriptions.MetadataKeyEntityType: enums.EntityTypeMembership.String(),
		})
		if err != nil {
			return "", err
		}
		customerID = created.ID
	}

	if err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txMemberships := s.membershipRepo.WithTx(tx)
		stored, err := txMemberships.FindByID(ctx, membership.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load membership")
		}
		if stored == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "membership not found")
		}
		if stored.StripeCustomerID != nil && *stored.StripeCustomerID != "" {
			membership.StripeCustomerID = stored.StripeCustomerID
			return nil
		}
		stored.StripeCustomerID = &customerID
		if err := txMemberships.Update(ctx, stored); err != nil {
			return err
		}
		membership.StripeCustomerID = &customerID

		if user != nil && (user.StripeCustomerID == nil || *user.StripeCustomerID == "") {
			user.StripeCustomerID = &customerID
			if err := s.userRepo.WithTx(tx).Update(ctx, user); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist billing customer")
	}

	return *membership.StripeCustomerID, nil
}

func (s *service) createCustomer(ctx context.Context, email, name string, metadata map[string]string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	if strings.TrimSpace(email) != "" {
		params.Email = stripe.String(strings.TrimSpace(email))
	}
	if strings.TrimSpace(name) != "" {
		params.Name = stripe.String(strings.TrimSpace(name))
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	created, err := s.stripe.CreateCustomer(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create billing customer")
	}
	return created, nil
}

func (s *service) createSession(ctx context.Context, customerID, priceID, successURL, cancelURL string, metadata map[string]string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer:            stripe.String(customerID),
		Mode:                stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:          stripe.String(successURL),
		CancelURL:           stripe.String(cancelURL),
		AllowPromotionCodes: stripe.Bool(true),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	session, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return session, nil
}
