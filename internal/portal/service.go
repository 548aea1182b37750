package portal

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	portalsession "github.com/stripe/stripe-go/v84/billingportal/session"

	"github.com/dripspot/dripspot-backend/internal/ownership"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
	pkgstripe "github.com/dripspot/dripspot-backend/pkg/stripe"
)

// StripePortalClient exposes the subset of Stripe operations required by the
// portal service.
type StripePortalClient interface {
	CreateSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the provided Stripe client so the portal service can
// be tested.
func NewStripeClient(api *pkgstripe.Client) StripePortalClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) CreateSession(ctx context.Context, params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return portalsession.New(params)
}

// Service opens the hosted billing portal for a customer the acting user owns.
type Service interface {
	CreateSession(ctx context.Context, userID uuid.UUID, input SessionInput) (*SessionResult, error)
}

// ServiceParams groups dependencies for the portal service.
type ServiceParams struct {
	Resolver     *ownership.Resolver
	StripeClient StripePortalClient
}

// SessionInput identifies the billing customer and where to return afterwards.
type SessionInput struct {
	CustomerID string
	ReturnURL  string
}

// SessionResult is the redirect handle for the portal session.
type SessionResult struct {
	URL string `json:"url"`
}

type service struct {
	resolver *ownership.Resolver
	stripe   StripePortalClient
}

// NewService builds a portal service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Resolver == nil {
		return nil, fmt.Errorf("ownership resolver required")
	}
	if params.StripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &service{resolver: params.Resolver, stripe: params.StripeClient}, nil
}

// CreateSession verifies the customer belongs to the acting user, then opens
// a portal session scoped to that customer.
func (s *service) CreateSession(ctx context.Context, userID uuid.UUID, input SessionInput) (*SessionResult, error) {
	customerID := strings.TrimSpace(input.CustomerID)
	if customerID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}

	if _, err := s.resolver.VerifyCustomerOwner(ctx, customerID, userID); err != nil {
		return nil, err
	}

	params := &stripe.BillingPortalSessionParams{
		Customer: stripe.String(customerID),
	}
	if url := strings.TrimSpace(input.ReturnURL); url != "" {
		params.ReturnURL = stripe.String(url)
	}

	session, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create portal session")
	}

	return &SessionResult{URL: session.URL}, nil
}
