package webhooks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/dripspot/dripspot-backend/api/responses"
	stripewebhook "github.com/dripspot/dripspot-backend/internal/webhooks/stripe"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
	"github.com/dripspot/dripspot-backend/pkg/logger"
	"github.com/dripspot/dripspot-backend/pkg/metrics"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) (stripewebhook.Outcome, error)
}

type stripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

// StripeWebhook handles Stripe subscription lifecycle events. The redis guard
// is best effort: when it is down the durable event ledger still stops
// replays, so a guard failure degrades to processing instead of erroring.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, m *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if client == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe client unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing"))
			return
		}

		// A bad signature is an authenticity failure, not an outage: answer
		// 4xx so the provider does not redeliver a payload we will never trust.
		event, err := webhook.ConstructEvent(payload, sigHeader, client.SigningSecret())
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "verify signature"))
			return
		}

		guarded := false
		if guard != nil {
			alreadyProcessed, guardErr := guard.CheckAndMark(ctx, event.ID)
			if guardErr != nil {
				if logg != nil {
					logg.Warn(ctx, fmt.Sprintf("idempotency guard unavailable for event %s", event.ID))
				}
			} else {
				guarded = true
				if alreadyProcessed {
					m.IncOutcome(string(event.Type), metrics.OutcomeDuplicate)
					responses.WriteSuccess(w, nil)
					return
				}
			}
		}

		start := time.Now()
		outcome, err := svc.HandleEvent(ctx, &event)
		m.ObserveDuration(string(event.Type), time.Since(start))
		if err != nil {
			if guarded {
				_ = guard.Delete(ctx, event.ID)
			}
			m.IncOutcome(string(event.Type), metrics.OutcomeError)
			responses.WriteError(ctx, logg, w, err)
			return
		}

		m.IncOutcome(string(event.Type), string(outcome))
		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("stripe event %s processed", event.ID))
		}
		responses.WriteSuccess(w, nil)
	}
}
