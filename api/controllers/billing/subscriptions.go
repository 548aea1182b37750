package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dripspot/dripspot-backend/api/responses"
	"github.com/dripspot/dripspot-backend/api/validators"
	membershipsvc "github.com/dripspot/dripspot-backend/internal/memberships"
	shopsvc "github.com/dripspot/dripspot-backend/internal/shops"
	subsvc "github.com/dripspot/dripspot-backend/internal/subscriptions"
	"github.com/dripspot/dripspot-backend/pkg/enums"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
	"github.com/dripspot/dripspot-backend/pkg/logger"
)

type subscriptionCancelRequest struct {
	EntityType  string `json:"entity_type" validate:"required,oneof=shop membership"`
	ShopID      string `json:"shop_id" validate:"omitempty,uuid"`
	AtPeriodEnd bool   `json:"at_period_end"`
}

// SubscriptionCancel ends the subscription for a shop or the caller's
// membership, either at the period boundary or immediately.
func SubscriptionCancel(svc subsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}

		userID, err := actingUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload subscriptionCancelRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entityType, err := enums.ParseEntityType(payload.EntityType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entity type"))
			return
		}

		input := subsvc.CancelInput{
			EntityType:  entityType,
			AtPeriodEnd: payload.AtPeriodEnd,
		}
		if entityType == enums.EntityTypeShop {
			if payload.ShopID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "shop_id is required for shop cancellations"))
				return
			}
			shopID, err := uuid.Parse(payload.ShopID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shop id"))
				return
			}
			input.ShopID = shopID
		}

		result, err := svc.Cancel(r.Context(), userID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, result)
	}
}

// ShopBillingFetch returns the billing snapshot for a shop the caller owns.
func ShopBillingFetch(svc shopsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shop service unavailable"))
			return
		}

		userID, err := actingUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shopID, err := uuid.Parse(chi.URLParam(r, "shopID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shop id"))
			return
		}

		snapshot, err := svc.Billing(r.Context(), userID, shopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, snapshot)
	}
}

// MembershipBillingFetch returns the caller's membership billing snapshot.
func MembershipBillingFetch(svc membershipsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "membership service unavailable"))
			return
		}

		userID, err := actingUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Billing(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, snapshot)
	}
}
