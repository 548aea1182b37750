package billing

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/dripspot/dripspot-backend/api/middleware"
	"github.com/dripspot/dripspot-backend/api/responses"
	"github.com/dripspot/dripspot-backend/api/validators"
	checkoutsvc "github.com/dripspot/dripspot-backend/internal/checkout"
	"github.com/dripspot/dripspot-backend/pkg/enums"
	pkgerrors "github.com/dripspot/dripspot-backend/pkg/errors"
	"github.com/dripspot/dripspot-backend/pkg/logger"
)

type shopCheckoutRequest struct {
	ShopID     string `json:"shop_id" validate:"required,uuid"`
	Tier       string `json:"tier" validate:"required,oneof=pro pro_plus"`
	Interval   string `json:"interval" validate:"required,oneof=monthly annual"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

type membershipCheckoutRequest struct {
	Interval   string `json:"interval" validate:"required,oneof=monthly annual"`
	SuccessURL string `json:"success_url" validate:"required,url"`
	CancelURL  string `json:"cancel_url" validate:"required,url"`
}

// ShopCheckoutCreate starts a hosted checkout for a shop tier purchase.
func ShopCheckoutCreate(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := actingUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload shopCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		shopID, err := uuid.Parse(payload.ShopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shop id"))
			return
		}
		tier, err := enums.ParseShopTier(payload.Tier)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tier"))
			return
		}
		interval, err := enums.ParseBillingInterval(payload.Interval)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid interval"))
			return
		}

		result, err := svc.CreateShopSession(r.Context(), userID, checkoutsvc.ShopCheckoutInput{
			ShopID:     shopID,
			Tier:       tier,
			Interval:   interval,
			SuccessURL: payload.SuccessURL,
			CancelURL:  payload.CancelURL,
			UserEmail:  middleware.EmailFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// MembershipCheckoutCreate starts a hosted checkout for a consumer membership.
func MembershipCheckoutCreate(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		userID, err := actingUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload membershipCheckoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		interval, err := enums.ParseBillingInterval(payload.Interval)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid interval"))
			return
		}

		result, err := svc.CreateMembershipSession(r.Context(), userID, checkoutsvc.MembershipCheckoutInput{
			Interval:   interval,
			SuccessURL: payload.SuccessURL,
			CancelURL:  payload.CancelURL,
			UserEmail:  middleware.EmailFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
