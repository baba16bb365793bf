package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/promptstudio-ai/promptstudio-backend/api/middleware"
	"github.com/promptstudio-ai/promptstudio-backend/api/responses"
	"github.com/promptstudio-ai/promptstudio-backend/api/validators"
	"github.com/promptstudio-ai/promptstudio-backend/internal/payments"
	pkgerrors "github.com/promptstudio-ai/promptstudio-backend/pkg/errors"
	"github.com/promptstudio-ai/promptstudio-backend/pkg/logger"
)

type checkoutRequest struct {
	Plan         string          `json:"plan" validate:"required"`
	BillingCycle string          `json:"billing_cycle" validate:"omitempty,oneof=monthly yearly"`
	Amount       decimal.Decimal `json:"amount" validate:"required"`
	Currency     string          `json:"currency" validate:"omitempty,len=3"`
	SuccessURL   string          `json:"success_url" validate:"omitempty,url"`
	CancelURL    string          `json:"cancel_url" validate:"omitempty,url"`
	WebhookURL   string          `json:"webhook_url" validate:"omitempty,url"`
}

// InitiateCheckout starts a hosted checkout for the authenticated user.
func InitiateCheckout(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		userID, err := authenticatedUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.InitiateCheckout(r.Context(), payments.CheckoutParams{
			UserID:       userID,
			Plan:         payload.Plan,
			BillingCycle: payload.BillingCycle,
			Amount:       payload.Amount,
			Currency:     payload.Currency,
			SuccessURL:   payload.SuccessURL,
			CancelURL:    payload.CancelURL,
			WebhookURL:   payload.WebhookURL,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, session)
	}
}

// VerifyPayment confirms a transaction's payment state with the gateway.
func VerifyPayment(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		payment, err := svc.VerifyPayment(r.Context(), chi.URLParam(r, "transactionID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// GetPayment returns the gateway's record for a transaction.
func GetPayment(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		payment, err := svc.GetPayment(r.Context(), chi.URLParam(r, "transactionID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payment)
	}
}

// CancelPayment abandons an unsettled checkout.
func CancelPayment(svc *payments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			return
		}

		if err := svc.CancelPayment(r.Context(), chi.URLParam(r, "transactionID")); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "canceled"})
	}
}

func authenticatedUserID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
