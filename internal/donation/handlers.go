package donation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/openhearth/backend-donate/internal/common"
	"github.com/openhearth/backend-donate/internal/money"
)

// Handler exposes the donation endpoints: direct payment intents and hosted
// checkout sessions.
type Handler struct {
	Processor     Processor
	Store         RecordLister
	ClientBaseURL string
	Validate      *validator.Validate
	Logger        zerolog.Logger
}

// RecordLister reads persisted donation records.
type RecordLister interface {
	List(ctx context.Context, page, perPage int) ([]Record, int64, error)
}

type donationRequest struct {
	Amount    any    `json:"amount"`
	Name      string `json:"name" validate:"omitempty,max=120"`
	Currency  any    `json:"currency"`
	Frequency string `json:"frequency" validate:"omitempty,max=32"`
}

type intentResponse struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
}

type sessionResponse struct {
	URL string `json:"url"`
}

// PaymentIntent handles POST /payment-intent.
func (h *Handler) PaymentIntent(w http.ResponseWriter, r *http.Request) {
	if h.Processor == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment processing unavailable", nil)
		return
	}
	req, amount, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	intent, err := h.Processor.CreateIntent(r.Context(), IntentParams{
		Amount:    amount.MinorUnits,
		Currency:  amount.Currency,
		DonorName: donorName(req.Name),
	})
	if err != nil {
		h.writeProcessorError(w, "payment-intent", err)
		return
	}
	common.JSON(w, http.StatusOK, intentResponse{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
	})
}

// CheckoutSession handles POST /create-checkout-session.
func (h *Handler) CheckoutSession(w http.ResponseWriter, r *http.Request) {
	if h.Processor == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment processing unavailable", nil)
		return
	}
	req, amount, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	session, err := h.Processor.CreateCheckoutSession(r.Context(), SessionParams{
		Amount:     amount.MinorUnits,
		Currency:   amount.Currency,
		DonorName:  donorName(req.Name),
		Frequency:  ParseFrequency(req.Frequency),
		SuccessURL: h.ClientBaseURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.ClientBaseURL + "/cancel",
	})
	if err != nil {
		h.writeProcessorError(w, "create-checkout-session", err)
		return
	}
	common.JSON(w, http.StatusOK, sessionResponse{URL: session.URL})
}

// List handles GET /donations and pages through persisted donation records.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "STORE_NOT_CONFIGURED", "donation store unavailable", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20)
	records, total, err := h.Store.List(r.Context(), page, perPage)
	if err != nil {
		h.Logger.Error().Err(err).Msg("list donations")
		common.JSONError(w, http.StatusInternalServerError, "STORE_ERROR", "unable to list donations", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       records,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// decodeRequest parses and validates the donation payload. Validation happens
// before any processor call so a malformed request never reaches the network.
func (h *Handler) decodeRequest(w http.ResponseWriter, r *http.Request) (donationRequest, money.Amount, bool) {
	var req donationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return req, money.Amount{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "request failed validation", nil)
			return req, money.Amount{}, false
		}
	}
	if req.Amount == nil {
		common.WriteError(w, common.NewAppError("AMOUNT_REQUIRED", "amount is required", http.StatusBadRequest, nil))
		return req, money.Amount{}, false
	}
	amount, err := money.Normalize(req.Amount, req.Currency)
	if err != nil {
		code := "INVALID_AMOUNT"
		if errors.Is(err, money.ErrInvalidCurrency) {
			code = "INVALID_CURRENCY"
		}
		common.WriteError(w, common.NewAppError(code, err.Error(), http.StatusBadRequest, err))
		return req, money.Amount{}, false
	}
	return req, amount, true
}

func (h *Handler) writeProcessorError(w http.ResponseWriter, endpoint string, err error) {
	var invalid *InvalidRequestError
	var app *common.AppError
	switch {
	case errors.As(err, &invalid):
		h.Logger.Warn().Str("endpoint", endpoint).Err(err).Msg("processor rejected request")
		app = common.NewAppError("PROCESSOR_REJECTED", invalid.Msg, http.StatusBadRequest, err)
	case errors.Is(err, ErrIncompleteResponse):
		h.Logger.Error().Str("endpoint", endpoint).Err(err).Msg("processor response incomplete")
		app = common.NewAppError("PROCESSOR_INCOMPLETE", "payment processor returned an incomplete response", http.StatusInternalServerError, err)
	default:
		h.Logger.Error().Str("endpoint", endpoint).Err(err).Msg("processor call failed")
		app = common.NewAppError("PROCESSOR_ERROR", "payment processor error", http.StatusInternalServerError, err)
	}
	common.WriteError(w, app)
}

func donorName(raw string) string {
	if name := strings.TrimSpace(raw); name != "" {
		return name
	}
	return AnonymousDonor
}
