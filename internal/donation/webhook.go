package donation

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/openhearth/backend-donate/internal/common"
)

// SignatureHeader is the header carrying the processor's payload signature.
const SignatureHeader = "Stripe-Signature"

// Webhook ingests asynchronous payment notifications. Signature verification
// runs over the raw request bytes, so nothing upstream may re-encode the body.
type Webhook struct {
	Secret string
	// AllowUnsigned accepts unverified payloads when no secret is configured.
	// Local development only; without it a missing secret rejects everything.
	AllowUnsigned bool
	Logger        zerolog.Logger
}

// Handle processes POST /webhook deliveries.
func (h Webhook) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to read payload", nil)
		return
	}

	var event stripe.Event
	switch {
	case h.Secret != "":
		// Events arrive pinned to the account's API version, not the
		// SDK's, so only the signature is enforced here.
		event, err = webhook.ConstructEventWithOptions(body, r.Header.Get(SignatureHeader), h.Secret, webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			h.Logger.Warn().Err(err).Msg("webhook signature verification failed")
			common.JSONError(w, http.StatusBadRequest, "INVALID_SIGNATURE", "signature verification failed", nil)
			return
		}
	case h.AllowUnsigned:
		h.Logger.Warn().Msg("accepting unsigned webhook payload (dev mode)")
		if err := json.Unmarshal(body, &event); err != nil {
			common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "unable to parse event", nil)
			return
		}
	default:
		common.JSONError(w, http.StatusBadRequest, "WEBHOOK_NOT_CONFIGURED", "webhook signing secret not configured", nil)
		return
	}

	if event.Data == nil {
		event.Data = &stripe.EventData{}
	}

	if err := h.dispatch(event); err != nil {
		h.Logger.Error().Err(err).Str("event_id", event.ID).Str("event_type", string(event.Type)).Msg("webhook handler failed")
		// Withhold the acknowledgement so the processor retries delivery.
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	common.JSON(w, http.StatusOK, map[string]bool{"received": true})
}

// dispatch routes an event by type. Events are logged, not persisted:
// donation records are not reconciled against webhook deliveries.
func (h Webhook) dispatch(event stripe.Event) error {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		h.Logger.Info().
			Str("event_id", event.ID).
			Str("session_id", session.ID).
			Int64("amount_total", session.AmountTotal).
			Str("currency", string(session.Currency)).
			Msg("checkout session completed")
	case stripe.EventTypePaymentIntentSucceeded:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return fmt.Errorf("decode payment intent: %w", err)
		}
		h.Logger.Info().
			Str("event_id", event.ID).
			Str("payment_intent_id", intent.ID).
			Int64("amount", intent.Amount).
			Str("currency", string(intent.Currency)).
			Msg("payment intent succeeded")
	case stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return fmt.Errorf("decode payment intent: %w", err)
		}
		evt := h.Logger.Warn().
			Str("event_id", event.ID).
			Str("payment_intent_id", intent.ID)
		if intent.LastPaymentError != nil {
			evt = evt.Str("failure_message", intent.LastPaymentError.Msg)
		}
		evt.Msg("payment intent failed")
	case stripe.EventTypeInvoicePaymentSucceeded, stripe.EventTypeInvoicePaymentFailed:
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return fmt.Errorf("decode invoice: %w", err)
		}
		h.Logger.Info().
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Str("invoice_id", invoice.ID).
			Int64("amount_due", invoice.AmountDue).
			Int64("amount_paid", invoice.AmountPaid).
			Str("currency", string(invoice.Currency)).
			Msg("recurring billing outcome")
	default:
		h.Logger.Info().
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Msg("unhandled webhook event")
	}
	return nil
}
