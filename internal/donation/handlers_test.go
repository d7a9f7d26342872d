package donation_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openhearth/backend-donate/internal/donation"
)

type fakeProcessor struct {
	intents    []donation.IntentParams
	sessions   []donation.SessionParams
	intent     donation.Intent
	session    donation.Session
	intentErr  error
	sessionErr error
}

func (f *fakeProcessor) CreateIntent(_ context.Context, p donation.IntentParams) (donation.Intent, error) {
	f.intents = append(f.intents, p)
	if f.intentErr != nil {
		return donation.Intent{}, f.intentErr
	}
	return f.intent, nil
}

func (f *fakeProcessor) CreateCheckoutSession(_ context.Context, p donation.SessionParams) (donation.Session, error) {
	f.sessions = append(f.sessions, p)
	if f.sessionErr != nil {
		return donation.Session{}, f.sessionErr
	}
	return f.session, nil
}

func newHandler(p donation.Processor) *donation.Handler {
	return &donation.Handler{
		Processor:     p,
		ClientBaseURL: "https://donate.example.org",
		Validate:      validator.New(),
		Logger:        zerolog.Nop(),
	}
}

func post(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error.Code
}

func TestPaymentIntentNormalisesAmountAndCurrency(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{intent: donation.Intent{ID: "pi_123", ClientSecret: "pi_123_secret"}}
	rr := post(t, newHandler(proc).PaymentIntent, `{"amount": 10}`)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, proc.intents, 1)
	require.Equal(t, int64(1000), proc.intents[0].Amount)
	require.Equal(t, "usd", proc.intents[0].Currency)
	require.Equal(t, donation.AnonymousDonor, proc.intents[0].DonorName)

	var resp struct {
		ClientSecret    string `json:"clientSecret"`
		PaymentIntentID string `json:"paymentIntentId"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "pi_123_secret", resp.ClientSecret)
	require.Equal(t, "pi_123", resp.PaymentIntentID)
}

func TestPaymentIntentAcceptsCommaDecimal(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{intent: donation.Intent{ID: "pi_1", ClientSecret: "sec"}}
	rr := post(t, newHandler(proc).PaymentIntent, `{"amount": "1,50", "name": "Ada"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, proc.intents, 1)
	require.Equal(t, int64(150), proc.intents[0].Amount)
	require.Equal(t, "Ada", proc.intents[0].DonorName)
}

func TestPaymentIntentMissingAmount(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{}
	rr := post(t, newHandler(proc).PaymentIntent, `{"name": "Ada"}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "AMOUNT_REQUIRED", errorCode(t, rr))
	require.Empty(t, proc.intents, "processor must not be called for invalid input")
}

func TestPaymentIntentInvalidInput(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		code string
	}{
		{"non-numeric amount", `{"amount": "abc"}`, "INVALID_AMOUNT"},
		{"zero amount", `{"amount": 0}`, "INVALID_AMOUNT"},
		{"negative amount", `{"amount": "-2,50"}`, "INVALID_AMOUNT"},
		{"bad currency", `{"amount": 10, "currency": "a1b"}`, "INVALID_CURRENCY"},
		{"numeric currency", `{"amount": 10, "currency": 7}`, "INVALID_CURRENCY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			proc := &fakeProcessor{}
			rr := post(t, newHandler(proc).PaymentIntent, tc.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)
			require.Equal(t, tc.code, errorCode(t, rr))
			require.Empty(t, proc.intents)
		})
	}
}

func TestPaymentIntentProcessorRejection(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{intentErr: &donation.InvalidRequestError{Msg: "amount below minimum"}}
	rr := post(t, newHandler(proc).PaymentIntent, `{"amount": 0.02}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "PROCESSOR_REJECTED", errorCode(t, rr))
	require.Contains(t, rr.Body.String(), "amount below minimum")
}

func TestPaymentIntentIncompleteResponse(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{intentErr: donation.ErrIncompleteResponse}
	rr := post(t, newHandler(proc).PaymentIntent, `{"amount": 10}`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "PROCESSOR_INCOMPLETE", errorCode(t, rr))
}

func TestPaymentIntentOpaqueProcessorError(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{intentErr: errors.New("tcp 10.0.0.1: connection refused")}
	rr := post(t, newHandler(proc).PaymentIntent, `{"amount": 10}`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "PROCESSOR_ERROR", errorCode(t, rr))
	require.NotContains(t, rr.Body.String(), "connection refused", "processor internals must not leak")
}

func TestPaymentIntentNotConfigured(t *testing.T) {
	t.Parallel()

	rr := post(t, newHandler(nil).PaymentIntent, `{"amount": 10}`)
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "PAYMENT_NOT_CONFIGURED", errorCode(t, rr))
}

func TestCheckoutSessionOneOff(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{session: donation.Session{ID: "cs_1", URL: "https://checkout.example/cs_1"}}
	rr := post(t, newHandler(proc).CheckoutSession, `{"amount": 5, "name": "Grace"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, proc.sessions, 1)
	got := proc.sessions[0]
	require.Equal(t, int64(500), got.Amount)
	require.Equal(t, donation.FrequencyOneOff, got.Frequency)
	require.False(t, got.Frequency.Recurring())
	require.Equal(t, "https://donate.example.org/success?session_id={CHECKOUT_SESSION_ID}", got.SuccessURL)
	require.Equal(t, "https://donate.example.org/cancel", got.CancelURL)

	var resp struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "https://checkout.example/cs_1", resp.URL)
}

func TestCheckoutSessionWeekly(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{session: donation.Session{URL: "https://checkout.example/cs_2"}}
	rr := post(t, newHandler(proc).CheckoutSession, `{"amount": 5, "frequency": "weekly"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, proc.sessions, 1)
	got := proc.sessions[0]
	require.Equal(t, int64(500), got.Amount)
	require.True(t, got.Frequency.Recurring())
	require.Equal(t, "week", got.Frequency.Interval())
}

func TestCheckoutSessionNonWeeklyDefaultsToMonth(t *testing.T) {
	t.Parallel()

	// Anything recurring that is not weekly bills monthly, including
	// unrecognised cadences like "biannual".
	for _, frequency := range []string{"monthly", "biannual"} {
		proc := &fakeProcessor{session: donation.Session{URL: "https://checkout.example/cs_3"}}
		rr := post(t, newHandler(proc).CheckoutSession, `{"amount": 5, "frequency": "`+frequency+`"}`)

		require.Equal(t, http.StatusOK, rr.Code, frequency)
		require.Len(t, proc.sessions, 1)
		require.True(t, proc.sessions[0].Frequency.Recurring(), frequency)
		require.Equal(t, "month", proc.sessions[0].Frequency.Interval(), frequency)
	}
}

func TestCheckoutSessionMissingAmount(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{}
	rr := post(t, newHandler(proc).CheckoutSession, `{"frequency": "weekly"}`)

	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "AMOUNT_REQUIRED", errorCode(t, rr))
	require.Empty(t, proc.sessions)
}

func TestCheckoutSessionIncompleteResponse(t *testing.T) {
	t.Parallel()

	proc := &fakeProcessor{sessionErr: donation.ErrIncompleteResponse}
	rr := post(t, newHandler(proc).CheckoutSession, `{"amount": 5}`)

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "PROCESSOR_INCOMPLETE", errorCode(t, rr))
}

type fakeLister struct {
	records []donation.Record
	total   int64
	err     error
}

func (f *fakeLister) List(_ context.Context, _, _ int) ([]donation.Record, int64, error) {
	return f.records, f.total, f.err
}

func TestListDonations(t *testing.T) {
	t.Parallel()

	h := newHandler(&fakeProcessor{})
	h.Store = &fakeLister{
		records: []donation.Record{{ID: "d1", Name: "Ada", Amount: 1000, Currency: "usd", Status: donation.StatusSucceeded}},
		total:   1,
	}
	req := httptest.NewRequest(http.MethodGet, "/donations?page=1&limit=10", nil)
	rr := httptest.NewRecorder()
	h.List(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"d1"`)
	require.Contains(t, rr.Body.String(), `"total_items":1`)
}

func TestListDonationsStoreUnavailable(t *testing.T) {
	t.Parallel()

	h := newHandler(&fakeProcessor{})
	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/donations", nil))

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	require.Equal(t, "STORE_NOT_CONFIGURED", errorCode(t, rr))
}
