package donation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// AnonymousDonor is used when the client omits a donor name.
const AnonymousDonor = "Anonymous Donor"

// Frequency describes the billing cadence of a donation.
type Frequency string

// Recognised donation frequencies. Anything that is neither one-off nor
// weekly is treated as monthly, mirroring the two-way recurring branch of the
// checkout flow.
const (
	FrequencyOneOff  Frequency = "one-off"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency normalises a raw frequency value.
func ParseFrequency(raw string) Frequency {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(FrequencyOneOff):
		return FrequencyOneOff
	case string(FrequencyWeekly):
		return FrequencyWeekly
	default:
		return FrequencyMonthly
	}
}

// Recurring reports whether the frequency bills on an interval.
func (f Frequency) Recurring() bool { return f != FrequencyOneOff }

// Interval returns the billing interval for recurring frequencies.
func (f Frequency) Interval() string {
	switch f {
	case FrequencyWeekly:
		return "week"
	case FrequencyOneOff:
		return ""
	default:
		return "month"
	}
}

// Label renders the product name shown on the hosted checkout page.
func (f Frequency) Label() string {
	switch f {
	case FrequencyWeekly:
		return "Weekly Donation"
	case FrequencyMonthly:
		return "Monthly Donation"
	default:
		return "Donation"
	}
}

// IntentParams carries a normalised amount into a payment intent creation.
type IntentParams struct {
	Amount    int64
	Currency  string
	DonorName string
}

// Intent is the client-confirmable payment authorisation returned by the processor.
type Intent struct {
	ID           string
	ClientSecret string
}

// SessionParams describes a hosted checkout session to be created.
type SessionParams struct {
	Amount     int64
	Currency   string
	DonorName  string
	Frequency  Frequency
	SuccessURL string
	CancelURL  string
}

// Session holds the redirect URL of a created checkout session.
type Session struct {
	ID  string
	URL string
}

// Processor abstracts the upstream payment processor. Implementations are
// injected into the handlers so tests can substitute fakes.
type Processor interface {
	CreateIntent(ctx context.Context, params IntentParams) (Intent, error)
	CreateCheckoutSession(ctx context.Context, params SessionParams) (Session, error)
}

// ErrIncompleteResponse signals that the processor answered without the field
// the flow depends on (client secret or redirect URL).
var ErrIncompleteResponse = errors.New("processor returned an incomplete response")

// InvalidRequestError wraps a processor-side rejection whose message is safe
// to surface to the client.
type InvalidRequestError struct {
	Msg string
}

// Error implements the error interface.
func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("processor rejected request: %s", e.Msg)
}
