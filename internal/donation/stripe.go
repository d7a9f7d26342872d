package donation

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Stripe implements Processor against the Stripe API.
type Stripe struct {
	api *client.API
}

// NewStripe constructs a Stripe processor bound to the given secret key.
func NewStripe(secretKey string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Stripe{api: api}
}

// CreateIntent opens a payment intent for the normalised amount. The client
// confirms the intent browser-side using the returned secret.
func (s *Stripe) CreateIntent(ctx context.Context, p IntentParams) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(p.Amount),
		Currency:    stripe.String(p.Currency),
		Description: stripe.String(fmt.Sprintf("Donation from %s", p.DonorName)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("donor_name", p.DonorName)

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, classifyStripeErr(err)
	}
	if pi == nil || pi.ClientSecret == "" {
		return Intent{}, ErrIncompleteResponse
	}
	return Intent{ID: pi.ID, ClientSecret: pi.ClientSecret}, nil
}

// CreateCheckoutSession builds a hosted checkout session, either a single
// payment or a week/month subscription depending on the frequency.
func (s *Stripe) CreateCheckoutSession(ctx context.Context, p SessionParams) (Session, error) {
	priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
		Currency:   stripe.String(p.Currency),
		UnitAmount: stripe.Int64(p.Amount),
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: priceData,
			Quantity:  stripe.Int64(1),
		}},
	}
	params.Context = ctx
	params.AddMetadata("donor_name", p.DonorName)
	params.AddMetadata("frequency", string(p.Frequency))

	if p.Frequency.Recurring() {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		priceData.Recurring = &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
			Interval: stripe.String(p.Frequency.Interval()),
		}
		priceData.ProductData = &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name:        stripe.String(p.Frequency.Label()),
			Description: stripe.String(fmt.Sprintf("Recurring donation from %s", p.DonorName)),
		}
	} else {
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		params.SubmitType = stripe.String(string(stripe.CheckoutSessionSubmitTypeDonate))
		priceData.ProductData = &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
			Name: stripe.String(fmt.Sprintf("Donation from %s", p.DonorName)),
		}
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return Session{}, classifyStripeErr(err)
	}
	if sess == nil || sess.URL == "" {
		return Session{}, ErrIncompleteResponse
	}
	return Session{ID: sess.ID, URL: sess.URL}, nil
}

// classifyStripeErr surfaces invalid-request rejections with their safe
// message and leaves every other failure opaque.
func classifyStripeErr(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeInvalidRequest {
		return &InvalidRequestError{Msg: stripeErr.Msg}
	}
	return err
}
