// paybridge.go — the bridge to Stripe, the only trusted source of truth for
// "did the user actually pay". Wraps Checkout session creation and retrieval
// behind a circuit breaker so a Stripe outage degrades to 503s instead of
// piling up blocked handlers.
package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
)

// premiumAmountCents is the one-time premium upgrade price ($3.99).
const premiumAmountCents = 399

// CheckoutSession is a newly created Stripe-hosted checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentSession is the processor's view of a checkout attempt.
type PaymentSession struct {
	ID     string
	Paid   bool
	UserID uuid.UUID // from client_reference_id; uuid.Nil if absent
}

// PaymentBridge talks to the payment processor. The Stripe implementation is
// StripeBridge; tests substitute a fake.
type PaymentBridge interface {
	// CreateCheckout opens a payment-mode checkout session for the premium
	// upgrade and returns its hosted URL.
	CreateCheckout(ctx context.Context, userID uuid.UUID) (*CheckoutSession, error)

	// RetrieveSession fetches the authoritative payment status for a session.
	// Returns ErrSessionNotFound for unknown IDs and ErrProcessorUnavailable
	// on transport failure or open breaker.
	RetrieveSession(ctx context.Context, sessionID string) (*PaymentSession, error)
}

// StripeBridge implements PaymentBridge on the Stripe API.
type StripeBridge struct {
	baseURL string // success/cancel redirect base
	priceID string // optional pre-created price; falls back to inline price data
	breaker *gobreaker.CircuitBreaker[*stripe.CheckoutSession]
}

// NewStripeBridge configures the Stripe client and the breaker.
// apiKey must be set; the caller decides whether a missing key means a nil
// bridge (degraded mode) or a startup failure.
func NewStripeBridge(apiKey, baseURL, priceID string) (*StripeBridge, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stripe not configured: set STRIPE_SECRET_KEY")
	}
	stripe.Key = apiKey

	breaker := gobreaker.NewCircuitBreaker[*stripe.CheckoutSession](gobreaker.Settings{
		Name:    "stripe",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &StripeBridge{baseURL: baseURL, priceID: priceID, breaker: breaker}, nil
}

func (b *StripeBridge) CreateCheckout(ctx context.Context, userID uuid.UUID) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(b.baseURL + "/premium/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(b.baseURL + "/premium/cancel"),
		ClientReferenceID: stripe.String(userID.String()),
		Metadata: map[string]string{
			"flixsy_user_id": userID.String(),
		},
	}
	params.Context = ctx

	if b.priceID != "" {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(b.priceID), Quantity: stripe.Int64(1)},
		}
	} else {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(string(stripe.CurrencyUSD)),
					UnitAmount: stripe.Int64(premiumAmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("Flixsy Premium"),
						Description: stripe.String("Unlimited streaming, forever. One-time payment."),
					},
				},
				Quantity: stripe.Int64(1),
			},
		}
	}

	sess, err := b.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return session.New(params)
	})
	if err != nil {
		return nil, mapStripeErr(err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (b *StripeBridge) RetrieveSession(ctx context.Context, sessionID string) (*PaymentSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := b.breaker.Execute(func() (*stripe.CheckoutSession, error) {
		return session.Get(sessionID, params)
	})
	if err != nil {
		return nil, mapStripeErr(err)
	}

	ps := &PaymentSession{
		ID:   sess.ID,
		Paid: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if id, err := uuid.Parse(sess.ClientReferenceID); err == nil {
		ps.UserID = id
	}
	return ps, nil
}

// mapStripeErr folds Stripe and breaker failures into the service taxonomy.
func mapStripeErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit open", ErrProcessorUnavailable)
	}

	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch stripeErr.Code {
		case stripe.ErrorCodeResourceMissing:
			return ErrSessionNotFound
		}
		// Any other API-level error: the processor answered, but we cannot
		// conclude "paid" — surface as unavailable so the caller retries.
		return fmt.Errorf("%w: stripe: %s", ErrProcessorUnavailable, stripeErr.Code)
	}

	return fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
}
