// Package payment adapts hosted-checkout providers to the checkout flow.
package payment

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/domain"
)

var ErrMissingSessionURL = errors.New("provider returned no checkout url")

// StripeProvider creates Stripe Checkout sessions. It never retries: a failed
// call surfaces to the shopper, who starts checkout again.
type StripeProvider struct {
	sc  *client.API
	log *zap.Logger
}

type stripeOptions struct {
	apiURL     string
	httpClient *http.Client
	log        *zap.Logger
}

type StripeOption func(*stripeOptions)

// WithAPIURL points the client at another API host, e.g. stripe-mock.
func WithAPIURL(url string) StripeOption {
	return func(o *stripeOptions) { o.apiURL = url }
}

func WithHTTPClient(c *http.Client) StripeOption {
	return func(o *stripeOptions) { o.httpClient = c }
}

func WithLogger(log *zap.Logger) StripeOption {
	return func(o *stripeOptions) { o.log = log }
}

func NewStripeProvider(secretKey string, opts ...StripeOption) *StripeProvider {
	o := &stripeOptions{log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}

	cfg := &stripe.BackendConfig{
		HTTPClient:        o.httpClient,
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     o.log.Sugar(),
	}
	if o.apiURL != "" {
		cfg.URL = stripe.String(o.apiURL)
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}

	return &StripeProvider{
		sc:  client.New(secretKey, backends),
		log: o.log,
	}
}

func (p *StripeProvider) CreateSession(ctx context.Context, req domain.PaymentSessionRequest) (*domain.PaymentSession, error) {
	params := sessionParams(req)
	params.Context = ctx

	session, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		var serr *stripe.Error
		if errors.As(err, &serr) {
			p.log.Warn("stripe rejected checkout session",
				zap.Int("status", serr.HTTPStatusCode),
				zap.String("type", string(serr.Type)),
				zap.String("code", string(serr.Code)),
				zap.String("request_id", serr.RequestID),
			)
		}
		return nil, errors.Wrap(err, "create stripe checkout session")
	}

	if session.URL == "" {
		return nil, errors.Wrapf(ErrMissingSessionURL, "session %s", session.ID)
	}

	return &domain.PaymentSession{ID: session.ID, URL: session.URL}, nil
}

func sessionParams(req domain.PaymentSessionRequest) *stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:   stripe.String(li.Name),
					Images: stripe.StringSlice(li.Images),
				},
				UnitAmount: stripe.Int64(li.UnitAmount),
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}

	return &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(req.Mode)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
}
