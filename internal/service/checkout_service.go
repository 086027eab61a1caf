package service

import (
	"context"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/pricing"
)

const publishTimeout = 5 * time.Second

// CatalogReader is the catalog lookup checkout revalidates prices against.
type CatalogReader interface {
	BySKU(sku string) (domain.Product, bool)
}

// PaymentProvider creates hosted checkout sessions.
type PaymentProvider interface {
	CreateSession(ctx context.Context, req domain.PaymentSessionRequest) (*domain.PaymentSession, error)
}

// EventPublisher announces created sessions to downstream consumers.
type EventPublisher interface {
	PublishCheckoutSessionCreated(ctx context.Context, event domain.CheckoutSessionCreated) error
}

// CheckoutParams carries request-scoped values the session depends on.
type CheckoutParams struct {
	// Origin is the scheme and host the shopper is returned to, e.g. "https://shop.example.com".
	Origin    string
	RequestID string
}

type CheckoutService struct {
	catalog   CatalogReader
	provider  PaymentProvider
	publisher EventPublisher
	validate  *validator.Validate
	currency  string
	log       *zap.Logger
	now       func() time.Time

	// publishing tracks in-flight event publishes.
	publishing sync.WaitGroup
}

type CheckoutOption func(*CheckoutService)

func WithPublisher(p EventPublisher) CheckoutOption {
	return func(s *CheckoutService) { s.publisher = p }
}

func WithCheckoutLogger(log *zap.Logger) CheckoutOption {
	return func(s *CheckoutService) { s.log = log }
}

func WithCurrency(currency string) CheckoutOption {
	return func(s *CheckoutService) { s.currency = strings.ToLower(currency) }
}

// NewCheckoutService builds the checkout flow. A nil provider means payments
// are not configured and every checkout is rejected before any external call.
func NewCheckoutService(catalog CatalogReader, provider PaymentProvider, opts ...CheckoutOption) *CheckoutService {
	s := &CheckoutService{
		catalog:  catalog,
		provider: provider,
		validate: newValidator(),
		currency: "usd",
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// PaymentConfigured reports whether checkouts can reach a provider.
func (s *CheckoutService) PaymentConfigured() bool {
	return s.provider != nil
}

// CreateSession validates req, revalidates every item against the catalog
// and asks the provider for a hosted session. Any invalid or mismatched item
// rejects the whole request.
func (s *CheckoutService) CreateSession(
	ctx context.Context,
	req *domain.CheckoutRequest,
	params CheckoutParams) (*domain.CheckoutResponse, error) {

	if s.provider == nil {
		return nil, ErrPaymentNotConfigured
	}

	if err := s.Validate(req); err != nil {
		return nil, err
	}

	lineItems, err := s.reconcile(req.Items, params.RequestID)
	if err != nil {
		return nil, err
	}

	origin := strings.TrimRight(params.Origin, "/")
	session, err := s.provider.CreateSession(ctx, domain.PaymentSessionRequest{
		Mode:       domain.PaymentModePayment,
		Currency:   s.currency,
		LineItems:  lineItems,
		SuccessURL: origin + "/success",
		CancelURL:  origin + "/cancel",
	})
	if err != nil {
		s.log.Error("payment provider failed", zap.String("request_id", params.RequestID), zap.Error(err))
		return nil, &ProviderError{Err: err}
	}
	if session == nil || session.URL == "" {
		s.log.Error("payment provider returned no session url", zap.String("request_id", params.RequestID))
		return nil, &ProviderError{Err: errors.New("empty session url")}
	}

	s.log.Info("checkout session created",
		zap.String("request_id", params.RequestID),
		zap.String("session_id", session.ID),
		zap.Int("items", len(lineItems)),
	)

	if s.publisher != nil {
		s.publish(ctx, req.Items, session, params.RequestID)
	}

	return &domain.CheckoutResponse{URL: session.URL}, nil
}

// Validate applies the request schema. A nil or item-less request is invalid.
func (s *CheckoutService) Validate(req *domain.CheckoutRequest) error {
	if req == nil {
		return &ValidationError{Violations: []FieldViolation{{Field: "items", Rule: "required"}}}
	}

	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate checkout request")
	}

	out := &ValidationError{Violations: make([]FieldViolation, 0, len(verrs))}
	for _, fe := range verrs {
		out.Violations = append(out.Violations, FieldViolation{
			Field: fieldPath(fe.Namespace()),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out
}

// fieldPath drops the root struct name: "CheckoutRequest.items[0].sku" -> "items[0].sku".
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// reconcile checks every submitted unit amount against the catalog price in
// cents with exact equality and builds line items from trusted catalog names.
func (s *CheckoutService) reconcile(items []domain.CheckoutItem, requestID string) ([]domain.PaymentLineItem, error) {
	var mismatches []PriceMismatch
	lineItems := make([]domain.PaymentLineItem, 0, len(items))

	for _, it := range items {
		product, ok := s.catalog.BySKU(it.SKU)
		if !ok {
			mismatches = append(mismatches, PriceMismatch{SKU: it.SKU, Reason: MismatchUnknownSKU, Submitted: it.UnitAmount})
			continue
		}

		expected := pricing.ToCents(product.Price)
		if expected != it.UnitAmount {
			mismatches = append(mismatches, PriceMismatch{
				SKU:       it.SKU,
				Reason:    MismatchPrice,
				Submitted: it.UnitAmount,
				Expected:  expected,
			})
			continue
		}

		if it.Qty > int64(product.Stock) {
			// TODO: reject once stock is reserved at checkout instead of only clamped in the cart.
			s.log.Warn("checkout quantity exceeds catalog stock",
				zap.String("request_id", requestID),
				zap.String("sku", it.SKU),
				zap.Int64("qty", it.Qty),
				zap.Int("stock", product.Stock),
			)
		}

		lineItems = append(lineItems, domain.PaymentLineItem{
			Name:       product.Name,
			UnitAmount: it.UnitAmount,
			Quantity:   it.Qty,
			Images:     []string{it.Image},
		})
	}

	if len(mismatches) > 0 {
		s.log.Warn("rejecting checkout with mismatched items",
			zap.String("request_id", requestID),
			zap.Any("mismatches", mismatches),
		)
		return nil, &PriceMismatchError{Items: mismatches}
	}
	return lineItems, nil
}

// publish announces the session without holding up the response. Failures
// are logged only.
func (s *CheckoutService) publish(ctx context.Context, items []domain.CheckoutItem, session *domain.PaymentSession, requestID string) {
	event := domain.CheckoutSessionCreated{
		EventID:   uuid.NewString(),
		SessionID: session.ID,
		RequestID: requestID,
		Items:     make([]domain.CheckoutEventItem, 0, len(items)),
		Currency:  s.currency,
		CreatedAt: s.now().UTC(),
	}
	for _, it := range items {
		event.Items = append(event.Items, domain.CheckoutEventItem{SKU: it.SKU, Quantity: it.Qty, UnitAmount: it.UnitAmount})
		event.TotalAmount += it.UnitAmount * it.Qty
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	s.publishing.Add(1)
	go func() {
		defer s.publishing.Done()
		defer cancel()
		if err := s.publisher.PublishCheckoutSessionCreated(pubCtx, event); err != nil {
			s.log.Error("failed to publish checkout event",
				zap.String("event_id", event.EventID),
				zap.String("session_id", event.SessionID),
				zap.Error(err),
			)
		}
	}()
}

// Drain blocks until every in-flight event publish has finished or ctx is
// done. Call it after the server stops accepting checkouts and before the
// publisher is closed.
func (s *CheckoutService) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.publishing.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "drain checkout events")
	}
}
