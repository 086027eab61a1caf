package payment

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/domain"
)

const (
	DefaultBreakerFailures = 5
	DefaultBreakerTimeout  = 30 * time.Second
)

// ErrProviderUnavailable is returned without calling the provider while the
// breaker is open.
var ErrProviderUnavailable = errors.New("payment provider unavailable")

type SessionCreator interface {
	CreateSession(ctx context.Context, req domain.PaymentSessionRequest) (*domain.PaymentSession, error)
}

// BreakerProvider stops calling a failing provider for a cool-down period.
// It never retries a call itself.
type BreakerProvider struct {
	next SessionCreator
	cb   *gobreaker.CircuitBreaker[*domain.PaymentSession]
}

type BreakerSettings struct {
	Name     string
	Failures uint32        // consecutive failures that open the breaker
	Timeout  time.Duration // time spent open before a probe is let through
	Logger   *zap.Logger
}

func NewBreakerProvider(next SessionCreator, s BreakerSettings) *BreakerProvider {
	if s.Name == "" {
		s.Name = "payment"
	}
	if s.Failures == 0 {
		s.Failures = DefaultBreakerFailures
	}
	if s.Timeout <= 0 {
		s.Timeout = DefaultBreakerTimeout
	}
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker[*domain.PaymentSession](gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 1,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.Failures
		},
		IsSuccessful: countsAsHealthy,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("payment breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &BreakerProvider{next: next, cb: cb}
}

func (b *BreakerProvider) CreateSession(ctx context.Context, req domain.PaymentSessionRequest) (*domain.PaymentSession, error) {
	session, err := b.cb.Execute(func() (*domain.PaymentSession, error) {
		return b.next.CreateSession(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Wrap(ErrProviderUnavailable, err.Error())
	}
	return session, err
}

// State reports the breaker state, e.g. for health output.
func (b *BreakerProvider) State() gobreaker.State {
	return b.cb.State()
}

// countsAsHealthy: cancelled requests and 4xx rejections other than 429 do
// not count against the provider.
func countsAsHealthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var serr *stripe.Error
	if errors.As(err, &serr) {
		return serr.HTTPStatusCode > 0 && serr.HTTPStatusCode < http.StatusInternalServerError &&
			serr.HTTPStatusCode != http.StatusTooManyRequests
	}
	return false
}
