package payment

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"

	"github.com/fjod/storefront/internal/domain"
)

type scriptedCreator struct {
	calls int
	errs  []error
}

func (s *scriptedCreator) CreateSession(context.Context, domain.PaymentSessionRequest) (*domain.PaymentSession, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &domain.PaymentSession{ID: "cs_1", URL: "https://pay.example.com/cs_1"}, nil
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	down := errors.New("connection refused")
	next := &scriptedCreator{errs: []error{down, down, down}}
	b := NewBreakerProvider(next, BreakerSettings{Failures: 3, Timeout: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := b.CreateSession(context.Background(), sessionRequest())
		require.ErrorIs(t, err, down)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.CreateSession(context.Background(), sessionRequest())
	assert.True(t, errors.Is(err, ErrProviderUnavailable), "got %v", err)
	assert.Equal(t, 3, next.calls, "open breaker must not call the provider")
}

func TestBreaker_HalfOpenProbeCloses(t *testing.T) {
	down := errors.New("timeout")
	next := &scriptedCreator{errs: []error{down}}
	b := NewBreakerProvider(next, BreakerSettings{Failures: 1, Timeout: 10 * time.Millisecond})

	_, err := b.CreateSession(context.Background(), sessionRequest())
	require.Error(t, err)
	require.Equal(t, gobreaker.StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)

	session, err := b.CreateSession(context.Background(), sessionRequest())
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	invalid := &stripe.Error{HTTPStatusCode: http.StatusBadRequest, Type: stripe.ErrorTypeInvalidRequest}
	next := &scriptedCreator{errs: []error{invalid, context.Canceled, invalid}}
	b := NewBreakerProvider(next, BreakerSettings{Failures: 2, Timeout: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := b.CreateSession(context.Background(), sessionRequest())
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestCountsAsHealthy(t *testing.T) {
	assert.True(t, countsAsHealthy(nil))
	assert.True(t, countsAsHealthy(errors.Wrap(context.Canceled, "create")))
	assert.True(t, countsAsHealthy(&stripe.Error{HTTPStatusCode: http.StatusBadRequest}))
	assert.False(t, countsAsHealthy(&stripe.Error{HTTPStatusCode: http.StatusTooManyRequests}))
	assert.False(t, countsAsHealthy(&stripe.Error{HTTPStatusCode: http.StatusBadGateway}))
	assert.False(t, countsAsHealthy(ErrMissingSessionURL))
}
