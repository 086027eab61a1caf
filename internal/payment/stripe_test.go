package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/storefront/internal/domain"
)

func sessionRequest() domain.PaymentSessionRequest {
	return domain.PaymentSessionRequest{
		Mode:     domain.PaymentModePayment,
		Currency: "usd",
		LineItems: []domain.PaymentLineItem{
			{Name: "Aero Wireless Headphones", UnitAmount: 12999, Quantity: 1, Images: []string{"https://shop.example.com/a.jpg"}},
			{Name: "Trail Hydration Bottle", UnitAmount: 2450, Quantity: 3, Images: []string{"https://shop.example.com/b.jpg"}},
		},
		SuccessURL: "https://shop.example.com/success",
		CancelURL:  "https://shop.example.com/cancel",
	}
}

func newStripeStub(t *testing.T, status int, body string) (*StripeProvider, *url.Values, *atomic.Int32) {
	t.Helper()
	var (
		form  url.Values
		calls atomic.Int32
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.NoError(t, r.ParseForm())
		form = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	p := NewStripeProvider("sk_test_123", WithAPIURL(srv.URL), WithHTTPClient(srv.Client()))
	return p, &form, &calls
}

func TestCreateSession_SendsCheckoutParams(t *testing.T) {
	p, form, _ := newStripeStub(t, http.StatusOK,
		`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`)

	session, err := p.CreateSession(context.Background(), sessionRequest())
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", session.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", session.URL)

	f := *form
	assert.Equal(t, "payment", f.Get("mode"))
	assert.Equal(t, "https://shop.example.com/success", f.Get("success_url"))
	assert.Equal(t, "https://shop.example.com/cancel", f.Get("cancel_url"))
	assert.Equal(t, "usd", f.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "12999", f.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "Aero Wireless Headphones", f.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "https://shop.example.com/a.jpg", f.Get("line_items[0][price_data][product_data][images][0]"))
	assert.Equal(t, "1", f.Get("line_items[0][quantity]"))
	assert.Equal(t, "2450", f.Get("line_items[1][price_data][unit_amount]"))
	assert.Equal(t, "3", f.Get("line_items[1][quantity]"))
}

func TestCreateSession_ProviderErrorIsNotRetried(t *testing.T) {
	p, _, calls := newStripeStub(t, http.StatusInternalServerError,
		`{"error":{"type":"api_error","message":"something broke"}}`)

	_, err := p.CreateSession(context.Background(), sessionRequest())

	require.Error(t, err)
	assert.EqualValues(t, 1, calls.Load())
}

func TestCreateSession_InvalidRequest(t *testing.T) {
	p, _, _ := newStripeStub(t, http.StatusBadRequest,
		`{"error":{"type":"invalid_request_error","code":"url_invalid","message":"Not a valid URL"}}`)

	_, err := p.CreateSession(context.Background(), sessionRequest())

	require.Error(t, err)
	assert.ErrorContains(t, err, "create stripe checkout session")
}

func TestCreateSession_MissingURL(t *testing.T) {
	p, _, _ := newStripeStub(t, http.StatusOK, `{"id":"cs_test_2","object":"checkout.session","url":null}`)

	_, err := p.CreateSession(context.Background(), sessionRequest())

	assert.True(t, errors.Is(err, ErrMissingSessionURL), "got %v", err)
}

func TestCreateSession_CancelledContext(t *testing.T) {
	p, _, calls := newStripeStub(t, http.StatusOK, `{"id":"cs","url":"https://x"}`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.CreateSession(ctx, sessionRequest())

	require.Error(t, err)
	assert.Zero(t, calls.Load())
}
