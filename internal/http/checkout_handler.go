package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/service"
)

// CheckoutCreator is the checkout flow behind POST /api/checkout.
type CheckoutCreator interface {
	PaymentConfigured() bool
	CreateSession(ctx context.Context, req *domain.CheckoutRequest, params service.CheckoutParams) (*domain.CheckoutResponse, error)
}

type CheckoutHandler struct {
	checkout    CheckoutCreator
	timeout     time.Duration
	maxBodySize int64
	log         *zap.Logger
}

func NewCheckoutHandler(checkout CheckoutCreator, timeout time.Duration, maxBodySize int64, log *zap.Logger) *CheckoutHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CheckoutHandler{
		checkout:    checkout,
		timeout:     timeout,
		maxBodySize: maxBodySize,
		log:         log,
	}
}

type typeErrorDetails struct {
	Field    string `json:"field"`
	Expected string `json:"expected"`
}

// POST /api/checkout
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.checkout.PaymentConfigured() {
		respondError(w, http.StatusBadRequest, "payment_not_configured", "payments are not configured")
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	if h.maxBodySize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}

	dec := json.NewDecoder(r.Body)
	var req domain.CheckoutRequest
	if err := dec.Decode(&req); err != nil {
		h.respondDecodeError(w, err)
		return
	}
	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondDecodeError(w, err)
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "request body must contain a single JSON object")
		return
	}

	resp, err := h.checkout.CreateSession(ctx, &req, service.CheckoutParams{
		Origin:    requestOrigin(r),
		RequestID: RequestIDFromContext(r.Context()),
	})
	if err != nil {
		h.respondCheckoutError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

func (h *CheckoutHandler) respondDecodeError(w http.ResponseWriter, err error) {
	var (
		maxErr  *http.MaxBytesError
		typeErr *json.UnmarshalTypeError
	)
	switch {
	case errors.Is(err, io.EOF):
		respondError(w, http.StatusBadRequest, "invalid_request", "request body is empty")
	case errors.As(err, &maxErr):
		respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body is too large")
	case errors.As(err, &typeErr):
		respondErrorDetails(w, http.StatusBadRequest, "invalid_payload", "invalid checkout payload",
			[]typeErrorDetails{{Field: typeErr.Field, Expected: typeErr.Type.String()}})
	default:
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
	}
}

func (h *CheckoutHandler) respondCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr     *service.ValidationError
		mismatch *service.PriceMismatchError
	)
	switch {
	case errors.As(err, &verr):
		respondErrorDetails(w, http.StatusBadRequest, "invalid_payload", "invalid checkout payload", verr.Violations)
	case errors.As(err, &mismatch):
		respondErrorDetails(w, http.StatusBadRequest, "price_mismatch",
			"some items changed price or are no longer available, refresh your cart", mismatch.Items)
	case errors.Is(err, service.ErrPaymentNotConfigured):
		respondError(w, http.StatusBadRequest, "payment_not_configured", "payments are not configured")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "checkout timed out, please try again")
	case errors.Is(err, service.ErrProviderFailed):
		respondError(w, http.StatusBadGateway, "payment_provider_error", "could not start checkout, please try again")
	default:
		h.log.Error("checkout failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
