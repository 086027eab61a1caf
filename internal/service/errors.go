package service

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
)

var (
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrInvalidCart          = errors.New("invalid cart")
	ErrPaymentNotConfigured = errors.New("payment provider is not configured")
	ErrInvalidCheckout      = errors.New("invalid checkout request")
	ErrPriceMismatch        = errors.New("checkout items do not match the catalog")
	ErrProviderFailed       = errors.New("payment provider failed to create a session")
)

// FieldViolation is one failed validation rule, addressed by JSON path.
type FieldViolation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// ValidationError lists every rule a checkout request broke.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+" "+v.Rule)
	}
	return fmt.Sprintf("%s: %s", ErrInvalidCheckout, strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidCheckout
}

// Reasons reported in a PriceMismatch.
const (
	MismatchUnknownSKU = "unknown_sku"
	MismatchPrice      = "price_changed"
)

type PriceMismatch struct {
	SKU       string `json:"sku"`
	Reason    string `json:"reason"`
	Submitted int64  `json:"submitted_unit_amount"`
	Expected  int64  `json:"expected_unit_amount,omitempty"`
}

// PriceMismatchError rejects a whole checkout because at least one item does
// not exist in the catalog or carries a different price.
type PriceMismatchError struct {
	Items []PriceMismatch
}

func (e *PriceMismatchError) Error() string {
	skus := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		skus = append(skus, it.SKU)
	}
	return fmt.Sprintf("%s: %s", ErrPriceMismatch, strings.Join(skus, ", "))
}

func (e *PriceMismatchError) Is(target error) bool {
	return target == ErrPriceMismatch
}

// ProviderError wraps the payment provider's failure. It matches
// ErrProviderFailed and unwraps to the cause.
type ProviderError struct {
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", ErrProviderFailed, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderFailed
}
