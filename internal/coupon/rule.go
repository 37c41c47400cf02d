package coupon

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/pricing"
)

var (
	// ErrCouponNotFound is returned when a code is not present in the catalog.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrCouponInactive is returned when attempting to use a coupon before its window opens.
	ErrCouponInactive = errors.New("coupon not active")
	// ErrCouponExpired is returned when the coupon window has already closed.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrInvalidRule indicates a catalog entry failed validation.
	ErrInvalidRule = errors.New("invalid coupon rule")
)

var validate = validator.New()

// Rule is a catalog entry describing a coupon and its validity window.
type Rule struct {
	Code           string          `json:"code" validate:"required,max=64"`
	Kind           string          `json:"kind" validate:"required"`
	Value          decimal.Decimal `json:"value"`
	MinOrderAmount *int64          `json:"minOrderAmount,omitempty" validate:"omitempty,gte=0"`
	ValidFrom      *time.Time      `json:"validFrom,omitempty"`
	ValidTo        *time.Time      `json:"validTo,omitempty"`
	Description    string          `json:"description,omitempty"`
}

// Check validates the rule shape, including the discount kind.
func (r Rule) Check() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRule, r.Code, err)
	}
	if _, err := pricing.ParseDiscountKind(r.Kind); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidRule, r.Code, err)
	}
	if r.ValidFrom != nil && r.ValidTo != nil && r.ValidTo.Before(*r.ValidFrom) {
		return fmt.Errorf("%w: %s: validTo precedes validFrom", ErrInvalidRule, r.Code)
	}
	return nil
}

// Validate ensures the rule can be applied at the provided instant.
func (r Rule) Validate(now time.Time) error {
	if r.ValidFrom != nil && now.Before(*r.ValidFrom) {
		return ErrCouponInactive
	}
	if r.ValidTo != nil && now.After(*r.ValidTo) {
		return ErrCouponExpired
	}
	return nil
}

// Coupon converts the rule into the pricing engine's coupon.
func (r Rule) Coupon() (*pricing.Coupon, error) {
	return pricing.NewCoupon(r.Code, r.Kind, r.Value, r.MinOrderAmount)
}

// NormalizeCode canonicalises a coupon code for lookups.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
