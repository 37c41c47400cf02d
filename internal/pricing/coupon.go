package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnknownDiscountKind is returned when a coupon names an unsupported discount kind.
var ErrUnknownDiscountKind = errors.New("unknown discount kind")

// DiscountKind names a coupon discount rule.
type DiscountKind string

const (
	// KindPercent takes a percentage off the subtotal.
	KindPercent DiscountKind = "percent"
	// KindAmount takes a fixed amount off the subtotal.
	KindAmount DiscountKind = "amount"
)

var hundred = decimal.NewFromInt(100)

// ParseDiscountKind converts a raw kind into a DiscountKind.
func ParseDiscountKind(raw string) (DiscountKind, error) {
	switch DiscountKind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindPercent:
		return KindPercent, nil
	case KindAmount:
		return KindAmount, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDiscountKind, raw)
	}
}

// Discount is the arithmetic rule of a coupon. Implementations live in this package only.
type Discount interface {
	Kind() DiscountKind
	amountOff(subtotal Money) Money
}

// PercentOff discounts Rate percent of the subtotal, rounded down.
type PercentOff struct {
	Rate decimal.Decimal
}

// Kind implements Discount.
func (PercentOff) Kind() DiscountKind { return KindPercent }

func (d PercentOff) amountOff(subtotal Money) Money {
	rate := clampPercent(d.Rate)
	if subtotal <= 0 || rate.IsZero() {
		return 0
	}
	return decimal.NewFromInt(subtotal).Mul(rate).Shift(-2).Floor().IntPart()
}

// AmountOff discounts a fixed amount, never more than the subtotal.
type AmountOff struct {
	Amount Money
}

// Kind implements Discount.
func (AmountOff) Kind() DiscountKind { return KindAmount }

func (d AmountOff) amountOff(subtotal Money) Money {
	if d.Amount <= 0 || subtotal <= 0 {
		return 0
	}
	if d.Amount > subtotal {
		return subtotal
	}
	return d.Amount
}

// Coupon is a discount instrument, optionally gated by a minimum order amount.
type Coupon struct {
	Code           string
	Discount       Discount
	MinOrderAmount *Money
}

// NewCoupon builds a coupon. Unknown kinds are rejected; out-of-range values are clamped.
func NewCoupon(code, kind string, value decimal.Decimal, minOrderAmount *Money) (*Coupon, error) {
	k, err := ParseDiscountKind(kind)
	if err != nil {
		return nil, err
	}
	var discount Discount
	switch k {
	case KindPercent:
		discount = PercentOff{Rate: clampPercent(value)}
	case KindAmount:
		amount := value.Floor().IntPart()
		if amount < 0 {
			amount = 0
		}
		discount = AmountOff{Amount: amount}
	}
	c := &Coupon{Code: strings.TrimSpace(code), Discount: discount}
	if minOrderAmount != nil {
		floor := *minOrderAmount
		c.MinOrderAmount = &floor
	}
	return c, nil
}

// Eligible reports whether the subtotal satisfies the coupon minimum.
func (c *Coupon) Eligible(subtotal Money) bool {
	if c == nil || c.Discount == nil {
		return false
	}
	return c.MinOrderAmount == nil || subtotal >= *c.MinOrderAmount
}

// DiscountFor returns the coupon discount for a pre-coupon subtotal.
func (c *Coupon) DiscountFor(subtotal Money) Money {
	if !c.Eligible(subtotal) {
		return 0
	}
	return c.Discount.amountOff(subtotal)
}

func clampPercent(rate decimal.Decimal) decimal.Decimal {
	if rate.IsNegative() {
		return decimal.Zero
	}
	if rate.GreaterThan(hundred) {
		return hundred
	}
	return rate
}
