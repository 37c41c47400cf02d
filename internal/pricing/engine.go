package pricing

import (
	"errors"
	"math"
)

// Money represents a monetary value in whole currency units.
type Money = int64

const (
	// MaxUnitPrice bounds a single unit price accepted by NewLineItem.
	MaxUnitPrice Money = 1_000_000_000_000
	// MaxQuantity bounds a single line item quantity accepted by NewLineItem.
	MaxQuantity = 10_000
)

var (
	// ErrEmptyItemID is returned when a line item has no identifier.
	ErrEmptyItemID = errors.New("line item id is required")
	// ErrInvalidQuantity is returned when a line item quantity is below one.
	ErrInvalidQuantity = errors.New("line item quantity must be at least 1")
	// ErrNegativePrice is returned when a unit price is negative.
	ErrNegativePrice = errors.New("line item price must not be negative")
	// ErrPriceAboveOriginal is returned when the sale price exceeds the reference price.
	ErrPriceAboveOriginal = errors.New("line item unit price exceeds original unit price")
	// ErrAmountTooLarge is returned when a price or quantity is above the supported range.
	ErrAmountTooLarge = errors.New("line item price or quantity out of range")
)

// LineItem describes one product entry of a cart snapshot.
type LineItem struct {
	ID                string
	UnitPrice         Money
	OriginalUnitPrice Money
	Quantity          int
}

// NewLineItem validates and constructs a line item.
func NewLineItem(id string, unitPrice, originalUnitPrice Money, quantity int) (LineItem, error) {
	if id == "" {
		return LineItem{}, ErrEmptyItemID
	}
	if quantity < 1 {
		return LineItem{}, ErrInvalidQuantity
	}
	if unitPrice < 0 || originalUnitPrice < 0 {
		return LineItem{}, ErrNegativePrice
	}
	if quantity > MaxQuantity || unitPrice > MaxUnitPrice || originalUnitPrice > MaxUnitPrice {
		return LineItem{}, ErrAmountTooLarge
	}
	if originalUnitPrice < unitPrice {
		return LineItem{}, ErrPriceAboveOriginal
	}
	return LineItem{ID: id, UnitPrice: unitPrice, OriginalUnitPrice: originalUnitPrice, Quantity: quantity}, nil
}

// SelectionSet holds the line item ids chosen for checkout.
type SelectionSet map[string]struct{}

// NewSelection builds a selection set from ids.
func NewSelection(ids ...string) SelectionSet {
	set := make(SelectionSet, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Has reports whether id is selected.
func (s SelectionSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// RewardUsage is the amount of reward points a customer asks to redeem.
type RewardUsage struct {
	Requested Money
	Available Money
}

// DeliveryPolicy is a flat fee waived once the subtotal reaches FreeShippingThreshold.
type DeliveryPolicy struct {
	Fee                   Money
	FreeShippingThreshold *Money
}

// FeeFor returns the delivery fee charged for the given merchandise subtotal.
func (p DeliveryPolicy) FeeFor(subtotal Money) Money {
	if p.FreeShippingThreshold != nil && subtotal >= *p.FreeShippingThreshold {
		return 0
	}
	if p.Fee < 0 {
		return 0
	}
	return p.Fee
}

// OrderSummary aggregates the computed pricing components.
type OrderSummary struct {
	SelectedCount         int   `json:"selectedCount"`
	TotalOriginalPrice    Money `json:"totalOriginalPrice"`
	TotalCurrentPrice     Money `json:"totalCurrentPrice"`
	ProductDiscountAmount Money `json:"productDiscountAmount"`
	CouponDiscountAmount  Money `json:"couponDiscountAmount"`
	CouponApplied         bool  `json:"couponApplied"`
	RewardDiscountAmount  Money `json:"rewardDiscountAmount"`
	DeliveryFee           Money `json:"deliveryFee"`
	FinalTotal            Money `json:"finalTotal"`
}

// ComputeSummary calculates the order summary for the selected line items.
// Steps run in a fixed order: subtotals, coupon, reward, delivery, total.
func ComputeSummary(items []LineItem, selected SelectionSet, coupon *Coupon, reward RewardUsage, delivery DeliveryPolicy) OrderSummary {
	var summary OrderSummary
	for _, it := range items {
		if it.Quantity <= 0 || !selected.Has(it.ID) {
			continue
		}
		qty := Money(it.Quantity)
		original := it.OriginalUnitPrice
		if original < it.UnitPrice {
			original = it.UnitPrice
		}
		summary.SelectedCount++
		summary.TotalOriginalPrice = addSat(summary.TotalOriginalPrice, mulSat(original, qty))
		summary.TotalCurrentPrice = addSat(summary.TotalCurrentPrice, mulSat(it.UnitPrice, qty))
	}
	summary.ProductDiscountAmount = summary.TotalOriginalPrice - summary.TotalCurrentPrice

	summary.CouponDiscountAmount = coupon.DiscountFor(summary.TotalCurrentPrice)
	summary.CouponApplied = summary.CouponDiscountAmount > 0

	payable := summary.TotalCurrentPrice - summary.CouponDiscountAmount
	if payable < 0 {
		payable = 0
	}
	summary.RewardDiscountAmount = clampReward(reward, payable)
	summary.DeliveryFee = delivery.FeeFor(summary.TotalCurrentPrice)

	summary.FinalTotal = addSat(payable-summary.RewardDiscountAmount, summary.DeliveryFee)
	if summary.FinalTotal < 0 {
		summary.FinalTotal = 0
	}
	return summary
}

func clampReward(reward RewardUsage, payable Money) Money {
	amount := reward.Requested
	if amount > reward.Available {
		amount = reward.Available
	}
	if amount > payable {
		amount = payable
	}
	if amount < 0 {
		return 0
	}
	return amount
}

// mulSat and addSat clamp at math.MaxInt64 so oversized snapshots never wrap negative.
// A negative factor contributes nothing.
func mulSat(a, b Money) Money {
	if a < 0 || b <= 0 {
		return 0
	}
	if a > math.MaxInt64/b {
		return math.MaxInt64
	}
	return a * b
}

func addSat(a, b Money) Money {
	if b > 0 && a > math.MaxInt64-b {
		return math.MaxInt64
	}
	return a + b
}
