package quote

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-pricing/internal/coupon"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

var (
	// ErrInvalidInput wraps request shape violations.
	ErrInvalidInput = errors.New("invalid quote input")
	// ErrDuplicateItemID is returned when two line items share an id.
	ErrDuplicateItemID = errors.New("duplicate line item id")
	// ErrConflictingCoupon is returned when both a coupon code and an inline coupon are sent.
	ErrConflictingCoupon = errors.New("couponCode and coupon are mutually exclusive")
)

var validate = validator.New()

// ItemInput is a cart line item as sent by the cart surface.
type ItemInput struct {
	ID                string `json:"id" validate:"required,max=128"`
	UnitPrice         int64  `json:"unitPrice" validate:"lte=1000000000000"`
	OriginalUnitPrice *int64 `json:"originalUnitPrice,omitempty" validate:"omitempty,lte=1000000000000"`
	Quantity          int    `json:"quantity" validate:"lte=10000"`
}

// CouponInput is an inline coupon supplied by the coupon-selection surface.
type CouponInput struct {
	Code           string          `json:"code,omitempty" validate:"max=64"`
	Kind           string          `json:"kind" validate:"required"`
	Value          decimal.Decimal `json:"value"`
	MinOrderAmount *int64          `json:"minOrderAmount,omitempty"`
}

// RewardInput is the requested point redemption and the customer's balance.
type RewardInput struct {
	Requested int64 `json:"requested" validate:"gte=0"`
	Available int64 `json:"available" validate:"gte=0"`
}

// DeliveryInput overrides the configured delivery policy.
type DeliveryInput struct {
	Fee                   int64  `json:"fee" validate:"gte=0"`
	FreeShippingThreshold *int64 `json:"freeShippingThreshold,omitempty" validate:"omitempty,gte=0"`
}

// Input is a cart snapshot plus discount context.
type Input struct {
	Items       []ItemInput    `json:"items" validate:"max=500,dive"`
	SelectedIDs []string       `json:"selectedIds" validate:"max=500"`
	CouponCode  string         `json:"couponCode,omitempty" validate:"max=64"`
	Coupon      *CouponInput   `json:"coupon,omitempty"`
	Reward      RewardInput    `json:"reward"`
	Delivery    *DeliveryInput `json:"delivery,omitempty"`

	// IdempotencyKey is taken from the Idempotency-Key header, never from the body.
	IdempotencyKey string `json:"-"`
}

// snapshot is the validated engine input derived from Input.
type snapshot struct {
	items    []pricing.LineItem
	selected pricing.SelectionSet
	reward   pricing.RewardUsage
	delivery pricing.DeliveryPolicy
	inline   *pricing.Coupon
}

func (in Input) snapshot(defaultDelivery pricing.DeliveryPolicy) (snapshot, error) {
	if err := validate.Struct(in); err != nil {
		return snapshot{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.CouponCode != "" && in.Coupon != nil {
		return snapshot{}, fmt.Errorf("%w: %w", ErrInvalidInput, ErrConflictingCoupon)
	}

	s := snapshot{
		items:    make([]pricing.LineItem, 0, len(in.Items)),
		selected: pricing.NewSelection(in.SelectedIDs...),
		reward:   pricing.RewardUsage{Requested: in.Reward.Requested, Available: in.Reward.Available},
		delivery: defaultDelivery,
	}
	seen := make(map[string]struct{}, len(in.Items))
	for _, it := range in.Items {
		if _, dup := seen[it.ID]; dup {
			return snapshot{}, fmt.Errorf("%w: %w: %s", ErrInvalidInput, ErrDuplicateItemID, it.ID)
		}
		seen[it.ID] = struct{}{}
		original := it.UnitPrice
		if it.OriginalUnitPrice != nil {
			original = *it.OriginalUnitPrice
		}
		item, err := pricing.NewLineItem(it.ID, it.UnitPrice, original, it.Quantity)
		if err != nil {
			return snapshot{}, fmt.Errorf("%w: item %s: %w", ErrInvalidInput, it.ID, err)
		}
		s.items = append(s.items, item)
	}
	if in.Delivery != nil {
		s.delivery = pricing.DeliveryPolicy{Fee: in.Delivery.Fee, FreeShippingThreshold: in.Delivery.FreeShippingThreshold}
	}
	if in.Coupon != nil {
		c, err := pricing.NewCoupon(in.Coupon.Code, in.Coupon.Kind, in.Coupon.Value, in.Coupon.MinOrderAmount)
		if err != nil {
			return snapshot{}, fmt.Errorf("%w: coupon: %w", ErrInvalidInput, err)
		}
		s.inline = c
	}
	return s, nil
}

// fingerprint identifies the request body for idempotent replays. Bodies that price the same
// way hash the same: the coupon code and kind are normalized, decimals marshal trimmed and the
// selection is treated as a set.
func (in Input) fingerprint() string {
	c := in
	c.CouponCode = coupon.NormalizeCode(in.CouponCode)
	c.SelectedIDs = canonicalIDs(in.SelectedIDs)
	if in.Coupon != nil {
		inline := *in.Coupon
		inline.Kind = strings.ToLower(strings.TrimSpace(inline.Kind))
		c.Coupon = &inline
	}
	data, _ := json.Marshal(c)
	return string(data)
}

func canonicalIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
