package pricing

import (
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func scenarioItems(t *testing.T) []LineItem {
	t.Helper()
	first, err := NewLineItem("item-1", 32_000, 40_000, 2)
	if err != nil {
		t.Fatalf("new line item: %v", err)
	}
	second, err := NewLineItem("item-2", 30_000, 35_000, 3)
	if err != nil {
		t.Fatalf("new line item: %v", err)
	}
	return []LineItem{first, second}
}

func mustCoupon(t *testing.T, kind string, value int64, minOrder *Money) *Coupon {
	t.Helper()
	c, err := NewCoupon("TEST", kind, decimal.NewFromInt(value), minOrder)
	if err != nil {
		t.Fatalf("new coupon: %v", err)
	}
	return c
}

func moneyPtr(v Money) *Money { return &v }

func TestComputeSummaryNoDiscounts(t *testing.T) {
	items := scenarioItems(t)
	summary := ComputeSummary(items, NewSelection("item-1", "item-2"), nil, RewardUsage{}, DeliveryPolicy{Fee: 3_000})

	if summary.SelectedCount != 2 {
		t.Fatalf("expected 2 selected items, got %d", summary.SelectedCount)
	}
	if summary.TotalOriginalPrice != 185_000 {
		t.Fatalf("expected original 185000, got %d", summary.TotalOriginalPrice)
	}
	if summary.TotalCurrentPrice != 154_000 {
		t.Fatalf("expected current 154000, got %d", summary.TotalCurrentPrice)
	}
	if summary.ProductDiscountAmount != 31_000 {
		t.Fatalf("expected product discount 31000, got %d", summary.ProductDiscountAmount)
	}
	if summary.DeliveryFee != 3_000 {
		t.Fatalf("expected delivery fee 3000, got %d", summary.DeliveryFee)
	}
	if summary.FinalTotal != 157_000 {
		t.Fatalf("expected final 157000, got %d", summary.FinalTotal)
	}
	if summary.CouponApplied {
		t.Fatal("expected no coupon to be applied")
	}
}

func TestComputeSummaryPercentCoupon(t *testing.T) {
	items := scenarioItems(t)
	coupon := mustCoupon(t, "percent", 10, moneyPtr(100_000))
	summary := ComputeSummary(items, NewSelection("item-1", "item-2"), coupon, RewardUsage{}, DeliveryPolicy{Fee: 3_000})

	if summary.CouponDiscountAmount != 15_400 {
		t.Fatalf("expected coupon discount 15400, got %d", summary.CouponDiscountAmount)
	}
	if !summary.CouponApplied {
		t.Fatal("expected coupon to be applied")
	}
	if summary.FinalTotal != 141_600 {
		t.Fatalf("expected final 141600, got %d", summary.FinalTotal)
	}
}

func TestComputeSummaryRewardClampedToBalance(t *testing.T) {
	items := scenarioItems(t)
	summary := ComputeSummary(items, NewSelection("item-1", "item-2"), nil, RewardUsage{Requested: 200_000, Available: 50_000}, DeliveryPolicy{Fee: 3_000})

	if summary.RewardDiscountAmount != 50_000 {
		t.Fatalf("expected reward 50000, got %d", summary.RewardDiscountAmount)
	}
	if summary.FinalTotal != 107_000 {
		t.Fatalf("expected final 107000, got %d", summary.FinalTotal)
	}
}

func TestComputeSummaryEmptySelection(t *testing.T) {
	items := scenarioItems(t)
	summary := ComputeSummary(items, NewSelection(), mustCoupon(t, "amount", 5_000, nil), RewardUsage{Requested: 1_000, Available: 1_000}, DeliveryPolicy{Fee: 3_000})

	if summary.SelectedCount != 0 || summary.TotalCurrentPrice != 0 {
		t.Fatalf("expected empty order, got %+v", summary)
	}
	if summary.CouponDiscountAmount != 0 || summary.RewardDiscountAmount != 0 {
		t.Fatalf("expected no discounts, got %+v", summary)
	}
	if summary.FinalTotal != 3_000 {
		t.Fatalf("expected delivery fee only, got %d", summary.FinalTotal)
	}
}

func TestComputeSummaryAmountCouponCappedAtSubtotal(t *testing.T) {
	item, err := NewLineItem("solo", 10_000, 10_000, 1)
	if err != nil {
		t.Fatalf("new line item: %v", err)
	}
	coupon := mustCoupon(t, "amount", 999_999, nil)
	summary := ComputeSummary([]LineItem{item}, NewSelection("solo"), coupon, RewardUsage{}, DeliveryPolicy{})

	if summary.CouponDiscountAmount != 10_000 {
		t.Fatalf("expected coupon capped at 10000, got %d", summary.CouponDiscountAmount)
	}
	if summary.FinalTotal != 0 {
		t.Fatalf("expected final 0, got %d", summary.FinalTotal)
	}
}

func TestComputeSummaryIgnoresUnknownSelectionAndBadQuantities(t *testing.T) {
	items := scenarioItems(t)
	items = append(items, LineItem{ID: "broken", UnitPrice: 1_000, OriginalUnitPrice: 1_000, Quantity: -2})
	summary := ComputeSummary(items, NewSelection("item-1", "gone", "broken"), nil, RewardUsage{}, DeliveryPolicy{})

	if summary.SelectedCount != 1 {
		t.Fatalf("expected 1 selected item, got %d", summary.SelectedCount)
	}
	if summary.TotalCurrentPrice != 64_000 {
		t.Fatalf("expected current 64000, got %d", summary.TotalCurrentPrice)
	}
}

func TestComputeSummaryLiftsOriginalBelowUnitPrice(t *testing.T) {
	items := []LineItem{{ID: "odd", UnitPrice: 5_000, OriginalUnitPrice: 4_000, Quantity: 2}}
	summary := ComputeSummary(items, NewSelection("odd"), nil, RewardUsage{}, DeliveryPolicy{})
	if summary.TotalOriginalPrice != 10_000 || summary.ProductDiscountAmount != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestComputeSummaryFreeShippingThreshold(t *testing.T) {
	items := scenarioItems(t)
	cases := []struct {
		name      string
		threshold Money
		want      Money
	}{
		{name: "below threshold", threshold: 200_000, want: 3_000},
		{name: "at threshold", threshold: 154_000, want: 0},
		{name: "above threshold", threshold: 50_000, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			policy := DeliveryPolicy{Fee: 3_000, FreeShippingThreshold: moneyPtr(tc.threshold)}
			summary := ComputeSummary(items, NewSelection("item-1", "item-2"), nil, RewardUsage{}, policy)
			if summary.DeliveryFee != tc.want {
				t.Fatalf("expected fee %d, got %d", tc.want, summary.DeliveryFee)
			}
		})
	}
}

func TestComputeSummaryThresholdUsesPreCouponSubtotal(t *testing.T) {
	items := scenarioItems(t)
	policy := DeliveryPolicy{Fee: 3_000, FreeShippingThreshold: moneyPtr(150_000)}
	summary := ComputeSummary(items, NewSelection("item-1", "item-2"), mustCoupon(t, "amount", 20_000, nil), RewardUsage{}, policy)
	if summary.DeliveryFee != 0 {
		t.Fatalf("expected free shipping, got fee %d", summary.DeliveryFee)
	}
	if summary.FinalTotal != 134_000 {
		t.Fatalf("expected final 134000, got %d", summary.FinalTotal)
	}
}

func TestComputeSummaryCouponBelowMinimum(t *testing.T) {
	items := scenarioItems(t)
	coupon := mustCoupon(t, "percent", 10, moneyPtr(154_001))
	summary := ComputeSummary(items, NewSelection("item-1", "item-2"), coupon, RewardUsage{}, DeliveryPolicy{})
	if summary.CouponDiscountAmount != 0 || summary.CouponApplied {
		t.Fatalf("expected coupon to be ineligible, got %+v", summary)
	}
}

func TestComputeSummaryRewardBoundedByRemainingPrice(t *testing.T) {
	items := scenarioItems(t)
	coupon := mustCoupon(t, "amount", 150_000, nil)
	summary := ComputeSummary(items, NewSelection("item-1", "item-2"), coupon, RewardUsage{Requested: 10_000, Available: 10_000}, DeliveryPolicy{Fee: 2_500})
	if summary.RewardDiscountAmount != 4_000 {
		t.Fatalf("expected reward 4000, got %d", summary.RewardDiscountAmount)
	}
	if summary.FinalTotal != 2_500 {
		t.Fatalf("expected delivery fee only, got %d", summary.FinalTotal)
	}
}

func TestComputeSummaryNegativeRewardIgnored(t *testing.T) {
	items := scenarioItems(t)
	summary := ComputeSummary(items, NewSelection("item-1"), nil, RewardUsage{Requested: -500, Available: 1_000}, DeliveryPolicy{})
	if summary.RewardDiscountAmount != 0 {
		t.Fatalf("expected no reward, got %d", summary.RewardDiscountAmount)
	}
}

func TestComputeSummarySaturatesOversizedTotals(t *testing.T) {
	items := []LineItem{
		{ID: "huge", UnitPrice: 5_000_000_000_000_000_000, OriginalUnitPrice: 5_000_000_000_000_000_000, Quantity: 2},
		{ID: "small", UnitPrice: 1_000, OriginalUnitPrice: 1_000, Quantity: 1},
	}
	summary := ComputeSummary(items, NewSelection("huge", "small"), nil, RewardUsage{}, DeliveryPolicy{Fee: 3_000})
	if summary.TotalCurrentPrice != math.MaxInt64 || summary.TotalOriginalPrice != math.MaxInt64 {
		t.Fatalf("expected saturated subtotals, got %+v", summary)
	}
	if summary.ProductDiscountAmount != 0 {
		t.Fatalf("expected no product discount, got %d", summary.ProductDiscountAmount)
	}
	if summary.FinalTotal != math.MaxInt64 {
		t.Fatalf("expected saturated total, got %d", summary.FinalTotal)
	}
}

func TestLineItemBoundsKeepSumsInRange(t *testing.T) {
	items := make([]LineItem, 0, 500)
	ids := make([]string, 0, 500)
	for i := 0; i < 500; i++ {
		id := string(rune(0x4e00 + i))
		item, err := NewLineItem(id, MaxUnitPrice, MaxUnitPrice, MaxQuantity)
		if err != nil {
			t.Fatalf("new line item: %v", err)
		}
		items = append(items, item)
		ids = append(ids, id)
	}
	summary := ComputeSummary(items, NewSelection(ids...), nil, RewardUsage{}, DeliveryPolicy{})
	want := MaxUnitPrice * MaxQuantity * 500
	if summary.TotalCurrentPrice != want || summary.FinalTotal != want {
		t.Fatalf("expected exact total %d, got %+v", want, summary)
	}
}

func randomSnapshot(rng *rand.Rand) ([]LineItem, SelectionSet, *Coupon, RewardUsage, DeliveryPolicy) {
	n := rng.Intn(5)
	items := make([]LineItem, 0, n)
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		unit := Money(rng.Intn(50_000))
		original := unit + Money(rng.Intn(10_000))
		id := string(rune('a' + i))
		items = append(items, LineItem{ID: id, UnitPrice: unit, OriginalUnitPrice: original, Quantity: 1 + rng.Intn(4)})
		if rng.Intn(3) > 0 {
			ids = append(ids, id)
		}
	}
	var coupon *Coupon
	switch rng.Intn(3) {
	case 1:
		coupon = &Coupon{Discount: PercentOff{Rate: decimal.NewFromInt(int64(rng.Intn(150) - 20))}}
	case 2:
		coupon = &Coupon{Discount: AmountOff{Amount: Money(rng.Intn(100_000))}, MinOrderAmount: moneyPtr(Money(rng.Intn(50_000)))}
	}
	reward := RewardUsage{Requested: Money(rng.Intn(80_000)), Available: Money(rng.Intn(80_000))}
	policy := DeliveryPolicy{Fee: Money(rng.Intn(5_000))}
	if rng.Intn(2) == 0 {
		policy.FreeShippingThreshold = moneyPtr(Money(rng.Intn(100_000)))
	}
	return items, NewSelection(ids...), coupon, reward, policy
}

func TestComputeSummaryProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		items, selected, coupon, reward, policy := randomSnapshot(rng)
		summary := ComputeSummary(items, selected, coupon, reward, policy)

		if summary.FinalTotal < 0 {
			t.Fatalf("negative total: %+v", summary)
		}
		if summary.TotalOriginalPrice < summary.TotalCurrentPrice {
			t.Fatalf("original below current: %+v", summary)
		}
		if summary.RewardDiscountAmount > reward.Available {
			t.Fatalf("reward exceeds balance: %+v", summary)
		}
		if summary.RewardDiscountAmount > summary.TotalCurrentPrice-summary.CouponDiscountAmount {
			t.Fatalf("reward exceeds remaining price: %+v", summary)
		}
		if coupon != nil && coupon.MinOrderAmount != nil && summary.TotalCurrentPrice < *coupon.MinOrderAmount && summary.CouponDiscountAmount != 0 {
			t.Fatalf("coupon applied below minimum: %+v", summary)
		}
		if policy.FreeShippingThreshold != nil {
			waived := summary.DeliveryFee == 0
			met := summary.TotalCurrentPrice >= *policy.FreeShippingThreshold
			if policy.Fee > 0 && waived != met {
				t.Fatalf("free shipping mismatch: %+v threshold %d", summary, *policy.FreeShippingThreshold)
			}
		}
		if again := ComputeSummary(items, selected, coupon, reward, policy); again != summary {
			t.Fatalf("not idempotent: %+v vs %+v", summary, again)
		}

		more := reward
		more.Requested += Money(rng.Intn(10_000))
		if bigger := ComputeSummary(items, selected, coupon, more, policy); bigger.FinalTotal > summary.FinalTotal {
			t.Fatalf("larger reward raised total: %d > %d", bigger.FinalTotal, summary.FinalTotal)
		}
	}
}
