package quote

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/toko-pricing/internal/coupon"
	"github.com/noah-isme/toko-pricing/internal/obs"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

var (
	// ErrQuoteNotFound is returned when a stored quote is missing or expired.
	ErrQuoteNotFound = errors.New("quote not found")
	// ErrIdempotencyConflict is returned when an idempotency key is reused with a different body.
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different request")
	// ErrQuoteInProgress is returned when a replayed key has not produced a stored quote yet.
	ErrQuoteInProgress = errors.New("quote for idempotency key still in progress")
)

// CouponStatus describes how the requested coupon was treated.
type CouponStatus string

const (
	CouponNone           CouponStatus = "none"
	CouponApplied        CouponStatus = "applied"
	CouponNotFound       CouponStatus = "not_found"
	CouponInactive       CouponStatus = "inactive"
	CouponExpired        CouponStatus = "expired"
	CouponMinOrderNotMet CouponStatus = "min_order_not_met"
	CouponNoDiscount     CouponStatus = "no_discount"
)

const defaultCouponParallel = 4

// CouponSource resolves coupon codes into catalog rules.
type CouponSource interface {
	Lookup(code string) (coupon.Rule, error)
	Active(now time.Time) []coupon.Rule
}

// CouponResult reports the coupon outcome of a quote.
type CouponResult struct {
	Code   string       `json:"code,omitempty"`
	Status CouponStatus `json:"status"`
}

// Result is a priced quote.
type Result struct {
	QuoteID  string               `json:"quoteId"`
	Summary  pricing.OrderSummary `json:"summary"`
	Coupon   CouponResult         `json:"coupon"`
	Currency string               `json:"currency"`
	IssuedAt time.Time            `json:"issuedAt"`
	Replayed bool                 `json:"replayed,omitempty"`
}

// CouponOption is the outcome of applying one catalog coupon to a snapshot.
type CouponOption struct {
	Code           string        `json:"code"`
	Kind           string        `json:"kind"`
	Description    string        `json:"description,omitempty"`
	DiscountAmount pricing.Money `json:"discountAmount"`
	FinalTotal     pricing.Money `json:"finalTotal"`
}

// Applicable lists the catalog coupons that discount a snapshot, best first.
type Applicable struct {
	Coupons []CouponOption `json:"coupons"`
	Best    *CouponOption  `json:"best,omitempty"`
}

// Service prices cart snapshots.
type Service struct {
	Coupons           CouponSource
	Delivery          pricing.DeliveryPolicy
	Currency          string
	Store             *Store
	Logger            *zerolog.Logger
	Now               func() time.Time
	CouponConcurrency int
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) log() *zerolog.Logger {
	if s.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return s.Logger
}

// Quote computes the order summary for the snapshot and stores it for later retrieval.
func (s *Service) Quote(ctx context.Context, in Input) (Result, error) {
	ctx, span := obs.Tracer("quote").Start(ctx, "quote.compute")
	defer span.End()

	snap, err := in.snapshot(s.Delivery)
	if err != nil {
		obs.IncQuote("invalid")
		span.SetStatus(codes.Error, "invalid input")
		return Result{}, err
	}

	quoteID := uuid.NewString()
	if in.IdempotencyKey != "" {
		replay, err := s.replay(ctx, in, quoteID)
		if err != nil || replay != nil {
			if err != nil {
				span.RecordError(err)
				return Result{}, err
			}
			obs.IncQuote("replayed")
			return *replay, nil
		}
	}

	c, couponResult := s.resolveCoupon(in.CouponCode, snap.inline)
	summary := pricing.ComputeSummary(snap.items, snap.selected, c, snap.reward, snap.delivery)
	if couponResult.Status == CouponApplied && !summary.CouponApplied {
		couponResult.Status = CouponNoDiscount
		if !c.Eligible(summary.TotalCurrentPrice) {
			couponResult.Status = CouponMinOrderNotMet
		}
	}

	res := Result{
		QuoteID:  quoteID,
		Summary:  summary,
		Coupon:   couponResult,
		Currency: s.Currency,
		IssuedAt: s.now().UTC(),
	}
	if s.Store.Enabled() {
		if err := s.Store.Save(ctx, res); err != nil {
			obs.IncQuoteStore("save", "error")
			s.log().Warn().Err(err).Str("quote_id", quoteID).Msg("store quote")
			if relErr := s.Store.Release(ctx, in.IdempotencyKey); relErr != nil {
				s.log().Warn().Err(relErr).Msg("release idempotency key")
			}
		} else {
			obs.IncQuoteStore("save", "ok")
		}
	}

	span.SetAttributes(
		attribute.String("quote.id", quoteID),
		attribute.Int("quote.selected_count", summary.SelectedCount),
		attribute.Int64("quote.final_total", summary.FinalTotal),
		attribute.String("quote.coupon_status", string(couponResult.Status)),
	)
	obs.IncQuote("ok")
	obs.IncCouponOutcome(string(couponResult.Status))
	obs.ObserveFinalTotal(summary.FinalTotal)
	return res, nil
}

// replay returns the stored result for a previously seen idempotency key, or nil when the
// key is new and has been claimed for quoteID.
func (s *Service) replay(ctx context.Context, in Input, quoteID string) (*Result, error) {
	existing, claimed, err := s.Store.claim(ctx, in.IdempotencyKey, quoteID, in.fingerprint())
	if err != nil {
		obs.IncQuoteStore("claim", "error")
		s.log().Warn().Err(err).Msg("claim idempotency key")
		return nil, nil
	}
	if claimed {
		return nil, nil
	}
	if !existing.matches(in.fingerprint()) {
		return nil, ErrIdempotencyConflict
	}
	res, ok, err := s.Store.Get(ctx, existing.QuoteID)
	if err != nil {
		obs.IncQuoteStore("get", "error")
		return nil, err
	}
	if !ok {
		return nil, ErrQuoteInProgress
	}
	res.Replayed = true
	return &res, nil
}

func (s *Service) resolveCoupon(code string, inline *pricing.Coupon) (*pricing.Coupon, CouponResult) {
	if inline != nil {
		return inline, CouponResult{Code: inline.Code, Status: CouponApplied}
	}
	code = coupon.NormalizeCode(code)
	if code == "" {
		return nil, CouponResult{Status: CouponNone}
	}
	if s.Coupons == nil {
		return nil, CouponResult{Code: code, Status: CouponNotFound}
	}
	rule, err := s.Coupons.Lookup(code)
	if err != nil {
		return nil, CouponResult{Code: code, Status: CouponNotFound}
	}
	if err := rule.Validate(s.now()); err != nil {
		status := CouponExpired
		if errors.Is(err, coupon.ErrCouponInactive) {
			status = CouponInactive
		}
		return nil, CouponResult{Code: rule.Code, Status: status}
	}
	c, err := rule.Coupon()
	if err != nil {
		s.log().Error().Err(err).Str("coupon", rule.Code).Msg("catalog rule rejected by pricing")
		return nil, CouponResult{Code: rule.Code, Status: CouponNotFound}
	}
	return c, CouponResult{Code: rule.Code, Status: CouponApplied}
}

// Get returns a stored quote by id.
func (s *Service) Get(ctx context.Context, id string) (Result, error) {
	res, ok, err := s.Store.Get(ctx, id)
	if err != nil {
		obs.IncQuoteStore("get", "error")
		return Result{}, err
	}
	if !ok {
		obs.IncQuoteStore("get", "miss")
		return Result{}, ErrQuoteNotFound
	}
	obs.IncQuoteStore("get", "hit")
	return res, nil
}

// ApplicableCoupons evaluates every active catalog coupon against the snapshot and
// returns those that produce a discount, lowest final total first.
func (s *Service) ApplicableCoupons(ctx context.Context, in Input) (Applicable, error) {
	ctx, span := obs.Tracer("quote").Start(ctx, "quote.applicable_coupons")
	defer span.End()

	in.CouponCode = ""
	in.Coupon = nil
	snap, err := in.snapshot(s.Delivery)
	if err != nil {
		return Applicable{}, err
	}
	if s.Coupons == nil {
		return Applicable{Coupons: []CouponOption{}}, nil
	}
	rules := s.Coupons.Active(s.now())
	options := make([]*CouponOption, len(rules))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.couponConcurrency())
	for i, rule := range rules {
		i, rule := i, rule
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := rule.Coupon()
			if err != nil {
				return nil
			}
			summary := pricing.ComputeSummary(snap.items, snap.selected, c, snap.reward, snap.delivery)
			if !summary.CouponApplied {
				return nil
			}
			options[i] = &CouponOption{
				Code:           rule.Code,
				Kind:           string(c.Discount.Kind()),
				Description:    rule.Description,
				DiscountAmount: summary.CouponDiscountAmount,
				FinalTotal:     summary.FinalTotal,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Applicable{}, err
	}

	out := Applicable{Coupons: make([]CouponOption, 0, len(options))}
	for _, opt := range options {
		if opt != nil {
			out.Coupons = append(out.Coupons, *opt)
		}
	}
	sort.SliceStable(out.Coupons, func(i, j int) bool {
		if out.Coupons[i].FinalTotal != out.Coupons[j].FinalTotal {
			return out.Coupons[i].FinalTotal < out.Coupons[j].FinalTotal
		}
		return out.Coupons[i].Code < out.Coupons[j].Code
	})
	if len(out.Coupons) > 0 {
		best := out.Coupons[0]
		out.Best = &best
	}
	span.SetAttributes(attribute.Int("quote.applicable_coupons", len(out.Coupons)))
	return out, nil
}

// ActiveCoupons lists catalog coupons that can be redeemed now.
func (s *Service) ActiveCoupons() []coupon.Rule {
	if s.Coupons == nil {
		return []coupon.Rule{}
	}
	return s.Coupons.Active(s.now())
}

func (s *Service) couponConcurrency() int {
	if s.CouponConcurrency <= 0 {
		return defaultCouponParallel
	}
	return s.CouponConcurrency
}
