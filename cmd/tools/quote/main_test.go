package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const scenarioInput = `{
  "items": [
    {"id": "item-1", "unitPrice": 32000, "originalUnitPrice": 40000, "quantity": 2},
    {"id": "item-2", "unitPrice": 30000, "originalUnitPrice": 35000, "quantity": 3}
  ],
  "selectedIds": ["item-1", "item-2"],
  "couponCode": "welcome10"
}`

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coupons.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
  {"code": "WELCOME10", "kind": "percent", "value": "10", "minOrderAmount": 100000},
  {"code": "FLAT5000", "kind": "amount", "value": 5000}
]`), 0o600))
	return path
}

func TestRunQuote(t *testing.T) {
	t.Setenv("DELIVERY_FEE", "3000")
	t.Setenv("FREE_SHIPPING_THRESHOLD", "")
	t.Setenv("REDIS_URL", "redis://should-not-be-used:6379")

	var out bytes.Buffer
	err := run(context.Background(), "", writeCatalog(t), false, false, strings.NewReader(scenarioInput), &out, zerolog.Nop())
	require.NoError(t, err)

	var res struct {
		QuoteID string `json:"quoteId"`
		Summary struct {
			CouponDiscountAmount int64 `json:"couponDiscountAmount"`
			FinalTotal           int64 `json:"finalTotal"`
		} `json:"summary"`
		Coupon struct {
			Status string `json:"status"`
		} `json:"coupon"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.NotEmpty(t, res.QuoteID)
	require.Equal(t, int64(15_400), res.Summary.CouponDiscountAmount)
	require.Equal(t, int64(141_600), res.Summary.FinalTotal)
	require.Equal(t, "applied", res.Coupon.Status)
}

func TestRunApplicableFromFile(t *testing.T) {
	t.Setenv("DELIVERY_FEE", "3000")
	t.Setenv("FREE_SHIPPING_THRESHOLD", "")
	inPath := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(inPath, []byte(scenarioInput), 0o600))

	var out bytes.Buffer
	err := run(context.Background(), inPath, writeCatalog(t), true, true, strings.NewReader(""), &out, zerolog.Nop())
	require.NoError(t, err)
	require.Contains(t, out.String(), "\n  ")

	var res struct {
		Best struct {
			Code string `json:"code"`
		} `json:"best"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	require.Equal(t, "WELCOME10", res.Best.Code)
}

func TestRunRejectsBadInput(t *testing.T) {
	err := run(context.Background(), "", "", false, false, strings.NewReader("{"), &bytes.Buffer{}, zerolog.Nop())
	require.Error(t, err)
}
