package quote

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-pricing/internal/common"
)

// Store keeps issued quotes in Redis for a bounded time so checkout can charge the quoted amount.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewStore constructs a quote store. A nil client disables storage.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Store{client: client, ttl: ttl, prefix: "quote:"}
}

// Enabled reports whether a backing client is configured.
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// Save stores the result under its quote id.
func (s *Store) Save(ctx context.Context, res Result) error {
	if !s.Enabled() || res.QuoteID == "" {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+res.QuoteID, data, s.ttl).Err()
}

// Get loads a stored quote. It reports whether the quote existed.
func (s *Store) Get(ctx context.Context, id string) (Result, bool, error) {
	if !s.Enabled() || strings.TrimSpace(id) == "" {
		return Result{}, false, nil
	}
	data, err := s.client.Get(ctx, s.prefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Result{}, false, nil
		}
		return Result{}, false, err
	}
	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return Result{}, false, err
	}
	return res, true, nil
}

// idempotencyClaim is the value recorded against an idempotency key.
type idempotencyClaim struct {
	QuoteID     string `json:"quoteId"`
	Fingerprint string `json:"fingerprint"`
}

// claim records quoteID against an idempotency key. When the key was already claimed the
// earlier claim is returned with claimed=false.
func (s *Store) claim(ctx context.Context, key, quoteID, fingerprint string) (existing idempotencyClaim, claimed bool, err error) {
	if !s.Enabled() || key == "" {
		return idempotencyClaim{}, true, nil
	}
	redisKey := "idem:" + common.Sha256Hex(key)
	payload, err := json.Marshal(idempotencyClaim{QuoteID: quoteID, Fingerprint: common.Sha256Hex(fingerprint)})
	if err != nil {
		return idempotencyClaim{}, false, err
	}
	ok, err := s.client.SetNX(ctx, redisKey, payload, s.ttl).Result()
	if err != nil {
		return idempotencyClaim{}, false, err
	}
	if ok {
		return idempotencyClaim{}, true, nil
	}
	data, err := s.client.Get(ctx, redisKey).Bytes()
	if err != nil {
		return idempotencyClaim{}, false, err
	}
	if err := json.Unmarshal(data, &existing); err != nil {
		return idempotencyClaim{}, false, err
	}
	return existing, false, nil
}

// Release drops an idempotency claim so a failed request can be retried.
func (s *Store) Release(ctx context.Context, key string) error {
	if !s.Enabled() || key == "" {
		return nil
	}
	return s.client.Del(ctx, "idem:"+common.Sha256Hex(key)).Err()
}

func (c idempotencyClaim) matches(fingerprint string) bool {
	return c.Fingerprint == common.Sha256Hex(fingerprint)
}
