package coupon

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Catalog is an in-memory, concurrency-safe registry of coupon rules keyed by code.
type Catalog struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

// NewCatalog builds a catalog from the provided rules.
func NewCatalog(rules []Rule) (*Catalog, error) {
	c := &Catalog{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		if err := c.Put(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadCatalog reads a JSON array of rules from path. An empty path yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read coupon catalog: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("decode coupon catalog: %w", err)
	}
	return NewCatalog(rules)
}

// Put validates and stores a rule, replacing any rule with the same code.
func (c *Catalog) Put(r Rule) error {
	r.Code = NormalizeCode(r.Code)
	if err := r.Check(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules[r.Code] = r
	return nil
}

// Lookup returns the rule registered for code.
func (c *Catalog) Lookup(code string) (Rule, error) {
	if c == nil {
		return Rule{}, ErrCouponNotFound
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rules[NormalizeCode(code)]
	if !ok {
		return Rule{}, ErrCouponNotFound
	}
	return r, nil
}

// Active lists rules whose validity window contains now, ordered by code.
func (c *Catalog) Active(now time.Time) []Rule {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	out := make([]Rule, 0, len(c.rules))
	for _, r := range c.rules {
		if r.Validate(now) == nil {
			out = append(out, r)
		}
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Len returns the number of registered rules.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}
