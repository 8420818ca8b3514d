package game

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	verificationCacheSize = 1024
	verificationCacheTTL  = 10 * time.Minute
)

// verificationCache keeps replay results for settled rounds, whose seeds and
// outcome no longer change
type verificationCache struct {
	lru *expirable.LRU[string, Verification]
}

func newVerificationCache(size int, ttl time.Duration) *verificationCache {
	return &verificationCache{
		lru: expirable.NewLRU[string, Verification](size, nil, ttl),
	}
}

// Get returns a copy of the cached verification for roundID
func (c *verificationCache) Get(roundID string) (*Verification, bool) {
	v, ok := c.lru.Get(roundID)
	if !ok {
		return nil, false
	}
	return &v, true
}

func (c *verificationCache) Set(v *Verification) {
	c.lru.Add(v.RoundID, *v)
}
