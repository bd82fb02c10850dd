package provider

import (
	"context"
	"sync"
	"time"
)

// ExpirySkew token is dropped this long before the provider says it expires,
// capped at half the lifetime for short-lived tokens
const ExpirySkew = 60 * time.Second

// ExchangeFunc trade client credentials for a bearer token and its lifetime
type ExchangeFunc func(ctx context.Context) (token string, expiresIn time.Duration, err error)

// TokenCache 快取 provider access token，過期或失效時重新交換
type TokenCache struct {
	mu       sync.Mutex
	token    string
	expiry   time.Time
	exchange ExchangeFunc
	now      func() time.Time
}

// NewTokenCache create a TokenCache backed by exchange
func NewTokenCache(exchange ExchangeFunc) *TokenCache {
	return &TokenCache{
		exchange: exchange,
		now:      time.Now,
	}
}

// Token return the cached token while it is valid, otherwise exchange a new one.
// Concurrent callers wait on the same exchange.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.token != "" && now.Before(c.expiry) {
		return c.token, nil
	}

	token, expiresIn, err := c.exchange(ctx)
	if err != nil {
		c.token, c.expiry = "", time.Time{}
		return "", err
	}

	// expiresIn <= 0 時 token 只用這一次
	c.token = token
	c.expiry = now.Add(expiresIn - min(ExpirySkew, expiresIn/2))
	return token, nil
}

// Invalidate drop the cached token
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token, c.expiry = "", time.Time{}
	c.mu.Unlock()
}
