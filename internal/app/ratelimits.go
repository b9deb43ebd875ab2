package app

import (
	"context"
)

// AcquireRateLimits applies the configured per-client limits to one
// synthesis request. The returned release func is never nil and must be
// called once the request completes.
func (c *Container) AcquireRateLimits(ctx context.Context, clientKey string, textChars int) (func(), error) {
	noop := func() {}
	if c == nil || c.RateLimiter == nil {
		return noop, nil
	}
	key := "client:" + clientKey
	cfg := c.DefaultLimit

	if err := c.RateLimiter.Allow(ctx, key, cfg); err != nil {
		return noop, err
	}
	// Characters are charged only for requests the request limits admit.
	if err := c.RateLimiter.CharacterAllowance(ctx, key, textChars, cfg); err != nil {
		c.RateLimiter.Release(context.WithoutCancel(ctx), key, cfg)
		return noop, err
	}
	return func() {
		c.RateLimiter.Release(context.WithoutCancel(ctx), key, cfg)
	}, nil
}
