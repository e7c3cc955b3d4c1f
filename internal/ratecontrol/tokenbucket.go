// Package ratecontrol implements the three-layer flow control described in
// spec §4.6: a per-packet token bucket, an adaptive batch-size throttler,
// and a per-target concurrency gate, plus the optional ICMP-driven backoff.
package ratecontrol

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/reconwire/scancore/internal/scanerrors"
)

// TokenBucket gates packet admission (Layer 1). It wraps
// golang.org/x/time/rate the same way the bruteforce/VPN-style tools in the
// corpus use it for per-connection pacing, sized per spec §4.6: capacity
// max(100, rate/10), refill at max_rate_pps.
type TokenBucket struct {
	limiter *rate.Limiter
	enabled bool
}

// NewTokenBucket builds a token bucket for the given pps cap. A cap of 0
// disables the layer entirely (Layer 1 becomes a no-op), matching spec §4.6
// "optional, on when max_rate_pps set" — except max_rate_pps == 0 combined
// with an explicit request to enable rate limiting is a Config error (spec
// §8), which callers must check before construction via NewEnabledTokenBucket.
func NewTokenBucket(maxRatePPS uint64) *TokenBucket {
	if maxRatePPS == 0 {
		return &TokenBucket{enabled: false}
	}
	burst := int(maxRatePPS / 10)
	if burst < 100 {
		burst = 100
	}
	return &TokenBucket{
		limiter: rate.NewLimiter(rate.Limit(maxRatePPS), burst),
		enabled: true,
	}
}

// NewEnabledTokenBucket is used when the operator explicitly turned on
// rate limiting; a zero pps is rejected per spec §8's boundary case.
func NewEnabledTokenBucket(maxRatePPS uint64) (*TokenBucket, error) {
	if maxRatePPS == 0 {
		return nil, scanerrors.New(scanerrors.KindConfig, "max_rate_pps must be > 0 when rate limiting is enabled")
	}
	return NewTokenBucket(maxRatePPS), nil
}

// Acquire blocks (cancellation-aware) until one token is available, or
// returns immediately if the bucket is disabled.
func (b *TokenBucket) Acquire(ctx context.Context) error {
	if !b.enabled {
		return nil
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return scanerrors.Wrap(err, scanerrors.KindCancelled, "rate limit wait cancelled")
	}
	return nil
}

// Enabled reports whether the token bucket is gating admission.
func (b *TokenBucket) Enabled() bool { return b.enabled }
