package parser

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"shipdecl/internal/port"
)

// circuitState tracks rate-limit backoff for a single provider.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackExtractor tries providers in order, skipping those whose circuit is open
// after a rate limit. It implements port.PageExtractor.
type FallbackExtractor struct {
	providers []port.PageExtractor
	circuits  []*circuitState
	names     []string
	now       func() time.Time
}

// NewFallbackExtractor creates a FallbackExtractor from an ordered list of providers and their names.
func NewFallbackExtractor(providers []port.PageExtractor, names []string) *FallbackExtractor {
	circuits := make([]*circuitState, len(providers))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &FallbackExtractor{
		providers: providers,
		circuits:  circuits,
		names:     names,
		now:       time.Now,
	}
}

func (f *FallbackExtractor) Extract(ctx context.Context, input port.PageInput) (*port.PageOutput, error) {
	now := f.now()
	var lastErr error
	allRateLimited := true
	var earliestReset time.Time

	for i, p := range f.providers {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			log.Printf("parser.FallbackExtractor: skipping %s (circuit open until %s)", f.names[i], resetAt.Format(time.RFC3339))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		out, err := p.Extract(ctx, input)
		if err == nil {
			return out, nil
		}

		log.Printf("parser.FallbackExtractor: %s failed on page %d: %v", f.names[i], input.PageNumber, err)
		lastErr = err

		var rlErr *RateLimitError
		if errors.As(err, &rlErr) {
			resetAt := now.Add(rlErr.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allRateLimited = false
		}
	}

	if lastErr == nil || allRateLimited {
		retryAfter := earliestReset.Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return nil, NewRateLimitError("all", fmt.Errorf("all providers rate limited"), int(retryAfter.Seconds()))
	}

	return nil, fmt.Errorf("all providers failed: %w", lastErr)
}
