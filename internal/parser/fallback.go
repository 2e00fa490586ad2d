package parser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"labdigitizer/internal/port"
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

// FallbackOracle tries providers in order, skipping those with open circuits.
// Each provider gets a single attempt per call. It implements port.Oracle.
type FallbackOracle struct {
	oracles  []port.Oracle
	circuits []*circuitState
	names    []string
	logger   *zap.Logger
}

// NewFallbackOracle creates a FallbackOracle from an ordered list of oracles and their names.
func NewFallbackOracle(oracles []port.Oracle, names []string, logger *zap.Logger) *FallbackOracle {
	circuits := make([]*circuitState, len(oracles))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackOracle{
		oracles:  oracles,
		circuits: circuits,
		names:    names,
		logger:   logger,
	}
}

func (f *FallbackOracle) Complete(ctx context.Context, req port.OracleRequest) (*port.OracleResponse, error) {
	if len(f.oracles) == 0 {
		return nil, errors.New("no oracle providers configured")
	}

	now := time.Now()
	var lastErr error
	allRateLimited := true
	var earliestReset time.Time

	for i, o := range f.oracles {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			f.logger.Info("skipping oracle provider, circuit open",
				zap.String("provider", f.names[i]),
				zap.Time("reset_at", resetAt))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		out, err := o.Complete(ctx, req)
		if err == nil {
			return out, nil
		}

		f.logger.Warn("oracle provider failed", zap.String("provider", f.names[i]), zap.Error(err))
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
		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil || allRateLimited {
		// every provider was skipped or answered 429
		retryAfter := time.Until(earliestReset)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return nil, NewRateLimitError("all", fmt.Errorf("all oracle providers rate limited"), int(retryAfter.Seconds()))
	}

	return nil, fmt.Errorf("all oracle providers failed: %w", lastErr)
}
