// Package resilience guards classifier calls with a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/llm-smart-labels/internal/config"
	"github.com/mikey/llm-smart-labels/internal/core"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerClassifier fails fast while the wrapped classifier keeps failing.
// An open circuit surfaces as an ordinary classification error.
type BreakerClassifier struct {
	next   core.Classifier
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakerClassifier wraps next in a circuit breaker named name
func NewBreakerClassifier(name string, next core.Classifier, cfg config.BreakerConfig, logger *zap.Logger) *BreakerClassifier {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// a caller giving up is not a provider failure
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Classifier circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &BreakerClassifier{
		next:   next,
		cb:     gobreaker.NewCircuitBreaker(settings),
		logger: logger,
	}
}

// Classify runs the wrapped classifier inside the breaker
func (b *BreakerClassifier) Classify(ctx context.Context, req *core.ClassificationRequest) (map[string][]string, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Classify(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("classifier unavailable: %w", err)
		}
		return nil, err
	}

	out, _ := result.(map[string][]string)
	return out, nil
}

// State reports the current breaker state
func (b *BreakerClassifier) State() gobreaker.State {
	return b.cb.State()
}
