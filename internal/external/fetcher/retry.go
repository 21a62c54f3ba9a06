package fetcher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"schedparser/internal/config"
)

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent помечает ошибку, после которой повторять попытку бессмысленно
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// WithRetry выполняет функцию с retry логикой.
// MaxAttempts включает первую попытку; ошибки Permanent не повторяются.
func WithRetry(ctx context.Context, logger *zap.Logger, cfg config.RetryConfig, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		// Проверяем контекст перед каждой попыткой
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				logger.Debug("Function succeeded after retry",
					zap.Int("attempt", attempt+1),
					zap.Int("max_attempts", attempts))
			}
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return fmt.Errorf("permanent failure on attempt %d: %w", attempt+1, perm.err)
		}

		if attempt == attempts-1 {
			break
		}

		delay := backoff(cfg, attempt)
		logger.Debug("Function failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", attempts),
			zap.Duration("delay", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("function failed after %d attempts: %w", attempts, lastErr)
}

// backoff вычисляет задержку перед попыткой attempt+1
func backoff(cfg config.RetryConfig, attempt int) time.Duration {
	multiplier := cfg.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(multiplier, float64(attempt)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	return delay
}
