// internal/blockchain/solbc/retry.go
package solbc

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain/solbc/rpc"
)

// RetryPolicy - единственная политика повторов в движке.
// Применяется только к идемпотентным RPC-чтениям; отправка бандла никогда не повторяется.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultRetryPolicy returns the policy used when the config leaves retries unset.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxElapsed:      10 * time.Second,
	}
}

func (p RetryPolicy) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return b
}

// retryRead выполняет чтение с повторами; неповторяемые ошибки помечаются Permanent.
func retryRead[T any](ctx context.Context, policy RetryPolicy, logger *zap.Logger, method string, op func() (T, error)) (T, error) {
	operation := func() (T, error) {
		res, err := op()
		if err != nil && !rpc.IsRetryableError(err) {
			return res, backoff.Permanent(err)
		}
		return res, err
	}

	notify := func(err error, d time.Duration) {
		logger.Debug("Retrying RPC read", zap.String("method", method), zap.Error(err), zap.Duration("backoff", d))
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(policy.backOff()),
		backoff.WithNotify(notify),
	}
	if policy.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(policy.MaxAttempts))
	}
	if policy.MaxElapsed > 0 {
		opts = append(opts, backoff.WithMaxElapsedTime(policy.MaxElapsed))
	}

	return backoff.Retry(ctx, operation, opts...)
}
