// Package util provides shared utility functions for dbsnap.
package util

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
)

// ErrLockBusy is returned by a lock attempt that found the lock held.
var ErrLockBusy = errors.New("lock is held")

// LockRetryOptions returns retry options for polling an advisory lock.
// Attempts continue with backoff (100ms doubling up to 1s) until the
// context given to Retry is done; the context error is returned together
// with the last attempt's.
func LockRetryOptions() []retry.Option {
	return []retry.Option{
		retry.Attempts(0),
		retry.Delay(100 * time.Millisecond),
		retry.MaxDelay(1 * time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsLockBusy),
		retry.WrapContextErrorWithLastError(true),
	}
}

// Retry executes fn with retry logic under ctx.
// Returns the last error if all attempts fail.
func Retry(ctx context.Context, fn func() error, opts ...retry.Option) error {
	return retry.Do(fn, append(opts, retry.Context(ctx))...)
}

// IsLockBusy returns true if the error indicates a held lock.
func IsLockBusy(err error) bool {
	return errors.Is(err, ErrLockBusy)
}
