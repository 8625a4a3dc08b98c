package table

import (
	"context"
	"strings"
	"time"

	dberrors "github.com/relvault/relvault/core/errors"
	"github.com/relvault/relvault/internal/logging"

	"github.com/google/uuid"
)

const (
	maxLockRetries = 3
	baseBackoff    = 100 * time.Millisecond
	maxBackoffCap  = time.Second
)

// ensureOperationID returns ctx unchanged if it already carries an
// operation ID, otherwise tags it with a fresh one so that a single
// façade call's statement prepare, execution, and any pool acquire it
// triggers can be correlated in log output.
func ensureOperationID(ctx context.Context) context.Context {
	if logging.OperationID(ctx) != "" {
		return ctx
	}
	return logging.WithOperationID(ctx, uuid.NewString())
}

// isLockedError reports whether err is the engine's "database is locked"
// failure, the only failure §4.4 retries automatically.
func isLockedError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// withLockRetry runs fn, retrying up to maxLockRetries times with
// exponential backoff (100ms * 2^n, capped at 1s) when the engine
// reports a lock contention failure. Any other failure propagates
// immediately, per §4.4 and §5. On success it logs the completed query
// via logging.Query, tagged with ctx's operation ID; fn reports the
// number of rows the operation touched.
func (t *Table) withLockRetry(ctx context.Context, op string, fn func() (int, error)) error {
	start := time.Now()
	opID := logging.OperationID(ctx)

	var lastErr error
	for attempt := 0; attempt <= maxLockRetries; attempt++ {
		rows, err := fn()
		if err == nil {
			logging.Query(t.schema.Name, op, time.Since(start), rows, "operation_id", opID)
			return nil
		}
		if !isLockedError(err) {
			return err
		}
		lastErr = err
		if attempt == maxLockRetries {
			break
		}
		backoff := baseBackoff * (1 << attempt)
		if backoff > maxBackoffCap {
			backoff = maxBackoffCap
		}
		logging.RetryEvent(op, attempt+1, backoff, "error", err.Error(), "operation_id", opID)
		time.Sleep(backoff)
	}
	return &dberrors.EngineLockedError{Operation: op, Attempts: maxLockRetries + 1, Err: lastErr}
}
