package utils

import (
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

const (
	mysqlErrLockDeadlock    = 1213
	mysqlErrLockWaitTimeout = 1205
)

// IsRetryableConflict reports whether err is a transient MySQL locking failure
// (deadlock victim or lock wait timeout) worth retrying with a fresh transaction.
func IsRetryableConflict(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrLockDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout
	}
	return false
}

// WithConflictRetry runs op, retrying on transient locking failures with
// exponential backoff. op must be safe to re-run from scratch (it should open
// its own transaction). After maxAttempts the last error is wrapped in a
// ConcurrencyConflictError.
func WithConflictRetry(logger *logrus.Logger, maxAttempts int, op func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !IsRetryableConflict(err) {
			return err
		}
		if attempt < maxAttempts {
			sleep := 50 * time.Millisecond * time.Duration(1<<(attempt-1))
			logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"sleep":   sleep.String(),
			}).Warn("retrying after lock conflict: " + err.Error())
			time.Sleep(sleep)
		}
	}
	return &ConcurrencyConflictError{Attempts: maxAttempts, Err: err}
}
