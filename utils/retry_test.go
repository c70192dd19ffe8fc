package utils

import (
	"errors"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
)

func TestWithConflictRetryNonRetryable(t *testing.T) {
	logger := logrus.New()
	boom := errors.New("boom")
	attempts := 0

	err := WithConflictRetry(logger, 3, func() error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (non-retryable errors fail fast)", attempts)
	}
}

func TestWithConflictRetryRecoversFromDeadlock(t *testing.T) {
	logger := logrus.New()
	attempts := 0

	err := WithConflictRetry(logger, 3, func() error {
		attempts++
		if attempts < 2 {
			return &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestWithConflictRetryExhaustion(t *testing.T) {
	logger := logrus.New()
	attempts := 0

	err := WithConflictRetry(logger, 3, func() error {
		attempts++
		return &mysql.MySQLError{Number: 1205, Message: "Lock wait timeout exceeded"}
	})
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
	var conflict *ConcurrencyConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %T, want ConcurrencyConflictError", err)
	}
	if conflict.Attempts != 3 {
		t.Fatalf("conflict.Attempts = %d, want 3", conflict.Attempts)
	}
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) || mysqlErr.Number != 1205 {
		t.Fatalf("wrapped error lost the MySQL cause: %v", err)
	}
}

func TestIsRetryableConflict(t *testing.T) {
	if !IsRetryableConflict(&mysql.MySQLError{Number: 1213}) {
		t.Fatal("deadlock not classified as retryable")
	}
	if !IsRetryableConflict(&mysql.MySQLError{Number: 1205}) {
		t.Fatal("lock wait timeout not classified as retryable")
	}
	if IsRetryableConflict(&mysql.MySQLError{Number: 1062}) {
		t.Fatal("duplicate key wrongly classified as retryable")
	}
	if IsRetryableConflict(errors.New("plain")) {
		t.Fatal("plain error wrongly classified as retryable")
	}
}
