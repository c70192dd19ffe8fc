package utils

import (
	"errors"
	"testing"
)

func TestNewValidationErrorKeepsVerbatimMessage(t *testing.T) {
	// Values taken from user input can contain percent signs; they must not
	// be interpreted as format verbs when forwarded with "%s".
	raw := errors.New("a variant with sku '100% Algodón' already exists")
	err := NewValidationError("%s", raw.Error())

	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("NewValidationError returned %T, want *ValidationError", err)
	}
	if validation.Reason != raw.Error() {
		t.Fatalf("reason = %q, want %q", validation.Reason, raw.Error())
	}
}

func TestNewValidationErrorFormats(t *testing.T) {
	err := NewValidationError("quantity must be at most %d", 99)
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("NewValidationError returned %T, want *ValidationError", err)
	}
	if validation.Reason != "quantity must be at most 99" {
		t.Fatalf("reason = %q", validation.Reason)
	}
}
