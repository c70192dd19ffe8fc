package config

import (
	"os"
	"strings"
)

// AllowSaleWithoutStock controls whether a sale reservation may be taken past
// the on-hand quantity (back-order mode). Under the flag, available may go
// negative on the sales side. Transfers are unaffected: they always require
// on-hand availability at the source.
//
// Set via env:
// - ALLOW_SALE_WITHOUT_STOCK=true
func AllowSaleWithoutStock() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ALLOW_SALE_WITHOUT_STOCK")))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// StrictTransferImmutability enables fintech-grade guardrails: a transfer cannot be
// edited after creation; to change quantity or route, cancel it and create a new one.
//
// Set via env:
// - STRICT_TRANSFER_IMMUTABLE=true (default on; set to false only for dev fixups)
func StrictTransferImmutability() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("STRICT_TRANSFER_IMMUTABLE")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
