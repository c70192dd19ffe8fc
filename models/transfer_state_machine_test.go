package models

import "testing"

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from    TransferStatus
		to      TransferStatus
		allowed bool
		noop    bool
	}{
		{TransferStatusPending, TransferStatusInTransit, true, false},
		{TransferStatusPending, TransferStatusCancelled, true, false},
		{TransferStatusPending, TransferStatusCompleted, false, false},
		{TransferStatusInTransit, TransferStatusCompleted, true, false},
		{TransferStatusInTransit, TransferStatusCancelled, true, false},
		{TransferStatusInTransit, TransferStatusPending, false, false},
		{TransferStatusCompleted, TransferStatusCancelled, false, false},
		{TransferStatusCompleted, TransferStatusInTransit, false, false},
		{TransferStatusCancelled, TransferStatusInTransit, false, false},
		{TransferStatusCancelled, TransferStatusCompleted, false, false},

		// re-applying the current state is an idempotent no-op
		{TransferStatusPending, TransferStatusPending, true, true},
		{TransferStatusInTransit, TransferStatusInTransit, true, true},
		{TransferStatusCompleted, TransferStatusCompleted, true, true},
		{TransferStatusCancelled, TransferStatusCancelled, true, true},
	}

	for _, tc := range cases {
		allowed, noop := CanTransition(tc.from, tc.to)
		if allowed != tc.allowed || noop != tc.noop {
			t.Errorf("CanTransition(%s, %s) = (%v, %v), want (%v, %v)",
				tc.from, tc.to, allowed, noop, tc.allowed, tc.noop)
		}
	}
}

func TestParseTransferStatus(t *testing.T) {
	for _, valid := range []string{"pending", "in_transit", "completed", "cancelled"} {
		status, err := ParseTransferStatus(valid)
		if err != nil {
			t.Fatalf("ParseTransferStatus(%q): %v", valid, err)
		}
		if string(status) != valid {
			t.Fatalf("ParseTransferStatus(%q) = %q", valid, status)
		}
	}
	if _, err := ParseTransferStatus("shipped"); err == nil {
		t.Fatal("ParseTransferStatus accepted an unknown status")
	}
}
