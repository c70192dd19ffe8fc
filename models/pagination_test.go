package models

import "testing"

func TestCompositeCursorRoundTrip(t *testing.T) {
	encoded := EncodeCompositeCursor("2024-03-01 10:00:00.000000", 42)
	value, id := DecodeCompositeCursor(&encoded)
	if value != "2024-03-01 10:00:00.000000" || id != 42 {
		t.Fatalf("round trip = (%q, %d)", value, id)
	}
}

func TestDecodeCompositeCursorGarbage(t *testing.T) {
	for _, bad := range []string{"", "not base64 !!!", "bm8gcGlwZQ==", "YXxub3RhbnVtYmVy"} {
		s := bad
		value, id := DecodeCompositeCursor(&s)
		if value != "" || id != 0 {
			t.Errorf("DecodeCompositeCursor(%q) = (%q, %d), want empty", bad, value, id)
		}
	}
	if value, id := DecodeCompositeCursor(nil); value != "" || id != 0 {
		t.Errorf("DecodeCompositeCursor(nil) = (%q, %d), want empty", value, id)
	}
}
