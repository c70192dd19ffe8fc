package utils

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDecimal(t *testing.T) {
	d, err := ParseDecimal(" 12.5000 ")
	if err != nil {
		t.Fatalf("ParseDecimal: %v", err)
	}
	if !d.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("ParseDecimal = %s, want 12.5", d)
	}

	if _, err := ParseDecimal(""); err == nil {
		t.Fatal("ParseDecimal accepted empty string")
	}
	if _, err := ParseDecimal("12,5"); err == nil {
		t.Fatal("ParseDecimal accepted comma decimal")
	}
}

func TestDecimalOrZero(t *testing.T) {
	cases := map[string]string{
		"20":     "20",
		"-3.25":  "-3.25",
		"":       "0",
		"banana": "0",
		"12..5":  "0",
	}
	for input, want := range cases {
		got := DecimalOrZero(input)
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("DecimalOrZero(%q) = %s, want %s", input, got, want)
		}
	}
}

func TestIsValidEmail(t *testing.T) {
	if !IsValidEmail("owner@bodegas.gt") {
		t.Fatal("rejected a valid email")
	}
	for _, bad := range []string{"", "owner", "owner@", "@bodegas.gt", "owner@bodegas"} {
		if IsValidEmail(bad) {
			t.Errorf("accepted invalid email %q", bad)
		}
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 {
		t.Fatalf("UniqueSlice kept %d elements, want 3", len(got))
	}
	seen := map[int]bool{}
	for _, v := range got {
		if seen[v] {
			t.Fatalf("duplicate %d survived", v)
		}
		seen[v] = true
	}
}
