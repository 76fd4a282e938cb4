package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-12,345", "-12.35", true},
		{"0", "0", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
			}
		}
	}
}

func TestParsePositiveAmount(t *testing.T) {
	if _, err := ParsePositiveAmount("10"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	for _, in := range []string{"0", "-1", "0.001"} {
		if _, err := ParsePositiveAmount(in); err == nil {
			t.Fatalf("%q expected error", in)
		}
	}
}

func TestParseRate(t *testing.T) {
	r, err := ParseRate("0.0067")
	if err != nil || r.String() != "0.0067" {
		t.Fatalf("expected 0.0067, got %s (err=%v)", r, err)
	}
	for _, in := range []string{"0", "-5", "x"} {
		if _, err := ParseRate(in); err == nil {
			t.Fatalf("%q expected error", in)
		}
	}
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" eur ")
	if err != nil || c != EUR {
		t.Fatalf("expected EUR, got %q (err=%v)", c, err)
	}
	if _, err := ParseCurrency("XYZ"); !errors.Is(err, ErrUnsupportedCurrency) {
		t.Fatalf("expected ErrUnsupportedCurrency, got %v", err)
	}
	if !errors.Is(ErrUnsupportedCurrency, ErrInvalid) {
		t.Fatalf("unsupported currency must be an invalid-input error")
	}
}
