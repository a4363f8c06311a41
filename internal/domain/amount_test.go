package domain

import (
	"errors"
	"testing"
)

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		amount uint64
		want   string
	}{
		{amount: 0, want: "0.000000000"},
		{amount: 1, want: "0.000000001"},
		{amount: 1_500_000_000, want: "1.500000000"},
	}
	for _, tt := range tests {
		if got := FormatUnits(tt.amount, 9); got != tt.want {
			t.Fatalf("FormatUnits(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestParseUnits(t *testing.T) {
	got, err := ParseUnits("1.5", 9)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got != 1_500_000_000 {
		t.Fatalf("expected 1500000000, got %d", got)
	}
	if _, err := ParseUnits("0.0000000001", 9); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for sub-unit fraction, got %v", err)
	}
	if _, err := ParseUnits("-1", 9); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
	if _, err := ParseUnits("99999999999999999999", 9); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected ErrArithmeticOverflow, got %v", err)
	}
}

func TestCheckedAdd(t *testing.T) {
	if _, err := CheckedAdd(^uint64(0), 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if s, err := CheckedAdd(2, 3); err != nil || s != 5 {
		t.Fatalf("expected 5, got %d (%v)", s, err)
	}
}
