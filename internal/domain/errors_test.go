package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesByCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("service: approve bid: %w", ErrAllSlotsFilled.Wrap(errors.New("2/2")))
	if !errors.Is(err, ErrAllSlotsFilled) {
		t.Fatalf("expected errors.Is to match wrapped sentinel")
	}
	if errors.Is(err, ErrBidAlreadyProcessed) {
		t.Fatalf("expected different codes not to match")
	}
	if KindOf(err) != KindState {
		t.Fatalf("expected state kind, got %s", KindOf(err))
	}
	if CodeOf(err) != "ALL_SLOTS_FILLED" {
		t.Fatalf("unexpected code %q", CodeOf(err))
	}
}

func TestKindOfUnknown(t *testing.T) {
	if KindOf(errors.New("boom")) != KindUnknown {
		t.Fatalf("expected unknown kind for plain errors")
	}
	if CodeOf(nil) != "" {
		t.Fatalf("expected empty code for nil")
	}
}
