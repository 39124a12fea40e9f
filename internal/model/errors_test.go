package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	err := NewError(KindStaleBid, "bid below current")
	if !IsKind(err, KindStaleBid) {
		t.Error("Expected IsKind to match the error's kind")
	}
	if IsKind(err, KindAlreadySold) {
		t.Error("Expected IsKind to reject a different kind")
	}
	if KindOf(err) != KindStaleBid {
		t.Errorf("Expected KindOf stale_bid, got %s", KindOf(err))
	}
}

func TestWrapErrorPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(KindStoreUnavailable, "load bid state", cause)

	if !IsKind(err, KindStoreUnavailable) {
		t.Error("Expected StoreUnavailable kind")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected wrapped cause to be reachable with errors.Is")
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := NewError(KindInsufficientBudget, "sale exceeds remaining budget")
	outer := fmt.Errorf("finalize sale: %w", inner)

	if !IsKind(outer, KindInsufficientBudget) {
		t.Error("Expected kind to survive fmt.Errorf wrapping")
	}
	if KindOf(outer) != KindInsufficientBudget {
		t.Errorf("Expected KindOf insufficient_budget, got %s", KindOf(outer))
	}
}

func TestKindOfPlainError(t *testing.T) {
	if kind := KindOf(errors.New("boom")); kind != "" {
		t.Errorf("Expected empty kind for unclassified error, got %s", kind)
	}
}
