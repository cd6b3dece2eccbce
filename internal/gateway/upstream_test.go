package gateway

import (
	"fmt"
	"testing"

	"github.com/Hemant07J07/mhchat/internal/domain"
)

func TestCapHistoryKeepsMostRecentTurns(t *testing.T) {
	t.Parallel()

	var history []domain.HistoryTurn
	for i := 0; i < 15; i++ {
		history = append(history, domain.HistoryTurn{Role: "user", Content: fmt.Sprintf("turn %d", i)})
	}

	capped := capHistory(history, 10)
	if len(capped) != 10 {
		t.Fatalf("expected 10 turns, got %d", len(capped))
	}
	if capped[0].Content != "turn 5" || capped[9].Content != "turn 14" {
		t.Fatalf("expected the most recent window, got first=%q last=%q", capped[0].Content, capped[9].Content)
	}
}

func TestCapHistoryEmptyAndShortInputs(t *testing.T) {
	t.Parallel()

	if got := capHistory(nil, 10); got != nil {
		t.Fatalf("expected nil for empty history, got %v", got)
	}
	short := []domain.HistoryTurn{{Role: "user", Content: "only"}}
	capped := capHistory(short, 10)
	if len(capped) != 1 || capped[0].Content != "only" {
		t.Fatalf("expected short history unchanged, got %v", capped)
	}
}

func TestUpstreamErrorMessageCarriesStatus(t *testing.T) {
	t.Parallel()

	err := &UpstreamError{Status: 503, Body: "overloaded"}
	if got := err.Error(); got != "ml service returned status 503" {
		t.Fatalf("unexpected error string: %q", got)
	}
}
