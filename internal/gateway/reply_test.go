package gateway

import (
	"strings"
	"testing"
)

func TestSynthesizeCrisisIgnoresKBHits(t *testing.T) {
	t.Parallel()

	withHits := Synthesize(Prediction{Crisis: true, KBHits: []string{"Breathing Exercises", "Sleep Hygiene"}})
	withoutHits := Synthesize(Prediction{Crisis: true})

	if withHits != withoutHits {
		t.Fatal("crisis reply must be independent of kb_hits")
	}
	if !strings.Contains(withHits, "emergency") {
		t.Fatalf("crisis reply missing emergency instruction: %q", withHits)
	}
	if strings.Contains(withHits, "Breathing Exercises") {
		t.Fatal("crisis reply must not surface kb_hits")
	}
}

func TestSynthesizeGenericPromptWhenNoHits(t *testing.T) {
	t.Parallel()

	for _, pred := range []Prediction{
		{Crisis: false, KBHits: nil},
		{Crisis: false, KBHits: []string{}},
		{Crisis: false, KBHits: []string{"", ""}},
	} {
		got := Synthesize(pred)
		if got != genericReply {
			t.Fatalf("expected generic prompt for %+v, got %q", pred.KBHits, got)
		}
	}
}

func TestSynthesizeSurfacesOnlyTopHit(t *testing.T) {
	t.Parallel()

	got := Synthesize(Prediction{Crisis: false, KBHits: []string{"A", "B"}})
	if !strings.HasPrefix(got, "A") {
		t.Fatalf("expected reply to start with top hit, got %q", got)
	}
	if strings.Contains(got, "B") {
		t.Fatalf("expected second hit to stay out of the reply, got %q", got)
	}
	if !strings.Contains(got, "?") {
		t.Fatalf("expected a trailing follow-up question, got %q", got)
	}
}

func TestSynthesizeSkipsEmptyLeadingHits(t *testing.T) {
	t.Parallel()

	got := Synthesize(Prediction{Crisis: false, KBHits: []string{"", "Grounding Techniques"}})
	if !strings.HasPrefix(got, "Grounding Techniques") {
		t.Fatalf("expected first non-empty hit, got %q", got)
	}
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	t.Parallel()

	pred := Prediction{Intent: "anxiety", IntentScore: 0.91, KBHits: []string{"Coping with Anxiety"}}
	first := Synthesize(pred)
	for i := 0; i < 10; i++ {
		if got := Synthesize(pred); got != first {
			t.Fatalf("synthesize diverged on call %d: %q vs %q", i, got, first)
		}
	}
}
