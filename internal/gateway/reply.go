package gateway

// Prediction is the structured result returned by the inference service.
type Prediction struct {
	Intent      string   `json:"intent"`
	IntentScore float64  `json:"intent_score"`
	Crisis      bool     `json:"crisis"`
	KBHits      []string `json:"kb_hits"`
}

const (
	crisisReply = "I'm really sorry you're going through this. Your safety matters most. " +
		"If you're in immediate danger, please call your local emergency number right now. " +
		"If you can, reach out to someone you trust and stay with them. " +
		"Would you like help finding local crisis resources or connecting to a human?"

	genericReply = "Thanks for sharing that. Can you tell me a little more about what's been going on?"

	followUp = "\n\nWould you like to try that now, or share more about what you're feeling?"
)

// Synthesize converts a prediction into user-facing reply text. It is pure:
// identical input always yields identical output, and nothing else happens.
//
// The crisis branch takes absolute priority and ignores kb_hits. Otherwise
// only the top knowledge-base hit is surfaced in the text; the rest stay in
// the prediction for out-of-band display.
func Synthesize(pred Prediction) string {
	if pred.Crisis {
		return crisisReply
	}

	for _, hit := range pred.KBHits {
		if hit != "" {
			return hit + followUp
		}
	}
	return genericReply
}
