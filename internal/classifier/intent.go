package classifier

import (
	"context"
	"strings"
)

// LexicalIntent is the default keyword-driven intent classifier. It is
// deliberately cheap: a richer model can be swapped in behind the same
// interface without touching the decision engine.
type LexicalIntent struct{}

func NewLexicalIntent() *LexicalIntent { return &LexicalIntent{} }

var intentLexicon = []struct {
	name       string
	confidence float64
	words      []string
}{
	{"GREETING", 0.9, []string{"hello", "hi", "hey", "bonjour", "salut"}},
	{"GOODBYE", 0.9, []string{"bye", "goodbye", "au revoir", "merci, c'est tout", "thank you"}},
	{"CLAIM", 0.8, []string{"sinistre", "déclarer", "remboursement", "claim"}},
	{"LEGAL_ISSUE", 0.8, []string{"litige", "avocat", "juridique", "plainte"}},
	{"CONTRACT_CANCELLATION", 0.8, []string{"résilier", "résiliation", "annuler mon contrat"}},
	{"PROBLEM", 0.7, []string{"problem", "problème", "issue", "lost", "stolen", "help", "broken", "panne"}},
}

func (c *LexicalIntent) Detect(_ context.Context, text string) (Intent, error) {
	t := strings.ToLower(text)
	for _, entry := range intentLexicon {
		for _, w := range entry.words {
			if strings.Contains(t, w) {
				return Intent{Name: entry.name, Confidence: entry.confidence}, nil
			}
		}
	}
	return Intent{Name: "UNKNOWN", Confidence: 0.3}, nil
}
