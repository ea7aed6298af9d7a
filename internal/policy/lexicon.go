package policy

import "strings"

// Phrase sets driving the cheap text tiers. French first since the bot
// fronts a French insurance line, with the English variants callers mix
// in.

var agentRequestPhrases = []string{
	"agent",
	"humain",
	"représentant",
	"conseiller",
	"une personne",
	"speak to a human",
	"real person",
}

// criticalKeywords is the small high-severity lexicon: life-threatening
// situations and active crime. A hit here goes to the severity model
// before any escalation.
var criticalKeywords = []string{
	"tué",
	"meurtre",
	"blessé",
	"sang",
	"explosion",
	"urgence",
	"risque vital",
	"arme",
	"terrorisme",
	"attaque armée",
	"kidnapping",
	"braquage",
	"empoisonnement",
	"menace",
}

// contextKeywords is the broader, lower-precision lexicon. These words
// appear in plenty of harmless insurance talk, so the validation bar is
// higher.
var contextKeywords = []string{
	"violence",
	"attaque",
	"agression",
	"vol",
	"criminel",
	"maladie grave",
	"infection",
	"choc",
	"fracture",
	"accident",
	"brûler",
	"privé",
	"confidentiel",
	"données personnelles",
	"secret",
	"litige",
	"avocat",
	"sûreté",
	"alarme",
}

var interrogativeMarkers = []string{
	"est-ce que",
	"qu'est-ce",
	"comment",
	"pourquoi",
	"quand",
	"combien",
	"quel",
	"quelle",
	"qui",
	"où",
	"what",
	"how",
	"why",
	"when",
	"who",
	"which",
}

// IsAgentRequest reports whether the utterance explicitly demands a
// human. Case-insensitive substring match, same as the rest of the
// lexicon tiers.
func IsAgentRequest(text string) bool {
	return containsAny(strings.ToLower(text), agentRequestPhrases)
}

// isQuestion treats an utterance as an inquiry when it carries a
// question mark together with an interrogative marker. Questions about
// critical topics are information requests, not emergencies.
func isQuestion(lower string) bool {
	if !strings.Contains(lower, "?") {
		return false
	}
	return containsAny(lower, interrogativeMarkers)
}

func containsAny(lower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}
