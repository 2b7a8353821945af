// Package risk scores symptom presentations on a 0..1 scale. Scoring is
// deterministic and runs entirely on the node; scores feed the window
// aggregates but individual scores are never shared.
package risk

import "strings"

// HighRiskSymptoms is the standard lexicon of presentations that raise a
// record's score beyond its severity baseline.
var HighRiskSymptoms = []string{
	"fever",
	"difficulty breathing",
	"chest pain",
	"confusion",
}

// SeverityBump is the score increment applied per matching symptom.
const SeverityBump = 0.2

// Scorer computes per-record risk scores against a fixed lexicon.
type Scorer struct {
	lexicon []string
}

// NewScorer returns a Scorer with the standard lexicon.
func NewScorer() *Scorer {
	return NewScorerWithLexicon(HighRiskSymptoms)
}

// NewScorerWithLexicon returns a Scorer matching against the given terms.
// Terms are matched lowercase; callers supply them lowercase.
func NewScorerWithLexicon(lexicon []string) *Scorer {
	if len(lexicon) == 0 {
		lexicon = HighRiskSymptoms
	}
	return &Scorer{lexicon: lexicon}
}

// Score returns severity/10 plus SeverityBump for each symptom that contains
// a lexicon term, clamped to 1.0. Matching is case-insensitive substring, so
// "High Fever" matches "fever". A symptom contributes at most one bump no
// matter how many terms it contains. Severity is validated to 1..10 at the
// API boundary before scoring.
func (s *Scorer) Score(symptoms []string, severity int) float64 {
	score := float64(severity) / 10.0
	for _, symptom := range symptoms {
		lowered := strings.ToLower(symptom)
		for _, term := range s.lexicon {
			if strings.Contains(lowered, term) {
				score += SeverityBump
				break
			}
		}
	}
	if score > 1.0 {
		return 1.0
	}
	return score
}
