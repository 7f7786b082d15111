package persona

import "strings"

// Trait vocabulary. The keyword scorer and the external judgment are both
// constrained to these names.
const (
	TraitBold       = "bold"
	TraitCautious   = "cautious"
	TraitCreative   = "creative"
	TraitCurious    = "curious"
	TraitEmpathetic = "empathetic"
)

type traitLexicon struct {
	name     string
	positive []string
	negative []string
}

var traitLexicons = []traitLexicon{
	{
		name: TraitBold,
		positive: []string{
			"take the risk", "go for it", "let's do it", "charge ahead",
			"bring it on", "dive in", "no fear", "take a chance", "head first",
		},
		negative: []string{
			"too risky", "hold back", "not ready", "rather not", "too dangerous",
		},
	},
	{
		name: TraitCautious,
		positive: []string{
			"play it safe", "think it through", "be careful", "let's wait",
			"step by step", "double check", "look before", "slow down",
		},
		negative: []string{
			"no time to think", "rush in", "skip the checks", "just wing it",
		},
	},
	{
		name: TraitCreative,
		positive: []string{
			"what if we", "imagine", "another way", "new idea", "let's invent",
			"outside the box", "make something up", "my own way",
		},
		negative: []string{
			"by the book", "standard way", "the usual way",
		},
	},
	{
		name: TraitCurious,
		positive: []string{
			"why does", "how does", "tell me more", "what happens if",
			"i wonder", "want to know", "what's inside",
		},
		negative: []string{
			"don't care", "whatever", "boring",
		},
	},
	{
		name: TraitEmpathetic,
		positive: []string{
			"how do they feel", "that must be hard", "i feel for",
			"let's help them", "are they okay", "poor thing",
		},
		negative: []string{
			"who cares", "not my problem", "their fault",
		},
	},
}

// TraitNames returns the closed vocabulary in declaration order.
func TraitNames() []string {
	out := make([]string, 0, len(traitLexicons))
	for _, lex := range traitLexicons {
		out = append(out, lex.name)
	}
	return out
}

func isKnownTrait(name string) bool {
	for _, lex := range traitLexicons {
		if lex.name == name {
			return true
		}
	}
	return false
}

// TraitHits counts lexicon matches for one trait.
type TraitHits struct {
	PositiveHits int
	NegativeHits int
}

// KeywordScoreResult is the scorer's judgment over one message.
type KeywordScoreResult struct {
	TraitsToAdd    []string
	TraitsToRemove []string
	Hits           map[string]TraitHits
	Confidence     float64
	Reasoning      string
}

// HasSignal reports whether the scan found any trait change at all.
func (r KeywordScoreResult) HasSignal() bool {
	return len(r.TraitsToAdd)+len(r.TraitsToRemove) > 0
}

// KeywordTraitScorer scores free text against the trait lexicons. Pure and
// deterministic; it serves both as classifier fallback and sanity filter.
type KeywordTraitScorer struct{}

func NewKeywordTraitScorer() *KeywordTraitScorer { return &KeywordTraitScorer{} }

// Score matches each lexicon phrase as a case-insensitive substring. A trait
// is added when positive hits strictly outnumber negative ones, removed in
// the mirror case, and untouched on a tie.
func (s *KeywordTraitScorer) Score(text string) KeywordScoreResult {
	lower := strings.ToLower(text)

	result := KeywordScoreResult{
		Hits: map[string]TraitHits{},
	}
	var reasons []string

	for _, lex := range traitLexicons {
		var hits TraitHits
		var matched []string
		for _, phrase := range lex.positive {
			if strings.Contains(lower, phrase) {
				hits.PositiveHits++
				matched = append(matched, phrase)
			}
		}
		for _, phrase := range lex.negative {
			if strings.Contains(lower, phrase) {
				hits.NegativeHits++
			}
		}
		result.Hits[lex.name] = hits

		switch {
		case hits.PositiveHits > hits.NegativeHits && hits.PositiveHits > 0:
			result.TraitsToAdd = append(result.TraitsToAdd, lex.name)
			if len(matched) > 3 {
				matched = matched[:3]
			}
			reasons = append(reasons, lex.name+" (matched: "+strings.Join(matched, ", ")+")")
		case hits.NegativeHits > hits.PositiveHits && hits.NegativeHits > 0:
			result.TraitsToRemove = append(result.TraitsToRemove, lex.name)
		}
	}

	if result.HasSignal() {
		result.Confidence = 0.4 + 0.1*float64(len(result.TraitsToAdd))
		if result.Confidence > 0.8 {
			result.Confidence = 0.8
		}
		result.Reasoning = "keyword scan: " + strings.Join(reasons, "; ")
	} else {
		result.Confidence = 0.6
		result.Reasoning = "keyword scan found no trait signal"
	}
	return result
}
