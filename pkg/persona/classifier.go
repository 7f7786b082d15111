package persona

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/questmind/questmind/pkg/logger"
	"github.com/questmind/questmind/pkg/providers"
)

// Classification methods. External judgments are primary; the keyword scorer
// only activates on external failure or low confidence.
const (
	MethodExternal       = "external"
	MethodKeyword        = "keyword"
	MethodExternalFailed = "external_failed"
)

// externalConfidenceFloor is the threshold above which an external judgment
// is trusted without consulting the keyword scorer.
const externalConfidenceFloor = 0.3

// TraitClassification is the tagged outcome of one trait arbitration.
type TraitClassification struct {
	TraitsToAdd    []string `json:"traits_to_add"`
	TraitsToRemove []string `json:"traits_to_remove"`
	Confidence     float64  `json:"confidence"`
	Reasoning      string   `json:"reasoning"`
	Method         string   `json:"method"`
}

// HybridTraitClassifier arbitrates between an external structured judgment
// and the keyword scorer. Classify never returns an error: provider and parse
// failures degrade to the keyword path.
type HybridTraitClassifier struct {
	provider providers.LLMProvider
	scorer   *KeywordTraitScorer
	model    string
	log      logger.Logger
}

func NewHybridTraitClassifier(provider providers.LLMProvider, model string, log logger.Logger) *HybridTraitClassifier {
	return &HybridTraitClassifier{
		provider: provider,
		scorer:   NewKeywordTraitScorer(),
		model:    model,
		log:      logger.OrNop(log),
	}
}

// Classify runs the hybrid policy over one user message.
func (c *HybridTraitClassifier) Classify(ctx context.Context, text, convContext string, currentTraits map[string]int) TraitClassification {
	external := TraitClassification{Method: MethodExternalFailed}
	externalOK := false

	if c.provider != nil {
		res, err := c.classifyExternal(ctx, text, convContext, currentTraits)
		if err != nil {
			c.log.Warn("external trait judgment failed, falling back to keywords: %v", err)
		} else {
			external = res
			externalOK = true
		}
	}

	if externalOK && external.Confidence > externalConfidenceFloor {
		return external
	}

	kw := c.scorer.Score(text)
	keyword := TraitClassification{
		TraitsToAdd:    kw.TraitsToAdd,
		TraitsToRemove: kw.TraitsToRemove,
		Confidence:     kw.Confidence,
		Reasoning:      kw.Reasoning,
		Method:         MethodKeyword,
	}
	if kw.HasSignal() {
		return keyword
	}

	// Neither path produced a trait change: keep whichever attempt still
	// carries diagnostic confidence, preferring the external one.
	if external.Confidence > 0 {
		return external
	}
	if keyword.Confidence > 0 {
		return keyword
	}
	return keyword
}

func (c *HybridTraitClassifier) classifyExternal(ctx context.Context, text, convContext string, currentTraits map[string]int) (TraitClassification, error) {
	prompt := buildJudgmentPrompt(text, convContext, currentTraits)

	raw, err := c.provider.Generate(ctx, prompt, c.model)
	if err != nil {
		return TraitClassification{}, err
	}

	parsed, err := parseClassification(raw)
	if err != nil {
		return TraitClassification{}, err
	}
	parsed.Method = MethodExternal
	return parsed, nil
}

func buildJudgmentPrompt(text, convContext string, currentTraits map[string]int) string {
	names := make([]string, 0, len(currentTraits))
	for name := range currentTraits {
		names = append(names, name)
	}
	sort.Strings(names)
	current := make([]string, 0, len(names))
	for _, name := range names {
		current = append(current, fmt.Sprintf("%s=%d", name, currentTraits[name]))
	}

	var b strings.Builder
	b.WriteString("You judge which behavioral traits a message expresses.\n")
	b.WriteString("Allowed traits: " + strings.Join(TraitNames(), ", ") + ".\n")
	if len(current) > 0 {
		b.WriteString("Current trait tallies: " + strings.Join(current, ", ") + ".\n")
	}
	if strings.TrimSpace(convContext) != "" {
		b.WriteString("Conversation context: " + convContext + "\n")
	}
	b.WriteString("Message: " + text + "\n")
	b.WriteString(`Respond with only a JSON object: {"traits_to_add": [], "traits_to_remove": [], "confidence": 0.0, "reasoning": ""}`)
	return b.String()
}

// parseClassification pulls the first balanced JSON object out of a raw
// response that may be wrapped in prose, repairing near-JSON before giving up.
func parseClassification(raw string) (TraitClassification, error) {
	block, ok := firstJSONBlock(raw)
	if !ok {
		return TraitClassification{}, &ClassificationParseError{Reason: "no balanced JSON block in response"}
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal([]byte(block), &fields); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(block)
		if repairErr != nil {
			return TraitClassification{}, &ClassificationParseError{Reason: "malformed JSON block"}
		}
		if err := json.Unmarshal([]byte(repaired), &fields); err != nil {
			return TraitClassification{}, &ClassificationParseError{Reason: "JSON block unparseable after repair"}
		}
		block = repaired
	}

	if _, ok := fields["confidence"]; !ok {
		return TraitClassification{}, &ClassificationParseError{Reason: "missing confidence field"}
	}

	var out TraitClassification
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return TraitClassification{}, &ClassificationParseError{Reason: "unexpected field types"}
	}
	out.TraitsToAdd = filterKnownTraits(out.TraitsToAdd)
	out.TraitsToRemove = filterKnownTraits(out.TraitsToRemove)
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	return out, nil
}

func filterKnownTraits(names []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if !isKnownTrait(name) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// firstJSONBlock returns the first balanced {...} region of raw. Brace depth
// is tracked outside string literals so prose around the block is tolerated.
func firstJSONBlock(raw string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 {
					return raw[start : i+1], true
				}
			}
		}
	}
	return "", false
}
