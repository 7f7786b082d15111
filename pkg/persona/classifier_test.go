package persona

import (
	"context"
	"errors"
	"testing"

	"github.com/questmind/questmind/pkg/logger"
	"github.com/questmind/questmind/pkg/providers"
)

func TestHybridClassifier_ExternalWinsOverKeyword(t *testing.T) {
	provider := &providers.ScriptedProvider{Replies: []string{
		`{"traits_to_add": ["bold"], "traits_to_remove": [], "confidence": 0.9, "reasoning": "clear risk appetite"}`,
	}}
	c := NewHybridTraitClassifier(provider, "", logger.Nop())

	// The keyword scan of this message would suggest cautious; the confident
	// external judgment must win.
	res := c.Classify(context.Background(), "I want to play it safe and think it through", "", nil)
	if res.Method != MethodExternal {
		t.Fatalf("expected method external, got %s", res.Method)
	}
	if len(res.TraitsToAdd) != 1 || res.TraitsToAdd[0] != TraitBold {
		t.Fatalf("expected bold only, got %#v", res.TraitsToAdd)
	}
}

func TestHybridClassifier_ProviderFailureFallsBackToKeyword(t *testing.T) {
	provider := &providers.ScriptedProvider{Err: &providers.ProviderError{Message: "backend unreachable"}}
	c := NewHybridTraitClassifier(provider, "", logger.Nop())

	res := c.Classify(context.Background(), "I want to play it safe and think it through", "", nil)
	if res.Method != MethodKeyword {
		t.Fatalf("expected method keyword, got %s", res.Method)
	}
	found := false
	for _, name := range res.TraitsToAdd {
		if name == TraitCautious {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected cautious in additions, got %#v", res.TraitsToAdd)
	}
}

func TestHybridClassifier_ProseWrappedJSONParses(t *testing.T) {
	provider := &providers.ScriptedProvider{Replies: []string{
		`Sure! Here is my judgment: {"traits_to_add": ["curious"], "traits_to_remove": [], "confidence": 0.7, "reasoning": "asks questions"} hope that helps.`,
	}}
	c := NewHybridTraitClassifier(provider, "", logger.Nop())

	res := c.Classify(context.Background(), "hello", "", nil)
	if res.Method != MethodExternal {
		t.Fatalf("expected method external, got %s", res.Method)
	}
	if len(res.TraitsToAdd) != 1 || res.TraitsToAdd[0] != TraitCurious {
		t.Fatalf("expected curious, got %#v", res.TraitsToAdd)
	}
}

func TestHybridClassifier_NearJSONRepaired(t *testing.T) {
	provider := &providers.ScriptedProvider{Replies: []string{
		`{"traits_to_add": ["creative",], "traits_to_remove": [], "confidence": 0.8, "reasoning": "invents",}`,
	}}
	c := NewHybridTraitClassifier(provider, "", logger.Nop())

	res := c.Classify(context.Background(), "hello", "", nil)
	if res.Method != MethodExternal {
		t.Fatalf("expected repaired external result, got method %s", res.Method)
	}
	if len(res.TraitsToAdd) != 1 || res.TraitsToAdd[0] != TraitCreative {
		t.Fatalf("expected creative, got %#v", res.TraitsToAdd)
	}
}

func TestHybridClassifier_GarbageResponseNoKeywordSignal(t *testing.T) {
	provider := &providers.ScriptedProvider{Replies: []string{"I cannot help with that."}}
	c := NewHybridTraitClassifier(provider, "", logger.Nop())

	res := c.Classify(context.Background(), "the weather is fine", "", nil)
	if res.Method != MethodKeyword {
		t.Fatalf("expected empty keyword result, got method %s", res.Method)
	}
	if len(res.TraitsToAdd)+len(res.TraitsToRemove) != 0 {
		t.Fatalf("expected no trait changes, got %#v", res)
	}
	if res.Confidence != 0.6 {
		t.Fatalf("expected keyword baseline confidence, got %v", res.Confidence)
	}
}

func TestHybridClassifier_LowConfidenceExternalPreferredWhenNoSignal(t *testing.T) {
	provider := &providers.ScriptedProvider{Replies: []string{
		`{"traits_to_add": [], "traits_to_remove": [], "confidence": 0.2, "reasoning": "ambiguous"}`,
	}}
	c := NewHybridTraitClassifier(provider, "", logger.Nop())

	res := c.Classify(context.Background(), "the weather is fine", "", nil)
	if res.Method != MethodExternal {
		t.Fatalf("expected low-confidence external result kept for diagnostics, got %s", res.Method)
	}
	if res.Confidence != 0.2 {
		t.Fatalf("expected confidence 0.2, got %v", res.Confidence)
	}
}

func TestHybridClassifier_UnknownTraitsFiltered(t *testing.T) {
	provider := &providers.ScriptedProvider{Replies: []string{
		`{"traits_to_add": ["bold", "heroic"], "traits_to_remove": ["lazy"], "confidence": 0.9, "reasoning": ""}`,
	}}
	c := NewHybridTraitClassifier(provider, "", logger.Nop())

	res := c.Classify(context.Background(), "hello", "", nil)
	if len(res.TraitsToAdd) != 1 || res.TraitsToAdd[0] != TraitBold {
		t.Fatalf("expected unknown traits filtered, got %#v", res.TraitsToAdd)
	}
	if len(res.TraitsToRemove) != 0 {
		t.Fatalf("expected unknown removals filtered, got %#v", res.TraitsToRemove)
	}
}

func TestParseClassification_MissingConfidenceFails(t *testing.T) {
	_, err := parseClassification(`{"traits_to_add": ["bold"]}`)
	var parseErr *ClassificationParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ClassificationParseError, got %v", err)
	}
}

func TestFirstJSONBlock_SkipsBracesInStrings(t *testing.T) {
	block, ok := firstJSONBlock(`note {"reasoning": "uses } inside", "confidence": 1}`)
	if !ok {
		t.Fatalf("expected a balanced block")
	}
	if block != `{"reasoning": "uses } inside", "confidence": 1}` {
		t.Fatalf("unexpected block: %s", block)
	}
}
