package persona

import (
	"reflect"
	"testing"
)

func TestTopicExtractor_MatchesLexiconOrder(t *testing.T) {
	ex := NewTopicExtractor()

	topics := ex.Extract("I wrote some code about a rocket heading to a planet")
	want := []string{"programming", "space"}
	if !reflect.DeepEqual(topics, want) {
		t.Fatalf("expected %v, got %v", want, topics)
	}
}

func TestTopicExtractor_NoDuplicates(t *testing.T) {
	ex := NewTopicExtractor()

	topics := ex.Extract("music music melody song guitar")
	if len(topics) != 1 || topics[0] != "music" {
		t.Fatalf("expected single music tag, got %v", topics)
	}
}

func TestTopicExtractor_CaseInsensitive(t *testing.T) {
	ex := NewTopicExtractor()

	topics := ex.Extract("I LOVE CHEMISTRY EXPERIMENTS")
	if len(topics) != 1 || topics[0] != "science" {
		t.Fatalf("expected science, got %v", topics)
	}
}

func TestTopicExtractor_EmptyOnNoMatch(t *testing.T) {
	ex := NewTopicExtractor()

	if topics := ex.Extract("hello there"); len(topics) != 0 {
		t.Fatalf("expected no topics, got %v", topics)
	}
}
