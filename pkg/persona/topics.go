package persona

import "strings"

type topicEntry struct {
	topic    string
	keywords []string
}

var topicLexicon = []topicEntry{
	{"programming", []string{"code", "coding", "program", "software", "computer", "algorithm", "debug"}},
	{"music", []string{"music", "song", "melody", "guitar", "piano", "rhythm", "band"}},
	{"science", []string{"science", "experiment", "chemistry", "physics", "biology", "lab"}},
	{"art", []string{"art", "draw", "paint", "sketch", "color", "design"}},
	{"games", []string{"game", "play", "puzzle", "quest", "level up", "player"}},
	{"math", []string{"math", "number", "equation", "geometry", "fraction", "calculate"}},
	{"nature", []string{"nature", "animal", "plant", "forest", "ocean", "weather"}},
	{"space", []string{"space", "planet", "star", "galaxy", "rocket", "astronaut"}},
	{"history", []string{"history", "ancient", "castle", "empire", "war", "museum"}},
	{"sports", []string{"sport", "soccer", "football", "basketball", "running", "swim"}},
}

// TopicExtractor maps free text to topic tags from a fixed lexicon. Matching
// is case-insensitive substring containment; output order follows lexicon
// declaration order and contains no duplicates.
type TopicExtractor struct{}

func NewTopicExtractor() *TopicExtractor { return &TopicExtractor{} }

func (e *TopicExtractor) Extract(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, entry := range topicLexicon {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				out = append(out, entry.topic)
				break
			}
		}
	}
	return out
}
