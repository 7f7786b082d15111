package persona

import (
	"encoding/json"
	"strings"
	"time"
)

// Learning style labels. LearningStyleUnknown means no signal observed yet.
const (
	LearningStyleUnknown      = "unknown"
	LearningStyleDetailSeeker = "detail_seeker"
	LearningStyleQuickLearner = "quick_learner"
	LearningStyleVisual       = "visual_learner"
	LearningStyleBalanced     = "balanced"
)

// Aggregate caps. Mood history holds twice the dominant-mood window on
// purpose: the mode is recency-biased while the history keeps more context.
const (
	moodHistoryCap      = 20
	dominantMoodWindow  = 10
	questionTypesCap    = 20
	questionTypesTrimTo = 10
	recentTopicsCap     = 20
	interestStep        = 0.1
)

// Interaction is the immutable per-turn record shared by the session cache
// and the durable log.
type Interaction struct {
	ID          string              `json:"id"`
	UserID      string              `json:"user_id"`
	Timestamp   time.Time           `json:"timestamp"`
	UserMessage string              `json:"user_message"`
	AIResponse  string              `json:"ai_response"`
	Metadata    InteractionMetadata `json:"metadata"`
}

// InteractionMetadata carries the per-turn signals the fold consumes. All
// fields are optional; Extra preserves anything callers attach beyond the
// recognized keys.
type InteractionMetadata struct {
	EmotionalState *EmotionalState   `json:"emotional_state,omitempty"`
	LearningStyle  string            `json:"learning_style,omitempty"`
	TopicsDetected []string          `json:"topics_detected,omitempty"`
	TraitsObserved []string          `json:"traits_observed,omitempty"`
	SessionID      string            `json:"session_id,omitempty"`
	Extra          map[string]string `json:"extra,omitempty"`
}

type EmotionalState struct {
	Emotion         string  `json:"emotion"`
	Confidence      float64 `json:"confidence"`
	DominantEmotion string  `json:"dominant_emotion,omitempty"`
}

// UserProfile is the per-user aggregate document. It is exclusively owned by
// the ProfileStore; everything handed out is a deep copy.
type UserProfile struct {
	UserID     string    `json:"user_id"`
	Revision   int64     `json:"revision"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`

	Stats             ProfileStats         `json:"stats"`
	Learning          LearningProfile      `json:"learning"`
	Emotional         EmotionalProfile     `json:"emotional"`
	Communication     CommunicationProfile `json:"communication"`
	Topics            TopicProfile         `json:"topics"`
	Traits            map[string]int       `json:"traits"`
	MissionsCompleted []Mission            `json:"missions_completed"`
	Sessions          SessionState         `json:"sessions"`
}

type ProfileStats struct {
	TotalInteractions          int       `json:"total_interactions"`
	CurrentSessionInteractions int       `json:"current_session_interactions"`
	LastSessionStart           time.Time `json:"last_session_start"`
}

type LearningProfile struct {
	PreferredStyle   string   `json:"preferred_style"`
	StrugglingTopics []string `json:"struggling_topics"`
	MasteredConcepts []string `json:"mastered_concepts"`
}

type MoodEntry struct {
	Emotion         string    `json:"emotion"`
	Confidence      float64   `json:"confidence"`
	DominantEmotion string    `json:"dominant_emotion,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// label is the mood used for dominant-mood aggregation.
func (m MoodEntry) label() string {
	if m.DominantEmotion != "" {
		return m.DominantEmotion
	}
	return m.Emotion
}

type EmotionalProfile struct {
	DominantMood string      `json:"dominant_mood"`
	MoodHistory  []MoodEntry `json:"mood_history"`
}

type CommunicationProfile struct {
	AverageMessageLength float64 `json:"average_message_length"`
	// QuestionTypes is a capped multiset kept in append order; the fold
	// batch-trims it to the most recent ten once it exceeds twenty.
	QuestionTypes []string `json:"question_types"`
}

type TopicProfile struct {
	// Interests scores are monotonically non-decreasing in [0,1].
	Interests map[string]float64 `json:"interests"`
	// RecentTopics is most-recent-first.
	RecentTopics []string `json:"recent_topics"`
}

// Mission tracks one learning unit: audit trail of choices, completion time
// and closing summary. Unique per missionID within a user.
type Mission struct {
	MissionID    string          `json:"mission_id"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Choices      []MissionChoice `json:"choices"`
	FinalSummary string          `json:"final_summary"`
}

type MissionChoice struct {
	BlockID    string `json:"block_id"`
	ChoiceText string `json:"choice_text"`
	RawTag     string `json:"raw_tag"`
}

type SessionState struct {
	CurrentSessionID string `json:"current_session_id,omitempty"`
}

// ContextSummary is the read-only projection handed to prompt construction.
type ContextSummary struct {
	UserID               string               `json:"user_id"`
	TotalInteractions    int                  `json:"total_interactions"`
	LearningStyle        string               `json:"learning_style"`
	DominantMood         string               `json:"dominant_mood"`
	RecentMoods          []string             `json:"recent_moods"`
	AverageMessageLength float64              `json:"average_message_length"`
	TopQuestionTypes     []string             `json:"top_question_types"`
	TopInterests         []TopicInterest      `json:"top_interests"`
	RecentTopics         []string             `json:"recent_topics"`
	RecentInteractions   []InteractionSummary `json:"recent_interactions"`
}

type TopicInterest struct {
	Topic string  `json:"topic"`
	Score float64 `json:"score"`
}

type InteractionSummary struct {
	UserMessage string    `json:"user_message"`
	Timestamp   time.Time `json:"timestamp"`
	Topics      []string  `json:"topics,omitempty"`
}

func defaultUserProfile(userID string) UserProfile {
	now := time.Now()
	return UserProfile{
		UserID:     strings.TrimSpace(userID),
		Revision:   1,
		CreatedAt:  now,
		LastActive: now,
		Learning: LearningProfile{
			PreferredStyle: LearningStyleUnknown,
		},
		Topics: TopicProfile{
			Interests: map[string]float64{},
		},
		Traits: map[string]int{},
	}
}

func (p UserProfile) clone() UserProfile {
	out := p
	out.Learning.StrugglingTopics = append([]string{}, p.Learning.StrugglingTopics...)
	out.Learning.MasteredConcepts = append([]string{}, p.Learning.MasteredConcepts...)
	out.Emotional.MoodHistory = append([]MoodEntry{}, p.Emotional.MoodHistory...)
	out.Communication.QuestionTypes = append([]string{}, p.Communication.QuestionTypes...)
	out.Topics.RecentTopics = append([]string{}, p.Topics.RecentTopics...)
	out.Topics.Interests = map[string]float64{}
	for k, v := range p.Topics.Interests {
		out.Topics.Interests[k] = v
	}
	out.Traits = map[string]int{}
	for k, v := range p.Traits {
		out.Traits[k] = v
	}
	out.MissionsCompleted = make([]Mission, 0, len(p.MissionsCompleted))
	for _, m := range p.MissionsCompleted {
		mc := m
		mc.Choices = append([]MissionChoice{}, m.Choices...)
		if m.CompletedAt != nil {
			at := *m.CompletedAt
			mc.CompletedAt = &at
		}
		out.MissionsCompleted = append(out.MissionsCompleted, mc)
	}
	return out
}

func profileToJSON(profile UserProfile) string {
	raw, err := json.Marshal(profile)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// profileFromJSON decodes a stored document, repairing anything a default
// profile would carry so old or hand-edited documents stay usable.
func profileFromJSON(raw, userID string) UserProfile {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "{}" {
		return defaultUserProfile(userID)
	}
	var p UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return defaultUserProfile(userID)
	}
	if strings.TrimSpace(p.UserID) == "" {
		p.UserID = userID
	}
	if p.Revision <= 0 {
		p.Revision = 1
	}
	if p.Learning.PreferredStyle == "" {
		p.Learning.PreferredStyle = LearningStyleUnknown
	}
	if p.Topics.Interests == nil {
		p.Topics.Interests = map[string]float64{}
	}
	if p.Traits == nil {
		p.Traits = map[string]int{}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	return p
}
