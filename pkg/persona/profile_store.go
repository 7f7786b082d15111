package persona

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/questmind/questmind/pkg/logger"
)

var questionWords = []string{"how", "why", "what", "when", "where"}

var comprehensionMarkers = []string{"understand", "got it", "clear"}
var struggleMarkers = []string{"confused", "stuck", "help"}

// ProfileStore owns the per-user aggregate profiles: an in-memory cache of
// profile documents checkpointed to the durable store on a cadence. All
// read-modify-write sequences for one user are serialized by a per-user lock;
// nothing here ever calls out to the generation backend.
type ProfileStore struct {
	store           Store
	cache           *SessionCache
	topics          *TopicExtractor
	persistInterval int
	log             logger.Logger

	mu      sync.Mutex
	entries map[string]*profileEntry
}

type profileEntry struct {
	mu      sync.Mutex
	loaded  bool
	dirty   bool
	profile UserProfile
}

func NewProfileStore(store Store, cache *SessionCache, persistInterval int, log logger.Logger) *ProfileStore {
	if persistInterval <= 0 {
		persistInterval = 5
	}
	return &ProfileStore{
		store:           store,
		cache:           cache,
		topics:          NewTopicExtractor(),
		persistInterval: persistInterval,
		log:             logger.OrNop(log),
		entries:         map[string]*profileEntry{},
	}
}

func (ps *ProfileStore) entry(userID string) *profileEntry {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	e, ok := ps.entries[userID]
	if !ok {
		e = &profileEntry{}
		ps.entries[userID] = e
	}
	return e
}

// ensureLoadedLocked populates the entry from durable storage, creating and
// immediately persisting a default profile for unseen users so subsequent
// reads are stable. Callers hold e.mu.
func (ps *ProfileStore) ensureLoadedLocked(ctx context.Context, userID string, e *profileEntry) {
	if e.loaded {
		return
	}
	profile, found, err := ps.store.GetProfile(ctx, userID)
	if err != nil {
		ps.log.Warn("load profile %s: %v; starting from defaults", userID, err)
	}
	if !found || err != nil {
		profile = defaultUserProfile(userID)
		if perr := ps.store.UpsertProfile(ctx, profile); perr != nil {
			ps.log.Warn("persist new profile %s: %v", userID, perr)
		}
	}
	e.profile = profile
	e.loaded = true
}

// GetProfile returns a copy of the user's profile, creating a default one on
// first access. Absence is never an error.
func (ps *ProfileStore) GetProfile(ctx context.Context, userID string) UserProfile {
	e := ps.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	ps.ensureLoadedLocked(ctx, userID, e)
	return e.profile.clone()
}

// FoldInteraction folds one interaction into the running aggregate. All four
// sub-updates run unconditionally; a persistence fault is returned as a
// non-fatal PersistenceError with the in-memory aggregate already updated.
func (ps *ProfileStore) FoldInteraction(ctx context.Context, userID string, in Interaction) error {
	e := ps.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	ps.ensureLoadedLocked(ctx, userID, e)
	p := &e.profile

	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	rotateSession(p, in.Metadata.SessionID, ts)
	p.Stats.TotalInteractions++
	p.Stats.CurrentSessionInteractions++
	p.LastActive = ts

	topicsDetected := in.Metadata.TopicsDetected
	if topicsDetected == nil {
		topicsDetected = ps.topics.Extract(in.UserMessage)
	}

	foldCommunication(p, in.UserMessage)
	foldEmotional(p, in.Metadata.EmotionalState, ts)
	foldLearning(p, in.UserMessage, in.Metadata.LearningStyle, topicsDetected)
	foldTopics(p, topicsDetected)

	for _, trait := range in.Metadata.TraitsObserved {
		if isKnownTrait(trait) {
			p.Traits[trait]++
		}
	}

	e.dirty = true
	if p.Stats.TotalInteractions%ps.persistInterval == 0 {
		return ps.persistLocked(ctx, e)
	}
	return nil
}

// rotateSession lazily assigns a session id and resets per-session counters
// when the turn carries a different session than the profile tracks.
func rotateSession(p *UserProfile, sessionID string, ts time.Time) {
	current := p.Sessions.CurrentSessionID
	switch {
	case current == "":
		if sessionID == "" {
			sessionID = "sess-" + uuid.NewString()
		}
	case sessionID != "" && sessionID != current:
		// New session arrived; fall through to adopt it.
	default:
		return
	}
	p.Sessions.CurrentSessionID = sessionID
	p.Stats.CurrentSessionInteractions = 0
	p.Stats.LastSessionStart = ts
}

func foldCommunication(p *UserProfile, userMessage string) {
	n := float64(p.Stats.TotalInteractions)
	length := float64(utf8.RuneCountInString(userMessage))
	p.Communication.AverageMessageLength = (p.Communication.AverageMessageLength*(n-1) + length) / n

	lower := strings.ToLower(userMessage)
	for _, word := range questionWords {
		if strings.Contains(lower, word) {
			p.Communication.QuestionTypes = append(p.Communication.QuestionTypes, word)
		}
	}
	// Batch trim, not a rolling window: once past the cap, keep only the
	// most recent ten.
	if len(p.Communication.QuestionTypes) > questionTypesCap {
		qt := p.Communication.QuestionTypes
		p.Communication.QuestionTypes = append([]string{}, qt[len(qt)-questionTypesTrimTo:]...)
	}
}

func foldEmotional(p *UserProfile, state *EmotionalState, ts time.Time) {
	if state == nil || state.Emotion == "" {
		return
	}
	p.Emotional.MoodHistory = append(p.Emotional.MoodHistory, MoodEntry{
		Emotion:         state.Emotion,
		Confidence:      state.Confidence,
		DominantEmotion: state.DominantEmotion,
		Timestamp:       ts,
	})
	if len(p.Emotional.MoodHistory) > moodHistoryCap {
		p.Emotional.MoodHistory = p.Emotional.MoodHistory[len(p.Emotional.MoodHistory)-moodHistoryCap:]
	}
	p.Emotional.DominantMood = dominantMood(p.Emotional.MoodHistory)
}

// dominantMood is the mode over the most recent window of mood entries,
// ties broken by first-seen order.
func dominantMood(history []MoodEntry) string {
	window := history
	if len(window) > dominantMoodWindow {
		window = window[len(window)-dominantMoodWindow:]
	}
	counts := map[string]int{}
	var order []string
	for _, entry := range window {
		label := entry.label()
		if label == "" {
			continue
		}
		if _, ok := counts[label]; !ok {
			order = append(order, label)
		}
		counts[label]++
	}
	best := ""
	bestCount := 0
	for _, label := range order {
		if counts[label] > bestCount {
			best = label
			bestCount = counts[label]
		}
	}
	return best
}

func foldLearning(p *UserProfile, userMessage, styleHint string, topicsDetected []string) {
	if styleHint != "" && styleHint != LearningStyleUnknown {
		p.Learning.PreferredStyle = styleHint
	}

	lower := strings.ToLower(userMessage)
	if containsAny(lower, comprehensionMarkers) {
		for _, topic := range topicsDetected {
			p.Learning.MasteredConcepts = appendUnique(p.Learning.MasteredConcepts, topic)
		}
	}
	if containsAny(lower, struggleMarkers) {
		for _, topic := range topicsDetected {
			p.Learning.StrugglingTopics = appendUnique(p.Learning.StrugglingTopics, topic)
		}
	}
}

func foldTopics(p *UserProfile, topicsDetected []string) {
	for _, topic := range topicsDetected {
		score := p.Topics.Interests[topic] + interestStep
		if score > 1.0 {
			score = 1.0
		}
		p.Topics.Interests[topic] = score

		p.Topics.RecentTopics = append([]string{topic}, p.Topics.RecentTopics...)
	}
	if len(p.Topics.RecentTopics) > recentTopicsCap {
		p.Topics.RecentTopics = p.Topics.RecentTopics[:recentTopicsCap]
	}
}

func containsAny(lower string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

// Persist checkpoints the user's in-memory profile to durable storage.
// Idempotent; safe to call whether or not anything changed.
func (ps *ProfileStore) Persist(ctx context.Context, userID string) error {
	e := ps.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil
	}
	return ps.persistLocked(ctx, e)
}

func (ps *ProfileStore) persistLocked(ctx context.Context, e *profileEntry) error {
	e.profile.LastActive = time.Now()
	e.profile.Revision++
	if err := ps.store.UpsertProfile(ctx, e.profile); err != nil {
		ps.log.Warn("persist profile %s: %v", e.profile.UserID, err)
		return err
	}
	e.dirty = false
	return nil
}

// Update serializes a read-modify-write of one profile, optionally
// persisting immediately. Progression mutations go through here.
func (ps *ProfileStore) Update(ctx context.Context, userID string, persistNow bool, fn func(*UserProfile)) error {
	e := ps.entry(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	ps.ensureLoadedLocked(ctx, userID, e)
	fn(&e.profile)
	e.dirty = true
	if persistNow {
		return ps.persistLocked(ctx, e)
	}
	return nil
}

// FlushDirty persists every profile with unsaved changes. Used by the
// maintenance loop and on shutdown.
func (ps *ProfileStore) FlushDirty(ctx context.Context) {
	ps.mu.Lock()
	ids := make([]string, 0, len(ps.entries))
	for id := range ps.entries {
		ids = append(ids, id)
	}
	ps.mu.Unlock()

	for _, id := range ids {
		e := ps.entry(id)
		e.mu.Lock()
		if e.loaded && e.dirty {
			_ = ps.persistLocked(ctx, e)
		}
		e.mu.Unlock()
	}
}

// RecentInteractions merges the session cache with the durable tail. The
// cache wins for the most recent positions; durable entries only fill in
// when the cache alone cannot satisfy count. Merged reads de-duplicate by
// interaction id rather than assuming the cache is a suffix of the log.
func (ps *ProfileStore) RecentInteractions(ctx context.Context, userID string, count int) []Interaction {
	cached := ps.cache.Recent(userID, count)
	if len(cached) >= count {
		return cached
	}

	durable, err := ps.store.RecentInteractions(ctx, userID, count)
	if err != nil {
		ps.log.Warn("read durable interactions %s: %v", userID, err)
		return cached
	}

	seen := map[string]struct{}{}
	for _, in := range cached {
		seen[in.ID] = struct{}{}
	}
	merged := make([]Interaction, 0, len(durable)+len(cached))
	for _, in := range durable {
		if _, ok := seen[in.ID]; ok {
			continue
		}
		merged = append(merged, in)
	}
	merged = append(merged, cached...)
	if len(merged) > count {
		merged = merged[len(merged)-count:]
	}
	return merged
}

// GenerateContext projects the aggregate into the summary consumed by prompt
// construction.
func (ps *ProfileStore) GenerateContext(ctx context.Context, userID string) ContextSummary {
	profile := ps.GetProfile(ctx, userID)

	summary := ContextSummary{
		UserID:               userID,
		TotalInteractions:    profile.Stats.TotalInteractions,
		LearningStyle:        profile.Learning.PreferredStyle,
		DominantMood:         profile.Emotional.DominantMood,
		RecentMoods:          recentMoods(profile.Emotional.MoodHistory, 3),
		AverageMessageLength: profile.Communication.AverageMessageLength,
		TopQuestionTypes:     topQuestionTypes(profile.Communication.QuestionTypes, 3),
		TopInterests:         topInterests(profile.Topics.Interests, 5),
		RecentTopics:         headStrings(profile.Topics.RecentTopics, 10),
	}

	for _, in := range ps.RecentInteractions(ctx, userID, 5) {
		summary.RecentInteractions = append(summary.RecentInteractions, InteractionSummary{
			UserMessage: truncateRunes(in.UserMessage, 100),
			Timestamp:   in.Timestamp,
			Topics:      in.Metadata.TopicsDetected,
		})
	}
	return summary
}

func recentMoods(history []MoodEntry, count int) []string {
	if len(history) > count {
		history = history[len(history)-count:]
	}
	out := make([]string, 0, len(history))
	for _, entry := range history {
		out = append(out, entry.label())
	}
	return out
}

func topQuestionTypes(types []string, count int) []string {
	counts := map[string]int{}
	var order []string
	for _, qt := range types {
		if _, ok := counts[qt]; !ok {
			order = append(order, qt)
		}
		counts[qt]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > count {
		order = order[:count]
	}
	return order
}

func topInterests(interests map[string]float64, count int) []TopicInterest {
	out := make([]TopicInterest, 0, len(interests))
	for topic, score := range interests {
		out = append(out, TopicInterest{Topic: topic, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Topic < out[j].Topic
	})
	if len(out) > count {
		out = out[:count]
	}
	return out
}

func headStrings(list []string, count int) []string {
	if len(list) > count {
		list = list[:count]
	}
	return append([]string{}, list...)
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
