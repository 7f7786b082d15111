package persona

import (
	"context"
	"strings"
	"time"
)

// tagNormalization folds raw decision tags into trait names. Unrecognized
// non-empty tags fall through to "creative" for compatibility with existing
// mission content.
var tagNormalization = map[string]string{
	"safe":          TraitCautious,
	"passive":       TraitCautious,
	"collaborative": TraitCautious,
	"risk":          TraitBold,
	"active":        TraitBold,
	"assertive":     TraitBold,
}

// NormalizeTag maps a raw mission tag to its trait name.
func NormalizeTag(raw string) string {
	tag := strings.ToLower(strings.TrimSpace(raw))
	if trait, ok := tagNormalization[tag]; ok {
		return trait
	}
	return TraitCreative
}

// ProgressionLedger records mission choices, completion, and the trait
// tallies they earn. Progression is lower-frequency and higher-value than
// chat turns, so every mutation persists immediately.
type ProgressionLedger struct {
	profiles *ProfileStore
}

func NewProgressionLedger(profiles *ProfileStore) *ProgressionLedger {
	return &ProgressionLedger{profiles: profiles}
}

// RecordChoice appends the raw choice to the mission's audit trail (creating
// the mission record if absent) and increments the normalized trait tally.
func (l *ProgressionLedger) RecordChoice(ctx context.Context, userID, missionID, blockID, choiceText, rawTag string) error {
	return l.profiles.Update(ctx, userID, true, func(p *UserProfile) {
		mission := findOrCreateMission(p, missionID)
		mission.Choices = append(mission.Choices, MissionChoice{
			BlockID:    blockID,
			ChoiceText: choiceText,
			RawTag:     rawTag,
		})
		p.Traits[NormalizeTag(rawTag)]++
	})
}

// RecordFinalSummary sets the mission's closing summary and stamps its
// completion time, creating the mission record if absent.
func (l *ProgressionLedger) RecordFinalSummary(ctx context.Context, userID, missionID, summary string) error {
	return l.profiles.Update(ctx, userID, true, func(p *UserProfile) {
		mission := findOrCreateMission(p, missionID)
		mission.FinalSummary = summary
		now := time.Now()
		mission.CompletedAt = &now
	})
}

// CanUnlock reports whether missionID's prerequisite has been completed.
func (l *ProgressionLedger) CanUnlock(ctx context.Context, userID, missionID, requiredMissionID string) bool {
	profile := l.profiles.GetProfile(ctx, userID)
	for _, mission := range profile.MissionsCompleted {
		if mission.MissionID == requiredMissionID {
			return mission.CompletedAt != nil
		}
	}
	return false
}

// findOrCreateMission returns a pointer into p.MissionsCompleted, appending
// a fresh record when the mission is unseen. A second reference to the same
// missionID mutates the existing record rather than duplicating it.
func findOrCreateMission(p *UserProfile, missionID string) *Mission {
	for i := range p.MissionsCompleted {
		if p.MissionsCompleted[i].MissionID == missionID {
			return &p.MissionsCompleted[i]
		}
	}
	p.MissionsCompleted = append(p.MissionsCompleted, Mission{MissionID: missionID})
	return &p.MissionsCompleted[len(p.MissionsCompleted)-1]
}
