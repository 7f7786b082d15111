package persona

import (
	"context"
	"testing"

	"github.com/questmind/questmind/pkg/logger"
)

func TestNormalizeTag(t *testing.T) {
	cases := map[string]string{
		"safe":          TraitCautious,
		"passive":       TraitCautious,
		"collaborative": TraitCautious,
		"risk":          TraitBold,
		"active":        TraitBold,
		"assertive":     TraitBold,
		" RISK ":        TraitBold,
		"mystery":       TraitCreative,
		"":              TraitCreative,
	}
	for raw, want := range cases {
		if got := NormalizeTag(raw); got != want {
			t.Fatalf("NormalizeTag(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestProgressionLedger_ChoicesAccumulateOnOneMission(t *testing.T) {
	ctx := context.Background()
	ps := newTestProfiles(newFakeStore())
	ledger := NewProgressionLedger(ps)

	if err := ledger.RecordChoice(ctx, "u1", "m1", "b1", "take the shortcut", "risk"); err != nil {
		t.Fatalf("record choice: %v", err)
	}
	if err := ledger.RecordChoice(ctx, "u1", "m1", "b2", "wait for backup", "safe"); err != nil {
		t.Fatalf("record choice: %v", err)
	}

	p := ps.GetProfile(ctx, "u1")
	if len(p.MissionsCompleted) != 1 {
		t.Fatalf("expected a single mission record, got %d", len(p.MissionsCompleted))
	}
	if len(p.MissionsCompleted[0].Choices) != 2 {
		t.Fatalf("expected both choices recorded, got %d", len(p.MissionsCompleted[0].Choices))
	}
	if p.Traits[TraitBold] != 1 || p.Traits[TraitCautious] != 1 {
		t.Fatalf("expected normalized tallies bold=1 cautious=1, got %#v", p.Traits)
	}
}

func TestProgressionLedger_PersistsImmediately(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	ps := NewProfileStore(store, NewSessionCache(20, 8), 5, logger.Nop())
	ledger := NewProgressionLedger(ps)

	if err := ledger.RecordChoice(ctx, "u1", "m1", "b1", "go", "active"); err != nil {
		t.Fatalf("record choice: %v", err)
	}

	stored, found, _ := store.GetProfile(ctx, "u1")
	if !found {
		t.Fatalf("expected durable profile after choice")
	}
	if stored.Traits[TraitBold] != 1 {
		t.Fatalf("expected durable tally, got %#v", stored.Traits)
	}
}

func TestProgressionLedger_CanUnlock(t *testing.T) {
	ctx := context.Background()
	ps := newTestProfiles(newFakeStore())
	ledger := NewProgressionLedger(ps)

	if ledger.CanUnlock(ctx, "u1", "m2", "m1") {
		t.Fatalf("unlock must fail before the prerequisite exists")
	}

	if err := ledger.RecordChoice(ctx, "u1", "m1", "b1", "go", "risk"); err != nil {
		t.Fatalf("record choice: %v", err)
	}
	if ledger.CanUnlock(ctx, "u1", "m2", "m1") {
		t.Fatalf("an in-progress mission must not unlock its dependents")
	}

	if err := ledger.RecordFinalSummary(ctx, "u1", "m1", "you made it through"); err != nil {
		t.Fatalf("record summary: %v", err)
	}
	if !ledger.CanUnlock(ctx, "u1", "m2", "m1") {
		t.Fatalf("completed prerequisite must unlock m2")
	}

	p := ps.GetProfile(ctx, "u1")
	if p.MissionsCompleted[0].FinalSummary != "you made it through" {
		t.Fatalf("expected summary stored, got %q", p.MissionsCompleted[0].FinalSummary)
	}
	if p.MissionsCompleted[0].CompletedAt == nil {
		t.Fatalf("expected completion timestamp")
	}
}

func TestProgressionLedger_SummaryWithoutChoicesCreatesMission(t *testing.T) {
	ctx := context.Background()
	ps := newTestProfiles(newFakeStore())
	ledger := NewProgressionLedger(ps)

	if err := ledger.RecordFinalSummary(ctx, "u1", "m9", "done"); err != nil {
		t.Fatalf("record summary: %v", err)
	}
	if !ledger.CanUnlock(ctx, "u1", "m10", "m9") {
		t.Fatalf("summary alone must complete the mission")
	}
}
