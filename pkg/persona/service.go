package persona

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/questmind/questmind/pkg/logger"
	"github.com/questmind/questmind/pkg/providers"
)

// Config configures the persona subsystem.
type Config struct {
	Workspace       string
	Model           string
	SessionWindow   int
	CachedUsers     int
	LogCap          int
	PersistInterval int
	MaintenanceCron string
}

// Service is the orchestrator for the personalization core: it owns the
// durable store, session cache, profile aggregates, progression ledger and
// trait classifier, and drives the per-turn control flow.
type Service struct {
	cfg        Config
	log        logger.Logger
	store      Store
	cache      *SessionCache
	profiles   *ProfileStore
	ledger     *ProgressionLedger
	classifier *HybridTraitClassifier
	topics     *TopicExtractor
	cron       *gronx.Gronx

	stopCh chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// NewService wires the subsystem. provider may be nil, in which case trait
// classification runs on the keyword scorer alone.
func NewService(cfg Config, provider providers.LLMProvider, log logger.Logger) (*Service, error) {
	if strings.TrimSpace(cfg.Workspace) == "" {
		return nil, fmt.Errorf("persona workspace is required")
	}
	if cfg.SessionWindow <= 0 {
		cfg.SessionWindow = 20
	}
	if cfg.CachedUsers <= 0 {
		cfg.CachedUsers = 256
	}
	if cfg.LogCap <= 0 {
		cfg.LogCap = defaultLogCap
	}
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = 5
	}
	if strings.TrimSpace(cfg.MaintenanceCron) == "" {
		cfg.MaintenanceCron = "*/5 * * * *"
	}
	log = logger.OrNop(log)

	dbPath := filepath.Join(cfg.Workspace, "state", "questmind.db")
	store, err := NewSQLiteStore(dbPath, cfg.LogCap)
	if err != nil {
		return nil, err
	}

	cache := NewSessionCache(cfg.SessionWindow, cfg.CachedUsers)
	profiles := NewProfileStore(store, cache, cfg.PersistInterval, log)

	svc := &Service{
		cfg:      cfg,
		log:      log,
		store:    store,
		cache:    cache,
		profiles: profiles,
		ledger:   NewProgressionLedger(profiles),
		topics:   NewTopicExtractor(),
		cron:     gronx.New(),
		stopCh:   make(chan struct{}),
	}
	if provider != nil {
		svc.classifier = NewHybridTraitClassifier(provider, cfg.Model, log)
	}

	svc.wg.Add(1)
	go svc.runMaintenance()
	return svc, nil
}

// Close stops maintenance, flushes dirty profiles and closes the store.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.profiles.FlushDirty(context.Background())
		s.closeErr = s.store.Close()
	})
	return s.closeErr
}

// RecordTurn folds one conversational turn into the user's profile. The
// classifier call (the only slow external dependency) completes before any
// per-user lock is taken; durable logging is best-effort, and a persistence
// fault comes back as a warning with the in-memory fold already applied.
func (s *Service) RecordTurn(ctx context.Context, userID, userMessage, aiResponse string, meta InteractionMetadata) (TraitClassification, error) {
	if meta.TopicsDetected == nil {
		meta.TopicsDetected = s.topics.Extract(userMessage)
	}

	var cls TraitClassification
	if s.classifier != nil {
		currentTraits := s.profiles.GetProfile(ctx, userID).Traits
		cls = s.classifier.Classify(ctx, userMessage, "", currentTraits)
		meta.TraitsObserved = cls.TraitsToAdd
	}

	in := Interaction{
		ID:          "int-" + uuid.NewString(),
		UserID:      userID,
		Timestamp:   time.Now(),
		UserMessage: userMessage,
		AIResponse:  aiResponse,
		Metadata:    meta,
	}

	var warn error
	if err := s.store.AppendInteraction(ctx, in); err != nil {
		s.log.Warn("durable interaction append for %s: %v", userID, err)
		warn = err
	}
	s.cache.Append(userID, in)

	if err := s.profiles.FoldInteraction(ctx, userID, in); err != nil {
		warn = errors.Join(warn, err)
	}
	return cls, warn
}

// BuildContext returns the prompt-facing summary of a user's profile.
func (s *Service) BuildContext(ctx context.Context, userID string) ContextSummary {
	return s.profiles.GenerateContext(ctx, userID)
}

// Profile returns a copy of the user's aggregate profile.
func (s *Service) Profile(ctx context.Context, userID string) UserProfile {
	return s.profiles.GetProfile(ctx, userID)
}

// RecentInteractions exposes the merged cache + durable read path.
func (s *Service) RecentInteractions(ctx context.Context, userID string, count int) []Interaction {
	return s.profiles.RecentInteractions(ctx, userID, count)
}

// ClassifyTraits runs the hybrid classification without folding anything.
func (s *Service) ClassifyTraits(ctx context.Context, userID, text, convContext string) TraitClassification {
	if s.classifier == nil {
		kw := NewKeywordTraitScorer().Score(text)
		return TraitClassification{
			TraitsToAdd:    kw.TraitsToAdd,
			TraitsToRemove: kw.TraitsToRemove,
			Confidence:     kw.Confidence,
			Reasoning:      kw.Reasoning,
			Method:         MethodKeyword,
		}
	}
	currentTraits := s.profiles.GetProfile(ctx, userID).Traits
	return s.classifier.Classify(ctx, text, convContext, currentTraits)
}

// RecordChoice forwards a mission decision to the progression ledger.
func (s *Service) RecordChoice(ctx context.Context, userID, missionID, blockID, choiceText, rawTag string) error {
	return s.ledger.RecordChoice(ctx, userID, missionID, blockID, choiceText, rawTag)
}

// RecordFinalSummary finalizes a mission.
func (s *Service) RecordFinalSummary(ctx context.Context, userID, missionID, summary string) error {
	return s.ledger.RecordFinalSummary(ctx, userID, missionID, summary)
}

// CanUnlock reports whether the prerequisite mission has been completed.
func (s *Service) CanUnlock(ctx context.Context, userID, missionID, requiredMissionID string) bool {
	return s.ledger.CanUnlock(ctx, userID, missionID, requiredMissionID)
}

// Persist forces a checkpoint of one user's profile.
func (s *Service) Persist(ctx context.Context, userID string) error {
	return s.profiles.Persist(ctx, userID)
}

// runMaintenance flushes unpersisted profiles whenever the configured cron
// expression comes due. Minute granularity; one check per minute.
func (s *Service) runMaintenance() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			due, err := s.cron.IsDue(s.cfg.MaintenanceCron, now)
			if err != nil {
				s.log.Warn("maintenance cron %q: %v", s.cfg.MaintenanceCron, err)
				continue
			}
			if due {
				s.profiles.FlushDirty(context.Background())
			}
		}
	}
}
