package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/lectio/internal/common"
	"github.com/ternarybob/lectio/internal/interfaces"
	"github.com/ternarybob/lectio/internal/models"
)

// Service runs the stale-processing reaper on a cron schedule. A document
// stuck in processing past the threshold means its background job died
// with the process (or panicked before its terminal write); the reaper
// fails it through the same conditional update the jobs use, so a job
// that is merely slow and finishes first wins the race cleanly.
type Service struct {
	storage        interfaces.DocumentStorage
	cron           *cron.Cron
	schedule       string
	staleThreshold time.Duration
	logger         arbor.ILogger
	mu             sync.Mutex
	running        bool
}

// NewService creates the maintenance scheduler.
func NewService(storage interfaces.DocumentStorage, cfg *common.Config, logger arbor.ILogger) (*Service, error) {
	threshold := 15 * time.Minute
	if cfg.Maintenance.StaleThreshold != "" {
		parsed, err := time.ParseDuration(cfg.Maintenance.StaleThreshold)
		if err != nil {
			return nil, fmt.Errorf("invalid stale threshold %q: %w", cfg.Maintenance.StaleThreshold, err)
		}
		threshold = parsed
	}

	schedule := cfg.Maintenance.Schedule
	if schedule == "" {
		schedule = "*/5 * * * *"
	}

	return &Service{
		storage:        storage,
		cron:           cron.New(),
		schedule:       schedule,
		staleThreshold: threshold,
		logger:         logger,
	}, nil
}

// Start registers the reaper and begins the cron loop.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if _, err := s.cron.AddFunc(s.schedule, s.reapStaleProcessing); err != nil {
		return fmt.Errorf("failed to register reaper schedule %q: %w", s.schedule, err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", s.schedule).
		Dur("stale_threshold", s.staleThreshold).
		Msg("Maintenance scheduler started")

	return nil
}

// Stop halts the cron loop and waits for an in-flight run to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false

	s.logger.Info().Msg("Maintenance scheduler stopped")
}

// reapStaleProcessing fails documents whose vectorization job was lost.
func (s *Service) reapStaleProcessing() {
	cutoff := time.Now().Add(-s.staleThreshold)

	docs, err := s.storage.ListStaleProcessing(cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list stale processing documents")
		return
	}
	if len(docs) == 0 {
		return
	}

	failed := models.DocumentStatusFailed
	reaped := 0
	for _, doc := range docs {
		err := s.storage.UpdateDocumentIf(doc.ID, models.DocumentStatusProcessing, models.DocumentPatch{
			Status: &failed,
		})
		if err != nil {
			// The job finished or the document was deleted between the
			// listing and this write; nothing to do.
			s.logger.Debug().
				Err(err).
				Str("document_id", doc.ID).
				Msg("Stale document resolved itself")
			continue
		}
		reaped++
		s.logger.Warn().
			Str("document_id", doc.ID).
			Str("last_update", doc.UpdatedAt.Format(time.RFC3339)).
			Msg("Failed stale processing document")
	}

	if reaped > 0 {
		s.logger.Info().
			Int("reaped", reaped).
			Int("candidates", len(docs)).
			Msg("Stale processing reap completed")
	}
}
