package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"companysync/internal/app/db"
	"companysync/internal/app/storage"
	"companysync/internal/pkg/logx"
)

// RetentionStore is the persistence the sweep needs.
type RetentionStore interface {
	DeleteChatMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListChatMessagesBefore(ctx context.Context, cutoff time.Time) ([]db.ChatMessage, error)
}

// Sweeper periodically deletes messages older than the retention window. With an archive
// configured, expired rows are uploaded as JSON lines first and only deleted after the
// upload succeeds.
type Sweeper struct {
	store     RetentionStore
	archive   storage.ArchiveStore
	retention time.Duration
	interval  time.Duration

	now    func() time.Time
	logger zerolog.Logger
}

// NewSweeper returns a Sweeper. archive may be nil.
func NewSweeper(store RetentionStore, archive storage.ArchiveStore, retention, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		archive:   archive,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		logger:    logx.Component("sweeper"),
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().
		Dur("retention", s.retention).
		Dur("interval", s.interval).
		Bool("archive", s.archive != nil).
		Msg("Retention sweep started.")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Retention sweep stopped.")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error().Err(err).Msg("Retention sweep failed.")
			}
		}
	}
}

// Sweep removes every message created before now minus the retention window and returns
// how many rows were deleted.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.retention)

	if s.archive != nil {
		if err := s.archiveBefore(ctx, cutoff); err != nil {
			return 0, err
		}
	}

	deleted, err := s.store.DeleteChatMessagesBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired messages: %w", err)
	}

	s.logger.Info().
		Time("cutoff", cutoff).
		Int64("deleted", deleted).
		Msg("Expired chat messages deleted.")

	return deleted, nil
}

func (s *Sweeper) archiveBefore(ctx context.Context, cutoff time.Time) error {
	expired, err := s.store.ListChatMessagesBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to list expired messages: %w", err)
	}

	if len(expired) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, m := range expired {
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("failed to encode archive row %d: %w", m.ID, err)
		}
	}

	key := ArchiveKey(cutoff, uuid.NewString())
	if err := s.archive.Upload(ctx, key, "application/x-ndjson", &buf); err != nil {
		return err
	}

	s.logger.Info().Str("key", key).Int("rows", len(expired)).Msg("Expired chat messages archived.")
	return nil
}

// ArchiveKey names the archive object for a sweep with the given cutoff.
func ArchiveKey(cutoff time.Time, id string) string {
	return fmt.Sprintf("chat-archive/%s/%s.jsonl", cutoff.UTC().Format("2006/01/02"), id)
}
