package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"companysync/internal/app/db"
)

// memStore is an in-memory stand-in for the Postgres queries.
type memStore struct {
	mu       sync.Mutex
	rows     []db.ChatMessage
	settings map[string]string
	nextID   int64
	now      time.Time

	insertErr  error
	settingErr error
	deleteErr  error
}

func newMemStore() *memStore {
	return &memStore{
		settings: make(map[string]string),
		now:      time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) InsertChatMessage(ctx context.Context, arg db.InsertChatMessageParams) (db.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insertErr != nil {
		return db.ChatMessage{}, s.insertErr
	}

	s.nextID++
	m := db.ChatMessage{
		ID:            s.nextID,
		UserID:        arg.UserID,
		ModeratorID:   arg.ModeratorID,
		Message:       arg.Message,
		FromModerator: arg.FromModerator,
		CreatedAt:     s.now,
	}
	s.rows = append(s.rows, m)
	return m, nil
}

func (s *memStore) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.settingErr != nil {
		return "", s.settingErr
	}

	v, ok := s.settings[key]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return v, nil
}

func (s *memStore) setActiveModerator(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[db.ActiveModeratorSettingKey] = id
}

func (s *memStore) add(userID, text string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.rows = append(s.rows, db.ChatMessage{ID: s.nextID, UserID: userID, Message: text, CreatedAt: at})
}

func (s *memStore) ListChatMessagesBefore(ctx context.Context, cutoff time.Time) ([]db.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []db.ChatMessage{}
	for _, m := range s.rows {
		if m.CreatedAt.Before(cutoff) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) DeleteChatMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deleteErr != nil {
		return 0, s.deleteErr
	}

	kept := s.rows[:0]
	var deleted int64
	for _, m := range s.rows {
		if m.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, m)
	}
	s.rows = kept
	return deleted, nil
}

func (s *memStore) snapshot() []db.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]db.ChatMessage(nil), s.rows...)
}

// memArchive records uploads.
type memArchive struct {
	keys   []string
	bodies []string
	err    error
}

func (a *memArchive) Upload(ctx context.Context, key string, contentType string, body io.Reader) error {
	if a.err != nil {
		return a.err
	}

	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	a.keys = append(a.keys, key)
	a.bodies = append(a.bodies, string(b))
	return nil
}

var errDatabaseDown = errors.New("database down")
