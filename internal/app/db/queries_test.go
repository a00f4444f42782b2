package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// setupTestPool connects to TEST_DATABASE_URL, migrates it and empties the relay tables.
func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Skipping: TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		t.Skipf("Skipping: could not connect to test database: %v", err)
	}

	if _, err := pool.Exec(ctx, "TRUNCATE support_chat_messages; DELETE FROM settings"); err != nil {
		t.Fatalf("failed to reset tables: %v", err)
	}

	t.Cleanup(pool.Close)
	return pool
}

func insertAt(t *testing.T, pool *pgxpool.Pool, userID, text string, at time.Time) {
	t.Helper()

	_, err := pool.Exec(context.Background(),
		"INSERT INTO support_chat_messages (user_id, message, from_moderator, created_at) VALUES ($1, $2, FALSE, $3)",
		userID, text, at)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
}

func TestInsertChatMessage(t *testing.T) {
	pool := setupTestPool(t)
	q := New(pool)
	ctx := context.Background()

	mod := "m1"
	got, err := q.InsertChatMessage(ctx, InsertChatMessageParams{
		UserID:        "u1",
		ModeratorID:   &mod,
		Message:       "hello",
		FromModerator: true,
	})
	if err != nil {
		t.Fatalf("InsertChatMessage err: %v", err)
	}

	if got.ID == 0 || got.UserID != "u1" || got.ModeratorID == nil || *got.ModeratorID != "m1" || !got.FromModerator {
		t.Fatalf("unexpected row: %+v", got)
	}
	if time.Since(got.CreatedAt) > time.Minute {
		t.Fatalf("expected created_at near now, got %s", got.CreatedAt)
	}

	plain, err := q.InsertChatMessage(ctx, InsertChatMessageParams{UserID: "u1", Message: "hi"})
	if err != nil {
		t.Fatalf("InsertChatMessage err: %v", err)
	}
	if plain.ModeratorID != nil || plain.FromModerator {
		t.Fatalf("expected NULL moderator on user message, got %+v", plain)
	}
}

func TestSettings(t *testing.T) {
	pool := setupTestPool(t)
	q := New(pool)
	ctx := context.Background()

	if _, err := q.GetSetting(ctx, ActiveModeratorSettingKey); !IsNoRows(err) {
		t.Fatalf("expected no rows for unset setting, got %v", err)
	}

	for _, v := range []string{"m1", "m2"} {
		if err := q.UpsertSetting(ctx, ActiveModeratorSettingKey, v); err != nil {
			t.Fatalf("UpsertSetting err: %v", err)
		}

		got, err := q.GetSetting(ctx, ActiveModeratorSettingKey)
		if err != nil || got != v {
			t.Fatalf("expected %q, got %q (%v)", v, got, err)
		}
	}
}

func TestDeleteChatMessagesBeforeKeepsNewer(t *testing.T) {
	pool := setupTestPool(t)
	q := New(pool)
	ctx := context.Background()

	now := time.Now()
	cutoff := now.Add(-72 * time.Hour)

	insertAt(t, pool, "u1", "old-1", now.Add(-96*time.Hour))
	insertAt(t, pool, "u2", "old-2", now.Add(-73*time.Hour))
	insertAt(t, pool, "u1", "new-1", now.Add(-71*time.Hour))
	insertAt(t, pool, "u2", "new-2", now)

	expired, err := q.ListChatMessagesBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("ListChatMessagesBefore err: %v", err)
	}
	if len(expired) != 2 || expired[0].Message != "old-1" {
		t.Fatalf("unexpected expired set: %+v", expired)
	}

	n, err := q.DeleteChatMessagesBefore(ctx, cutoff)
	if err != nil {
		t.Fatalf("DeleteChatMessagesBefore err: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted rows, got %d", n)
	}

	var left int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM support_chat_messages WHERE message LIKE 'new-%'").Scan(&left); err != nil {
		t.Fatalf("count err: %v", err)
	}
	if left != 2 {
		t.Fatalf("expected newer rows intact, found %d", left)
	}
}

func TestListChatMessagesByUser(t *testing.T) {
	pool := setupTestPool(t)
	q := New(pool)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, text := range []string{"a", "b", "c"} {
		insertAt(t, pool, "u1", text, base.Add(time.Duration(i)*time.Minute))
	}
	insertAt(t, pool, "u2", "other", base)

	got, err := q.ListChatMessagesByUser(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("ListChatMessagesByUser err: %v", err)
	}
	if len(got) != 2 || got[0].Message != "b" || got[1].Message != "c" {
		t.Fatalf("expected latest two oldest first, got %+v", got)
	}

	empty, err := q.ListChatMessagesByUser(ctx, "nobody", 10)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v %v", empty, err)
	}
}
