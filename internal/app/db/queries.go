package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ActiveModeratorSettingKey is the settings row naming the moderator that receives
// unaddressed user messages.
const ActiveModeratorSettingKey = "activeSupportModeratorId"

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the relay's SQL against a DBTX.
type Queries struct {
	db DBTX
}

// New wraps db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// ChatMessage is one persisted support chat message.
type ChatMessage struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"userId"`
	ModeratorID   *string   `json:"moderatorId"`
	Message       string    `json:"message"`
	FromModerator bool      `json:"fromModerator"`
	CreatedAt     time.Time `json:"created_at"`
}

// InsertChatMessageParams are the caller-supplied columns of a new message.
type InsertChatMessageParams struct {
	UserID        string
	ModeratorID   *string
	Message       string
	FromModerator bool
}

const insertChatMessage = `
INSERT INTO support_chat_messages (user_id, moderator_id, message, from_moderator)
VALUES ($1, $2, $3, $4)
RETURNING id, user_id, moderator_id, message, from_moderator, created_at`

// InsertChatMessage appends a message and returns the stored row.
func (q *Queries) InsertChatMessage(ctx context.Context, arg InsertChatMessageParams) (ChatMessage, error) {
	row := q.db.QueryRow(ctx, insertChatMessage, arg.UserID, arg.ModeratorID, arg.Message, arg.FromModerator)

	var m ChatMessage
	err := row.Scan(&m.ID, &m.UserID, &m.ModeratorID, &m.Message, &m.FromModerator, &m.CreatedAt)
	return m, err
}

const getSetting = `SELECT value FROM settings WHERE key = $1`

// GetSetting returns the value of key, or pgx.ErrNoRows when it is unset.
func (q *Queries) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRow(ctx, getSetting, key).Scan(&value)
	return value, err
}

const upsertSetting = `
INSERT INTO settings (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`

// UpsertSetting stores value under key.
func (q *Queries) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := q.db.Exec(ctx, upsertSetting, key, value)
	return err
}

const deleteChatMessagesBefore = `DELETE FROM support_chat_messages WHERE created_at < $1`

// DeleteChatMessagesBefore removes every message created before cutoff and returns the count.
func (q *Queries) DeleteChatMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, deleteChatMessagesBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const listChatMessagesBefore = `
SELECT id, user_id, moderator_id, message, from_moderator, created_at
FROM support_chat_messages
WHERE created_at < $1
ORDER BY created_at ASC, id ASC`

// ListChatMessagesBefore returns every message created before cutoff, oldest first.
func (q *Queries) ListChatMessagesBefore(ctx context.Context, cutoff time.Time) ([]ChatMessage, error) {
	rows, err := q.db.Query(ctx, listChatMessagesBefore, cutoff)
	if err != nil {
		return nil, err
	}
	return collectChatMessages(rows)
}

const listChatMessagesByUser = `
SELECT id, user_id, moderator_id, message, from_moderator, created_at
FROM (
    SELECT id, user_id, moderator_id, message, from_moderator, created_at
    FROM support_chat_messages
    WHERE user_id = $1
    ORDER BY created_at DESC, id DESC
    LIMIT $2
) latest
ORDER BY created_at ASC, id ASC`

// ListChatMessagesByUser returns the latest limit messages of a user's conversation,
// oldest first.
func (q *Queries) ListChatMessagesByUser(ctx context.Context, userID string, limit int) ([]ChatMessage, error) {
	rows, err := q.db.Query(ctx, listChatMessagesByUser, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectChatMessages(rows)
}

func collectChatMessages(rows pgx.Rows) ([]ChatMessage, error) {
	messages, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ChatMessage, error) {
		var m ChatMessage
		err := row.Scan(&m.ID, &m.UserID, &m.ModeratorID, &m.Message, &m.FromModerator, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, err
	}

	if messages == nil {
		messages = []ChatMessage{}
	}
	return messages, nil
}
