package relay

import (
	"time"

	"companysync/internal/app/db"
)

// TypeMessage is the only inbound frame type the relay acts on.
const TypeMessage = "message"

const (
	// FromUser marks frames forwarded from a plain user to the active moderator.
	FromUser = "user"

	// FromModerator marks frames forwarded from a moderator to a plain user.
	FromModerator = "moderator"
)

// isoMillis matches the ISO-8601 form browsers produce with Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// InboundFrame is what clients send.
type InboundFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
	To   string `json:"to,omitempty"`
}

// OutboundFrame is what the relay pushes to the counterpart of a message.
type OutboundFrame struct {
	From        string  `json:"from"`
	Text        string  `json:"text"`
	UserID      string  `json:"userId"`
	ModeratorID *string `json:"moderatorId"`
	CreatedAt   string  `json:"created_at"`
}

// newOutboundFrame builds the forward frame for a persisted message.
func newOutboundFrame(from string, stored db.ChatMessage, moderatorID string) OutboundFrame {
	return OutboundFrame{
		From:        from,
		Text:        stored.Message,
		UserID:      stored.UserID,
		ModeratorID: &moderatorID,
		CreatedAt:   FormatTimestamp(stored.CreatedAt),
	}
}

// FormatTimestamp renders t as a UTC ISO-8601 string with millisecond precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(isoMillis)
}
