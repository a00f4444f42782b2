package handler

import (
	"context"

	"companysync/internal/app/db"
	"companysync/internal/app/relay"
	"companysync/internal/configs"
	"companysync/internal/pkg/limiter"
)

// Store is the persistence the HTTP surface reads and writes.
type Store interface {
	ListChatMessagesByUser(ctx context.Context, userID string, limit int) ([]db.ChatMessage, error)
	GetSetting(ctx context.Context, key string) (string, error)
	UpsertSetting(ctx context.Context, key, value string) error
}

type AppDeps struct {
	Hub            *relay.Hub
	Config         *configs.AppConfig
	Store          Store
	UpgradeLimiter *limiter.IPRateLimiter
	APILimiter     *limiter.IPRateLimiter
}
