package relay

import (
	"context"
	"fmt"
	"strings"

	"companysync/internal/app/db"
)

// SettingsReader reads a key from the shared settings table.
type SettingsReader interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// ModeratorSource answers who currently receives unaddressed user messages.
// An empty id means nobody is designated.
type ModeratorSource interface {
	ActiveModeratorID(ctx context.Context) (string, error)
}

// SettingsModeratorSource reads the active moderator from the settings table on every call.
// Nothing is cached: a change to the setting applies to the next routed message.
type SettingsModeratorSource struct {
	settings SettingsReader
}

// NewSettingsModeratorSource returns a ModeratorSource backed by settings.
func NewSettingsModeratorSource(settings SettingsReader) *SettingsModeratorSource {
	return &SettingsModeratorSource{settings: settings}
}

// ActiveModeratorID returns the current value of activeSupportModeratorId.
func (s *SettingsModeratorSource) ActiveModeratorID(ctx context.Context) (string, error) {
	value, err := s.settings.GetSetting(ctx, db.ActiveModeratorSettingKey)
	if err != nil {
		if db.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read active moderator: %w", err)
	}

	return strings.TrimSpace(value), nil
}
