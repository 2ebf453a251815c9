package sqlstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/julianstephens/studyroom/internal/constants"
	"github.com/julianstephens/studyroom/internal/models"
)

func (s *DB) GetSettings(ctx context.Context) (models.Settings, error) {
	rows, err := s.query(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return models.Settings{}, err
	}
	defer rows.Close()

	settings := models.Settings{}
	count := 0
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Settings{}, err
		}
		switch key {
		case constants.SettingTimezone:
			settings.Timezone = value
		case constants.SettingChatTimeFormat:
			settings.ChatTimeFormat = value
		case constants.SettingRoomMaxNum:
			n, err := strconv.Atoi(value)
			if err != nil {
				return models.Settings{}, fmt.Errorf("parsing %s: %w", constants.SettingRoomMaxNum, err)
			}
			settings.RoomMaxNum = n
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return models.Settings{}, err
	}

	if count == 0 {
		return models.Settings{}, fmt.Errorf("settings not found")
	}
	return settings, nil
}

func (s *DB) SaveSettings(ctx context.Context, settings models.Settings) error {
	values := map[string]string{
		constants.SettingTimezone:       settings.Timezone,
		constants.SettingChatTimeFormat: settings.ChatTimeFormat,
		constants.SettingRoomMaxNum:     strconv.Itoa(settings.RoomMaxNum),
	}
	return s.inTx(ctx, func(c conn) error {
		for key, value := range values {
			if _, err := c.exec(ctx, `
				INSERT INTO settings (key, value) VALUES (?, ?)
				ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value); err != nil {
				return fmt.Errorf("failed to save setting %s: %w", key, err)
			}
		}
		return nil
	})
}

// DefaultSettings returns the settings written by Init on a fresh database.
func DefaultSettings() models.Settings {
	return models.Settings{
		Timezone:       constants.DefaultTimezone,
		ChatTimeFormat: constants.ChatTimeFormat,
		RoomMaxNum:     constants.DefaultRoomMaxNum,
	}
}

// EnsureSettings writes the defaults unless settings already exist.
func (s *DB) EnsureSettings(ctx context.Context) error {
	settings, err := s.GetSettings(ctx)
	if err == nil && settings.Timezone != "" {
		return nil
	}
	if err := s.SaveSettings(ctx, DefaultSettings()); err != nil {
		return fmt.Errorf("failed to save default settings: %w", err)
	}
	return nil
}
