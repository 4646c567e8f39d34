package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Store reads and writes the settings table. The restyling path only
// calls Load; Set and EnsureDefaults belong to the companion writer.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore wraps an open settings database.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Load reads all keys in one pass and decodes them into a Settings
// value. Missing keys keep their zero value.
func (s *Store) Load(ctx context.Context) (Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return Settings{}, fmt.Errorf("settings: load: %w", err)
	}
	defer rows.Close()

	var st Settings
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, fmt.Errorf("settings: scan: %w", err)
		}
		if err := decodeKey(&st, key, value); err != nil {
			s.logger.Warn("settings: bad value, skipping", "key", key, "error", err)
		}
	}
	return st, rows.Err()
}

// EnsureDefaults inserts the default value for every key that does not
// exist yet. Existing values are never touched, so it is safe to run on
// every start (the install/update initialisation contract).
func (s *Store) EnsureDefaults(ctx context.Context) error {
	d := Defaults()
	defaults := map[string]any{
		"textSize":       d.TextSize,
		"lineHeight":     d.LineHeight,
		"onOff":          d.OnOff,
		"font":           d.Font,
		"whitelisted":    []string{},
		"customSettings": []SiteOverride{},
		"customFonts":    []json.RawMessage{},
	}
	for key, val := range defaults {
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("settings: marshal default %s: %w", key, err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT OR IGNORE INTO settings (key, value, updated_at)
			VALUES (?, ?, ?)`,
			key, string(data), time.Now().Unix())
		if err != nil {
			return fmt.Errorf("settings: insert default %s: %w", key, err)
		}
	}
	return nil
}

// Set upserts one key. Used by the companion CLI, never by the engine.
func (s *Store) Set(ctx context.Context, key string, val any) error {
	data, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("settings: marshal %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}

func decodeKey(st *Settings, key, value string) error {
	switch key {
	case "textSize":
		return json.Unmarshal([]byte(value), &st.TextSize)
	case "lineHeight":
		return json.Unmarshal([]byte(value), &st.LineHeight)
	case "onOff":
		return json.Unmarshal([]byte(value), &st.OnOff)
	case "font":
		return json.Unmarshal([]byte(value), &st.Font)
	case "whitelisted":
		return json.Unmarshal([]byte(value), &st.Whitelist)
	case "customSettings":
		return json.Unmarshal([]byte(value), &st.CustomSettings)
	case "customFonts":
		return json.Unmarshal([]byte(value), &st.CustomFonts)
	}
	return nil // unknown keys are ignored
}
