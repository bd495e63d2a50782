package domain

import (
	"context"
	"encoding/json"
)

// SettingsDocument is a schemaless JSON object persisted by the settings
// store. It is kept as raw JSON so key order and number formatting survive a
// round trip.
type SettingsDocument = json.RawMessage

// SettingsStore persists settings documents under a caller-chosen key (a file
// path for the file backend).
type SettingsStore interface {
	// Load returns the stored document or an error wrapping ErrNotFound.
	Load(ctx context.Context, key string) (SettingsDocument, error)
	// Save replaces the document stored under key.
	Save(ctx context.Context, key string, doc SettingsDocument) error
	// Name returns the backend identifier (e.g. "file").
	Name() string
}

// SettingsManager is the settings surface exposed by the API.
type SettingsManager interface {
	Get(ctx context.Context, path string) (SettingsDocument, error)
	Set(ctx context.Context, doc SettingsDocument, path string) (string, error)
}
