// Package settings stores scriptloc user settings in the XDG data directory:
//
//	$XDG_DATA_HOME/scriptloc/  (default: ~/.local/share/scriptloc/)
//
// Files stored:
//   - auth.json     API keys per completion provider
//   - prompts.json  optional prompt template overrides
//
// auth.json is a JSON object keyed by provider ID:
//
//	{"openai": {"key": "sk-...", "savedAt": 1718000000}}
//
// File permissions are 0600 (owner read/write only).
//
// Lookup order for API keys:
//  1. --api-key flag (highest priority)
//  2. SCRIPTLOC_API_KEY, then OPENAI_API_KEY (API_key.env and .env included)
//  3. This store
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	dataDirName = "scriptloc"
	authFile    = "auth.json"
	promptsFile = "prompts.json"
)

// Entry is the stored configuration of one provider.
type Entry struct {
	Key     string `json:"key,omitempty"`
	BaseURL string `json:"baseUrl,omitempty"` // custom-openai endpoints
	SavedAt int64  `json:"savedAt,omitempty"` // Unix timestamp
}

// Store holds all provider entries, keyed by provider ID.
type Store map[string]*Entry

// Providers returns the stored provider IDs in sorted order.
func (s Store) Providers() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

// DataDir returns the scriptloc data directory.
// Respects $XDG_DATA_HOME (falls back to ~/.local/share).
func DataDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, dataDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", dataDirName), nil
}

func authPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, authFile), nil
}

// FilePath returns the auth.json path for display purposes.
func FilePath() string {
	p, err := authPath()
	if err != nil {
		return ""
	}
	return p
}

// PromptsFilePath returns the path of the user's prompts.json.
func PromptsFilePath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, promptsFile), nil
}

// ---------------------------------------------------------------------------
// Load / Save
// ---------------------------------------------------------------------------

// Load reads the store from disk.
// Returns an empty store if the file doesn't exist or is invalid.
func Load() Store {
	path, err := authPath()
	if err != nil {
		return make(Store)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return make(Store)
	}
	var store Store
	if err := json.Unmarshal(data, &store); err != nil || store == nil {
		return make(Store)
	}
	return store
}

// Save writes the store to disk with 0600 permissions.
func Save(store Store) error {
	path, err := authPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing auth file: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Per-provider access
// ---------------------------------------------------------------------------

// Get returns the entry for a provider, or nil if not found.
func Get(providerID string) *Entry {
	return Load()[providerID]
}

// SetAPIKey stores an API key and optional base URL for a provider (upsert).
func SetAPIKey(providerID, key, baseURL string) error {
	store := Load()
	store[providerID] = &Entry{Key: key, BaseURL: baseURL, SavedAt: time.Now().Unix()}
	return Save(store)
}

// GetAPIKey returns the stored API key for a provider, or "".
func GetAPIKey(providerID string) string {
	if e := Get(providerID); e != nil {
		return e.Key
	}
	return ""
}

// GetBaseURL returns the stored base URL for a provider, or "".
func GetBaseURL(providerID string) string {
	if e := Get(providerID); e != nil {
		return e.BaseURL
	}
	return ""
}

// Remove deletes the entry for a provider.
func Remove(providerID string) error {
	store := Load()
	if _, ok := store[providerID]; !ok {
		return nil
	}
	delete(store, providerID)
	return Save(store)
}

// RemoveAll deletes auth.json.
func RemoveAll() error {
	path, err := authPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing auth file: %w", err)
	}
	return nil
}

// MaskKey returns a masked version of a key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
