// Package state persists the CLI's current scenario between invocations.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Session records the scenario selected with `etm use` for one environment.
type Session struct {
	ScenarioID int64     `json:"scenario_id"`
	Title      string    `json:"title,omitempty"`
	AreaCode   string    `json:"area_code,omitempty"`
	EndYear    int       `json:"end_year,omitempty"`
	SelectedAt time.Time `json:"selected_at"`
}

// Profile names the environment a session belongs to.
func Profile(beta bool) string {
	if beta {
		return "beta"
	}
	return "production"
}

// FileStore persists sessions as JSON files under a base directory, one per
// profile.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a FileStore that saves sessions under baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{baseDir: baseDir}
}

// DefaultDir returns the per-user directory sessions are kept in.
func DefaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "etm", "state")
	}
	return filepath.Join(".etm", "state")
}

// Save writes the session for profile.
func (s *FileStore) Save(profile string, session Session) error {
	p, err := s.path(profile)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("state: creating directory: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshaling: %w", err)
	}

	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("state: writing %s: %w", p, err)
	}
	return nil
}

// Load reads the session for profile.
// Returns (session, true, nil) if found, (zero, false, nil) if not found.
func (s *FileStore) Load(profile string) (Session, bool, error) {
	p, err := s.path(profile)
	if err != nil {
		return Session{}, false, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Session{}, false, nil
		}
		return Session{}, false, fmt.Errorf("state: reading %s: %w", p, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return Session{}, false, fmt.Errorf("state: parsing %s: %w", p, err)
	}
	return session, true, nil
}

// Remove deletes the session for profile. Missing sessions are not an error.
func (s *FileStore) Remove(profile string) error {
	p, err := s.path(profile)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state: removing %s: %w", p, err)
	}
	return nil
}

// ErrInvalidProfile indicates a profile name is empty or contains path
// traversal components.
var ErrInvalidProfile = errors.New("state: invalid profile")

// path returns the filesystem path for a session file.
// It rejects names that are empty, dot-segments, or contain path separators.
func (s *FileStore) path(profile string) (string, error) {
	if profile == "" || profile == "." || profile == ".." || profile != filepath.Base(profile) {
		return "", fmt.Errorf("%w: %q", ErrInvalidProfile, profile)
	}
	return filepath.Join(s.baseDir, profile+".json"), nil
}
