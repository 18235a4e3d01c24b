// Package metadata persists and loads the crash-safe, atomically-written
// per-session JSON record described by spec §6: sessions/<id>.json.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Status is the session's coarse lifecycle state.
type Status string

const (
	StatusRunning Status = "running"
	StatusExited  Status = "exited"
)

// Metadata is the on-disk record for one session. Field names and JSON
// tags match spec §6 exactly.
type Metadata struct {
	ID           string `json:"id"`
	Command      string `json:"command"`
	Args         []string `json:"args"`
	Cwd          string `json:"cwd"`
	CreatedAt    int64  `json:"createdAt"` // ms epoch
	LastActivity int64  `json:"lastActivity"` // ms epoch
	Status       Status `json:"status"`
	ExitCode     *int   `json:"exitCode,omitempty"`
	ExitedAt     *int64 `json:"exitedAt,omitempty"`
	Cols         int    `json:"cols"`
	Rows         int    `json:"rows"`
	PID          int    `json:"pid,omitempty"`
	Title        string `json:"title,omitempty"`
	StartedAt    string `json:"startedAt,omitempty"` // ISO-8601

	TotalBytesWritten *uint64  `json:"totalBytesWritten,omitempty"`
	LastActiveAt      string   `json:"lastActiveAt,omitempty"` // ISO-8601
	BytesPerSecond    *float64 `json:"bytesPerSecond,omitempty"`
	Bps1              *float64 `json:"bps1,omitempty"`
	Bps5              *float64 `json:"bps5,omitempty"`
	Bps15             *float64 `json:"bps15,omitempty"`

	Error string `json:"error,omitempty"`
}

// Store reads and atomically writes Metadata records under a single
// sessions directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir, creating the directory if
// necessary.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("metadata: create sessions dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the sessions directory path.
func (s *Store) Dir() string {
	return s.dir
}

// path returns the JSON file path for a session id.
func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save atomically writes m by creating "<id>.json.tmp-<uuid>" and
// renaming it over "<id>.json", so a concurrent reader (front-end
// discovery scanning the directory) never observes a partial write.
func (s *Store) Save(m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("metadata: marshal %s: %w", m.ID, err)
	}

	tmpPath := filepath.Join(s.dir, fmt.Sprintf("%s.json.tmp-%s", m.ID, uuid.NewString()))
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("metadata: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(m.ID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("metadata: rename into place: %w", err)
	}
	return nil
}

// SaveBestEffort attempts an atomic Save; on failure it falls back to a
// non-atomic direct write so in-progress state isn't lost entirely, per
// spec §7's metadata-write-failure policy. Both failing is reported but
// is not fatal to the caller.
func (s *Store) SaveBestEffort(m *Metadata) error {
	if err := s.Save(m); err == nil {
		return nil
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(m.ID), data, 0600)
}

// Load reads and parses a single session's metadata.
func (s *Store) Load(id string) (*Metadata, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("metadata: corrupt record %s: %w", id, err)
	}
	return &m, nil
}

// Remove deletes a session's metadata file. Removing an already-absent
// file is not an error.
func (s *Store) Remove(id string) error {
	err := os.Remove(s.path(id))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Entry pairs a session id with its load outcome, so LoadAll can report
// corrupt records to the caller instead of silently skipping them.
type Entry struct {
	ID       string
	Metadata *Metadata
	Err      error
}

// LoadAll scans the sessions directory and loads every record found.
func (s *Store) LoadAll() ([]Entry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Entry
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != ".json" {
			continue // skip .tmp-* leftovers and anything else
		}
		id := name[:len(name)-len(".json")]
		m, err := s.Load(id)
		out = append(out, Entry{ID: id, Metadata: m, Err: err})
	}
	return out, nil
}
