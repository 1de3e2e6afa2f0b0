// Package session persists pipeline state to disk so an interrupted run can be resumed.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shipdecl/internal/domain"
)

const (
	statePrefix = "state_"
	rawPrefix   = "raw_"
)

// Snapshot is the serializable state of one pipeline session.
type Snapshot struct {
	Timestamp    time.Time                 `json:"timestamp"`
	Ledger       domain.Ledger             `json:"ledger"`
	Inbound      []domain.InboundShipment  `json:"inbound_shipments"`
	Outbound     []domain.OutboundShipment `json:"outbound_shipments"`
	RawResponses map[string]string         `json:"raw_responses"`
	AuditEntries []domain.AuditEntry       `json:"audit_entries"`
	Settings     map[string]string         `json:"user_settings"`
	Stage        string                    `json:"processing_stage"`
}

// Summary describes a saved session.
type Summary struct {
	SessionID     string    `json:"session_id"`
	HasState      bool      `json:"has_state"`
	Timestamp     time.Time `json:"timestamp"`
	LedgerRecords int       `json:"ledger_records"`
	InboundCount  int       `json:"inbound_count"`
	OutboundCount int       `json:"outbound_count"`
	Stage         string    `json:"processing_stage"`
	RawResponses  int       `json:"raw_responses_count"`
}

// NewSessionID returns a short random session id.
func NewSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Store saves and restores one session's state under dir. Raw model responses are
// kept in a separate file because they dominate the state size.
type Store struct {
	mu        sync.Mutex
	dir       string
	sessionID string
	raw       map[string]string
	current   *Snapshot
}

// NewStore creates the state directory if needed. An empty sessionID generates one.
func NewStore(dir, sessionID string) (*Store, error) {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating session dir: %w", err)
	}
	return &Store{dir: dir, sessionID: sessionID, raw: map[string]string{}}, nil
}

// SessionID returns the session this store writes.
func (s *Store) SessionID() string { return s.sessionID }

func (s *Store) stateFile() string {
	return filepath.Join(s.dir, statePrefix+s.sessionID+".json")
}

func (s *Store) rawFile() string {
	return filepath.Join(s.dir, rawPrefix+s.sessionID+".json")
}

// SaveRawResponse records the raw model output for a document and flushes it to disk.
func (s *Store) SaveRawResponse(documentID, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw[documentID] = raw
	if err := writeJSON(s.rawFile(), s.raw); err != nil {
		return fmt.Errorf("saving raw responses: %w", err)
	}
	return nil
}

// RawResponse returns the saved raw output for a document.
func (s *Store) RawResponse(documentID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.raw[documentID]
	return raw, ok
}

// RawResponses returns a copy of all saved raw outputs.
func (s *Store) RawResponses() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.raw))
	for k, v := range s.raw {
		out[k] = v
	}
	return out
}

// Save writes a snapshot. The raw responses recorded so far are attached to it.
func (s *Store) Save(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now().UTC()
	}
	snap.RawResponses = make(map[string]string, len(s.raw))
	for k, v := range s.raw {
		snap.RawResponses[k] = v
	}
	if err := writeJSON(s.stateFile(), snap); err != nil {
		return fmt.Errorf("saving session state: %w", err)
	}
	s.current = &snap
	log.Printf("session.Store.Save: state saved to %s", s.stateFile())
	return nil
}

// Load reads the saved snapshot. It returns domain.ErrNoSession when nothing was saved.
func (s *Store) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (*Snapshot, error) {
	var snap Snapshot
	if err := readJSON(s.stateFile(), &snap); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNoSession
		}
		return nil, fmt.Errorf("loading session state: %w", err)
	}
	raw := map[string]string{}
	if err := readJSON(s.rawFile(), &raw); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("session.Store.Load: raw responses unreadable: %v", err)
	}
	for k, v := range snap.RawResponses {
		if _, ok := raw[k]; !ok {
			raw[k] = v
		}
	}
	s.raw = raw
	s.current = &snap
	return &snap, nil
}

// Exists reports whether a snapshot was saved for this session.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.stateFile())
	return err == nil
}

// Clear deletes the session's files and in-memory state.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.raw = map[string]string{}
	for _, f := range []string{s.stateFile(), s.rawFile()} {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clearing session: %w", err)
		}
	}
	return nil
}

// Summary describes the current or saved state.
func (s *Store) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		if _, err := s.loadLocked(); err != nil {
			return Summary{SessionID: s.sessionID}
		}
	}
	return summarize(s.sessionID, s.current)
}

func summarize(id string, snap *Snapshot) Summary {
	return Summary{
		SessionID:     id,
		HasState:      true,
		Timestamp:     snap.Timestamp,
		LedgerRecords: len(snap.Ledger),
		InboundCount:  len(snap.Inbound),
		OutboundCount: len(snap.Outbound),
		Stage:         snap.Stage,
		RawResponses:  len(snap.RawResponses),
	}
}

// ListSessions returns the readable sessions in dir, newest first.
func ListSessions(dir string) ([]Summary, error) {
	files, err := filepath.Glob(filepath.Join(dir, statePrefix+"*.json"))
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	out := []Summary{}
	for _, f := range files {
		var snap Snapshot
		if err := readJSON(f, &snap); err != nil {
			log.Printf("session.ListSessions: skipping %s: %v", f, err)
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(f), statePrefix), ".json")
		out = append(out, summarize(id, &snap))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// CleanupOlderThan removes session files not modified within maxAge and returns how
// many files were deleted.
func CleanupOlderThan(dir string, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, prefix := range []string{statePrefix, rawPrefix} {
		files, err := filepath.Glob(filepath.Join(dir, prefix+"*.json"))
		if err != nil {
			return removed, fmt.Errorf("listing sessions: %w", err)
		}
		for _, f := range files {
			info, err := os.Stat(f)
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			if err := os.Remove(f); err != nil {
				return removed, fmt.Errorf("removing %s: %w", f, err)
			}
			removed++
			log.Printf("session.CleanupOlderThan: removed %s", f)
		}
	}
	return removed, nil
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
