package englishquest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// HistoryStore persists completed-session outcomes. Entries are append-only;
// nothing ever mutates or deletes a recorded entry.
type HistoryStore interface {
	Record(ctx context.Context, userID string, entry HistoryEntry) error
	Entries(ctx context.Context, userID string) ([]HistoryEntry, error)
	AggregateRecent(ctx context.Context, userID string, windowDays int) (HistorySummary, error)
}

// localUserID is the pseudo-identity used while no user is signed in.
const localUserID = "local"

// LocalHistory stores history entries in a single JSON file. It backs the
// signed-out mode; the userID argument is ignored since a local profile has
// exactly one owner.
type LocalHistory struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewLocalHistory creates a file-backed history store at path.
func NewLocalHistory(path string) *LocalHistory {
	return &LocalHistory{path: path, now: time.Now}
}

func (h *LocalHistory) load() []HistoryEntry {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return nil
	}
	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

func (h *LocalHistory) save(entries []HistoryEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(h.path), 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}
	if err := os.WriteFile(h.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	return nil
}

// Record appends one entry.
func (h *LocalHistory) Record(_ context.Context, _ string, entry HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.save(append(h.load(), entry))
}

// Entries returns all recorded entries, oldest first.
func (h *LocalHistory) Entries(_ context.Context, _ string) ([]HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load(), nil
}

// AggregateRecent sums scores and counts entries within the trailing window.
// The lower bound (now minus windowDays) is inclusive.
func (h *LocalHistory) AggregateRecent(_ context.Context, _ string, windowDays int) (HistorySummary, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := h.now().Add(-time.Duration(windowDays) * 24 * time.Hour)
	var summary HistorySummary
	for _, entry := range h.load() {
		if entry.Timestamp.Before(cutoff) {
			continue
		}
		summary.TotalScore += entry.Score
		summary.Count++
	}
	return summary, nil
}

// Clear removes all local history. Called after a successful migration to
// the remote store; clearing is what makes re-running the migration a no-op.
func (h *LocalHistory) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear local history: %w", err)
	}
	return nil
}

// IdentityProvider reports the identity history operations should be
// attributed to. *IdentityService implements it for the process-wide current
// user (the CLI); the web server implements it per browser session, so one
// browser's sign-in never redirects another browser's writes.
type IdentityProvider interface {
	CurrentUser() *Identity
}

// HistoryRecorder routes history operations to the remote store while its
// provider reports a signed-in user and to local storage otherwise. The
// choice is made per call, so signing in or out mid-session takes effect
// immediately.
type HistoryRecorder struct {
	identity IdentityProvider
	remote   HistoryStore
	local    *LocalHistory
}

// NewHistoryRecorder wires the recorder. identity and remote may both be nil
// for local-only operation.
func NewHistoryRecorder(identity IdentityProvider, remote HistoryStore, local *LocalHistory) *HistoryRecorder {
	return &HistoryRecorder{identity: identity, remote: remote, local: local}
}

func (r *HistoryRecorder) store() (HistoryStore, string) {
	if r.identity != nil && r.remote != nil {
		if user := r.identity.CurrentUser(); user != nil {
			return r.remote, user.ID
		}
	}
	return r.local, localUserID
}

// Record appends an entry to whichever store is active.
func (r *HistoryRecorder) Record(ctx context.Context, entry HistoryEntry) error {
	store, userID := r.store()
	return store.Record(ctx, userID, entry)
}

// AggregateRecent summarizes the active store over the trailing window.
func (r *HistoryRecorder) AggregateRecent(ctx context.Context, windowDays int) (HistorySummary, error) {
	store, userID := r.store()
	return store.AggregateRecent(ctx, userID, windowDays)
}

// Entries lists the active store's entries, oldest first.
func (r *HistoryRecorder) Entries(ctx context.Context) ([]HistoryEntry, error) {
	store, userID := r.store()
	return store.Entries(ctx, userID)
}
