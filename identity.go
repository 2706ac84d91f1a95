package englishquest

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Identity is the signed-in user as seen by the rest of the app.
type Identity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// IdentityService tracks the current user and migrates local history into
// the remote store on sign-in. It is an optional capability: when the
// backing database is unconfigured the service is simply not constructed and
// history stays local.
type IdentityService struct {
	db     *DB
	local  *LocalHistory
	logger *zap.Logger

	mu        sync.Mutex
	current   *Identity
	listeners []func(*Identity)
}

// NewIdentityService creates the identity service over the user database.
func NewIdentityService(db *DB, local *LocalHistory, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{db: db, local: local, logger: logger}
}

// CurrentUser returns the signed-in identity, or nil.
func (s *IdentityService) CurrentUser() *Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// OnChange registers a callback invoked whenever the identity changes.
// The callback receives the new identity, nil on sign-out.
func (s *IdentityService) OnChange(fn func(*Identity)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *IdentityService) setCurrent(identity *Identity) {
	s.mu.Lock()
	s.current = identity
	listeners := make([]func(*Identity), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(identity)
	}
}

// Authenticate resolves the named user (creating it on first sign-in) and
// migrates any local history to the user's remote collection. It does not
// touch the process-wide current user; callers that track identity
// themselves, like the web server with its per-browser sessions, use this
// directly.
func (s *IdentityService) Authenticate(ctx context.Context, name string) (*Identity, error) {
	if name == "" {
		return nil, fmt.Errorf("user name is required")
	}

	user, err := s.db.GetOrCreateUser(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("sign-in failed: %w", err)
	}

	identity := &Identity{ID: user.ID, Name: user.Name}

	// Best effort: a failed migration keeps the local copy for next time.
	if err := s.migrateTo(ctx, identity); err != nil {
		s.logger.Warn("local history migration failed",
			zap.String("user", identity.Name),
			zap.Error(err),
		)
	}

	s.logger.Info("user signed in", zap.String("user", identity.Name))
	return identity, nil
}

// SignIn authenticates and makes the user the process-wide current identity,
// notifying listeners.
func (s *IdentityService) SignIn(ctx context.Context, name string) (*Identity, error) {
	identity, err := s.Authenticate(ctx, name)
	if err != nil {
		return nil, err
	}
	s.setCurrent(identity)
	return identity, nil
}

// SignOut clears the current identity and notifies listeners. History
// operations fall back to local storage afterwards.
func (s *IdentityService) SignOut() {
	s.setCurrent(nil)
	s.logger.Info("user signed out")
}

// MigrateLocalHistory transfers locally stored history entries to the
// signed-in user's remote collection, then clears the local copy. Clearing
// only after every entry transferred is what keeps repeat invocations from
// duplicating entries. A missing or empty local history is a no-op.
func (s *IdentityService) MigrateLocalHistory(ctx context.Context) error {
	identity := s.CurrentUser()
	if identity == nil {
		return fmt.Errorf("no user signed in")
	}
	return s.migrateTo(ctx, identity)
}

func (s *IdentityService) migrateTo(ctx context.Context, identity *Identity) error {
	entries, err := s.local.Entries(ctx, localUserID)
	if err != nil {
		return fmt.Errorf("failed to read local history: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	for _, entry := range entries {
		if err := s.db.Record(ctx, identity.ID, entry); err != nil {
			return fmt.Errorf("failed to migrate history entry: %w", err)
		}
	}

	if err := s.local.Clear(); err != nil {
		return err
	}

	s.logger.Info("migrated local history",
		zap.String("user", identity.Name),
		zap.Int("entries", len(entries)),
	)
	return nil
}
