package englishquest

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestLocalHistory(t *testing.T) *LocalHistory {
	t.Helper()
	return NewLocalHistory(filepath.Join(t.TempDir(), "history.json"))
}

func TestLocalHistoryRecordAndEntries(t *testing.T) {
	local := newTestLocalHistory(t)
	ctx := context.Background()

	entries := []HistoryEntry{
		{Timestamp: time.Now().Add(-48 * time.Hour), Score: 3, TotalQuestions: 6, Difficulty: DifficultyBeginner},
		{Timestamp: time.Now(), Score: 5, TotalQuestions: 6, Difficulty: DifficultyIntermediate},
	}
	for _, entry := range entries {
		if err := local.Record(ctx, localUserID, entry); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := local.Entries(ctx, localUserID)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Entries returned %d records, want 2", len(got))
	}
	if got[0].Score != 3 || got[1].Score != 5 {
		t.Fatalf("entries out of order: %+v", got)
	}
}

func TestLocalHistoryAggregateWindow(t *testing.T) {
	local := newTestLocalHistory(t)
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	local.now = func() time.Time { return now }
	ctx := context.Background()

	for _, entry := range []HistoryEntry{
		{Timestamp: now.Add(-1 * time.Hour), Score: 6, TotalQuestions: 6},
		{Timestamp: now.Add(-29 * 24 * time.Hour), Score: 4, TotalQuestions: 6},
		{Timestamp: now.Add(-31 * 24 * time.Hour), Score: 2, TotalQuestions: 6},
	} {
		if err := local.Record(ctx, localUserID, entry); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	summary, err := local.AggregateRecent(ctx, localUserID, 30)
	if err != nil {
		t.Fatalf("AggregateRecent failed: %v", err)
	}
	if summary.Count != 2 || summary.TotalScore != 10 {
		t.Fatalf("summary = %+v, want count 2 total 10", summary)
	}
}

func TestLocalHistoryClear(t *testing.T) {
	local := newTestLocalHistory(t)
	ctx := context.Background()

	// Clearing an empty store is fine.
	if err := local.Clear(); err != nil {
		t.Fatalf("Clear on empty history failed: %v", err)
	}

	if err := local.Record(ctx, localUserID, HistoryEntry{Timestamp: time.Now(), Score: 1, TotalQuestions: 6}); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := local.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	got, err := local.Entries(ctx, localUserID)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("history not cleared: %+v", got)
	}
}

func TestHistoryRecorderFallsBackToLocal(t *testing.T) {
	local := newTestLocalHistory(t)
	recorder := NewHistoryRecorder(nil, nil, local)
	ctx := context.Background()

	entry := HistoryEntry{Timestamp: time.Now(), Score: 5, TotalQuestions: 6, Difficulty: DifficultyBeginner}
	if err := recorder.Record(ctx, entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	got, err := local.Entries(ctx, localUserID)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("local store has %d entries, want 1", len(got))
	}
}

type fixedIdentity struct {
	user *Identity
}

func (f *fixedIdentity) CurrentUser() *Identity { return f.user }

func TestHistoryRecordersRouteByOwnProvider(t *testing.T) {
	db := newTestDB(t)
	local := newTestLocalHistory(t)
	ctx := context.Background()

	user, err := db.GetOrCreateUser(ctx, "emma")
	if err != nil {
		t.Fatalf("GetOrCreateUser failed: %v", err)
	}

	// Two recorders over the same stores, each with its own identity. A
	// sign-in visible to one must not redirect the other's writes.
	signedIn := NewHistoryRecorder(&fixedIdentity{user: &Identity{ID: user.ID, Name: user.Name}}, db, local)
	anonymous := NewHistoryRecorder(&fixedIdentity{}, db, local)

	entry := HistoryEntry{Timestamp: time.Now(), Score: 4, TotalQuestions: 6, Difficulty: DifficultyBeginner}
	if err := anonymous.Record(ctx, entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := signedIn.Record(ctx, entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	remote, err := db.Entries(ctx, user.ID)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(remote) != 1 {
		t.Fatalf("remote store has %d entries, want 1", len(remote))
	}

	localEntries, err := local.Entries(ctx, localUserID)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(localEntries) != 1 {
		t.Fatalf("local store has %d entries, want 1", len(localEntries))
	}
}

func TestHistoryRecorderUsesRemoteWhenSignedIn(t *testing.T) {
	db := newTestDB(t)
	local := newTestLocalHistory(t)
	identity := NewIdentityService(db, local, nil)
	recorder := NewHistoryRecorder(identity, db, local)
	ctx := context.Background()

	user, err := identity.SignIn(ctx, "emma")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}

	entry := HistoryEntry{Timestamp: time.Now(), Score: 6, TotalQuestions: 6, Difficulty: DifficultyAdvanced}
	if err := recorder.Record(ctx, entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	remote, err := db.Entries(ctx, user.ID)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(remote) != 1 {
		t.Fatalf("remote store has %d entries, want 1", len(remote))
	}

	localEntries, err := local.Entries(ctx, localUserID)
	if err != nil {
		t.Fatalf("Entries failed: %v", err)
	}
	if len(localEntries) != 0 {
		t.Fatal("entry landed in local storage while signed in")
	}

	// After sign-out, writes go local again.
	identity.SignOut()
	if err := recorder.Record(ctx, entry); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	localEntries, _ = local.Entries(ctx, localUserID)
	if len(localEntries) != 1 {
		t.Fatalf("local store has %d entries after sign-out, want 1", len(localEntries))
	}
}
