package englishquest

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB is the SQLite-backed user and history store. It plays the role of the
// cloud document store: per-user append-only history plus a users table for
// sign-in.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// User is an authenticated identity row.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// OpenDB opens a new database connection.
func OpenDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db: db, now: time.Now}, nil
}

// CloseDB closes the database connection.
func (db *DB) CloseDB() error {
	return db.db.Close()
}

// CreateTables creates the necessary tables if they don't exist.
func (db *DB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			score INTEGER NOT NULL,
			total_questions INTEGER NOT NULL,
			difficulty TEXT NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_user_time ON history(user_id, timestamp)`,
	}

	for _, query := range queries {
		if _, err := db.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// GetOrCreateUser returns the user with the given name, creating it on
// first sign-in.
func (db *DB) GetOrCreateUser(ctx context.Context, name string) (*User, error) {
	var user User
	err := db.db.QueryRowContext(ctx,
		"SELECT id, name, created_at FROM users WHERE name = ?", name,
	).Scan(&user.ID, &user.Name, &user.CreatedAt)
	if err == nil {
		return &user, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	user = User{
		ID:        generateUserID(),
		Name:      name,
		CreatedAt: db.now(),
	}
	_, err = db.db.ExecContext(ctx,
		"INSERT INTO users (id, name, created_at) VALUES (?, ?, ?)",
		user.ID, user.Name, user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// Record appends one history entry for the user.
func (db *DB) Record(ctx context.Context, userID string, entry HistoryEntry) error {
	_, err := db.db.ExecContext(ctx,
		"INSERT INTO history (user_id, timestamp, score, total_questions, difficulty) VALUES (?, ?, ?, ?, ?)",
		userID, entry.Timestamp, entry.Score, entry.TotalQuestions, string(entry.Difficulty),
	)
	if err != nil {
		return fmt.Errorf("failed to record history entry: %w", err)
	}
	return nil
}

// Entries returns the user's history entries, oldest first.
func (db *DB) Entries(ctx context.Context, userID string) ([]HistoryEntry, error) {
	rows, err := db.db.QueryContext(ctx,
		"SELECT timestamp, score, total_questions, difficulty FROM history WHERE user_id = ? ORDER BY timestamp",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get history entries: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var entry HistoryEntry
		var difficulty string
		if err := rows.Scan(&entry.Timestamp, &entry.Score, &entry.TotalQuestions, &difficulty); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.Difficulty = Difficulty(difficulty)
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history entries: %w", err)
	}

	return entries, nil
}

// AggregateRecent sums scores and counts entries within the trailing window.
// The lower bound (now minus windowDays) is inclusive, matching LocalHistory.
func (db *DB) AggregateRecent(ctx context.Context, userID string, windowDays int) (HistorySummary, error) {
	cutoff := db.now().Add(-time.Duration(windowDays) * 24 * time.Hour)

	var summary HistorySummary
	err := db.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(score), 0), COUNT(*) FROM history WHERE user_id = ? AND timestamp >= ?",
		userID, cutoff,
	).Scan(&summary.TotalScore, &summary.Count)
	if err != nil {
		return HistorySummary{}, fmt.Errorf("failed to aggregate history: %w", err)
	}
	return summary, nil
}

func generateUserID() string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 12)
	for i := range b {
		b[i] = charset[rand.Intn(len(charset))]
	}
	return string(b)
}
