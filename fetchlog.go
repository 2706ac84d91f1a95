package englishquest

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FetchLog records one question-source fetch (prompt and raw reply) to a
// plain-text file, one file per calendar day and difficulty. All methods are
// safe on a nil receiver so callers can log unconditionally.
type FetchLog struct {
	file *os.File
	mu   sync.Mutex
}

// NewFetchLog opens the fetch log for the given difficulty. An empty dir
// disables logging and returns (nil, nil).
func NewFetchLog(dir string, difficulty Difficulty) (*FetchLog, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create fetch log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.log", time.Now().Format("2006-01-02"), difficulty))
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open fetch log file: %w", err)
	}

	return &FetchLog{file: file}, nil
}

// Logf writes a formatted log entry with a timestamp.
func (fl *FetchLog) Logf(format string, args ...interface{}) {
	if fl == nil {
		return
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(fl.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	fl.file.Sync()
}

// LogRequest logs the outgoing model request.
func (fl *FetchLog) LogRequest(model, prompt string) {
	fl.Logf("=== REQUEST (model %s) ===\n", model)
	fl.Logf("%s\n", prompt)
	fl.Logf("==========================\n\n")
}

// LogResponse logs the raw model reply before any parsing.
func (fl *FetchLog) LogResponse(content string) {
	fl.Logf("=== RESPONSE ===\n")
	fl.Logf("%s\n", content)
	fl.Logf("================\n\n")
}

// LogError logs a failed fetch.
func (fl *FetchLog) LogError(err error) {
	fl.Logf("=== ERROR ===\n")
	fl.Logf("%v\n", err)
	fl.Logf("=============\n\n")
}

// Close closes the log file.
func (fl *FetchLog) Close() error {
	if fl == nil {
		return nil
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.file != nil {
		return fl.file.Close()
	}
	return nil
}
