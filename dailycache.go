package englishquest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DailyCache memoizes one fetched question set per difficulty per calendar
// day, so a second quiz on the same day never hits the question source.
// Lookup misses on any stale or unreadable entry; such entries are purged
// silently. There is no eviction beyond natural overwrite on date change.
type DailyCache interface {
	Lookup(difficulty Difficulty) ([]Question, bool)
	Store(difficulty Difficulty, questions []Question) error
}

// cacheEntry is the stored form of one day's question set. The date is a
// local-zone ISO day with no time component.
type cacheEntry struct {
	Date      string     `json:"date"`
	Questions []Question `json:"questions"`
}

func (e cacheEntry) valid() bool {
	if len(e.Questions) == 0 {
		return false
	}
	for _, q := range e.Questions {
		if err := q.Validate(); err != nil {
			return false
		}
	}
	return true
}

const cacheDateLayout = "2006-01-02"

// FileCache keeps one JSON file per difficulty under a cache directory.
type FileCache struct {
	dir string
	now func() time.Time
}

// NewFileCache creates a file-backed daily cache rooted at dir.
func NewFileCache(dir string) *FileCache {
	return &FileCache{dir: dir, now: time.Now}
}

func (c *FileCache) path(difficulty Difficulty) string {
	return filepath.Join(c.dir, "daily-"+strings.ToLower(string(difficulty))+".json")
}

// Lookup returns the cached set for today, or a miss. A stale or malformed
// file is removed and reported as a miss.
func (c *FileCache) Lookup(difficulty Difficulty) ([]Question, bool) {
	path := c.path(difficulty)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || !entry.valid() || entry.Date != c.now().Format(cacheDateLayout) {
		os.Remove(path)
		return nil, false
	}
	return entry.Questions, true
}

// Store overwrites the entry for the difficulty with today's questions.
func (c *FileCache) Store(difficulty Difficulty, questions []Question) error {
	entry := cacheEntry{
		Date:      c.now().Format(cacheDateLayout),
		Questions: questions,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(c.path(difficulty), data, 0644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

const (
	dailyCacheKeyPrefix = "dailyquiz:"
	dailyCacheTTL       = 48 * time.Hour
)

// RedisCache keeps the same per-difficulty daily entries in Redis, for
// deployments where several instances should share one day's questions.
// Staleness is still checked lazily against the stored date; the TTL only
// keeps dead keys from accumulating.
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
	now    func() time.Time
}

// NewRedisCache creates a Redis-backed daily cache.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{
		client: client,
		ctx:    context.Background(),
		now:    time.Now,
	}
}

// Lookup returns the cached set for today, or a miss.
func (c *RedisCache) Lookup(difficulty Difficulty) ([]Question, bool) {
	key := dailyCacheKeyPrefix + string(difficulty)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil || !entry.valid() || entry.Date != c.now().Format(cacheDateLayout) {
		c.client.Del(c.ctx, key)
		return nil, false
	}
	return entry.Questions, true
}

// Store overwrites the entry for the difficulty with today's questions.
func (c *RedisCache) Store(difficulty Difficulty, questions []Question) error {
	entry := cacheEntry{
		Date:      c.now().Format(cacheDateLayout),
		Questions: questions,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}
	if err := c.client.Set(c.ctx, dailyCacheKeyPrefix+string(difficulty), data, dailyCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}
