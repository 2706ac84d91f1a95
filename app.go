package englishquest

import (
	"fmt"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App bundles the wired capabilities shared by the CLI and the web server:
// question source, daily cache, history stores, and optional identity.
type App struct {
	Config   *Config
	Logger   *zap.Logger
	Maker    *QuestionMaker
	Source   QuestionSource
	Cache    DailyCache
	Local    *LocalHistory
	DB       *DB
	Identity *IdentityService
	Recorder *HistoryRecorder
}

// NewApp wires the application from configuration. The database and Redis
// are optional; leaving them unconfigured yields local-only operation.
func NewApp(cfg *Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	app := &App{
		Config: cfg,
		Logger: logger,
		Maker:  NewQuestionMaker(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.LogDir, logger),
		Local:  NewLocalHistory(filepath.Join(cfg.Cache.Dir, "history.json")),
	}
	app.Source = app.Maker

	if cfg.Cache.RedisAddr != "" {
		app.Cache = NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr}))
		logger.Info("using redis daily cache", zap.String("addr", cfg.Cache.RedisAddr))
	} else {
		app.Cache = NewFileCache(cfg.Cache.Dir)
	}

	if cfg.Database.Path != "" {
		db, err := OpenDB(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		if err := db.CreateTables(); err != nil {
			db.CloseDB()
			return nil, fmt.Errorf("failed to create tables: %w", err)
		}
		app.DB = db
		app.Identity = NewIdentityService(db, app.Local, logger)
	} else {
		logger.Info("no database configured, history stays local")
	}

	app.Recorder = NewHistoryRecorder(identityProviderOrNil(app.Identity), historyStoreOrNil(app.DB), app.Local)
	return app, nil
}

// historyStoreOrNil avoids handing NewHistoryRecorder a non-nil interface
// wrapping a nil *DB.
func historyStoreOrNil(db *DB) HistoryStore {
	if db == nil {
		return nil
	}
	return db
}

// identityProviderOrNil does the same for a nil *IdentityService.
func identityProviderOrNil(svc *IdentityService) IdentityProvider {
	if svc == nil {
		return nil
	}
	return svc
}

// RemoteHistory returns the database-backed history store, or nil when no
// database is configured.
func (a *App) RemoteHistory() HistoryStore {
	return historyStoreOrNil(a.DB)
}

// NewSession creates a quiz session over the app's wired capabilities.
func (a *App) NewSession() *Session {
	return NewSession(a.Source, a.Cache, a.Recorder, a.Logger)
}

// Close releases held resources.
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.CloseDB()
	}
	return nil
}
