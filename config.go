package englishquest

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config is the top-level application configuration.
type Config struct {
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Quiz     QuizConfig     `mapstructure:"quiz"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// OpenAIConfig holds question source settings.
type OpenAIConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	LogDir string `mapstructure:"log_dir"`
}

// QuizConfig holds quiz behavior settings.
type QuizConfig struct {
	WindowDays int `mapstructure:"window_days"`
}

// CacheConfig holds daily cache settings. RedisAddr, when set, switches the
// cache backend from local files to Redis.
type CacheConfig struct {
	Dir       string `mapstructure:"dir"`
	RedisAddr string `mapstructure:"redis_addr"`
}

// DatabaseConfig holds the user/history database settings. An empty path
// disables sign-in and remote history entirely; the quiz then runs
// local-only.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig holds web server settings.
type ServerConfig struct {
	Port       string `mapstructure:"port"`
	SessionKey string `mapstructure:"session_key"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Debug bool `mapstructure:"debug"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("openai.log_dir", "log")

	v.SetDefault("quiz.window_days", 30)

	v.SetDefault("cache.dir", "cache")

	v.SetDefault("server.port", "8180")
	v.SetDefault("server.session_key", "englishquest-dev-key")

	v.SetDefault("logging.debug", false)
}

// LoadConfig reads configuration from defaults, an optional config.yaml in
// configDir, and ENGLISHQUEST_* environment variables. The OpenAI key also
// falls back to the conventional OPENAI_API_KEY variable. Absent credentials
// are not an error here; features degrade to local-only operation.
func LoadConfig(configDir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configDir != "" {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ENGLISHQUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if cfg.OpenAI.APIKey == "" {
		cfg.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return &cfg, nil
}

// NewLogger builds the application logger: human-readable in debug mode,
// JSON otherwise.
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
