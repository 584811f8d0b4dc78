package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        App        `mapstructure:"app"`
	AI         AI         `mapstructure:"ai"`
	Generation Generation `mapstructure:"generation"`
	Fetch      Fetch      `mapstructure:"fetch"`
	Storage    Storage    `mapstructure:"storage"`
	Server     Server     `mapstructure:"server"`
	Logging    Logging    `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug      bool   `mapstructure:"debug"`
	DataDir    string `mapstructure:"data_dir"`
	ConfigFile string `mapstructure:"config_file"`
}

// AI holds generation backend configuration
type AI struct {
	Provider string       `mapstructure:"provider"` // gemini, openai or mock
	Gemini   GeminiConfig `mapstructure:"gemini"`
	OpenAI   OpenAIConfig `mapstructure:"openai"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     string  `mapstructure:"timeout"`
	MaxTokens   int32   `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// OpenAIConfig holds configuration for OpenAI-compatible chat endpoints (OpenAI, OpenRouter)
type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	Timeout     string  `mapstructure:"timeout"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// Generation holds orchestration settings
type Generation struct {
	Scheduler   string `mapstructure:"scheduler"`   // sequential or bounded
	Concurrency int    `mapstructure:"concurrency"` // Used by the bounded scheduler
	TeamCount   int    `mapstructure:"team_count"`
	Difficulty  string `mapstructure:"difficulty"`
}

// Fetch holds article fetching configuration
type Fetch struct {
	Timeout    string `mapstructure:"timeout"`
	UserAgent  string `mapstructure:"user_agent"`
	MaxBytes   int64  `mapstructure:"max_bytes"`
	ServiceURL string `mapstructure:"service_url"` // Optional external fetch service
	AuthToken  string `mapstructure:"auth_token"`
}

// Storage holds persistence configuration
type Storage struct {
	Driver  string `mapstructure:"driver"` // sqlite or postgres
	DSN     string `mapstructure:"dsn"`
	Timeout string `mapstructure:"timeout"`
}

// Server holds HTTP server configuration
type Server struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	SessionTTL   string `mapstructure:"session_ttl"`
	AdminAPIKey  string `mapstructure:"admin_api_key"` // Guards destructive game endpoints when set
	CORS         CORS   `mapstructure:"cors"`
}

// CORS holds cross-origin settings for the API
type CORS struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var globalConfig *Config

// Load loads the configuration from various sources
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".jeop3")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	config.App.ConfigFile = viper.ConfigFileUsed()

	if err := postProcessConfig(config); err != nil {
		return nil, fmt.Errorf("error post-processing config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.data_dir", ".jeop3")

	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash-lite")
	viper.SetDefault("ai.gemini.timeout", "90s")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.7)
	viper.SetDefault("ai.openai.model", "google/gemini-2.5-flash-lite")
	viper.SetDefault("ai.openai.base_url", "https://openrouter.ai/api/v1")
	viper.SetDefault("ai.openai.timeout", "90s")
	viper.SetDefault("ai.openai.max_tokens", 8000)
	viper.SetDefault("ai.openai.temperature", 0.7)

	viper.SetDefault("generation.scheduler", "sequential")
	viper.SetDefault("generation.concurrency", 3)
	viper.SetDefault("generation.team_count", 4)
	viper.SetDefault("generation.difficulty", "normal")

	viper.SetDefault("fetch.timeout", "20s")
	viper.SetDefault("fetch.user_agent", "jeop3/1.0 (+article fetcher)")
	viper.SetDefault("fetch.max_bytes", 5<<20)

	viper.SetDefault("storage.driver", "sqlite")
	viper.SetDefault("storage.timeout", "5s")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "180s")
	viper.SetDefault("server.session_ttl", "2h")
	viper.SetDefault("server.cors.enabled", false)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// bindEnvironmentVariables sets up flexible environment variable binding
func bindEnvironmentVariables() {
	bindEnvKeys("ai.gemini.api_key", []string{
		"GEMINI_API_KEY",
		"GOOGLE_GEMINI_API_KEY",
		"GOOGLE_AI_API_KEY",
	})

	bindEnvKeys("ai.openai.api_key", []string{
		"OPENROUTER_API_KEY",
		"OPENAI_API_KEY",
	})

	bindEnvKeys("ai.openai.base_url", []string{
		"OPENAI_BASE_URL",
	})

	bindEnvKeys("ai.provider", []string{
		"JEOP3_AI_PROVIDER",
		"AI_PROVIDER",
	})

	bindEnvKeys("storage.dsn", []string{
		"JEOP3_DATABASE_URL",
		"DATABASE_URL",
	})

	bindEnvKeys("fetch.auth_token", []string{
		"JEOP3_FETCH_TOKEN",
	})

	bindEnvKeys("server.admin_api_key", []string{
		"JEOP3_ADMIN_API_KEY",
		"ADMIN_API_KEY",
	})

	bindEnvKeys("app.debug", []string{
		"DEBUG",
		"JEOP3_DEBUG",
	})
}

// bindEnvKeys binds the first found environment variable to a viper key
func bindEnvKeys(viperKey string, envKeys []string) {
	for _, envKey := range envKeys {
		if value := os.Getenv(envKey); value != "" {
			viper.Set(viperKey, value)
			return
		}
	}
}

// postProcessConfig applies post-processing to configuration values
func postProcessConfig(config *Config) error {
	if config.App.DataDir != "" {
		config.App.DataDir = expandPath(config.App.DataDir)
	}

	config.AI.Provider = strings.ToLower(strings.TrimSpace(config.AI.Provider))
	config.Storage.Driver = strings.ToLower(strings.TrimSpace(config.Storage.Driver))
	config.Generation.Scheduler = strings.ToLower(strings.TrimSpace(config.Generation.Scheduler))

	if config.Storage.Driver == "sqlite" && config.Storage.DSN == "" {
		config.Storage.DSN = filepath.Join(config.App.DataDir, "games.db")
	}
	if config.App.Debug {
		config.Logging.Level = "debug"
	}

	durations := map[string]string{
		"ai.gemini.timeout":    config.AI.Gemini.Timeout,
		"ai.openai.timeout":    config.AI.OpenAI.Timeout,
		"fetch.timeout":        config.Fetch.Timeout,
		"storage.timeout":      config.Storage.Timeout,
		"server.read_timeout":  config.Server.ReadTimeout,
		"server.write_timeout": config.Server.WriteTimeout,
		"server.session_ttl":   config.Server.SessionTTL,
	}

	for key, duration := range durations {
		if duration != "" {
			if _, err := time.ParseDuration(duration); err != nil {
				return fmt.Errorf("invalid duration for %s: %s", key, duration)
			}
		}
	}

	return nil
}

// expandPath expands ~ and environment variables in paths
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

// validateConfig ensures configuration values are consistent.
// API keys are checked when a generation backend is built, so read-only commands work without them.
func validateConfig(config *Config) error {
	var errors []string

	switch config.AI.Provider {
	case "gemini", "openai", "mock":
	default:
		errors = append(errors, fmt.Sprintf("Unknown AI provider: %s. Supported: gemini, openai, mock", config.AI.Provider))
	}

	switch config.Storage.Driver {
	case "sqlite":
	case "postgres":
		if config.Storage.DSN == "" {
			errors = append(errors, "Postgres storage requires a DSN. Set DATABASE_URL or storage.dsn")
		}
	default:
		errors = append(errors, fmt.Sprintf("Unknown storage driver: %s. Supported: sqlite, postgres", config.Storage.Driver))
	}

	switch config.Generation.Scheduler {
	case "sequential":
	case "bounded":
		if config.Generation.Concurrency < 1 {
			errors = append(errors, "generation.concurrency must be at least 1 for the bounded scheduler")
		}
	default:
		errors = append(errors, fmt.Sprintf("Unknown generation scheduler: %s. Supported: sequential, bounded", config.Generation.Scheduler))
	}

	if config.Server.Port < 0 || config.Server.Port > 65535 {
		errors = append(errors, fmt.Sprintf("Invalid server port: %d", config.Server.Port))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Duration parses a validated duration string, returning fallback when it is empty.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// Convenience getters for commonly used configuration values
func GetAI() AI                 { return Get().AI }
func GetGeneration() Generation { return Get().Generation }
func GetFetch() Fetch           { return Get().Fetch }
func GetStorage() Storage       { return Get().Storage }
func GetServer() Server         { return Get().Server }
func GetLogging() Logging       { return Get().Logging }
func IsDebugMode() bool         { return Get().App.Debug }

// Reset clears the global configuration (useful for testing)
func Reset() {
	globalConfig = nil
	viper.Reset()
}
