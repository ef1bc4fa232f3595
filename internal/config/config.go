// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	App          AppConfig
	Logger       LoggerConfig
	Server       ServerConfig
	Auth         AuthConfig
	Campus       CampusConfig
	Integrations IntegrationsConfig
	Levels       []Level
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	DataPath    string // Backend database, preference store and search index live here
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port           string        // Server port (default: 8080)
	ReadTimeout    time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout   time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout    time.Duration // HTTP idle timeout (default: 60s)
	AllowedOrigins []string      // CORS origins (default: *)
}

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	// PASETO v4 symmetric key, hex encoded. Generated at startup when empty.
	AccessTokenKey      string
	AccessTokenDuration time.Duration // e.g., 24h
}

// CampusConfig holds the point economy and calendar rules.
type CampusConfig struct {
	// Timezone anchors every "today" comparison regardless of where the user is.
	Timezone          string
	Location          *time.Location
	CheckinReward     int
	RestoreCost       int
	DefaultTeamSize   int
	MinTeamSize       int
	HistoryLimit      int
	ChatHistoryLimit  int
	QuizFeedbackDelay time.Duration
}

// IntegrationsConfig holds third-party endpoints and credentials.
type IntegrationsConfig struct {
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadPreset string

	ChatEndpoint       string
	ChatPromptTemplate string // Optional path; watched for changes

	AirQualityURL string
	GeocodeURL    string
	HTTPTimeout   time.Duration
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Directory for the backend database and local stores")

	accessTokenDuration := flag.String("access-token-duration", "", "Access token lifetime (e.g., 24h)")

	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	origins := flag.String("cors-origins", "", "Comma separated CORS origins (default: *)")

	timezone := flag.String("timezone", "", "Reference timezone for day boundaries (default: Asia/Kolkata)")
	checkinReward := flag.String("checkin-reward", "", "Points awarded per daily check-in (default: 10)")
	restoreCost := flag.String("restore-cost", "", "Points charged to restore a broken streak (default: 50)")
	levelsFile := flag.String("levels-file", "", "YAML file overriding the level table")
	promptTemplate := flag.String("chat-prompt-template", "", "Template file for the chat system prompt")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Missing .env is fine.
	_ = godotenv.Load(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:           getConfigValue(*serverPort, "SERVER_PORT", "8080"),
			AllowedOrigins: splitList(getConfigValue(*origins, "CORS_ORIGINS", "*")),
		},
		Auth: AuthConfig{
			AccessTokenKey: getConfigValue("", "ACCESS_TOKEN_KEY", ""),
		},
		Campus: CampusConfig{
			Timezone:         getConfigValue(*timezone, "CAMPUS_TIMEZONE", "Asia/Kolkata"),
			CheckinReward:    getIntConfigValue(*checkinReward, "CHECKIN_REWARD", 10),
			RestoreCost:      getIntConfigValue(*restoreCost, "RESTORE_COST", 50),
			DefaultTeamSize:  getIntConfigValue("", "DEFAULT_TEAM_SIZE", 5),
			MinTeamSize:      getIntConfigValue("", "MIN_TEAM_SIZE", 2),
			HistoryLimit:     getIntConfigValue("", "HISTORY_LIMIT", 20),
			ChatHistoryLimit: getIntConfigValue("", "CHAT_HISTORY_LIMIT", 20),
		},
		Integrations: IntegrationsConfig{
			CloudinaryCloudName:    getConfigValue("", "CLOUDINARY_CLOUD_NAME", ""),
			CloudinaryAPIKey:       getConfigValue("", "CLOUDINARY_API_KEY", ""),
			CloudinaryAPISecret:    getConfigValue("", "CLOUDINARY_API_SECRET", ""),
			CloudinaryUploadPreset: getConfigValue("", "CLOUDINARY_UPLOAD_PRESET", "ecocampus"),
			ChatEndpoint:           getConfigValue("", "CHAT_ENDPOINT", ""),
			ChatPromptTemplate:     getConfigValue(*promptTemplate, "CHAT_PROMPT_TEMPLATE", ""),
			AirQualityURL:          getConfigValue("", "AIR_QUALITY_URL", "https://air-quality-api.open-meteo.com/v1/air-quality"),
			GeocodeURL:             getConfigValue("", "GEOCODE_URL", "https://api.bigdatacloud.net/data/reverse-geocode-client"),
		},
	}

	durations := []struct {
		flagValue, envKey, def string
		dst                    *time.Duration
	}{
		{*accessTokenDuration, "ACCESS_TOKEN_DURATION", "24h", &cfg.Auth.AccessTokenDuration},
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{"", "HTTP_CLIENT_TIMEOUT", "10s", &cfg.Integrations.HTTPTimeout},
		{"", "QUIZ_FEEDBACK_DELAY", "2s", &cfg.Campus.QuizFeedbackDelay},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dst = parsed
	}

	loc, err := time.LoadLocation(cfg.Campus.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", cfg.Campus.Timezone, err)
	}
	cfg.Campus.Location = loc

	levels, err := LoadLevels(getConfigValue(*levelsFile, "LEVELS_FILE", ""))
	if err != nil {
		return nil, fmt.Errorf("load levels: %w", err)
	}
	cfg.Levels = levels

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.App.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Campus.CheckinReward <= 0 {
		return fmt.Errorf("checkin reward must be positive, got %d", c.Campus.CheckinReward)
	}
	if c.Campus.RestoreCost <= 0 {
		return fmt.Errorf("restore cost must be positive, got %d", c.Campus.RestoreCost)
	}
	if c.Campus.MinTeamSize < 1 || c.Campus.MinTeamSize > c.Campus.DefaultTeamSize {
		return fmt.Errorf("min team size %d must be between 1 and default team size %d", c.Campus.MinTeamSize, c.Campus.DefaultTeamSize)
	}

	if c.Integrations.CloudinaryCloudName == "" && c.App.Environment == "production" {
		return errors.New("CLOUDINARY_CLOUD_NAME is required in production")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandDataPath defaults to ~/EcoCampus/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "EcoCampus", "data")

	expanded, err := expandPath(c.App.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.App.DataPath = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}

	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}

	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
