package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
	_ "time/tzdata"

	"github.com/franckalain/mealcoach/internal/models"
	_ "github.com/joho/godotenv/autoload"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port      string `json:"port"`
		StaticDir string `json:"static_dir"`
		Debug     bool   `json:"debug"`
	} `json:"server"`

	Store struct {
		Type            string `json:"type"` // "sqlite", "sheets" or "memory"
		Path            string `json:"path"`
		SpreadsheetID   string `json:"spreadsheet_id"`
		SheetName       string `json:"sheet_name"`
		CredentialsFile string `json:"credentials_file"`
		CacheSize       int    `json:"cache_size"`
		CacheTTLSeconds int    `json:"cache_ttl_seconds"`
	} `json:"store"`

	ML struct {
		Type       string `json:"type"` // "google" or "gemini"
		ConfigPath string `json:"config_path"`
	} `json:"ml"`

	Coach struct {
		Persona          string `json:"persona"`
		AutoEvaluate     bool   `json:"auto_evaluate"`
		EvaluationPolicy string `json:"evaluation_policy"`
		Timezone         string `json:"timezone"`
	} `json:"coach"`

	Timeouts struct {
		InferenceSeconds int `json:"inference_seconds"`
		StoreSeconds     int `json:"store_seconds"`
	} `json:"timeouts"`

	Auth struct {
		PasswordHash      string `json:"password_hash"`
		SessionSecret     string `json:"session_secret"`
		SessionTTLMinutes int    `json:"session_ttl_minutes"`
	} `json:"auth"`

	location *time.Location
}

// LoadConfig loads configuration from a JSON file. Secrets may be left out of
// the file and supplied through the environment (or a .env file) instead.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyEnv()
	config.applyDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyEnv() {
	if c.Auth.SessionSecret == "" {
		c.Auth.SessionSecret = os.Getenv("MEALCOACH_SESSION_SECRET")
	}
	if c.Auth.PasswordHash == "" {
		c.Auth.PasswordHash = os.Getenv("MEALCOACH_PASSWORD_HASH")
	}
	if c.Store.SpreadsheetID == "" {
		c.Store.SpreadsheetID = os.Getenv("MEALCOACH_SPREADSHEET_ID")
	}
	if c.Store.CredentialsFile == "" {
		c.Store.CredentialsFile = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	}
	if port := os.Getenv("PORT"); port != "" && c.Server.Port == "" {
		c.Server.Port = port
	}
}

func (c *Config) applyDefaults() {
	if c.Server.StaticDir == "" {
		c.Server.StaticDir = "./static"
	}
	if c.Store.Type == "" {
		c.Store.Type = "sqlite"
	}
	if c.Store.Path == "" {
		c.Store.Path = "mealcoach.db"
	}
	if c.Store.SheetName == "" {
		c.Store.SheetName = "Sheet1"
	}
	if c.Store.CacheTTLSeconds == 0 {
		c.Store.CacheTTLSeconds = 30
	}
	if c.ML.Type == "" {
		c.ML.Type = "gemini"
	}
	if c.Coach.Timezone == "" {
		c.Coach.Timezone = "Asia/Tokyo"
	}
	if c.Timeouts.InferenceSeconds == 0 {
		c.Timeouts.InferenceSeconds = 60
	}
	if c.Timeouts.StoreSeconds == 0 {
		c.Timeouts.StoreSeconds = 15
	}
	if c.Auth.SessionTTLMinutes == 0 {
		c.Auth.SessionTTLMinutes = 12 * 60
	}
}

func (c *Config) validate() error {
	if c.Server.Port == "" {
		return &models.ConfigError{Key: "server.port", Reason: "not set"}
	}

	switch c.Store.Type {
	case "sqlite", "memory":
	case "sheets":
		if c.Store.SpreadsheetID == "" {
			return &models.ConfigError{Key: "store.spreadsheet_id", Reason: "required for the sheets store (MEALCOACH_SPREADSHEET_ID)"}
		}
	default:
		return &models.ConfigError{Key: "store.type", Reason: fmt.Sprintf("unsupported store %q", c.Store.Type)}
	}

	switch c.ML.Type {
	case "google", "gemini":
	default:
		return &models.ConfigError{Key: "ml.type", Reason: fmt.Sprintf("unsupported model %q", c.ML.Type)}
	}

	if c.Auth.SessionSecret == "" {
		return &models.ConfigError{Key: "auth.session_secret", Reason: "not set (MEALCOACH_SESSION_SECRET)"}
	}
	if c.Auth.PasswordHash == "" {
		return &models.ConfigError{Key: "auth.password_hash", Reason: "not set (MEALCOACH_PASSWORD_HASH)"}
	}

	if c.Store.CacheSize < 0 || c.Store.CacheTTLSeconds < 0 {
		return &models.ConfigError{Key: "store.cache_size", Reason: "must not be negative"}
	}
	if c.Timeouts.InferenceSeconds < 0 || c.Timeouts.StoreSeconds < 0 {
		return &models.ConfigError{Key: "timeouts", Reason: "must not be negative"}
	}

	loc, err := time.LoadLocation(c.Coach.Timezone)
	if err != nil {
		return &models.ConfigError{Key: "coach.timezone", Reason: err.Error()}
	}
	c.location = loc
	return nil
}

// Location is the time zone meals are dated in
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// InferenceTimeout bounds each model call
func (c *Config) InferenceTimeout() time.Duration {
	return time.Duration(c.Timeouts.InferenceSeconds) * time.Second
}

// StoreTimeout bounds each store call
func (c *Config) StoreTimeout() time.Duration {
	return time.Duration(c.Timeouts.StoreSeconds) * time.Second
}

// CacheTTL is how long a day's rows stay cached
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Store.CacheTTLSeconds) * time.Second
}

// SessionTTL is how long a login lasts
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Auth.SessionTTLMinutes) * time.Minute
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	// First try environment variable
	if path := os.Getenv("MEALCOACH_CONFIG"); path != "" {
		return path
	}

	// Then try config directory
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	// Finally, try current directory
	return "config.json"
}
