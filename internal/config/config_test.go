package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/franckalain/mealcoach/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"MEALCOACH_SESSION_SECRET", "MEALCOACH_PASSWORD_HASH", "MEALCOACH_SPREADSHEET_ID",
		"GOOGLE_APPLICATION_CREDENTIALS", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"server": {"port": "8080"},
		"auth": {"password_hash": "$2a$10$abc", "session_secret": "s3cret"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "./static", cfg.Server.StaticDir)
	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, "mealcoach.db", cfg.Store.Path)
	assert.Equal(t, "gemini", cfg.ML.Type)
	assert.Equal(t, "Asia/Tokyo", cfg.Location().String())
	assert.Equal(t, 60*time.Second, cfg.InferenceTimeout())
	assert.Equal(t, 15*time.Second, cfg.StoreTimeout())
	assert.Equal(t, 30*time.Second, cfg.CacheTTL())
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL())
	assert.False(t, cfg.Coach.AutoEvaluate)
}

func TestLoadConfigSecretsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("MEALCOACH_SESSION_SECRET", "from-env")
	t.Setenv("MEALCOACH_PASSWORD_HASH", "$2a$10$xyz")
	path := writeConfig(t, `{"server": {"port": "9000"}, "coach": {"timezone": "UTC", "auto_evaluate": true}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.SessionSecret)
	assert.Equal(t, "$2a$10$xyz", cfg.Auth.PasswordHash)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.True(t, cfg.Coach.AutoEvaluate)
}

func TestLoadConfigErrors(t *testing.T) {
	cases := map[string]struct {
		body string
		key  string
	}{
		"no port":           {`{"auth": {"password_hash": "h", "session_secret": "s"}}`, "server.port"},
		"no secret":         {`{"server": {"port": "1"}, "auth": {"password_hash": "h"}}`, "auth.session_secret"},
		"no password":       {`{"server": {"port": "1"}, "auth": {"session_secret": "s"}}`, "auth.password_hash"},
		"bad store":         {`{"server": {"port": "1"}, "store": {"type": "csv"}, "auth": {"password_hash": "h", "session_secret": "s"}}`, "store.type"},
		"sheets without id": {`{"server": {"port": "1"}, "store": {"type": "sheets"}, "auth": {"password_hash": "h", "session_secret": "s"}}`, "store.spreadsheet_id"},
		"bad model":         {`{"server": {"port": "1"}, "ml": {"type": "local"}, "auth": {"password_hash": "h", "session_secret": "s"}}`, "ml.type"},
		"bad timezone":      {`{"server": {"port": "1"}, "coach": {"timezone": "Mars/Olympus"}, "auth": {"password_hash": "h", "session_secret": "s"}}`, "coach.timezone"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			_, err := LoadConfig(writeConfig(t, tc.body))
			require.ErrorIs(t, err, models.ErrConfig)

			var cerr *models.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tc.key, cerr.Key)
		})
	}
}

func TestLoadConfigUnreadable(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "{not json"))
	assert.Error(t, err)
}

func TestGetConfigPathFromEnv(t *testing.T) {
	t.Setenv("MEALCOACH_CONFIG", "/etc/mealcoach.json")
	assert.Equal(t, "/etc/mealcoach.json", GetConfigPath())
}
