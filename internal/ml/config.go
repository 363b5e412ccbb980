package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// BaseConfig provides common configuration functionality
type BaseConfig struct {
	ConfigPath string `json:"-"`
}

// LoadConfig loads configuration from a file, falling back to environment
// variables. A file that exists but does not parse is an error.
func (c *BaseConfig) LoadConfig(configPath string, envPrefix string, config interface{}) error {
	paths := []string{}
	if configPath != "" {
		paths = append(paths, configPath)
	}
	paths = append(paths, filepath.Join("config", fmt.Sprintf("%s.json", envPrefix)))

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		log.Info().Str("path", path).Str("model", envPrefix).Msg("Loaded model configuration")
		return nil
	}

	log.Info().Str("model", envPrefix).Msg("Using environment variables for model configuration")
	return nil
}
