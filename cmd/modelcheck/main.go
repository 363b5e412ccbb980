// Command modelcheck lists the Gemini models the configured API key can use
// for content generation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/franckalain/mealcoach/internal/ml"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "path to the gemini model configuration")
	all := flag.Bool("all", false, "also list models without generateContent")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg := ml.GeminiConfig{BaseConfig: ml.BaseConfig{ConfigPath: *configPath}}
	if err := cfg.Load(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load Gemini config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	models, err := ml.NewGeminiModel(cfg, nil).ListModels(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list models")
	}

	n := 0
	for _, m := range models {
		if !*all && !m.SupportsGenerate() {
			continue
		}
		fmt.Printf("%s\t%s\n", m.Name, m.DisplayName)
		n++
	}
	log.Info().Int("count", n).Str("configured", cfg.ModelName).Msg("Listed models")
}
