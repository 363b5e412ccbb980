package ml

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Image is a photo attached to a request
type Image struct {
	MIMEType string
	Data     []byte
}

// NewImage wraps raw image bytes, sniffing the MIME type
func NewImage(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("unsupported image type %s", mime)
	}
	return &Image{MIMEType: mime, Data: data}, nil
}

// Request is one prompt sent to a model
type Request struct {
	System string
	Prompt string
	Image  *Image
}

// Model represents a generative model that answers prompts with free-form text
type Model interface {
	// Load initializes the model with its configuration
	Load(ctx context.Context) error
	// Generate sends the request and returns the raw reply text
	Generate(ctx context.Context, req Request) (string, error)
}

// ModelFactory creates a new model instance based on configuration
type ModelFactory interface {
	// CreateModel creates a new model instance
	CreateModel() (Model, error)
}

// NewModel creates a new model instance based on the model type. configPath
// points at an optional per-model JSON file.
func NewModel(modelType, configPath string) (Model, error) {
	var factory ModelFactory

	switch modelType {
	case "google":
		config := GoogleConfig{
			BaseConfig: BaseConfig{
				ConfigPath: configPath,
			},
		}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load Google config: %w", err)
		}
		factory = NewGoogleModelFactory(config)
	case "gemini":
		config := GeminiConfig{
			BaseConfig: BaseConfig{
				ConfigPath: configPath,
			},
		}
		if err := config.Load(); err != nil {
			return nil, fmt.Errorf("failed to load Gemini config: %w", err)
		}
		factory = NewGeminiModelFactory(config)
	default:
		return nil, fmt.Errorf("unsupported model type: %s", modelType)
	}
	return factory.CreateModel()
}
