package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/franckalain/mealcoach/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-1.5-flash"
	geminiMaxRetries     = 3
	geminiInitialBackoff = 1 * time.Second
)

// GeminiConfig holds configuration for the API-key Gemini endpoint
type GeminiConfig struct {
	BaseConfig
	APIKey    string `json:"api_key"`
	ModelName string `json:"model_name"`
	BaseURL   string `json:"base_url"`
}

// Load loads the Gemini configuration
func (c *GeminiConfig) Load() error {
	if err := c.LoadConfig(c.ConfigPath, "gemini", c); err != nil {
		return err
	}

	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.ModelName == "" {
		c.ModelName = os.Getenv("GEMINI_MODEL_NAME")
	}
	if c.ModelName == "" {
		c.ModelName = defaultGeminiModel
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultGeminiBaseURL
	}

	if c.APIKey == "" {
		return &models.ConfigError{Key: "gemini.api_key", Reason: "not set (GEMINI_API_KEY)"}
	}
	return nil
}

type geminiPayload struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string        `json:"text,omitempty"`
	InlineData *geminiInline `json:"inlineData,omitempty"`
}

type geminiInline struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"` // base64 on the wire
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// GeminiModel implements Model over the public Gemini REST API
type GeminiModel struct {
	config  GeminiConfig
	client  *http.Client
	backoff time.Duration
}

// GeminiModelFactory implements ModelFactory for API-key Gemini models
type GeminiModelFactory struct {
	config GeminiConfig
}

// NewGeminiModelFactory creates a new Gemini model factory
func NewGeminiModelFactory(config GeminiConfig) *GeminiModelFactory {
	return &GeminiModelFactory{config: config}
}

// CreateModel creates a new Gemini model instance
func (f *GeminiModelFactory) CreateModel() (Model, error) {
	return NewGeminiModel(f.config, nil), nil
}

// NewGeminiModel builds a client directly. A nil http client uses the default.
func NewGeminiModel(config GeminiConfig, client *http.Client) *GeminiModel {
	if client == nil {
		client = &http.Client{}
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultGeminiBaseURL
	}
	if config.ModelName == "" {
		config.ModelName = defaultGeminiModel
	}
	return &GeminiModel{config: config, client: client, backoff: geminiInitialBackoff}
}

// Load has nothing to initialize; the key was checked when the config loaded
func (m *GeminiModel) Load(ctx context.Context) error {
	return nil
}

// Generate calls generateContent, retrying transient failures with
// exponential backoff until ctx expires.
func (m *GeminiModel) Generate(ctx context.Context, req Request) (string, error) {
	payload := geminiPayload{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
	}
	if req.System != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.System}}}
	}
	if req.Image != nil {
		payload.Contents[0].Parts = append(payload.Contents[0].Parts, geminiPart{
			InlineData: &geminiInline{MIMEType: req.Image.MIMEType, Data: req.Image.Data},
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(m.config.BaseURL, "/"), url.PathEscape(m.config.ModelName))

	var lastErr error
	backoff := m.backoff
	for attempt := 1; attempt <= geminiMaxRetries; attempt++ {
		text, retry, err := m.generateOnce(ctx, endpoint, body)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retry || attempt == geminiMaxRetries {
			break
		}

		log.Warn().Err(err).Int("attempt", attempt).Msg("Gemini call failed, retrying")
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("gemini call abandoned: %w", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return "", fmt.Errorf("failed to call Gemini API: %w", lastErr)
}

func (m *GeminiModel) generateOnce(ctx context.Context, endpoint string, body []byte) (string, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", m.config.APIKey)

	resp, err := m.client.Do(httpReq)
	if err != nil {
		// a deadline hit is final; anything else may be transient
		return "", ctx.Err() == nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retry, fmt.Errorf("API returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", false, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", false, fmt.Errorf("no content found in Gemini response")
	}

	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), false, nil
}

// ModelInfo describes one model offered by the API
type ModelInfo struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

// SupportsGenerate reports whether the model can answer generateContent
func (i ModelInfo) SupportsGenerate() bool {
	for _, method := range i.SupportedGenerationMethods {
		if method == "generateContent" {
			return true
		}
	}
	return false
}

// ListModels pages through every model visible to the API key
func (m *GeminiModel) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var all []ModelInfo
	pageToken := ""
	for {
		endpoint := strings.TrimRight(m.config.BaseURL, "/") + "/models"
		if pageToken != "" {
			endpoint += "?" + url.Values{"pageToken": {pageToken}}.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("x-goog-api-key", m.config.APIKey)
		resp, err := m.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}

		var page struct {
			Models        []ModelInfo `json:"models"`
			NextPageToken string      `json:"nextPageToken"`
		}
		if resp.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, fmt.Errorf("API returned %s: %s", resp.Status, strings.TrimSpace(string(msg)))
		}
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode model list: %w", err)
		}

		all = append(all, page.Models...)
		if page.NextPageToken == "" {
			return all, nil
		}
		pageToken = page.NextPageToken
	}
}
