package translation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/transitops/patternmine/internal/config"
)

const restHTTPTimeout = 30 * time.Second

// Model represents a machine translation model.
type Model interface {
	// Translate translates text from the source language to the target
	// language (ISO 639-1 codes).
	Translate(text, sourceLang, targetLang string) (string, error)

	// Close releases model resources.
	Close() error
}

// ModelFactory creates a new instance of a translation model.
type ModelFactory func() (Model, error)

// restModel calls a LibreTranslate-compatible /translate endpoint.
type restModel struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

type translateRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText"`
}

// NewRESTModel creates a translation model backed by the configured
// LibreTranslate-compatible endpoint.
func NewRESTModel() (Model, error) {
	baseURL := config.GetTranslationBaseURL()
	if baseURL == "" {
		return nil, fmt.Errorf("PATTERNMINE_TRANSLATION_BASE_URL is required for the REST translation model")
	}
	return &restModel{
		client:  &http.Client{Timeout: restHTTPTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  config.GetTranslationAPIKey(),
	}, nil
}

func (m *restModel) Close() error { return nil }

func (m *restModel) Translate(text, sourceLang, targetLang string) (string, error) {
	if text == "" {
		return "", nil
	}

	body, err := json.Marshal(translateRequest{
		Q:      text,
		Source: sourceLang,
		Target: targetLang,
		Format: "text",
		APIKey: m.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal translation request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, m.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send translation request to %s: %w", m.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodySnippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translation API error (status=%d): %s",
			resp.StatusCode, strings.TrimSpace(string(bodySnippet)))
	}

	var translateResp translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&translateResp); err != nil {
		return "", fmt.Errorf("decode translation response from %s: %w", m.baseURL, err)
	}
	return translateResp.TranslatedText, nil
}
