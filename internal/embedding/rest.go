package embedding

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

const (
	// RESTModelVersion is the registry version of the REST-backed model.
	RESTModelVersion = "minilm-rest"

	restDefaultModelName  = "sentence-transformers/all-MiniLM-L6-v2"
	restDefaultDimensions = 384
	restHTTPTimeout       = 30 * time.Second
)

// restModel calls an OpenAI-compatible /embeddings endpoint. The inference
// runtime (e.g. a local text-embeddings server or LiteLLM proxy) is an
// external collaborator; this client only holds the "text in, vector out"
// contract.
type restModel struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	modelName  string
	dimensions int
}

type embedRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func init() {
	RegisterModel(ModelMetadata{
		Name:        "all-MiniLM-L6-v2 (REST)",
		Version:     RESTModelVersion,
		Dimensions:  restDefaultDimensions,
		Description: "Sentence embedding via OpenAI-compatible REST API",
		Default:     true,
	}, newRESTModel)
}

func newRESTModel() (Model, error) {
	baseURL := config.GetEmbeddingBaseURL()
	if baseURL == "" {
		return nil, fmt.Errorf("PATTERNMINE_EMBEDDING_BASE_URL is required for the REST embedding model")
	}
	modelName := config.GetEmbeddingModelName()
	if modelName == "" {
		modelName = restDefaultModelName
	}
	dimensions := config.GetEmbeddingDimensions()
	if dimensions <= 0 {
		dimensions = restDefaultDimensions
	}

	return &restModel{
		client:     &http.Client{Timeout: restHTTPTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     config.GetEmbeddingAPIKey(),
		modelName:  modelName,
		dimensions: dimensions,
	}, nil
}

func (m *restModel) Name() string    { return "all-MiniLM-L6-v2 (REST)" }
func (m *restModel) Version() string { return RESTModelVersion }
func (m *restModel) Dimensions() int { return m.dimensions }
func (m *restModel) Close() error    { return nil }

func (m *restModel) Embed(text string) ([]float32, error) {
	if text == "" {
		return make([]float32, m.dimensions), nil
	}

	body, err := json.Marshal(embedRequest{
		Input:          text,
		Model:          m.modelName,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, m.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send embedding request to %s: %w", m.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodySnippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding API error (model=%s, status=%d): %s",
			m.modelName, resp.StatusCode, strings.TrimSpace(string(bodySnippet)))
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, fmt.Errorf("decode embedding response from %s: %w", m.baseURL, err)
	}
	if len(embedResp.Data) == 0 {
		return nil, fmt.Errorf("embedding API returned no results for model %s", m.modelName)
	}
	return embedResp.Data[0].Embedding, nil
}
