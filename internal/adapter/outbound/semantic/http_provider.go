package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/odisys/ces-gate/internal/domain/intent"
)

// ProviderConfig describes one HTTP classification backend.
type ProviderConfig struct {
	// Name identifies the provider in logs and config ("gemini", "openai").
	Name string
	// Endpoint is the full URL of the generation API.
	Endpoint string
	// Model is the backend model identifier.
	Model string
	// APIKey authenticates the request.
	APIKey string
}

// apiAdapter captures the per-backend wire format. All classification
// providers share the same HTTP flow; only request shape, response shape, and
// auth placement differ.
type apiAdapter struct {
	buildRequest func(cfg ProviderConfig, prompt string) ([]byte, error)
	parseReply   func(body []byte) (string, error)
	setHeaders   func(req *http.Request, cfg ProviderConfig)
}

// httpProvider is a wire-format-driven HTTP classification provider.
type httpProvider struct {
	cfg        ProviderConfig
	httpClient *http.Client
	adapter    apiAdapter
}

// NewProvider creates a Provider for the given config, inferring the wire
// format from the endpoint and name. Unknown backends default to the
// OpenAI-compatible chat format, which most self-hosted gateways speak.
func NewProvider(cfg ProviderConfig, client *http.Client) Provider {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpProvider{
		cfg:        cfg,
		httpClient: client,
		adapter:    inferAdapter(cfg),
	}
}

func inferAdapter(cfg ProviderConfig) apiAdapter {
	name := strings.ToLower(cfg.Name)
	switch {
	case name == "gemini", strings.Contains(cfg.Endpoint, "generativelanguage.googleapis.com"):
		return geminiAdapter()
	default:
		return openAIAdapter()
	}
}

func (p *httpProvider) Name() string {
	return p.cfg.Name
}

// Classify sends the classification prompt and parses the structured reply.
func (p *httpProvider) Classify(ctx context.Context, text string) (intent.Label, error) {
	body, err := p.adapter.buildRequest(p.cfg, buildPrompt(text))
	if err != nil {
		return intent.Label{}, fmt.Errorf("%s: build request: %w", p.cfg.Name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return intent.Label{}, fmt.Errorf("%s: create request: %w", p.cfg.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	p.adapter.setHeaders(req, p.cfg)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return intent.Label{}, fmt.Errorf("%s: %w", p.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return intent.Label{}, fmt.Errorf("%s: %s", p.cfg.Name, resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return intent.Label{}, fmt.Errorf("%s: read response: %w", p.cfg.Name, err)
	}

	reply, err := p.adapter.parseReply(raw)
	if err != nil {
		return intent.Label{}, fmt.Errorf("%s: %w", p.cfg.Name, err)
	}

	label, err := parseLabel(reply)
	if err != nil {
		return intent.Label{}, fmt.Errorf("%s: %w", p.cfg.Name, err)
	}
	return label, nil
}

// --- Gemini generateContent format ---

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func geminiAdapter() apiAdapter {
	return apiAdapter{
		buildRequest: func(_ ProviderConfig, prompt string) ([]byte, error) {
			return json.Marshal(geminiRequest{
				Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
			})
		},
		parseReply: func(body []byte) (string, error) {
			var decoded geminiResponse
			if err := json.Unmarshal(body, &decoded); err != nil {
				return "", fmt.Errorf("decode response: %w", err)
			}
			if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
				return "", fmt.Errorf("empty candidate list")
			}
			return decoded.Candidates[0].Content.Parts[0].Text, nil
		},
		setHeaders: func(req *http.Request, cfg ProviderConfig) {
			req.Header.Set("x-goog-api-key", cfg.APIKey)
		},
	}
}

// --- OpenAI chat completions format ---

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *chatFormat   `json:"response_format,omitempty"`
	Temperature    float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func openAIAdapter() apiAdapter {
	return apiAdapter{
		buildRequest: func(cfg ProviderConfig, prompt string) ([]byte, error) {
			return json.Marshal(chatRequest{
				Model:          cfg.Model,
				Messages:       []chatMessage{{Role: "user", Content: prompt}},
				ResponseFormat: &chatFormat{Type: "json_object"},
				Temperature:    0,
			})
		},
		parseReply: func(body []byte) (string, error) {
			var decoded chatResponse
			if err := json.Unmarshal(body, &decoded); err != nil {
				return "", fmt.Errorf("decode response: %w", err)
			}
			if len(decoded.Choices) == 0 {
				return "", fmt.Errorf("empty choice list")
			}
			return decoded.Choices[0].Message.Content, nil
		},
		setHeaders: func(req *http.Request, cfg ProviderConfig) {
			req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
		},
	}
}
