package describe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"eventhub/internal/config"
)

// GeminiClient calls the generateContent REST endpoint.
type GeminiClient struct {
	endpoint   string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewGeminiClient(cfg config.DescriberConfig) *GeminiClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GeminiClient{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewGenerator picks the HTTP client when an API key is configured.
func NewGenerator(cfg config.DescriberConfig) Generator {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Static{}
	}
	return NewGeminiClient(cfg)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *GeminiClient) Generate(ctx context.Context, details Details) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: Prompt(details)}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("generate content: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("generate content: %s", decoded.Error.Message)
	}

	var text strings.Builder
	for _, candidate := range decoded.Candidates {
		for _, part := range candidate.Content.Parts {
			text.WriteString(part.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if text.Len() == 0 {
		return "", errors.New("generate content: empty response")
	}
	return strings.TrimSpace(text.String()), nil
}
