package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/questmind/questmind/pkg/config"
)

const (
	defaultAPIBase = "https://openrouter.ai/api/v1"
	defaultModel   = "openai/gpt-4o-mini"
)

// HTTPProvider talks to any OpenAI-compatible chat completions endpoint.
type HTTPProvider struct {
	apiKey       string
	apiBase      string
	defaultModel string
	httpClient   *http.Client
}

func NewHTTPProvider(apiKey, apiBase, model, proxy string) *HTTPProvider {
	client := &http.Client{Timeout: 120 * time.Second}

	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err == nil {
			client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	if strings.TrimSpace(apiBase) == "" {
		apiBase = defaultAPIBase
	}
	if strings.TrimSpace(model) == "" {
		model = defaultModel
	}

	return &HTTPProvider{
		apiKey:       apiKey,
		apiBase:      strings.TrimRight(apiBase, "/"),
		defaultModel: model,
		httpClient:   client,
	}
}

// NewFromConfig builds the configured provider, or reports nil when no
// credentials are present so callers can run without a generation backend.
func NewFromConfig(cfg *config.Config) (*HTTPProvider, error) {
	if cfg == nil || strings.TrimSpace(cfg.Provider.APIKey) == "" {
		return nil, nil
	}
	return NewHTTPProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Provider.Model, cfg.Provider.Proxy), nil
}

func (p *HTTPProvider) DefaultModel() string { return p.defaultModel }

func (p *HTTPProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		model = p.defaultModel
	}

	requestBody := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", &ProviderError{Message: "marshal request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return "", &ProviderError{Message: "create request", Err: err}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Message: "send request", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Message: "read response", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{Message: fmt.Sprintf("request failed with status %d: %s", resp.StatusCode, truncateBody(body))}
	}

	return parseContent(body)
}

func parseContent(body []byte) (string, error) {
	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return "", &ProviderError{Message: "unmarshal response", Err: err}
	}
	if len(apiResponse.Choices) == 0 {
		return "", &ProviderError{Message: "response contained no choices"}
	}
	return apiResponse.Choices[0].Message.Content, nil
}

func truncateBody(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		return s[:256] + "..."
	}
	return s
}
