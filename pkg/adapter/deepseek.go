package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zen-systems/planwright/pkg/artifact"
)

const deepseekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekAdapter implements the Adapter interface for DeepSeek models.
// DeepSeek uses an OpenAI-compatible API format, so the adapter also serves
// any other endpoint speaking that format.
type DeepSeekAdapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// deepseekRequest represents the OpenAI-compatible request format.
type deepseekRequest struct {
	Model       string            `json:"model"`
	Messages    []deepseekMessage `json:"messages"`
	MaxTokens   int64             `json:"max_tokens,omitempty"`
	Temperature float64           `json:"temperature"`
}

// deepseekMessage represents a chat message.
type deepseekMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// deepseekResponse represents the OpenAI-compatible response format.
type deepseekResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error,omitempty"`
}

// NewDeepSeekAdapter creates a new DeepSeek adapter. An empty baseURL
// selects the public DeepSeek endpoint.
func NewDeepSeekAdapter(apiKey, baseURL string, httpClient *http.Client) (*DeepSeekAdapter, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("deepseek API key is required")
	}
	if baseURL == "" {
		baseURL = deepseekBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &DeepSeekAdapter{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// Name returns the adapter identifier.
func (a *DeepSeekAdapter) Name() string {
	return "deepseek"
}

// BaseURL returns the endpoint requests are sent to.
func (a *DeepSeekAdapter) BaseURL() string {
	return a.baseURL
}

// Models returns the list of supported DeepSeek models.
func (a *DeepSeekAdapter) Models() []string {
	return []string{
		"deepseek-chat",
		"deepseek-reasoner",
	}
}

// Complete sends the role instruction and prompt to the chat completions endpoint.
func (a *DeepSeekAdapter) Complete(ctx context.Context, req Request) (*Response, error) {
	reqBody := deepseekRequest{
		Model: req.Model,
		Messages: []deepseekMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.Prompt},
		},
		MaxTokens:   req.maxTokens(),
		Temperature: req.Temperature,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepseek API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var deepseekResp deepseekResponse
	parseErr := json.Unmarshal(body, &deepseekResp)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if parseErr == nil && deepseekResp.Error != nil {
			msg = fmt.Sprintf("%s (type: %s)", deepseekResp.Error.Message, deepseekResp.Error.Type)
		}
		return nil, wrapStatus(a.Name(), resp.StatusCode, fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}
	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse response: %w", parseErr)
	}
	if deepseekResp.Error != nil {
		return nil, fmt.Errorf("deepseek API error: %s (type: %s)",
			deepseekResp.Error.Message, deepseekResp.Error.Type)
	}

	if len(deepseekResp.Choices) == 0 {
		return nil, fmt.Errorf("deepseek returned no choices")
	}

	content := deepseekResp.Choices[0].Message.Content
	usage := Usage{
		PromptTokens:     deepseekResp.Usage.PromptTokens,
		CompletionTokens: deepseekResp.Usage.CompletionTokens,
		TotalTokens:      deepseekResp.Usage.TotalTokens,
	}.Normalize()
	return &Response{
		Artifact: artifact.New(content, a.Name(), req.Model, req.Prompt),
		Usage:    &usage,
	}, nil
}
