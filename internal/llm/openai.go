package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Veraticus/billsplit/internal/common"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	asi1BaseURL   = "https://api.asi1.ai/v1"
)

// openAIClient implements the Client interface for OpenAI-compatible chat
// completion APIs. ASI1 speaks the same protocol under a different base URL.
type openAIClient struct {
	httpClient  *http.Client
	name        string
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

// newOpenAIClient creates a new OpenAI-compatible API client.
func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", common.ErrMissingConfig)
	}

	name := strings.ToLower(cfg.Provider)
	if name == "" {
		name = ProviderOpenAI
	}

	baseURL := cfg.BaseURL
	model := cfg.Model
	switch name {
	case ProviderASI1:
		if baseURL == "" {
			baseURL = asi1BaseURL
		}
		if model == "" {
			model = "asi1-mini"
		}
	default:
		if baseURL == "" {
			baseURL = openAIBaseURL
		}
		if model == "" {
			model = "gpt-4o-mini"
		}
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2000
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}

	return &openAIClient{
		name:        name,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		httpClient:  httpClient,
	}, nil
}

// chatMessage is one entry of the messages array. Content is either a string
// or a list of content parts when an image is attached.
type chatMessage struct {
	Content any    `json:"content"`
	Role    string `json:"role"`
}

type contentPart struct {
	ImageURL *imageURLPart `json:"image_url,omitempty"`
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
}

type imageURLPart struct {
	URL string `json:"url"`
}

// openAIResponse represents the OpenAI API response structure.
type openAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
		Index        int    `json:"index"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Created int64 `json:"created"`
}

func buildMessages(req Request) []chatMessage {
	messages := make([]chatMessage, 0, len(req.Context)+2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	for _, c := range req.Context {
		messages = append(messages, chatMessage{Role: "user", Content: c})
	}

	if req.Image == nil {
		messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})
		return messages
	}

	messages = append(messages, chatMessage{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: req.Prompt},
			{Type: "image_url", ImageURL: &imageURLPart{URL: req.Image.DataURL()}},
		},
	})
	return messages
}

// Complete sends a chat completion request.
func (c *openAIClient) Complete(ctx context.Context, req Request) (string, error) {
	requestBody := map[string]any{
		"model":       c.model,
		"messages":    buildMessages(req),
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
		"stream":      false,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", requestError(c.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", requestError(c.name, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", statusError(c.name, resp.StatusCode, body)
	}

	var response openAIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("%w: failed to parse %s response: %w", common.ErrMalformedResponse, c.name, err)
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion choices returned", common.ErrMalformedResponse)
	}

	return response.Choices[0].Message.Content, nil
}
