package commentary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"go.uber.org/zap"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultModel     = "claude-haiku-4-5"
	defaultMaxTokens = 100
	anthropicVersion = "2023-06-01"

	// Placeholder is replaced with the weather context in the prompt.
	Placeholder = "{weather_summary}"
)

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Client asks a language model for a one-line comment on the forecast.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	prompt     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[string]
	logger     *zap.Logger
}

func NewClient(cfg config.CommentaryConfig, apiKey string, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("commentary api key cannot be empty")
	}

	baseURL := cfg.BaseURL
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		maxTokens:  maxTokens,
		prompt:     cfg.Prompt,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
			Name:        "commentary",
			MaxRequests: 1,
			Timeout:     5 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
		logger: logger.With(zap.String("component", "commentary")),
	}, nil
}

// Comment returns the model's comment, or "" when the call fails. Failures
// are logged and never block the report.
func (c *Client) Comment(ctx context.Context, weatherSummary string) string {
	comment, err := c.Generate(ctx, weatherSummary)
	if err != nil {
		c.logger.Error("Failed to generate weather comment", zap.Error(err))
		return ""
	}
	c.logger.Info("Generated weather comment", zap.String("comment", comment))
	return comment
}

func (c *Client) Generate(ctx context.Context, weatherSummary string) (string, error) {
	prompt := RenderPrompt(c.prompt, weatherSummary)
	c.logger.Debug("Calling language model", zap.String("model", c.model), zap.Int("prompt_length", len(prompt)))

	return c.breaker.Execute(func() (string, error) {
		return c.createMessage(ctx, prompt)
	})
}

func (c *Client) createMessage(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  []message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("encode messages request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build messages request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("messages request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode messages response: %w", err)
	}
	for _, block := range out.Content {
		if block.Type == "text" {
			if text := strings.TrimSpace(block.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", errors.New("messages response has no text")
}

// RenderPrompt substitutes the weather context into template. A template
// without the placeholder gets the context appended.
func RenderPrompt(template, weatherSummary string) string {
	if !strings.Contains(template, Placeholder) {
		return strings.TrimSpace(template + "\n\n" + weatherSummary)
	}
	return strings.ReplaceAll(template, Placeholder, weatherSummary)
}
