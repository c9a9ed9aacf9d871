// Package openai implements the provider adapter for the OpenAI
// chat/completions API, the secondary provider family. Usage is metered in
// tokens as reported by the remote API.
package openai

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

	"github.com/upb/inference-gateway/models"
	"github.com/upb/inference-gateway/services"
	"github.com/upb/inference-gateway/services/health"
	"github.com/upb/inference-gateway/services/providers"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the default OpenAI API endpoint
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultTimeout bounds each remote call when none is configured
	DefaultTimeout = 60 * time.Second
)

// Adapter implements providers.Adapter for OpenAI
type Adapter struct {
	config     *models.ProviderConfig
	baseURL    string
	httpClient *http.Client
	tracker    *health.Tracker
	logger     *zap.Logger
}

// New creates an OpenAI adapter from a provider config
func New(config *models.ProviderConfig, tracker *health.Tracker, logger *zap.Logger) *Adapter {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Adapter{
		config:  config,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tracker: tracker,
		logger:  logger,
	}
}

// Name returns the configured provider name
func (a *Adapter) Name() string {
	return a.config.Name
}

// QuotaUnit returns the unit usage is metered in
func (a *Adapter) QuotaUnit() models.QuotaUnit {
	return models.QuotaUnitTokens
}

// Health returns the adapter's health tracker
func (a *Adapter) Health() *health.Tracker {
	return a.tracker
}

// Call sends one chat completion request and records the outcome on the
// health tracker.
func (a *Adapter) Call(ctx context.Context, req *providers.GenerationRequest) (*providers.GenerationResponse, error) {
	start := time.Now()

	resp, err := a.complete(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		a.tracker.RecordFailure(elapsed)
		return nil, err
	}

	a.tracker.RecordSuccess(elapsed)
	resp.ResponseTime = elapsed
	resp.Provider = a.config.Name
	return resp, nil
}

func (a *Adapter) complete(ctx context.Context, req *providers.GenerationRequest) (*providers.GenerationResponse, error) {
	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	chatReq := chatCompletionRequest{
		Model:    a.config.Model,
		Messages: messages,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		chatReq.Temperature = &req.Temperature
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, services.WrapInternal("failed to marshal openai request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, services.WrapInternal("failed to create http request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, services.WrapError(services.ErrorTypeTimeout, "openai call timed out", err)
		}
		return nil, services.WrapProvider("openai request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, services.WrapProvider("failed to read openai response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var errResp errorResponse
		message := string(respBody)
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			message = errResp.Error.Message
		}
		return nil, services.WrapProvider(
			fmt.Sprintf("openai API error [%d]: %s", httpResp.StatusCode, message), nil)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, services.WrapProvider("failed to unmarshal openai response", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, services.WrapProvider("openai returned no choices", nil)
	}

	return &providers.GenerationResponse{
		Content:    chatResp.Choices[0].Message.Content,
		UsageUnits: int64(chatResp.Usage.TotalTokens),
	}, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// OpenAI API types

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}
