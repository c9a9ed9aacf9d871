// Package gemini implements the provider adapter for the Google Gemini API,
// the low-latency primary provider family. Usage is metered in characters.
package gemini

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
	// DefaultBaseURL is the default Gemini API endpoint
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultTimeout bounds each remote call when none is configured
	DefaultTimeout = 30 * time.Second
)

// Adapter implements providers.Adapter for Google Gemini
type Adapter struct {
	config     *models.ProviderConfig
	baseURL    string
	httpClient *http.Client
	tracker    *health.Tracker
	logger     *zap.Logger
}

// New creates a Gemini adapter from a provider config
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
	return models.QuotaUnitCharacters
}

// Health returns the adapter's health tracker
func (a *Adapter) Health() *health.Tracker {
	return a.tracker
}

// Call sends one generateContent request. The outcome is recorded on the
// health tracker whether the call succeeds or fails.
func (a *Adapter) Call(ctx context.Context, req *providers.GenerationRequest) (*providers.GenerationResponse, error) {
	start := time.Now()

	resp, err := a.generate(ctx, req)
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

func (a *Adapter) generate(ctx context.Context, req *providers.GenerationRequest) (*providers.GenerationResponse, error) {
	geminiReq := a.buildRequest(req)

	body, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, services.WrapInternal("failed to marshal gemini request", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", a.baseURL, a.config.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, services.WrapInternal("failed to create http request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", a.config.APIKey)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err) {
			return nil, services.WrapError(services.ErrorTypeTimeout, "gemini call timed out", err)
		}
		return nil, services.WrapProvider("gemini request failed", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, services.WrapProvider("failed to read gemini response", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.errorFromResponse(httpResp.StatusCode, respBody)
	}

	var geminiResp generateContentResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return nil, services.WrapProvider("failed to unmarshal gemini response", err)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return nil, services.WrapProvider("gemini returned no candidates", nil)
	}

	content := geminiResp.Candidates[0].Content.Parts[0].Text
	return &providers.GenerationResponse{
		Content: content,
		// Character-metered: prompt plus completion length
		UsageUnits: int64(len(req.Prompt) + len(content)),
	}, nil
}

// buildRequest converts a unified request to the generateContent schema
func (a *Adapter) buildRequest(req *providers.GenerationRequest) *generateContentRequest {
	geminiReq := &generateContentRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: req.Prompt}}},
		},
	}

	if req.SystemPrompt != "" {
		geminiReq.SystemInstruction = &content{
			Parts: []part{{Text: req.SystemPrompt}},
		}
	}
	if req.MaxTokens > 0 {
		geminiReq.GenerationConfig.MaxOutputTokens = &req.MaxTokens
	}
	if req.Temperature > 0 {
		geminiReq.GenerationConfig.Temperature = &req.Temperature
	}

	return geminiReq
}

// errorFromResponse classifies a non-200 response into a domain error
func (a *Adapter) errorFromResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	message := string(body)
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}

	return services.WrapProvider(
		fmt.Sprintf("gemini API error [%d]: %s", statusCode, message), nil)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Gemini API types

type generateContentRequest struct {
	Contents          []content        `json:"contents"`
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	GenerationConfig  generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text,omitempty"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type generateContentResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}
