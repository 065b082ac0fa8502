package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"mealtrack/internal/config"
	"mealtrack/internal/types"
)

// openAIAPIBase is the production OpenAI API base URL.
// Overridable in tests via config.VisionConfig.BaseURL.
const openAIAPIBase = "https://api.openai.com"

// analysisPrompt instructs the model to answer with a single JSON object.
// The response_format constraint below enforces JSON output; the prompt
// pins the shape.
const analysisPrompt = `Analyze the food in this image. Respond with a JSON object with exactly these keys:
"name" (short dish name), "calories" (integer, total kcal), "protein" (integer, grams), "description" (one sentence).
If the image does not contain food, respond with {"error": "no food detected"}.`

type chatContentPart struct {
	Type     string         `json:"type"`
	Text     string         `json:"text,omitempty"`
	ImageURL *chatImagePart `json:"image_url,omitempty"`
}

type chatImagePart struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string            `json:"role"`
	Content []chatContentPart `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// modelAnalysis is the shape the prompt asks the model to produce.
// Numeric fields use json.Number because models occasionally emit
// "450" or 450.0 where an integer was requested.
type modelAnalysis struct {
	Name        string      `json:"name"`
	Calories    json.Number `json:"calories"`
	Protein     json.Number `json:"protein"`
	Description string      `json:"description"`
	Error       string      `json:"error"`
}

// OpenAIVisionClient implements VisionClient against the OpenAI chat
// completions API with image input.
type OpenAIVisionClient struct {
	base    *BaseClient
	apiKey  string
	model   string
	baseURL string
	logger  *slog.Logger
}

// NewOpenAIVisionClient creates a vision client from configuration. The
// httpClient timeout must cover vision-model latency; cfg.Timeout is the
// intended value.
func NewOpenAIVisionClient(httpClient *http.Client, cfg config.VisionConfig, logger *slog.Logger) *OpenAIVisionClient {
	base := NewBaseClient(
		httpClient,
		"openai-vision",
		RetryPolicy{
			MaxRetries: 1,
			MinWait:    1 * time.Second,
			MaxWait:    10 * time.Second,
		},
		"MealTrack/1.0",
	)
	return NewOpenAIVisionClientWithBase(base, cfg, logger)
}

// NewOpenAIVisionClientWithBase creates a vision client with a
// caller-provided BaseClient, for tests.
func NewOpenAIVisionClientWithBase(base *BaseClient, cfg config.VisionConfig, logger *slog.Logger) *OpenAIVisionClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = openAIAPIBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIVisionClient{
		base:    base,
		apiKey:  cfg.OpenAIAPIKey.Unmask(),
		model:   cfg.Model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// AnalyzeMeal sends the image to the vision model and parses the structured
// analysis out of its reply.
func (c *OpenAIVisionClient) AnalyzeMeal(ctx context.Context, imageDataURL string) (*types.MealAnalysis, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContentPart{
				{Type: "text", Text: analysisPrompt},
				{Type: "image_url", ImageURL: &chatImagePart{URL: imageDataURL}},
			},
		}},
		MaxTokens: 300,
	}
	reqBody.ResponseFormat.Type = "json_object"

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to serialize analysis request",
			err,
		)
	}

	url := c.baseURL + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create analysis request",
			err,
		)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.InfoContext(ctx, "requesting meal analysis", "model", c.model)

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, c.wrapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.handleErrorResponse(resp)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAnalysis,
			"failed to decode vision response",
			err,
		)
	}
	if len(chatResp.Choices) == 0 {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAnalysis,
			"vision model returned no choices",
			nil,
		)
	}

	return parseAnalysisContent(chatResp.Choices[0].Message.Content)
}

// parseAnalysisContent extracts a MealAnalysis from the model's reply.
// Markdown code fences are stripped first; models sometimes wrap JSON in
// them despite the response_format constraint.
func parseAnalysisContent(content string) (*types.MealAnalysis, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var parsed modelAnalysis
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAnalysis,
			"vision model reply was not valid JSON",
			err,
		)
	}
	if parsed.Error != "" {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidImage,
			"image does not appear to contain food",
			nil,
		)
	}
	if parsed.Name == "" {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAnalysis,
			"vision model reply is missing a dish name",
			nil,
		)
	}

	calories, err := numberToInt(parsed.Calories)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAnalysis,
			"vision model reply has a non-numeric calorie value",
			err,
		)
	}
	protein, err := numberToInt(parsed.Protein)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamAnalysis,
			"vision model reply has a non-numeric protein value",
			err,
		)
	}

	return &types.MealAnalysis{
		Name:        parsed.Name,
		Calories:    calories,
		Protein:     protein,
		Description: parsed.Description,
	}, nil
}

// numberToInt accepts both integer and float renderings.
func numberToInt(n json.Number) (int, error) {
	if n == "" {
		return 0, nil
	}
	if i, err := n.Int64(); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

// handleErrorResponse maps non-2xx vision API responses to AppErrors.
func (c *OpenAIVisionClient) handleErrorResponse(resp *http.Response) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr openAIErrorResponse
	_ = json.Unmarshal(bodyBytes, &apiErr)

	c.logger.Error("vision API error",
		"status_code", resp.StatusCode,
		"error_type", apiErr.Error.Type,
		"error_message", apiErr.Error.Message,
	)

	msg := apiErr.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("vision API returned %d", resp.StatusCode)
	}
	return types.NewAppError(
		types.ErrCodeUpstreamAnalysis,
		msg,
		fmt.Errorf("openai returned %d: %s", resp.StatusCode, string(bodyBytes)),
	)
}

// wrapError preserves upstream codes from BaseClient and tags the rest as
// analysis failures.
func (c *OpenAIVisionClient) wrapError(err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("vision request: %s", appErr.Message),
			appErr.Err,
		)
	}
	return types.NewAppError(
		types.ErrCodeUpstreamAnalysis,
		"vision request failed",
		err,
	)
}

// Compile-time interface compliance check.
var _ VisionClient = (*OpenAIVisionClient)(nil)
