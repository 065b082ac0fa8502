package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mealtrack/internal/config"
	"mealtrack/internal/types"
)

const testImageDataURL = "data:image/jpeg;base64,/9j/4AAQSkZJRg=="

func newVisionTestClient(t *testing.T, srvURL string) *OpenAIVisionClient {
	t.Helper()
	base := NewBaseClient(
		&http.Client{Timeout: 5 * time.Second},
		"vision-test",
		RetryPolicy{MaxRetries: 0, MinWait: time.Millisecond, MaxWait: time.Millisecond},
		"MealTrack/test",
		WithSleepFunc(noSleep),
	)
	return NewOpenAIVisionClientWithBase(base, config.VisionConfig{
		OpenAIAPIKey: config.SecretString("sk-test"),
		Model:        "gpt-4o",
		BaseURL:      srvURL,
	}, nil)
}

func chatReplyWith(content string) string {
	reply := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
	b, _ := json.Marshal(reply)
	return string(b)
}

func TestVisionClient_AnalyzeMeal_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body.Model)
		require.Len(t, body.Messages, 1)
		require.Len(t, body.Messages[0].Content, 2)
		assert.Equal(t, testImageDataURL, body.Messages[0].Content[1].ImageURL.URL)

		fmt.Fprint(w, chatReplyWith(`{"name":"Paneer Tikka","calories":450,"protein":28,"description":"Grilled cottage cheese with spices."}`))
	}))
	defer srv.Close()

	c := newVisionTestClient(t, srv.URL)

	analysis, err := c.AnalyzeMeal(context.Background(), testImageDataURL)
	require.NoError(t, err)
	assert.Equal(t, "Paneer Tikka", analysis.Name)
	assert.Equal(t, 450, analysis.Calories)
	assert.Equal(t, 28, analysis.Protein)
}

func TestVisionClient_AnalyzeMeal_FencedAndFloatReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReplyWith("```json\n{\"name\":\"Oats\",\"calories\":305.4,\"protein\":12.0,\"description\":\"Bowl of oats.\"}\n```"))
	}))
	defer srv.Close()

	c := newVisionTestClient(t, srv.URL)

	analysis, err := c.AnalyzeMeal(context.Background(), testImageDataURL)
	require.NoError(t, err)
	assert.Equal(t, "Oats", analysis.Name)
	assert.Equal(t, 305, analysis.Calories)
	assert.Equal(t, 12, analysis.Protein)
}

func TestVisionClient_AnalyzeMeal_NoFoodDetected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReplyWith(`{"error":"no food detected"}`))
	}))
	defer srv.Close()

	c := newVisionTestClient(t, srv.URL)

	_, err := c.AnalyzeMeal(context.Background(), testImageDataURL)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationInvalidImage, appErr.Code)
}

func TestVisionClient_AnalyzeMeal_MalformedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chatReplyWith("I cannot analyze this image."))
	}))
	defer srv.Close()

	c := newVisionTestClient(t, srv.URL)

	_, err := c.AnalyzeMeal(context.Background(), testImageDataURL)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamAnalysis, appErr.Code)
}

func TestVisionClient_AnalyzeMeal_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	c := newVisionTestClient(t, srv.URL)

	_, err := c.AnalyzeMeal(context.Background(), testImageDataURL)
	require.Error(t, err)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeUpstreamAnalysis, appErr.Code)
	assert.Contains(t, appErr.Message, "Incorrect API key")
}
