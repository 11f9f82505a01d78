package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-agent/backend/pkg/models"
)

func TestHTTPMLClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["prompt"] == "fail" {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "echo: " + body["prompt"]})
	}))
	defer srv.Close()

	c, err := NewHTTPMLClient(srv.URL+"/", srv.Client())
	require.NoError(t, err)

	text, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", text)

	_, err = c.Complete(context.Background(), "fail")
	var up *models.UpstreamCallError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, http.StatusServiceUnavailable, up.StatusCode)
	assert.Contains(t, up.Detail, "model overloaded")
}

func TestHTTPMLClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewHTTPMLClient(url, nil)
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, models.ErrUpstream)
}

func TestNewHTTPMLClient_RequiresURL(t *testing.T) {
	_, err := NewHTTPMLClient(" ", nil)
	assert.ErrorIs(t, err, models.ErrNotConfigured)
}

func TestNewAnthropicCompleter_RequiresKey(t *testing.T) {
	_, err := NewAnthropicCompleter(anthropicTestConfig(""))
	assert.ErrorIs(t, err, models.ErrNotConfigured)

	c, err := NewAnthropicCompleter(anthropicTestConfig("sk-test"))
	require.NoError(t, err)
	assert.EqualValues(t, 1024, c.maxTokens)
}

func TestAnthropicCompleter_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("X-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "Hello "}, {"type": "text", "text": "there"}],
			"stop_reason": "end_turn", "usage": {"input_tokens": 3, "output_tokens": 2}
		}`))
	}))
	defer srv.Close()

	cfg := anthropicTestConfig("sk-test")
	cfg.BaseURL = srv.URL
	c, err := NewAnthropicCompleter(cfg)
	require.NoError(t, err)

	text, err := c.Complete(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)
}

func TestAnthropicCompleter_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer srv.Close()

	cfg := anthropicTestConfig("sk-bad")
	cfg.BaseURL = srv.URL
	c, err := NewAnthropicCompleter(cfg)
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "hi")
	var up *models.UpstreamCallError
	require.True(t, errors.As(err, &up))
	assert.Equal(t, http.StatusUnauthorized, up.StatusCode)
	assert.Equal(t, ServiceAnthropic, up.Service)
}
