package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socratic-chat/internal/models"
)

const testKey = "sk-test-0123456789"

func staticKey(k string) func() string {
	return func() string { return k }
}

func TestOpenAIProvider_Complete(t *testing.T) {
	var captured chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  first *choice*\n"}},{"message":{"role":"assistant","content":"second"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL+"/v1/", "deepseek-chat", staticKey(testKey), 0)
	reply, err := p.Complete(context.Background(), CompletionRequest{
		Messages: []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}},
		Sampling: SamplingParams{Temperature: 0.7, MaxTokens: 2000, TopP: 0.95, FrequencyPenalty: 0.5, PresencePenalty: 0.5},
	})
	require.NoError(t, err)

	assert.Equal(t, "  first *choice*\n", reply)
	assert.Equal(t, "deepseek-chat", captured.Model)
	assert.Equal(t, 2000, captured.MaxTokens)
	assert.InDelta(t, 0.7, captured.Temperature, 1e-6)
	assert.InDelta(t, 0.95, captured.TopP, 1e-6)
	assert.InDelta(t, 0.5, captured.FrequencyPenalty, 1e-6)
	assert.InDelta(t, 0.5, captured.PresencePenalty, 1e-6)
	require.Len(t, captured.Messages, 1)
}

func TestOpenAIProvider_MissingKeySkipsNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(srv.URL, "deepseek-chat", staticKey(""), 0)
	_, err := p.Complete(context.Background(), CompletionRequest{})

	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestOpenAIProvider_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantDesc   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"overloaded"}}`, 500, "upstream returned 500 Internal Server Error"},
		{"unauthorized echoes key", http.StatusUnauthorized, `{"error":{"message":"bad key ` + testKey + `"}}`, 401, "upstream returned 401 Unauthorized"},
		{"malformed body", http.StatusOK, `<html>oops`, 0, "upstream sent a malformed response"},
		{"no choices", http.StatusOK, `{"choices":[]}`, 0, "upstream returned no choices"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			p := NewOpenAIProvider(srv.URL, "deepseek-chat", staticKey(testKey), 0)
			_, err := p.Complete(context.Background(), CompletionRequest{})
			require.Error(t, err)

			var upErr *UpstreamError
			require.True(t, errors.As(err, &upErr))
			assert.Equal(t, tc.wantStatus, upErr.StatusCode)
			assert.False(t, strings.Contains(upErr.Body, testKey))
			assert.False(t, strings.Contains(err.Error(), testKey))
			assert.Equal(t, tc.wantDesc, Describe(err))
		})
	}
}

func TestOpenAIProvider_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	p := NewOpenAIProvider(srv.URL, "deepseek-chat", staticKey(testKey), 50*time.Millisecond)
	_, err := p.Complete(context.Background(), CompletionRequest{})

	require.Error(t, err)
	assert.Equal(t, "upstream request timed out", Describe(err))
}

func TestOpenAIProvider_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	p := NewOpenAIProvider(url, "deepseek-chat", staticKey(testKey), 0)
	_, err := p.Complete(context.Background(), CompletionRequest{})

	require.Error(t, err)
	assert.Equal(t, "upstream request failed", Describe(err))
}
