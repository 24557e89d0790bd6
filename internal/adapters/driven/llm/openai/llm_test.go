package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pda/internal/core/domain"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewService(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-test"})
	require.NoError(t, err)
	return s
}

func TestNewService(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)

	s, err := NewService(Config{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, s.baseURL)
	assert.Equal(t, DefaultModel, s.ModelName())
	assert.Equal(t, DefaultTimeout, s.client.Timeout)
	assert.Equal(t, "openai", s.Provider())
}

func TestNewService_CustomTimeout(t *testing.T) {
	s, err := NewService(Config{APIKey: "k", Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, time.Second, s.client.Timeout)
}

func TestService_Complete(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "extract facts", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"product_name\":\"X100\"}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":20,"completion_tokens":8,"total_tokens":28}}`))
	})

	out, err := s.Complete(context.Background(), "extract facts")

	require.NoError(t, err)
	assert.JSONEq(t, `{"product_name":"X100"}`, out)
	assert.Equal(t, domain.TokenUsage{PromptTokens: 20, CompletionTokens: 8, TotalTokens: 28}, s.Usage())
}

func TestService_Complete_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   domain.CompletionErrorKind
	}{
		{"quota", http.StatusTooManyRequests, `{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`, domain.CompletionQuotaExceeded},
		{"rate", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`, domain.CompletionRateLimited},
		{"server", http.StatusServiceUnavailable, `upstream unavailable`, domain.CompletionTransient},
		{"auth", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key"}}`, domain.CompletionOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := s.Complete(context.Background(), "x")

			var ce *domain.CompletionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.want, ce.Kind)
			assert.Equal(t, "openai", ce.Provider)
		})
	}
}

func TestService_Complete_NoChoices(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	})

	_, err := s.Complete(context.Background(), "x")
	assert.ErrorContains(t, err, "no choices")
}

func TestService_Complete_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	s, err := NewService(Config{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = s.Complete(context.Background(), "x")

	var ce *domain.CompletionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, domain.CompletionTransient, ce.Kind)
}

func TestService_Ping(t *testing.T) {
	s := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"data":[]}`))
	})
	assert.NoError(t, s.Ping(context.Background()))

	bad := newTestService(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("nope"))
	})
	err := bad.Ping(context.Background())
	assert.ErrorContains(t, err, "status 401")
}
