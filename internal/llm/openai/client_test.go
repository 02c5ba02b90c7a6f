package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WullieT22/Invoice-to-PO/internal/common"
	"github.com/WullieT22/Invoice-to-PO/internal/llm"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "test-model"}, nil)
}

func TestInvoke_OK(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req llm.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "match this", req.Messages[1].Content)
		require.NotNil(t, req.ResponseFormat)
		assert.Equal(t, "json_object", req.ResponseFormat.Type)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  {\"best_match\":{}}  "}}]}`))
	})

	out, err := c.Invoke(context.Background(), "match this")
	require.NoError(t, err)
	assert.Equal(t, `{"best_match":{}}`, out)
}

func TestInvoke_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad key"}`, common.ErrOracleAuth},
		{"forbidden", http.StatusForbidden, `{}`, common.ErrOracleAuth},
		{"server error", http.StatusInternalServerError, `oops`, common.ErrOracleTransport},
		{"rate limited", http.StatusTooManyRequests, `slow down`, common.ErrOracleTransport},
		{"gateway timeout", http.StatusGatewayTimeout, ``, common.ErrOracleTimeout},
		{"no choices", http.StatusOK, `{"choices":[]}`, common.ErrOracleTransport},
		{"garbage body", http.StatusOK, `<html>`, common.ErrOracleTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Invoke(context.Background(), "p")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestInvoke_Timeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Invoke(ctx, "p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrOracleTimeout), "got %v", err)
}

func TestInvoke_MissingAPIKey(t *testing.T) {
	c := NewClient(Config{}, nil)
	_, err := c.Invoke(context.Background(), "p")
	assert.True(t, errors.Is(err, common.ErrOracleAuth))
}
