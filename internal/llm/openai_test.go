package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/dispute-assistant/internal/common"
)

func TestNewOpenAIClient(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "valid config",
			config: Config{APIKey: "test-key"},
		},
		{
			name:    "missing API key",
			config:  Config{APIKey: ""},
			wantErr: true,
		},
		{
			name: "custom model and settings",
			config: Config{
				APIKey:      "test-key",
				Model:       "gpt-4",
				Temperature: 0.5,
				MaxTokens:   200,
				BaseURL:     "http://localhost:8080/",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newOpenAIClient(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	tests := []struct {
		name          string
		response      string
		statusCode    int
		want          string
		wantErr       bool
		wantRetryable bool
		wantRateLimit bool
	}{
		{
			name:       "successful completion",
			statusCode: http.StatusOK,
			response:   `{"choices":[{"message":{"role":"assistant","content":"{\"category\":\"FRAUD\"}"}}]}`,
			want:       `{"category":"FRAUD"}`,
		},
		{
			name:       "no choices",
			statusCode: http.StatusOK,
			response:   `{"choices":[]}`,
			wantErr:    true,
		},
		{
			name:          "rate limited",
			statusCode:    http.StatusTooManyRequests,
			response:      `{"error":"slow down"}`,
			wantErr:       true,
			wantRetryable: true,
			wantRateLimit: true,
		},
		{
			name:          "server error",
			statusCode:    http.StatusBadGateway,
			response:      `upstream`,
			wantErr:       true,
			wantRetryable: true,
		},
		{
			name:       "bad request",
			statusCode: http.StatusBadRequest,
			response:   `{"error":"bad model"}`,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody map[string]any
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client, err := newOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL})
			require.NoError(t, err)

			resp, err := client.Complete(context.Background(), Request{System: "sys", Prompt: "hello"})
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantRetryable, common.IsRetryable(err))
				assert.Equal(t, tt.wantRateLimit, errors.Is(err, common.ErrRateLimit))
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Content)

			messages, ok := gotBody["messages"].([]any)
			require.True(t, ok)
			require.Len(t, messages, 2)
			assert.Equal(t, "system", messages[0].(map[string]any)["role"])
			assert.Equal(t, "hello", messages[1].(map[string]any)["content"])
		})
	}
}
