package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientTranslate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tiny", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[0].Content, `"ko"`)
		assert.Equal(t, "planning the fix", req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" 수정 계획 "}}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", "secret", "tiny", time.Second)
	out, err := client.Translate(context.Background(), "planning the fix", "ko")
	require.NoError(t, err)
	assert.Equal(t, "수정 계획", out)
}

func TestClientTranslateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"api error", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"rate_limit"}}`, "slow down"},
		{"plain error", http.StatusBadGateway, `upstream down`, "upstream down"},
		{"empty content", http.StatusOK, `{"choices":[{"message":{"role":"assistant","content":"  "}}]}`, ErrEmptyTranslation.Error()},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrEmptyTranslation.Error()},
		{"bad json", http.StatusOK, `{`, "failed to unmarshal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(server.URL, "", "m", time.Second).Translate(context.Background(), "x", "ja")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClientTranslateTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, "", "m", 50*time.Millisecond).Translate(context.Background(), "x", "ja")
	assert.Error(t, err)
}

func TestNewTranslator(t *testing.T) {
	t.Setenv(EnvMode, "")
	assert.Nil(t, NewTranslator("", "", "m", time.Second))
	assert.IsType(t, &Client{}, NewTranslator("http://localhost", "", "m", time.Second))

	t.Setenv(EnvMode, ModeMock)
	tr := NewTranslator("", "", "m", time.Second)
	require.IsType(t, &MockClient{}, tr)
	out, err := tr.Translate(context.Background(), "hi", "de")
	require.NoError(t, err)
	assert.Equal(t, "[de] hi", out)
}
