package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("explicit key and model", func(t *testing.T) {
		client, err := NewClient(ClientConfig{APIKey: "test-key-123", Model: anthropic.ModelClaude3_5Haiku20241022})
		require.NoError(t, err)
		assert.Equal(t, anthropic.ModelClaude3_5Haiku20241022, client.Model())
		assert.NotNil(t, client.Tracker())
	})

	t.Run("key from environment and default model", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "env-test-key")

		client, err := NewClient(ClientConfig{})
		require.NoError(t, err)
		assert.Equal(t, anthropic.ModelClaudeSonnet4_20250514, client.Model())
	})

	t.Run("no key", func(t *testing.T) {
		t.Setenv("ANTHROPIC_API_KEY", "")

		_, err := NewClient(ClientConfig{})
		require.Error(t, err)
		assert.Equal(t, "ANTHROPIC_API_KEY environment variable is not set", err.Error())
	})
}

func TestTranslateModelForBedrock(t *testing.T) {
	tests := []struct {
		in   anthropic.Model
		want anthropic.Model
	}{
		{anthropic.ModelClaudeSonnet4_20250514, "us.anthropic.claude-sonnet-4-20250514-v1:0"},
		{anthropic.ModelClaude3_5Haiku20241022, "us.anthropic.claude-3-5-haiku-20241022-v1:0"},
		{"us.anthropic.custom-v1:0", "us.anthropic.custom-v1:0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, translateModelForBedrock(tt.in), string(tt.in))
	}
}

func TestTokenTracker(t *testing.T) {
	tracker := NewTokenTracker()
	tracker.Add(100, 50)
	tracker.Add(200, 100)
	tracker.Add(50, 25)

	input, output := tracker.Total()
	assert.Equal(t, int64(350), input)
	assert.Equal(t, int64(175), output)
	assert.Equal(t, 3, tracker.Calls())

	tracker.Reset()
	input, output = tracker.Total()
	assert.Zero(t, input)
	assert.Zero(t, output)
	assert.Zero(t, tracker.Calls())

	// $3 input + $15 output per million tokens
	tracker.Add(1_000_000, 1_000_000)
	assert.InDelta(t, 18.0, tracker.Cost(), 1e-9)
}

// fakeMessagesServer answers every Messages API call with text.
func fakeMessagesServer(t *testing.T, text string, seen *map[string]interface{}) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		if seen != nil {
			_ = json.Unmarshal(body, seen)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "msg_test",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-sonnet-4-20250514",
			"stop_reason": "end_turn",
			"content": []map[string]interface{}{
				{"type": "text", "text": text},
			},
			"usage": map[string]interface{}{"input_tokens": 12, "output_tokens": 5},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunner_Complete(t *testing.T) {
	var seen map[string]interface{}
	srv := fakeMessagesServer(t, "  The item is on backorder.  ", &seen)

	client, err := NewClient(ClientConfig{APIKey: "test", BaseURL: srv.URL, MaxTokens: 256})
	require.NoError(t, err)

	got, err := NewRunner(client).Complete(context.Background(), "You are the inventory specialist.", "Is SKU123 in stock?")
	require.NoError(t, err)
	assert.Equal(t, "The item is on backorder.", got)

	assert.Equal(t, string(anthropic.ModelClaudeSonnet4_20250514), seen["model"])
	assert.Equal(t, float64(256), seen["max_tokens"])
	assert.Contains(t, seen, "system")

	input, output := client.Tracker().Total()
	assert.Equal(t, int64(12), input)
	assert.Equal(t, int64(5), output)
}

func TestMessageText_JoinsTextBlocks(t *testing.T) {
	var msg anthropic.Message
	raw := `{"id":"m","type":"message","role":"assistant","model":"x","content":[{"type":"text","text":"Hello "},{"type":"text","text":"world"}],"usage":{"input_tokens":1,"output_tokens":1}}`
	require.NoError(t, json.Unmarshal([]byte(raw), &msg))
	assert.Equal(t, "Hello world", MessageText(&msg))
}
