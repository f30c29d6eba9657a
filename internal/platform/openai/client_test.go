package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

func newTestClient(t *testing.T, srv *httptest.Server) Client {
	t.Helper()
	temp := 0.2
	c, err := NewClient(logger.Nop(), Config{
		APIKey:      "sk-test",
		BaseURL:     srv.URL,
		Model:       "test-model",
		EmbedModel:  "test-embed",
		Temperature: &temp,
	})
	require.NoError(t, err)
	return c
}

func writeOutput(w http.ResponseWriter, text string) {
	resp := map[string]any{
		"output": []any{
			map[string]any{
				"type": "message",
				"role": "assistant",
				"content": []any{
					map[string]any{"type": "output_text", "text": text},
				},
			},
		},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func TestGenerateJSONDecodesOutputText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/responses", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req responsesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "json_schema", req.Text.Format["type"])
		require.Equal(t, "extract", req.Text.Format["name"])
		writeOutput(w, `{"competencies":["Loops"]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	obj, err := c.GenerateJSON(context.Background(), "sys", "user", "extract", map[string]any{"type": "object"})
	require.NoError(t, err)
	require.Equal(t, []any{"Loops"}, obj["competencies"])
}

func TestGenerateJSONDropsRejectedTemperature(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		var req responsesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if n == 1 {
			require.NotNil(t, req.Temperature)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"Unsupported parameter: 'temperature'"}}`))
			return
		}
		require.Nil(t, req.Temperature)
		writeOutput(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GenerateJSON(context.Background(), "sys", "user", "s", map[string]any{})
	require.NoError(t, err)
	_, err = c.GenerateJSON(context.Background(), "sys", "user", "s", map[string]any{})
	require.NoError(t, err)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGenerateJSONMalformedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeOutput(w, `not json`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GenerateJSON(context.Background(), "sys", "user", "s", map[string]any{})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "failed to parse model JSON"))
}

func TestEmbedOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	vecs, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestHTTPErrorIsNotRetriedByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.GenerateJSON(context.Background(), "sys", "user", "s", map[string]any{})
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
