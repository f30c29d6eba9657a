package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/healthz", 200, time.Millisecond)
	m.ObserveLLMCall("extract", "ok", 1, time.Second)
	m.ObserveStage("extract", 1, 0, 0)
	m.IncSyncOp("create_framework", "created")
	m.ObserveSyncRun("modules_linked", time.Second)
	require.NoError(t, m.WritePrometheus(&bytes.Buffer{}))
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("POST", "/v1/courses/:course_id/runs", 202, 30*time.Millisecond)
	m.ObserveLLMCall("extract", "ok", 2, 3*time.Second)
	m.ObserveLLMCall("extract", "cached", 0, 0)
	m.ObserveStage("consolidate", 3, 1, 0)
	m.IncSyncOp("create_framework", "created")

	require.Equal(t, 2.0, m.llmAttempts.Value("extract"))
	require.Equal(t, 1.0, m.llmCache.Value("extract", "hit"))
	require.Equal(t, 3.0, m.stageItems.Value("consolidate", "succeeded"))
	require.Equal(t, 0.0, m.stageItems.Value("consolidate", "failed"))

	var buf bytes.Buffer
	require.NoError(t, m.WritePrometheus(&buf))
	out := buf.String()
	require.Contains(t, out, "# TYPE competency_api_requests_total counter")
	require.Contains(t, out, `competency_api_requests_total{method="POST",route="/v1/courses/:course_id/runs",status="202"} 1`)
	require.Contains(t, out, `competency_llm_call_seconds_bucket{kind="extract",le="5"} 1`)
	require.Contains(t, out, `competency_llm_call_seconds_bucket{kind="extract",le="+Inf"} 1`)
	require.Contains(t, out, `competency_sync_ops_total{op="create_framework",outcome="created"} 1`)
}

func TestLabelEscaping(t *testing.T) {
	require.Equal(t, `{a="x\"y\\z\n"}`, labelString([]string{"a"}, []string{"x\"y\\z\n"}))
	require.Equal(t, `{a="unknown",b="unknown"}`, labelString([]string{"a", "b"}, nil))
	require.Equal(t, `{le="1"}`, withLe("", "1"))
	require.True(t, strings.HasSuffix(withLe(`{a="b"}`, "+Inf"), `,le="+Inf"}`))
}
