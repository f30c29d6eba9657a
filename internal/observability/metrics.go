package observability

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/neurobridge-competency/internal/platform/envutil"
	"github.com/yungbote/neurobridge-competency/internal/platform/logger"
)

// Metrics holds the process-wide counters exposed on /metrics.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	llmCalls    *CounterVec
	llmLatency  *HistogramVec
	llmAttempts *CounterVec
	llmCache    *CounterVec

	stageItems *CounterVec
	syncOps    *CounterVec
	syncRuns   *CounterVec
	syncTime   *HistogramVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the initialized registry, or nil when metrics are off.
// Every method on a nil *Metrics is a no-op.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("Metrics enabled", "path", "/metrics")
		}
	})
	return instance
}

// NewMetrics builds an unregistered set; Init installs one globally.
func NewMetrics() *Metrics {
	llmBuckets := []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45, 90}
	return &Metrics{
		apiRequests: NewCounterVec("competency_api_requests_total", "HTTP requests by route and status.", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("competency_api_request_seconds", "HTTP request latency.", []string{"method", "route"}, nil),
		apiInflight: NewGauge("competency_api_inflight", "HTTP requests in flight."),

		llmCalls:    NewCounterVec("competency_llm_calls_total", "Reasoning calls by kind and result.", []string{"kind", "status"}),
		llmLatency:  NewHistogramVec("competency_llm_call_seconds", "Reasoning call latency including retries.", []string{"kind"}, llmBuckets),
		llmAttempts: NewCounterVec("competency_llm_attempts_total", "Individual model attempts by kind.", []string{"kind"}),
		llmCache:    NewCounterVec("competency_llm_cache_total", "Reasoning cache lookups.", []string{"kind", "result"}),

		stageItems: NewCounterVec("competency_stage_items_total", "Pipeline items by stage and outcome.", []string{"stage", "outcome"}),
		syncOps:    NewCounterVec("competency_sync_ops_total", "Platform operations by kind and outcome.", []string{"op", "outcome"}),
		syncRuns:   NewCounterVec("competency_sync_runs_total", "Sync runs by final state.", []string{"state"}),
		syncTime:   NewHistogramVec("competency_sync_seconds", "Sync run duration.", nil, llmBuckets),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmCalls, m.llmLatency, m.llmAttempts, m.llmCache,
		m.stageItems, m.syncOps, m.syncRuns, m.syncTime,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Add(1)
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Add(-1)
}

// ObserveLLMCall records one gateway call after retries settle. status is
// "ok", "cached", "malformed", "timeout" or "error".
func (m *Metrics) ObserveLLMCall(kind, status string, attempts int, dur time.Duration) {
	if m == nil {
		return
	}
	kind = orUnknown(kind)
	m.llmCalls.Inc(kind, orUnknown(status))
	if status == "cached" {
		m.llmCache.Inc(kind, "hit")
		return
	}
	m.llmCache.Inc(kind, "miss")
	if attempts > 0 {
		m.llmAttempts.Add(float64(attempts), kind)
	}
	m.llmLatency.Observe(dur.Seconds(), kind)
}

func (m *Metrics) ObserveStage(stage string, succeeded, skipped, failed int) {
	if m == nil {
		return
	}
	stage = orUnknown(stage)
	if succeeded > 0 {
		m.stageItems.Add(float64(succeeded), stage, "succeeded")
	}
	if skipped > 0 {
		m.stageItems.Add(float64(skipped), stage, "skipped")
	}
	if failed > 0 {
		m.stageItems.Add(float64(failed), stage, "failed")
	}
}

func (m *Metrics) IncSyncOp(op, outcome string) {
	if m == nil {
		return
	}
	m.syncOps.Inc(orUnknown(op), orUnknown(outcome))
}

func (m *Metrics) ObserveSyncRun(state string, dur time.Duration) {
	if m == nil {
		return
	}
	m.syncRuns.Inc(orUnknown(state))
	if dur > 0 {
		m.syncTime.Observe(dur.Seconds())
	}
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
