package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	types "haptix/internal/domain/workflow/model"
)

const namespace = "haptix"

// Collector 进程内 Prometheus 指标，使用独立 Registry。
// 同时实现 engine.Observer，用于统计预览执行。
type Collector struct {
	registry *prometheus.Registry

	NodeVisits     *prometheus.CounterVec
	Runs           *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	Stimuli        *prometheus.CounterVec
	Transcripts    prometheus.Counter
	TriggerMatches *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
}

// New 创建指标收集器
func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		NodeVisits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_visits_total",
			Help:      "Nodes visited by preview runs",
		}, []string{"node_type"}),
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished preview runs by outcome",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Preview run wall time",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		Stimuli: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stimulus_requests_total",
			Help:      "Stimulus requests by mode and result",
		}, []string{"mode", "result"}),
		Transcripts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_total",
			Help:      "Committed transcripts received by live sessions",
		}),
		TriggerMatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_matches_total",
			Help:      "Trigger rules that fired, by kind",
		}, []string{"kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status",
		}, []string{"method", "status"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.NodeVisits,
		c.Runs,
		c.RunDuration,
		c.Stimuli,
		c.Transcripts,
		c.TriggerMatches,
		c.HTTPRequests,
	)
	return c
}

// Registry 返回底层 Registry（测试用）
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler 返回 /metrics 处理器
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// NodeVisited engine.Observer
func (c *Collector) NodeVisited(nodeType types.NodeType) {
	c.NodeVisits.WithLabelValues(string(nodeType)).Inc()
}

// RunFinished engine.Observer
func (c *Collector) RunFinished(outcome types.RunOutcome, elapsed time.Duration) {
	c.Runs.WithLabelValues(string(outcome)).Inc()
	c.RunDuration.Observe(elapsed.Seconds())
}

// StimulusSent 记录一次刺激请求
func (c *Collector) StimulusSent(mode string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Stimuli.WithLabelValues(mode, result).Inc()
}

// TranscriptReceived 记录一条已提交的转写
func (c *Collector) TranscriptReceived() {
	c.Transcripts.Inc()
}

// TriggerMatched 记录一次触发规则命中
func (c *Collector) TriggerMatched(kind string) {
	c.TriggerMatches.WithLabelValues(kind).Inc()
}

// HTTPRequest 记录一次 HTTP 请求
func (c *Collector) HTTPRequest(method string, status int) {
	c.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
