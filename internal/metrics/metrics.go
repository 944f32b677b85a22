// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	searches        prometheus.Counter
	upstreamFail    prometheus.Counter
	upstreamLatency prometheus.Histogram
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picsearch_searches_total",
			Help: "実行された検索の合計数",
		}),
		upstreamFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "picsearch_upstream_fail_total",
			Help: "画像検索API呼び出し失敗の合計数",
		}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "picsearch_upstream_latency_seconds",
			Help:    "画像検索API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "picsearch_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.searches,
		c.upstreamFail,
		c.upstreamLatency,
		c.httpStatus,
	)

	return c
}

// RecordSearch は検索の実行を記録する。
func (c *Collector) RecordSearch() {
	c.searches.Inc()
}

// RecordUpstreamFailure は画像検索APIの呼び出し失敗を記録する。
func (c *Collector) RecordUpstreamFailure() {
	c.upstreamFail.Inc()
}

// RecordUpstreamLatency は画像検索API呼び出しのレイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(duration time.Duration) {
	c.upstreamLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
