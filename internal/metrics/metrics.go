// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 同期オーケストレーターと通知ワーカーから利用する。
type MetricsCollector interface {
	RecordSyncSuccess(platform string)
	RecordSyncFailure(platform string)
	RecordContestsSynced(platform string, synced, updated, failed int)
	RecordNotificationSent(channel string)
	RecordNotificationFailed(channel string)
	RecordDispatchLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	syncSuccess     *prometheus.CounterVec
	syncFail        *prometheus.CounterVec
	contestsSynced  *prometheus.CounterVec
	notifSent       *prometheus.CounterVec
	notifFailed     *prometheus.CounterVec
	dispatchLatency prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		syncSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contestman_sync_success_total",
			Help: "プラットフォーム同期成功の合計数",
		}, []string{"platform"}),
		syncFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contestman_sync_fail_total",
			Help: "プラットフォーム同期失敗の合計数",
		}, []string{"platform"}),
		contestsSynced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contestman_contests_synced_total",
			Help: "同期結果別のコンテスト処理数",
		}, []string{"platform", "result"}),
		notifSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contestman_notifications_sent_total",
			Help: "チャネル別の通知配信成功数",
		}, []string{"channel"}),
		notifFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "contestman_notifications_failed_total",
			Help: "チャネル別の通知配信失敗数",
		}, []string{"channel"}),
		dispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "contestman_dispatch_latency_seconds",
			Help:    "通知配信のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.syncSuccess,
		c.syncFail,
		c.contestsSynced,
		c.notifSent,
		c.notifFailed,
		c.dispatchLatency,
	)

	return c
}

// RecordSyncSuccess はプラットフォーム同期の成功を記録する。
func (c *Collector) RecordSyncSuccess(platform string) {
	c.syncSuccess.WithLabelValues(platform).Inc()
}

// RecordSyncFailure はプラットフォーム同期の失敗を記録する。
func (c *Collector) RecordSyncFailure(platform string) {
	c.syncFail.WithLabelValues(platform).Inc()
}

// RecordContestsSynced は同期結果の件数を結果別に記録する。
func (c *Collector) RecordContestsSynced(platform string, synced, updated, failed int) {
	c.contestsSynced.WithLabelValues(platform, "synced").Add(float64(synced))
	c.contestsSynced.WithLabelValues(platform, "updated").Add(float64(updated))
	c.contestsSynced.WithLabelValues(platform, "failed").Add(float64(failed))
}

// RecordNotificationSent はチャネル別の配信成功を記録する。
func (c *Collector) RecordNotificationSent(channel string) {
	c.notifSent.WithLabelValues(channel).Inc()
}

// RecordNotificationFailed はチャネル別の配信失敗を記録する。
func (c *Collector) RecordNotificationFailed(channel string) {
	c.notifFailed.WithLabelValues(channel).Inc()
}

// RecordDispatchLatency は通知配信のレイテンシを記録する。
func (c *Collector) RecordDispatchLatency(duration time.Duration) {
	c.dispatchLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
