// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordReloadSuccess(articleCount int)
	RecordReloadFailure()
	RecordParseFailure()
	RecordMentionReceived()
	RecordMentionVerify(result string, duration time.Duration)
	RecordMentionSend(result string)
	RecordFeedRequest(cacheHit bool)
	RecordSearch(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reloadSuccess   prometheus.Counter
	reloadFail      prometheus.Counter
	articlesLoaded  prometheus.Gauge
	parseFail       prometheus.Counter
	mentionReceived prometheus.Counter
	mentionVerify   *prometheus.CounterVec
	mentionSend     *prometheus.CounterVec
	verifyLatency   prometheus.Histogram
	feedRequests    *prometheus.CounterVec
	searchLatency   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reloadSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_reload_success_total",
			Help: "記事インデックス再構築成功の合計数",
		}),
		reloadFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_reload_fail_total",
			Help: "記事インデックス再構築失敗の合計数",
		}),
		articlesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "blogman_articles_loaded",
			Help: "現在のインデックスに載っている記事数",
		}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_parse_fail_total",
			Help: "記事パース失敗の合計数",
		}),
		mentionReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blogman_mention_received_total",
			Help: "受理したWebmentionクレームの合計数",
		}),
		mentionVerify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_mention_verify_total",
			Help: "Webmention検証の結果別合計数",
		}, []string{"result"}),
		mentionSend: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_mention_send_total",
			Help: "Webmention送信の結果別合計数",
		}, []string{"result"}),
		verifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blogman_mention_verify_latency_seconds",
			Help:    "Webmention検証のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		feedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blogman_feed_requests_total",
			Help: "RSSフィードリクエストのキャッシュヒット別合計数",
		}, []string{"cache"}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "blogman_search_duration_seconds",
			Help:    "検索リクエスト処理のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.reloadSuccess,
		c.reloadFail,
		c.articlesLoaded,
		c.parseFail,
		c.mentionReceived,
		c.mentionVerify,
		c.mentionSend,
		c.verifyLatency,
		c.feedRequests,
		c.searchLatency,
	)

	return c
}

// RecordReloadSuccess はインデックス再構築の成功と記事数を記録する。
func (c *Collector) RecordReloadSuccess(articleCount int) {
	c.reloadSuccess.Inc()
	c.articlesLoaded.Set(float64(articleCount))
}

// RecordReloadFailure はインデックス再構築の失敗を記録する。
func (c *Collector) RecordReloadFailure() {
	c.reloadFail.Inc()
}

// RecordParseFailure は記事パース失敗を記録する。
func (c *Collector) RecordParseFailure() {
	c.parseFail.Inc()
}

// RecordMentionReceived はWebmentionクレームの受理を記録する。
func (c *Collector) RecordMentionReceived() {
	c.mentionReceived.Inc()
}

// RecordMentionVerify はWebmention検証の結果とレイテンシを記録する。
func (c *Collector) RecordMentionVerify(result string, duration time.Duration) {
	c.mentionVerify.WithLabelValues(result).Inc()
	c.verifyLatency.Observe(duration.Seconds())
}

// RecordMentionSend はWebmention送信の結果を記録する。
func (c *Collector) RecordMentionSend(result string) {
	c.mentionSend.WithLabelValues(result).Inc()
}

// RecordFeedRequest はRSSフィードリクエストを記録する。
func (c *Collector) RecordFeedRequest(cacheHit bool) {
	label := "miss"
	if cacheHit {
		label = "hit"
	}
	c.feedRequests.WithLabelValues(label).Inc()
}

// RecordSearch は検索リクエストの処理時間を記録する。
func (c *Collector) RecordSearch(duration time.Duration) {
	c.searchLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
