// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ログイン結果のラベル値。
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
)

// 参加操作のラベル値。
const (
	ParticipationJoin  = "join"
	ParticipationLeave = "leave"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェア、サービス層、ワーカーから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
	RecordLogin(outcome string)
	RecordParticipation(action string)
	RecordVersionConflict()
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
	logins           *prometheus.CounterVec
	participations   *prometheus.CounterVec
	versionConflicts prometheus.Counter
	sessionsPurged   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yogastudio_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "yogastudio_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yogastudio_login_total",
			Help: "結果別のログイン試行数",
		}, []string{"outcome"}),
		participations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yogastudio_participation_total",
			Help: "セッション参加・参加取り消しの成功数",
		}, []string{"action"}),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yogastudio_session_version_conflict_total",
			Help: "セッション保存時の楽観ロック競合数",
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yogastudio_sessions_purged_total",
			Help: "保持期間切れで削除されたセッション数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.logins,
		c.participations,
		c.versionConflicts,
		c.sessionsPurged,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエスト処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordLogin はログイン結果を記録する。
func (c *Collector) RecordLogin(outcome string) {
	c.logins.WithLabelValues(outcome).Inc()
}

// RecordParticipation は参加状態の変更を記録する。
func (c *Collector) RecordParticipation(action string) {
	c.participations.WithLabelValues(action).Inc()
}

// RecordVersionConflict は楽観ロック競合を記録する。
func (c *Collector) RecordVersionConflict() {
	c.versionConflicts.Inc()
}

// RecordSessionsPurged は削除されたセッション数を加算する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。
// メトリクス不要なテストやサブコマンドで使用する。
type NopCollector struct{}

func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) RecordRequestLatency(time.Duration) {}
func (NopCollector) RecordLogin(string) {}
func (NopCollector) RecordParticipation(string) {}
func (NopCollector) RecordVersionConflict() {}
func (NopCollector) RecordSessionsPurged(int64) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
