// Package telemetry は、ロガーの初期化と Prometheus メトリクスを提供します。
//
// メトリクスはすべてデフォルトレジストリに登録され、serve コマンドの GET /metrics で公開されます。
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "charity_scraper"

// HTTP メトリクス。path には生のURLではなく gin のルートテンプレートを使用します。
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request latencies, by method and route template.",
			Buckets:   []float64{0.005, 0.05, 0.25, 1, 5, 15, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)
)

// パイプラインのメトリクス
var (
	// RunsTotal は実行回数です。status は "success" または "error"。
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Total number of scrape runs, by status.",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of complete scrape runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	OrganizationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "organizations_total",
			Help:      "Total number of organization records assembled.",
		},
	)

	// LookupsTotal は外部APIへの問い合わせ回数です。outcome は "found", "not_found", "error"。
	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lookups_total",
			Help:      "Total number of email lookups, by outcome.",
		},
		[]string{"outcome"},
	)

	// SinkWritesTotal は保存処理の回数です。status は "success" または "error"。
	SinkWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_writes_total",
			Help:      "Total number of persistence attempts, by sink and status.",
		},
		[]string{"sink", "status"},
	)
)

// Status ラベルの値
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// StatusOf は err の有無を status ラベルの値に変換します。
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
