// Package metrics 流水线的 Prometheus 指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration 每个阶段的耗时
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "review_radar_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"stage"},
	)

	// StageRuns 阶段执行结果
	StageRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_radar_stage_runs_total",
			Help: "Total pipeline stage executions by outcome",
		},
		[]string{"stage", "outcome"}, // success, failure
	)

	// LLMCalls 模型调用次数
	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_radar_llm_calls_total",
			Help: "Total language model calls by operation and outcome",
		},
		[]string{"operation", "outcome"}, // extract/consolidate, success/error/malformed
	)

	// ReviewsFetched 采集到的评论数
	ReviewsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_radar_reviews_fetched_total",
			Help: "Total reviews returned by the review source",
		},
	)

	// ConsolidationFallbacks 话题合并回退到原始话题的次数
	ConsolidationFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "review_radar_consolidation_fallbacks_total",
			Help: "Total consolidations that fell back to the identity mapping",
		},
	)

	// ReportWrites 报告写入结果
	ReportWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "review_radar_report_writes_total",
			Help: "Total report sink writes by sink and outcome",
		},
		[]string{"sink", "outcome"},
	)
)

// RecordStage 记录一次阶段执行
func RecordStage(stage string, d time.Duration, failed bool) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	StageRuns.WithLabelValues(stage, outcome).Inc()
}

// RecordLLMCall 记录一次模型调用
func RecordLLMCall(operation, outcome string) {
	LLMCalls.WithLabelValues(operation, outcome).Inc()
}

// RecordReportWrite 记录一次报告写入
func RecordReportWrite(sink string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	ReportWrites.WithLabelValues(sink, outcome).Inc()
}
