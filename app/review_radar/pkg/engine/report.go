package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/logger"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/report"
)

// report 生成每个话题的稠密日序列并写出报告。写出失败只记录日志。
func (e *Engine) report(ctx context.Context, s model.AnalysisState) model.AnalysisState {
	logger.Log.Infof("开始生成报告 [%s]", s.AnalysisID)

	trend, err := BuildTrend(s.ConsolidatedTopics, s.DailyFrequencies)
	if err != nil {
		return s.Fail(model.StatusReportFailed, reportErr+err.Error())
	}
	s.TrendAnalysis = trend
	s.ReportLocations = nil

	if len(e.sinks) > 0 {
		table := report.NewTable(s, e.opts.Now())
		if e.opts.TitleResolver != nil {
			table.AppTitle = e.opts.TitleResolver(ctx, s.AppURL)
		}
		s.ReportLocations = e.writeReports(ctx, s.AnalysisID, table)
	}

	s.CurrentStep = "trend_analysis_completed"
	s.ProcessingStatus = model.StatusCompleted
	return s
}

// writeReports 写出报告，失败或 panic 只记录日志，不影响分析状态
func (e *Engine) writeReports(ctx context.Context, id string, table *report.Table) (locations []string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("报告保存 panic [%s]: %v\n%s", id, r, debug.Stack())
			locations = nil
		}
	}()

	locations, err := e.sinks.WriteAll(ctx, table)
	if err != nil {
		logger.Log.Errorf("报告保存失败 [%s]: %v", id, err)
	}
	return locations
}

// BuildTrend 为每个合并后话题生成覆盖所有日期的序列，缺失的日期记 0
func BuildTrend(consolidated map[string]int, daily map[string]map[string]int) (map[string][]model.TrendPoint, error) {
	if len(consolidated) > 0 && len(daily) == 0 {
		return nil, fmt.Errorf("no daily frequencies for %d consolidated topics", len(consolidated))
	}

	dates := model.SortedDates(daily)
	for _, d := range dates {
		if _, err := time.Parse(time.DateOnly, d); err != nil {
			return nil, fmt.Errorf("invalid date key %q: %w", d, err)
		}
	}

	trend := make(map[string][]model.TrendPoint, len(consolidated))
	for topic := range consolidated {
		points := make([]model.TrendPoint, 0, len(dates))
		for _, d := range dates {
			points = append(points, model.TrendPoint{Date: d, Frequency: daily[d][topic]})
		}
		trend[topic] = points
	}
	return trend, nil
}
