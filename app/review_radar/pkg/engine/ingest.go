package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/logger"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
)

const (
	ingestionErr     = "Ingestion error: "
	extractionErr    = "Extraction error: "
	consolidationErr = "Consolidation error: "
	reportErr        = "Analysis error: "
)

// WindowDays 目标日期之前纳入分析的天数，窗口共 WindowDays+1 天
const WindowDays = 30

// Window 返回 [target-30d, target] 的所有日期，升序
func Window(target time.Time) []time.Time {
	start := target.AddDate(0, 0, -WindowDays)
	days := make([]time.Time, 0, WindowDays+1)
	for i := 0; i <= WindowDays; i++ {
		days = append(days, start.AddDate(0, 0, i))
	}
	return days
}

// ingest 逐日采集评论。任意一天失败则整个阶段失败，已采集的部分全部丢弃。
func (e *Engine) ingest(ctx context.Context, s model.AnalysisState) model.AnalysisState {
	logger.Log.Infof("开始采集评论 [%s]", s.AnalysisID)

	target, err := time.Parse(time.DateOnly, s.TargetDate)
	if err != nil {
		return s.Fail(model.StatusIngestionFailed, fmt.Sprintf("%sinvalid target date %q: %v", ingestionErr, s.TargetDate, err))
	}
	if e.source == nil {
		return s.Fail(model.StatusIngestionFailed, ingestionErr+"review source not configured")
	}

	days := Window(target)
	raw := make(map[string][]model.Review, len(days))
	for i, day := range days {
		date := day.Format(time.DateOnly)
		logger.Log.Debugf("采集 %s 的评论", date)

		reviews, err := e.source.FetchReviewsForDate(ctx, s.AppURL, day)
		if err != nil {
			logger.Log.Errorf("采集评论失败 [%s]: %v", date, err)
			return s.Fail(model.StatusIngestionFailed, fmt.Sprintf("%sfetch reviews for %s: %v", ingestionErr, date, err))
		}
		if reviews == nil {
			reviews = []model.Review{}
		}
		raw[date] = reviews

		if i < len(days)-1 && e.opts.Delay > 0 {
			if err := sleep(ctx, e.opts.Delay); err != nil {
				return s.Fail(model.StatusIngestionFailed, fmt.Sprintf("%s%v", ingestionErr, err))
			}
		}
	}

	logger.Log.Infof("采集完成 [%s]: %d 天, %d 条评论", s.AnalysisID, len(raw), countReviews(raw))
	s.RawReviews = raw
	s.CurrentStep = "data_ingestion_completed"
	s.ProcessingStatus = model.StatusIngestionComplete
	return s
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func countReviews(raw map[string][]model.Review) int {
	n := 0
	for _, rs := range raw {
		n += len(rs)
	}
	return n
}
