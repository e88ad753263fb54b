package engine

import (
	"context"
	"fmt"
	"maps"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/llm"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/logger"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/oracle"
)

// extract 逐日抽取话题。
// 某一天的模型输出无法解析时该天记为空，其余错误使整个阶段失败。
func (e *Engine) extract(ctx context.Context, s model.AnalysisState) model.AnalysisState {
	logger.Log.Infof("开始话题抽取 [%s]", s.AnalysisID)

	if e.oracle == nil {
		return s.Fail(model.StatusExtractionFailed, extractionErr+llm.ErrNotConfigured.Error())
	}
	if err := e.oracle.Ready(); err != nil {
		return s.Fail(model.StatusExtractionFailed, extractionErr+err.Error())
	}

	extracted := make(map[string]map[string]int, len(s.RawReviews))
	for _, date := range model.SortedDates(s.RawReviews) {
		reviews := s.RawReviews[date]
		if len(reviews) == 0 {
			extracted[date] = map[string]int{}
			continue
		}

		topics, err := e.oracle.ExtractTopics(ctx, reviews)
		if err != nil {
			if oracle.IsMalformed(err) {
				logger.Log.Warnf("无法解析 %s 的话题抽取结果: %v", date, err)
				extracted[date] = map[string]int{}
				continue
			}
			logger.Log.Errorf("话题抽取失败 [%s]: %v", date, err)
			return s.Fail(model.StatusExtractionFailed, fmt.Sprintf("%s%s: %v", extractionErr, date, err))
		}

		extracted[date] = maps.Clone(topics)
		if extracted[date] == nil {
			extracted[date] = map[string]int{}
		}
		logger.Log.Debugf("%s 抽取到话题: %v", date, topics)
	}

	s.ExtractedTopics = extracted
	s.CurrentStep = "topic_extraction_completed"
	s.ProcessingStatus = model.StatusExtractionComplete
	return s
}
