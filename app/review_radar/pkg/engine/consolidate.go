package engine

import (
	"context"
	"fmt"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/llm"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/logger"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/metrics"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/oracle"
)

// consolidate 合并近义话题并按合并后的话题重新统计每日频次
func (e *Engine) consolidate(ctx context.Context, s model.AnalysisState) model.AnalysisState {
	logger.Log.Infof("开始话题合并 [%s]", s.AnalysisID)

	global := Aggregate(s.ExtractedTopics)
	positive := positiveOnly(global)
	logger.Log.Infof("共 %d 个话题，其中 %d 个频次为正", len(global), len(positive))

	if e.oracle == nil {
		return s.Fail(model.StatusConsolidationFailed, consolidationErr+llm.ErrNotConfigured.Error())
	}
	if err := e.oracle.Ready(); err != nil {
		return s.Fail(model.StatusConsolidationFailed, consolidationErr+err.Error())
	}

	result := &oracle.Consolidation{}
	if len(positive) > 0 {
		res, err := e.oracle.Consolidate(ctx, positive)
		switch {
		case err == nil:
			result = res
		case oracle.IsMalformed(err):
			logger.Log.Warnf("无法解析话题合并结果，使用原始话题: %v", err)
		default:
			logger.Log.Errorf("话题合并失败: %v", err)
			return s.Fail(model.StatusConsolidationFailed, fmt.Sprintf("%s%v", consolidationErr, err))
		}
	}

	var mapping map[string]string
	if len(result.ConsolidatedTopics) == 0 {
		if len(positive) > 0 {
			logger.Log.Warnf("话题合并结果为空，回退为原始话题 [%s]", s.AnalysisID)
			metrics.ConsolidationFallbacks.Inc()
		}
		mapping = identity(positive)
	} else {
		mapping = completeMapping(result.TopicMapping, global)
	}

	daily := Remap(s.ExtractedTopics, mapping)
	consolidated := Totals(daily)
	logger.Log.Debugf("合并后话题: %v", consolidated)

	s.ConsolidatedTopics = consolidated
	s.TopicMapping = mapping
	s.DailyFrequencies = daily
	s.CurrentStep = "topic_consolidation_completed"
	s.ProcessingStatus = model.StatusConsolidationComplete
	return s
}

// Aggregate 汇总所有日期的话题频次
func Aggregate(extracted map[string]map[string]int) map[string]int {
	global := make(map[string]int)
	for _, topics := range extracted {
		for topic, freq := range topics {
			global[topic] += freq
		}
	}
	return global
}

// Remap 按映射重新表达每日频次，映射中缺失的话题保持原名；
// 频次不为正的条目不计入。
func Remap(extracted map[string]map[string]int, mapping map[string]string) map[string]map[string]int {
	daily := make(map[string]map[string]int, len(extracted))
	for date, topics := range extracted {
		day := make(map[string]int)
		for topic, freq := range topics {
			if freq <= 0 {
				continue
			}
			canonical, ok := mapping[topic]
			if !ok || canonical == "" {
				canonical = topic
			}
			day[canonical] += freq
		}
		daily[date] = day
	}
	return daily
}

// Totals 每个话题在所有日期上的总数
func Totals(daily map[string]map[string]int) map[string]int {
	totals := make(map[string]int)
	for _, topics := range daily {
		for topic, freq := range topics {
			totals[topic] += freq
		}
	}
	return totals
}

func positiveOnly(global map[string]int) map[string]int {
	out := make(map[string]int, len(global))
	for topic, freq := range global {
		if freq > 0 {
			out[topic] = freq
		}
	}
	return out
}

func identity(topics map[string]int) map[string]string {
	m := make(map[string]string, len(topics))
	for topic := range topics {
		m[topic] = topic
	}
	return m
}

// completeMapping 只保留出现过的原始话题，模型遗漏或给出空名称的话题映射到自身
func completeMapping(proposed map[string]string, global map[string]int) map[string]string {
	m := make(map[string]string, len(global))
	for topic := range global {
		canonical := proposed[topic]
		if canonical == "" {
			canonical = topic
		}
		m[topic] = canonical
	}
	return m
}
