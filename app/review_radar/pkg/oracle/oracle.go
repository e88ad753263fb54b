// Package oracle 话题抽取与合并。
// 流水线只依赖 TopicOracle 的类型化结果，代码块剥离和 JSON 解析都封装在这里。
package oracle

import (
	"context"
	"errors"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/llm"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/logger"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/metrics"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
)

// TopicOracle 定义话题抽取与合并接口。
// 模型输出无法解析时返回的错误包装 ErrMalformedResponse，其余错误表示调用本身失败。
type TopicOracle interface {
	// Ready 在开始逐日调用之前检查前置条件
	Ready() error
	ExtractTopics(ctx context.Context, reviews []model.Review) (map[string]int, error)
	Consolidate(ctx context.Context, frequencies map[string]int) (*Consolidation, error)
}

// LLMOracle 基于语言模型的 TopicOracle
type LLMOracle struct {
	completer   llm.Completer
	seeds       []string
	unavailable error
}

// NewLLMOracle 创建实例，seeds 为空时使用 SeedTopics
func NewLLMOracle(completer llm.Completer, seeds ...string) *LLMOracle {
	if len(seeds) == 0 {
		seeds = SeedTopics
	}
	return &LLMOracle{completer: completer, seeds: seeds}
}

// Unavailable 返回一个始终未就绪的实例，Ready 返回 reason
func Unavailable(reason error) *LLMOracle {
	return &LLMOracle{seeds: SeedTopics, unavailable: reason}
}

// Ensure LLMOracle implements TopicOracle
var _ TopicOracle = (*LLMOracle)(nil)

// Ready implements TopicOracle
func (o *LLMOracle) Ready() error {
	if o != nil && o.unavailable != nil {
		return o.unavailable
	}
	if o == nil || o.completer == nil {
		return llm.ErrNotConfigured
	}
	return nil
}

// ExtractTopics implements TopicOracle
func (o *LLMOracle) ExtractTopics(ctx context.Context, reviews []model.Review) (map[string]int, error) {
	if len(reviews) == 0 {
		return map[string]int{}, nil
	}
	if err := o.Ready(); err != nil {
		return nil, err
	}

	content, err := o.completer.Complete(ctx, ExtractionPrompt(o.seeds, reviews))
	if err != nil {
		metrics.RecordLLMCall("extract", "error")
		return nil, err
	}
	logger.Log.Debugf("话题抽取原始输出: %s", content)

	topics, err := ParseTopics(content)
	if err != nil {
		metrics.RecordLLMCall("extract", "malformed")
		return nil, err
	}
	metrics.RecordLLMCall("extract", "success")
	return topics, nil
}

// Consolidate implements TopicOracle
func (o *LLMOracle) Consolidate(ctx context.Context, frequencies map[string]int) (*Consolidation, error) {
	if err := o.Ready(); err != nil {
		return nil, err
	}

	content, err := o.completer.Complete(ctx, ConsolidationPrompt(frequencies))
	if err != nil {
		metrics.RecordLLMCall("consolidate", "error")
		return nil, err
	}
	logger.Log.Debugf("话题合并原始输出: %s", content)

	result, err := ParseConsolidation(content)
	if err != nil {
		metrics.RecordLLMCall("consolidate", "malformed")
		return nil, err
	}
	metrics.RecordLLMCall("consolidate", "success")
	return result, nil
}

// IsMalformed 判断错误是否为可恢复的解析失败
func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformedResponse)
}

