package oracle

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/goccy/go-json"
)

// ErrMalformedResponse 模型输出无法按约定解析
var ErrMalformedResponse = errors.New("oracle: malformed model response")

// Consolidation 话题合并结果
type Consolidation struct {
	ConsolidatedTopics map[string]int    `json:"consolidated_topics"`
	TopicMapping       map[string]string `json:"topic_mapping"`
}

// StripCodeFence 去掉模型输出外层的 markdown 代码块
func StripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	switch {
	case strings.HasPrefix(content, "```json"):
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	case strings.HasPrefix(content, "```"):
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}

// keywords 与 sample_reviews 只用于让模型输出自洽，这里不解码
type topicDetail struct {
	Frequency *float64 `json:"frequency"`
}

// ParseTopics 解析抽取结果 {topic: {frequency, keywords, sample_reviews}}，只保留频次
func ParseTopics(content string) (map[string]int, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(StripCodeFence(content)), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedResponse)
	}

	topics := make(map[string]int, len(raw))
	for name, body := range raw {
		var d topicDetail
		if err := json.Unmarshal(body, &d); err != nil {
			return nil, fmt.Errorf("%w: topic %q: %v", ErrMalformedResponse, name, err)
		}
		freq := 0
		if d.Frequency != nil {
			freq = toCount(*d.Frequency)
		}
		topics[name] = freq
	}
	return topics, nil
}

// ParseConsolidation 解析合并结果，缺失的字段视为空
func ParseConsolidation(content string) (*Consolidation, error) {
	var raw struct {
		ConsolidatedTopics map[string]float64 `json:"consolidated_topics"`
		TopicMapping       map[string]string  `json:"topic_mapping"`
	}
	text := StripCodeFence(content)
	if !strings.HasPrefix(text, "{") {
		return nil, fmt.Errorf("%w: not a JSON object", ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	out := &Consolidation{
		ConsolidatedTopics: make(map[string]int, len(raw.ConsolidatedTopics)),
		TopicMapping:       make(map[string]string, len(raw.TopicMapping)),
	}
	for k, v := range raw.ConsolidatedTopics {
		out.ConsolidatedTopics[k] = toCount(v)
	}
	for k, v := range raw.TopicMapping {
		out.TopicMapping[k] = v
	}
	return out, nil
}

// maxCount 单个话题频次的上限
const maxCount = math.MaxInt32

// toCount 模型可能返回小数，截断取整，负数按 0 处理，过大的值截到 maxCount
func toCount(f float64) int {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= maxCount {
		return maxCount
	}
	return int(math.Trunc(f))
}
