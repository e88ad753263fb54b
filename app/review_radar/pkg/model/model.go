package model

import (
	"maps"
	"slices"
)

// Review 单条应用评论，产生后不再修改
type Review struct {
	App     string `json:"app,omitempty" yaml:"app,omitempty"`
	User    string `json:"user" yaml:"user"`
	Rating  int    `json:"rating" yaml:"rating"`
	Content string `json:"content" yaml:"content"`
	At      string `json:"at" yaml:"at"` // YYYY-MM-DD
	Reply   string `json:"reply,omitempty" yaml:"reply,omitempty"`
}

// TrendPoint 某个话题在某一天的出现次数
type TrendPoint struct {
	Date      string `json:"date"`
	Frequency int    `json:"frequency"`
}

// Status 流水线处理状态
type Status string

const (
	StatusStarted               Status = "started"
	StatusIngestionComplete     Status = "ingestion_complete"
	StatusIngestionFailed       Status = "ingestion_failed"
	StatusExtractionComplete    Status = "extraction_complete"
	StatusExtractionFailed      Status = "extraction_failed"
	StatusConsolidationComplete Status = "consolidation_complete"
	StatusConsolidationFailed   Status = "consolidation_failed"
	StatusCompleted             Status = "completed"
	StatusReportFailed          Status = "analysis_failed"
)

// Failed 是否为某个阶段的失败状态
func (s Status) Failed() bool {
	switch s {
	case StatusIngestionFailed, StatusExtractionFailed, StatusConsolidationFailed, StatusReportFailed:
		return true
	}
	return false
}

// AnalysisState 一次分析运行在各阶段之间传递的状态。
// 每个阶段返回新的值，只覆盖自己负责的字段，不修改入参中的 map 与切片。
type AnalysisState struct {
	AnalysisID string `json:"analysis_id"`
	AppURL     string `json:"app_url"`
	TargetDate string `json:"target_date"`

	RawReviews         map[string][]Review       `json:"raw_reviews"`
	ExtractedTopics    map[string]map[string]int `json:"extracted_topics"`
	ConsolidatedTopics map[string]int            `json:"consolidated_topics"`
	TopicMapping       map[string]string         `json:"topic_mapping"`
	DailyFrequencies   map[string]map[string]int `json:"daily_frequencies"`
	TrendAnalysis      map[string][]TrendPoint   `json:"trend_analysis"`
	ReportLocations    []string                  `json:"report_locations,omitempty"`

	ProcessingStatus Status   `json:"processing_status"`
	Errors           []string `json:"errors"`
	CurrentStep      string   `json:"current_step"`
}

// NewAnalysisState 创建初始状态，所有集合为空
func NewAnalysisState(analysisID, appURL, targetDate string) AnalysisState {
	return AnalysisState{
		AnalysisID:         analysisID,
		AppURL:             appURL,
		TargetDate:         targetDate,
		RawReviews:         map[string][]Review{},
		ExtractedTopics:    map[string]map[string]int{},
		ConsolidatedTopics: map[string]int{},
		TopicMapping:       map[string]string{},
		DailyFrequencies:   map[string]map[string]int{},
		TrendAnalysis:      map[string][]TrendPoint{},
		ProcessingStatus:   StatusStarted,
		Errors:             []string{},
		CurrentStep:        "init",
	}
}

// Failed 当前状态是否已失败
func (s AnalysisState) Failed() bool {
	return s.ProcessingStatus.Failed()
}

// Fail 返回追加了一条错误并置为失败状态的新状态
func (s AnalysisState) Fail(status Status, msg string) AnalysisState {
	errs := make([]string, 0, len(s.Errors)+1)
	errs = append(errs, s.Errors...)
	s.Errors = append(errs, msg)
	s.ProcessingStatus = status
	return s
}

// SortedDates 返回 map 的日期键，升序
func SortedDates[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
