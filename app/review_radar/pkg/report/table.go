// Package report 趋势表及其输出
package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
)

// Sink 定义报告输出接口，返回写入位置
type Sink interface {
	Name() string
	Write(ctx context.Context, t *Table) (string, error)
}

// Table 话题 × 日期 的频次表
type Table struct {
	AnalysisID  string
	AppURL      string
	AppTitle    string
	TargetDate  string
	GeneratedAt time.Time

	Dates  []string         // 升序
	Topics []string         // 按总数降序，相同按名称
	Counts map[string][]int // topic -> 与 Dates 对齐的频次
}

// NewTable 根据状态中的 trend_analysis 构造报告表
func NewTable(s model.AnalysisState, generatedAt time.Time) *Table {
	t := &Table{
		AnalysisID:  s.AnalysisID,
		AppURL:      s.AppURL,
		TargetDate:  s.TargetDate,
		GeneratedAt: generatedAt,
		Dates:       model.SortedDates(s.DailyFrequencies),
		Counts:      make(map[string][]int, len(s.TrendAnalysis)),
	}

	index := make(map[string]int, len(t.Dates))
	for i, d := range t.Dates {
		index[d] = i
	}
	for topic, points := range s.TrendAnalysis {
		counts := make([]int, len(t.Dates))
		for _, p := range points {
			if i, ok := index[p.Date]; ok {
				counts[i] = p.Frequency
			}
		}
		t.Counts[topic] = counts
		t.Topics = append(t.Topics, topic)
	}

	slices.SortFunc(t.Topics, func(a, b string) int {
		ta, tb := t.Total(a), t.Total(b)
		if ta != tb {
			return tb - ta
		}
		return strings.Compare(a, b)
	})
	return t
}

// Total 某个话题在整个窗口内的总数
func (t *Table) Total(topic string) int {
	sum := 0
	for _, c := range t.Counts[topic] {
		sum += c
	}
	return sum
}

// Rows 返回表头和数据行：date 列加每个话题一列
func (t *Table) Rows() [][]string {
	rows := make([][]string, 0, len(t.Dates)+1)
	rows = append(rows, append([]string{"date"}, t.Topics...))
	for i, d := range t.Dates {
		row := make([]string, 0, len(t.Topics)+1)
		row = append(row, d)
		for _, topic := range t.Topics {
			row = append(row, strconv.Itoa(t.Counts[topic][i]))
		}
		rows = append(rows, row)
	}
	return rows
}

// FileName 由分析 ID 和生成时间确定的文件名
func (t *Table) FileName(ext string) string {
	return fmt.Sprintf("trend_analysis_%s_%s.%s", sanitize(t.AnalysisID), t.GeneratedAt.Format("20060102_150405"), ext)
}

// CSV 序列化为 CSV
func (t *Table) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(t.Rows()); err != nil {
		return nil, fmt.Errorf("write csv failed: %w", err)
	}
	return buf.Bytes(), nil
}

// sanitize 去掉不适合出现在文件名中的字符
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, id)
}
