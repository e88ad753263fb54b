package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/report"
)

var (
	colorOK    = lipgloss.Color("#22C55E")
	colorFail  = lipgloss.Color("#EF4444")
	colorMuted = lipgloss.Color("#6B7280")

	styleTitle  = lipgloss.NewStyle().Bold(true)
	styleHeader = lipgloss.NewStyle().Bold(true).Underline(true)
	styleMuted  = lipgloss.NewStyle().Foreground(colorMuted)
	styleError  = lipgloss.NewStyle().Foreground(colorFail)
)

// maxColumns 终端里最多展示的话题列数，完整数据见报告文件
const maxColumns = 6

func renderSummary(s model.AnalysisState, t *report.Table) string {
	var b strings.Builder

	statusColor := colorOK
	if s.Failed() {
		statusColor = colorFail
	}
	b.WriteString(styleTitle.Render("Analysis "+s.AnalysisID) + "\n")
	b.WriteString(fmt.Sprintf("app: %s  target date: %s\n", s.AppURL, s.TargetDate))
	b.WriteString("processing_status: " + lipgloss.NewStyle().Foreground(statusColor).Bold(true).Render(string(s.ProcessingStatus)) + "\n")

	if len(s.Errors) > 0 {
		b.WriteString("\nerrors:\n")
		for _, e := range s.Errors {
			b.WriteString(styleError.Render("  "+e) + "\n")
		}
	}

	if len(t.Topics) > 0 {
		b.WriteString("\n" + renderTable(t) + "\n")
	}

	if len(s.ReportLocations) > 0 {
		b.WriteString("\nreports:\n")
		for _, loc := range s.ReportLocations {
			b.WriteString("  " + loc + "\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderTable(t *report.Table) string {
	topics := t.Topics
	if len(topics) > maxColumns {
		topics = topics[:maxColumns]
	}

	widths := make([]int, len(topics)+1)
	widths[0] = len("2006-01-02")
	for i, topic := range topics {
		widths[i+1] = max(len(topic), 5)
	}

	cell := func(i int, s string) string {
		return lipgloss.NewStyle().Width(widths[i] + 2).Render(s)
	}

	var lines []string
	header := []string{cell(0, "date")}
	for i, topic := range topics {
		header = append(header, cell(i+1, topic))
	}
	lines = append(lines, styleHeader.Render(strings.Join(header, "")))

	for row, d := range t.Dates {
		cols := []string{cell(0, d)}
		for i, topic := range topics {
			n := t.Counts[topic][row]
			text := fmt.Sprintf("%d", n)
			if n == 0 {
				text = styleMuted.Render(text)
			}
			cols = append(cols, cell(i+1, text))
		}
		lines = append(lines, strings.Join(cols, ""))
	}

	totals := []string{cell(0, "total")}
	for i, topic := range topics {
		totals = append(totals, cell(i+1, fmt.Sprintf("%d", t.Total(topic))))
	}
	lines = append(lines, styleTitle.Render(strings.Join(totals, "")))

	if hidden := len(t.Topics) - len(topics); hidden > 0 {
		lines = append(lines, styleMuted.Render(fmt.Sprintf("(+%d more topics in the report files)", hidden)))
	}
	return strings.Join(lines, "\n")
}

func renderError(err error) string {
	return styleError.Render("error: " + err.Error())
}

func splitFormats(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
