package report

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
)

// CSVSink 将报告写入本地 CSV 文件
type CSVSink struct {
	Dir string
}

// Ensure CSVSink implements Sink
var _ Sink = (*CSVSink)(nil)

// Name implements Sink
func (s *CSVSink) Name() string { return "csv" }

// Write implements Sink
func (s *CSVSink) Write(ctx context.Context, t *Table) (string, error) {
	data, err := t.CSV()
	if err != nil {
		return "", err
	}
	return writeFile(s.Dir, t.FileName("csv"), data)
}

//go:embed report.html.tmpl
var htmlTemplate string

var htmlTpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"count": func(t *Table, topic string, i int) int { return t.Counts[topic][i] },
}).Parse(htmlTemplate))

// HTMLSink 将报告渲染为 HTML 页面
type HTMLSink struct {
	Dir string
}

// Ensure HTMLSink implements Sink
var _ Sink = (*HTMLSink)(nil)

// Name implements Sink
func (s *HTMLSink) Name() string { return "html" }

// Write implements Sink
func (s *HTMLSink) Write(ctx context.Context, t *Table) (string, error) {
	data, err := RenderHTML(t)
	if err != nil {
		return "", err
	}
	return writeFile(s.Dir, t.FileName("html"), data)
}

// RenderHTML 渲染报告页面
func RenderHTML(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := htmlTpl.Execute(&buf, t); err != nil {
		return nil, fmt.Errorf("render html failed: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFile(dir, name string, data []byte) (string, error) {
	if dir == "" {
		dir = "output"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
