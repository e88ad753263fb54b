package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/config"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
)

func TestNewFromConfig_WithoutLLM(t *testing.T) {
	dir := t.TempDir()
	reviews := filepath.Join(dir, "reviews.yaml")
	require.NoError(t, os.WriteFile(reviews, []byte(`
- user: a
  rating: 1
  content: late
  at: "2024-03-01"
`), 0o644))

	zero := 0
	cfg := &config.Config{
		ReviewSource: config.ReviewSourceConfig{Provider: "file", File: config.FileConfig{Path: reviews}},
		Ingestion:    config.IngestionConfig{DelayMS: &zero},
		Report:       config.ReportConfig{OutputDir: dir, Formats: []string{"csv", "html", "pdf"}},
	}
	cfg.ApplyDefaults()

	e, cleanup, err := NewFromConfig(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()
	assert.Len(t, e.sinks, 2)

	out := e.Run(context.Background(), RunOptions{AnalysisID: "cfg", AppURL: "com.example", TargetDate: "2024-03-01"})
	assert.Equal(t, model.StatusExtractionFailed, out.ProcessingStatus)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "Extraction error: llm: not configured")
	assert.Len(t, out.RawReviews["2024-03-01"], 1)
}

func TestNewFromConfig_BadSource(t *testing.T) {
	cfg := &config.Config{ReviewSource: config.ReviewSourceConfig{Provider: "file"}}
	cfg.ApplyDefaults()
	_, _, err := NewFromConfig(context.Background(), cfg)
	assert.Error(t, err)
}
