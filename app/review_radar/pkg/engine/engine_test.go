package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/llm"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/oracle"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/report"
)

type fakeSource struct {
	calls []string
	fetch func(date time.Time) ([]model.Review, error)
}

func (f *fakeSource) FetchReviewsForDate(_ context.Context, _ string, date time.Time) ([]model.Review, error) {
	f.calls = append(f.calls, date.Format(time.DateOnly))
	if f.fetch == nil {
		return nil, nil
	}
	return f.fetch(date)
}

type fakeOracle struct {
	readyErr   error
	extract    func(reviews []model.Review) (map[string]int, error)
	consolid   func(freqs map[string]int) (*oracle.Consolidation, error)
	extracted  int
	consolidIn map[string]int
}

func (f *fakeOracle) Ready() error { return f.readyErr }

func (f *fakeOracle) ExtractTopics(_ context.Context, reviews []model.Review) (map[string]int, error) {
	f.extracted++
	return f.extract(reviews)
}

func (f *fakeOracle) Consolidate(_ context.Context, freqs map[string]int) (*oracle.Consolidation, error) {
	f.consolidIn = freqs
	return f.consolid(freqs)
}

type recordingSink struct {
	tables []*report.Table
	err    error
}

func (r *recordingSink) Name() string { return "recording" }

func (r *recordingSink) Write(_ context.Context, t *report.Table) (string, error) {
	r.tables = append(r.tables, t)
	if r.err != nil {
		return "", r.err
	}
	return "mem://" + t.FileName("csv"), nil
}

func malformed() error { return fmt.Errorf("%w: unexpected token", oracle.ErrMalformedResponse) }

func newState(target string) model.AnalysisState {
	return model.NewAnalysisState("test-run", "com.example", target)
}

func TestWindow(t *testing.T) {
	days := Window(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, days, 31)
	assert.Equal(t, "2024-01-31", days[0].Format(time.DateOnly))
	assert.Equal(t, "2024-03-01", days[30].Format(time.DateOnly))
}

func TestIngest_WindowKeys(t *testing.T) {
	for _, target := range []string{"2024-03-01", "2024-01-15", "2023-12-31", "2024-11-03"} {
		src := &fakeSource{}
		e := NewEngine(src, nil, nil, Options{})

		out := e.ingest(context.Background(), newState(target))
		require.Equal(t, model.StatusIngestionComplete, out.ProcessingStatus, target)
		assert.Equal(t, "data_ingestion_completed", out.CurrentStep)

		keys := model.SortedDates(out.RawReviews)
		require.Len(t, keys, 31, target)
		assert.Equal(t, src.calls, keys, "one fetch per day, ascending")
		assert.Equal(t, target, keys[30])

		prev, err := time.Parse(time.DateOnly, keys[0])
		require.NoError(t, err)
		for _, k := range keys[1:] {
			d, err := time.Parse(time.DateOnly, k)
			require.NoError(t, err)
			assert.Equal(t, 24*time.Hour, d.Sub(prev), "no gaps")
			prev = d
		}
		for _, rs := range out.RawReviews {
			assert.NotNil(t, rs)
		}
	}
}

func TestIngest_FailureOnDay15(t *testing.T) {
	src := &fakeSource{}
	src.fetch = func(date time.Time) ([]model.Review, error) {
		if len(src.calls) == 15 {
			return nil, errors.New("scraper blocked")
		}
		return []model.Review{{User: "u", Rating: 3, Content: "ok", At: date.Format(time.DateOnly)}}, nil
	}
	e := NewEngine(src, nil, nil, Options{})

	in := newState("2024-03-01")
	out := e.ingest(context.Background(), in)

	assert.Equal(t, model.StatusIngestionFailed, out.ProcessingStatus)
	assert.Empty(t, out.RawReviews)
	require.Len(t, out.Errors, 1)
	assert.True(t, strings.HasPrefix(out.Errors[0], "Ingestion error: "))
	assert.Contains(t, out.Errors[0], "scraper blocked")
	assert.Len(t, src.calls, 15, "remaining dates are not fetched")
	assert.Empty(t, in.Errors, "input state is not modified")
}

func TestIngest_InvalidTargetDate(t *testing.T) {
	src := &fakeSource{}
	out := NewEngine(src, nil, nil, Options{}).ingest(context.Background(), newState("03/01/2024"))
	assert.Equal(t, model.StatusIngestionFailed, out.ProcessingStatus)
	require.Len(t, out.Errors, 1)
	assert.Contains(t, out.Errors[0], "invalid target date")
	assert.Empty(t, src.calls)
}

func TestIngest_DelayHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{}
	src.fetch = func(time.Time) ([]model.Review, error) {
		cancel()
		return nil, nil
	}
	out := NewEngine(src, nil, nil, Options{Delay: time.Hour}).ingest(ctx, newState("2024-03-01"))

	assert.Equal(t, model.StatusIngestionFailed, out.ProcessingStatus)
	assert.Contains(t, out.Errors[0], context.Canceled.Error())
	assert.Len(t, src.calls, 1)
}

func TestExtract_PerDateIsolation(t *testing.T) {
	s := newState("2024-01-03")
	s.RawReviews = map[string][]model.Review{
		"2024-01-01": {{Rating: 1, Content: "late"}},
		"2024-01-02": {{Rating: 2, Content: "garbage reply"}},
		"2024-01-03": {},
	}
	o := &fakeOracle{extract: func(reviews []model.Review) (map[string]int, error) {
		if reviews[0].Content == "garbage reply" {
			return nil, malformed()
		}
		return map[string]int{"delivery_late": 1}, nil
	}}

	out := NewEngine(nil, o, nil, Options{}).extract(context.Background(), s)

	require.Equal(t, model.StatusExtractionComplete, out.ProcessingStatus)
	assert.Equal(t, map[string]map[string]int{
		"2024-01-01": {"delivery_late": 1},
		"2024-01-02": {},
		"2024-01-03": {},
	}, out.ExtractedTopics)
	assert.Equal(t, 2, o.extracted, "dates without reviews are not sent to the model")
	assert.Empty(t, out.Errors)
}

func TestExtract_KeySetMatchesRawReviews(t *testing.T) {
	src := &fakeSource{}
	e := NewEngine(src, &fakeOracle{extract: func([]model.Review) (map[string]int, error) {
		return map[string]int{"x": 1}, nil
	}}, nil, Options{})

	s := e.ingest(context.Background(), newState("2024-02-10"))
	s = e.extract(context.Background(), s)
	assert.Equal(t, model.SortedDates(s.RawReviews), model.SortedDates(s.ExtractedTopics))
	for _, topics := range s.ExtractedTopics {
		assert.Empty(t, topics)
	}
}

func TestExtract_CallFailureAbortsStage(t *testing.T) {
	s := newState("2024-01-02")
	s.RawReviews = map[string][]model.Review{
		"2024-01-01": {{Content: "a"}},
		"2024-01-02": {{Content: "b"}},
	}
	o := &fakeOracle{extract: func([]model.Review) (map[string]int, error) {
		return nil, errors.New("dial tcp: connection refused")
	}}

	out := NewEngine(nil, o, nil, Options{}).extract(context.Background(), s)
	assert.Equal(t, model.StatusExtractionFailed, out.ProcessingStatus)
	require.Len(t, out.Errors, 1)
	assert.True(t, strings.HasPrefix(out.Errors[0], "Extraction error: "))
	assert.Empty(t, out.ExtractedTopics)
	assert.Equal(t, 1, o.extracted)
}

func TestExtract_NotConfigured(t *testing.T) {
	s := newState("2024-01-01")
	s.RawReviews = map[string][]model.Review{"2024-01-01": {{Content: "a"}}}
	o := &fakeOracle{readyErr: llm.ErrNotConfigured}

	out := NewEngine(nil, o, nil, Options{}).extract(context.Background(), s)
	assert.Equal(t, model.StatusExtractionFailed, out.ProcessingStatus)
	assert.Equal(t, []string{"Extraction error: llm: not configured"}, out.Errors)
	assert.Zero(t, o.extracted)

	out = NewEngine(nil, nil, nil, Options{}).extract(context.Background(), s)
	assert.Equal(t, model.StatusExtractionFailed, out.ProcessingStatus)
}

func TestConsolidate_DeliveryScenario(t *testing.T) {
	s := newState("2024-01-02")
	s.ExtractedTopics = map[string]map[string]int{
		"2024-01-01": {"delivery_late": 3},
		"2024-01-02": {"slow_delivery": 2},
	}
	o := &fakeOracle{consolid: func(map[string]int) (*oracle.Consolidation, error) {
		return &oracle.Consolidation{
			ConsolidatedTopics: map[string]int{"delivery_time_issue": 5},
			TopicMapping:       map[string]string{"delivery_late": "delivery_time_issue", "slow_delivery": "delivery_time_issue"},
		}, nil
	}}

	out := NewEngine(nil, o, nil, Options{}).consolidate(context.Background(), s)

	require.Equal(t, model.StatusConsolidationComplete, out.ProcessingStatus)
	assert.Equal(t, map[string]int{"delivery_time_issue": 5}, out.ConsolidatedTopics)
	assert.Equal(t, map[string]map[string]int{
		"2024-01-01": {"delivery_time_issue": 3},
		"2024-01-02": {"delivery_time_issue": 2},
	}, out.DailyFrequencies)
	assert.Equal(t, map[string]string{
		"delivery_late": "delivery_time_issue",
		"slow_delivery": "delivery_time_issue",
	}, out.TopicMapping)
	assert.Equal(t, map[string]int{"delivery_late": 3, "slow_delivery": 2}, o.consolidIn)
}

func TestConsolidate_InvalidJSONFallsBackToIdentity(t *testing.T) {
	s := newState("2024-01-02")
	s.ExtractedTopics = map[string]map[string]int{
		"2024-01-01": {"delivery_late": 3, "cold_food": 1, "never": 0},
		"2024-01-02": {"delivery_late": 1},
	}
	o := &fakeOracle{consolid: func(map[string]int) (*oracle.Consolidation, error) { return nil, malformed() }}

	out := NewEngine(nil, o, nil, Options{}).consolidate(context.Background(), s)

	require.Equal(t, model.StatusConsolidationComplete, out.ProcessingStatus)
	assert.Equal(t, map[string]int{"delivery_late": 4, "cold_food": 1}, out.ConsolidatedTopics)
	assert.Equal(t, map[string]string{"delivery_late": "delivery_late", "cold_food": "cold_food"}, out.TopicMapping)
	assert.Equal(t, map[string]map[string]int{
		"2024-01-01": {"delivery_late": 3, "cold_food": 1},
		"2024-01-02": {"delivery_late": 1},
	}, out.DailyFrequencies)
	assert.Empty(t, out.Errors)
}

func TestConsolidate_EmptyResultDiscardsModelMapping(t *testing.T) {
	s := newState("2024-01-01")
	s.ExtractedTopics = map[string]map[string]int{"2024-01-01": {"a": 2, "b": 1}}
	o := &fakeOracle{consolid: func(map[string]int) (*oracle.Consolidation, error) {
		return &oracle.Consolidation{
			ConsolidatedTopics: map[string]int{},
			TopicMapping:       map[string]string{"a": "merged", "b": "merged"},
		}, nil
	}}

	out := NewEngine(nil, o, nil, Options{}).consolidate(context.Background(), s)
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, out.ConsolidatedTopics)
	assert.Equal(t, map[string]string{"a": "a", "b": "b"}, out.TopicMapping)
}

func TestConsolidate_PartialMappingAndConservation(t *testing.T) {
	s := newState("2024-01-03")
	s.ExtractedTopics = map[string]map[string]int{
		"2024-01-01": {"delivery_late": 3, "rude_rider": 1},
		"2024-01-02": {"slow_delivery": 2, "app_crash": 4},
		"2024-01-03": {},
	}
	o := &fakeOracle{consolid: func(map[string]int) (*oracle.Consolidation, error) {
		return &oracle.Consolidation{
			// 模型给出的总数与实际不符，且遗漏了 app_crash
			ConsolidatedTopics: map[string]int{"delivery_time_issue": 7, "delivery_partner_behavior": 1, "ghost": 9},
			TopicMapping: map[string]string{
				"delivery_late": "delivery_time_issue",
				"slow_delivery": "delivery_time_issue",
				"rude_rider":    "delivery_partner_behavior",
				"hallucinated":  "ghost",
			},
		}, nil
	}}

	out := NewEngine(nil, o, nil, Options{}).consolidate(context.Background(), s)

	require.Equal(t, model.StatusConsolidationComplete, out.ProcessingStatus)
	assert.Equal(t, map[string]int{"delivery_time_issue": 5, "delivery_partner_behavior": 1, "app_crash": 4}, out.ConsolidatedTopics)
	assert.Equal(t, "app_crash", out.TopicMapping["app_crash"])
	assert.NotContains(t, out.TopicMapping, "hallucinated")
	assert.Equal(t, map[string]int{}, out.DailyFrequencies["2024-01-03"])

	for topic, total := range out.ConsolidatedTopics {
		sum := 0
		for _, day := range out.DailyFrequencies {
			sum += day[topic]
		}
		assert.Equal(t, total, sum, topic)
	}
	for _, day := range out.DailyFrequencies {
		for topic := range day {
			assert.Contains(t, out.ConsolidatedTopics, topic)
		}
	}
	assert.Len(t, out.TopicMapping, 4, "every original label is mapped")
}

func TestConsolidate_CallFailure(t *testing.T) {
	s := newState("2024-01-01")
	s.ExtractedTopics = map[string]map[string]int{"2024-01-01": {"a": 1}}
	o := &fakeOracle{consolid: func(map[string]int) (*oracle.Consolidation, error) {
		return nil, errors.New("503 service unavailable")
	}}

	out := NewEngine(nil, o, nil, Options{}).consolidate(context.Background(), s)
	assert.Equal(t, model.StatusConsolidationFailed, out.ProcessingStatus)
	assert.Equal(t, []string{"Consolidation error: 503 service unavailable"}, out.Errors)
	assert.Empty(t, out.ConsolidatedTopics)
	assert.Empty(t, out.TopicMapping)
	assert.Empty(t, out.DailyFrequencies)
}

func TestConsolidate_NoTopicsSkipsModel(t *testing.T) {
	s := newState("2024-01-02")
	s.ExtractedTopics = map[string]map[string]int{"2024-01-01": {}, "2024-01-02": {"zero": 0}}
	o := &fakeOracle{consolid: func(map[string]int) (*oracle.Consolidation, error) {
		t.Fatal("model should not be called")
		return nil, nil
	}}

	out := NewEngine(nil, o, nil, Options{}).consolidate(context.Background(), s)
	assert.Equal(t, model.StatusConsolidationComplete, out.ProcessingStatus)
	assert.Empty(t, out.ConsolidatedTopics)
	assert.Equal(t, map[string]map[string]int{"2024-01-01": {}, "2024-01-02": {}}, out.DailyFrequencies)
}

func TestBuildTrend_DenseAndIdempotent(t *testing.T) {
	consolidated := map[string]int{"delivery_time_issue": 5, "food_quality": 1}
	daily := map[string]map[string]int{
		"2024-01-03": {},
		"2024-01-01": {"delivery_time_issue": 3},
		"2024-01-02": {"delivery_time_issue": 2, "food_quality": 1},
	}

	trend, err := BuildTrend(consolidated, daily)
	require.NoError(t, err)
	assert.Equal(t, []model.TrendPoint{
		{Date: "2024-01-01", Frequency: 3},
		{Date: "2024-01-02", Frequency: 2},
		{Date: "2024-01-03", Frequency: 0},
	}, trend["delivery_time_issue"])

	for topic, points := range trend {
		sum := 0
		for i, p := range points {
			assert.GreaterOrEqual(t, p.Frequency, 0)
			if i > 0 {
				assert.Less(t, points[i-1].Date, p.Date)
			}
			sum += p.Frequency
		}
		assert.Equal(t, consolidated[topic], sum)
	}

	again, err := BuildTrend(consolidated, daily)
	require.NoError(t, err)
	assert.Equal(t, trend, again)
}

func TestBuildTrend_Errors(t *testing.T) {
	_, err := BuildTrend(map[string]int{"a": 1}, map[string]map[string]int{})
	assert.Error(t, err)

	_, err = BuildTrend(map[string]int{"a": 1}, map[string]map[string]int{"yesterday": {"a": 1}})
	assert.ErrorContains(t, err, "invalid date key")

	trend, err := BuildTrend(map[string]int{}, map[string]map[string]int{})
	require.NoError(t, err)
	assert.Empty(t, trend)
}

func TestReport_SinkFailureStillCompletes(t *testing.T) {
	s := newState("2024-01-02")
	s.ConsolidatedTopics = map[string]int{"a": 1}
	s.DailyFrequencies = map[string]map[string]int{"2024-01-01": {"a": 1}, "2024-01-02": {}}

	sink := &recordingSink{err: errors.New("disk full")}
	out := NewEngine(nil, nil, report.MultiSink{sink}, Options{}).report(context.Background(), s)

	assert.Equal(t, model.StatusCompleted, out.ProcessingStatus)
	assert.Equal(t, "trend_analysis_completed", out.CurrentStep)
	assert.Empty(t, out.Errors)
	assert.Empty(t, out.ReportLocations)
	assert.Len(t, sink.tables, 1)
}

type panickingSink struct{}

func (panickingSink) Name() string { return "panicking" }

func (panickingSink) Write(context.Context, *report.Table) (string, error) {
	panic("nil bucket")
}

func TestReport_SinkPanicStillCompletes(t *testing.T) {
	s := newState("2024-01-02")
	s.ConsolidatedTopics = map[string]int{"a": 1}
	s.DailyFrequencies = map[string]map[string]int{"2024-01-01": {"a": 1}, "2024-01-02": {}}

	sink := &recordingSink{}
	out := NewEngine(nil, nil, report.MultiSink{sink, panickingSink{}}, Options{}).report(context.Background(), s)

	assert.Equal(t, model.StatusCompleted, out.ProcessingStatus)
	assert.Empty(t, out.Errors)
	assert.Empty(t, out.ReportLocations)
	assert.Len(t, out.TrendAnalysis["a"], 2)
	assert.Len(t, sink.tables, 1)
}

func TestReport_BuildFailure(t *testing.T) {
	s := newState("2024-01-02")
	s.ConsolidatedTopics = map[string]int{"a": 1}
	s.DailyFrequencies = map[string]map[string]int{}

	out := NewEngine(nil, nil, nil, Options{}).report(context.Background(), s)
	assert.Equal(t, model.StatusReportFailed, out.ProcessingStatus)
	require.Len(t, out.Errors, 1)
	assert.True(t, strings.HasPrefix(out.Errors[0], "Analysis error: "))
}

// dailyReviews 在 1 号和 3 号各产生评论，其余日期为空
func dailyReviews(date time.Time) ([]model.Review, error) {
	switch date.Format(time.DateOnly) {
	case "2024-02-01":
		return []model.Review{{Rating: 1, Content: "late"}, {Rating: 2, Content: "slow"}}, nil
	case "2024-02-03":
		return []model.Review{{Rating: 1, Content: "very slow"}}, nil
	}
	return nil, nil
}

func TestRun_EndToEnd(t *testing.T) {
	src := &fakeSource{fetch: dailyReviews}
	o := &fakeOracle{
		extract: func(reviews []model.Review) (map[string]int, error) {
			if len(reviews) == 2 {
				return map[string]int{"delivery_late": 2}, nil
			}
			return map[string]int{"slow_delivery": 1}, nil
		},
		consolid: func(map[string]int) (*oracle.Consolidation, error) {
			return &oracle.Consolidation{
				ConsolidatedTopics: map[string]int{"delivery_time_issue": 3},
				TopicMapping:       map[string]string{"delivery_late": "delivery_time_issue", "slow_delivery": "delivery_time_issue"},
			}, nil
		},
	}
	dir := t.TempDir()
	sinks := report.MultiSink{&report.CSVSink{Dir: dir}}

	var progress []int
	e := NewEngine(src, o, sinks, Options{
		Now:           func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) },
		TitleResolver: func(context.Context, string) string { return "Example" },
	})
	out := e.Run(context.Background(), RunOptions{
		AnalysisID: "e2e",
		AppURL:     "com.example",
		TargetDate: "2024-03-01",
		ProgressCallback: func(_ string, p int) {
			progress = append(progress, p)
		},
	})

	require.Equal(t, model.StatusCompleted, out.ProcessingStatus, out.Errors)
	assert.Empty(t, out.Errors)
	assert.Len(t, out.RawReviews, 31)
	assert.Equal(t, map[string]int{"delivery_time_issue": 3}, out.ConsolidatedTopics)

	points := out.TrendAnalysis["delivery_time_issue"]
	require.Len(t, points, 31)
	assert.Equal(t, "2024-01-31", points[0].Date)
	assert.Equal(t, 2, points[1].Frequency)
	assert.Equal(t, 0, points[2].Frequency)
	assert.Equal(t, 1, points[3].Frequency)

	require.Len(t, out.ReportLocations, 1)
	assert.Equal(t, filepath.Join(dir, "trend_analysis_e2e_20240301_120000.csv"), out.ReportLocations[0])
	data, err := os.ReadFile(out.ReportLocations[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 32)
	assert.Equal(t, "date,delivery_time_issue", lines[0])
	assert.Equal(t, "2024-02-01,2", lines[2])

	assert.True(t, sort.IntsAreSorted(progress))
	assert.Equal(t, 100, progress[len(progress)-1])
}

func TestRun_ShortCircuitsAfterFailure(t *testing.T) {
	src := &fakeSource{fetch: dailyReviews}
	o := &fakeOracle{readyErr: fmt.Errorf("%w: missing api key", llm.ErrNotConfigured)}
	sink := &recordingSink{}

	out := NewEngine(src, o, report.MultiSink{sink}, Options{}).Run(context.Background(), RunOptions{
		AnalysisID: "fail", AppURL: "com.example", TargetDate: "2024-03-01",
	})

	assert.Equal(t, model.StatusExtractionFailed, out.ProcessingStatus)
	assert.Equal(t, []string{"Extraction error: llm: not configured: missing api key"}, out.Errors)
	assert.Len(t, out.RawReviews, 31, "ingestion results stay visible")
	assert.Empty(t, out.ConsolidatedTopics)
	assert.Empty(t, out.TrendAnalysis)
	assert.Empty(t, sink.tables)
}

func TestRun_FailedInputRunsNothing(t *testing.T) {
	src := &fakeSource{}
	in := newState("2024-03-01").Fail(model.StatusIngestionFailed, "Ingestion error: earlier")

	out := NewEngine(src, nil, nil, Options{}).Execute(context.Background(), in, nil)
	assert.Equal(t, in.Errors, out.Errors)
	assert.Empty(t, src.calls)
}

func TestExecute_RecoversStagePanic(t *testing.T) {
	src := &fakeSource{fetch: dailyReviews}
	o := &fakeOracle{extract: func([]model.Review) (map[string]int, error) {
		panic("nil map write")
	}}

	out := NewEngine(src, o, nil, Options{}).Run(context.Background(), RunOptions{
		AnalysisID: "panic", AppURL: "com.example", TargetDate: "2024-03-01",
	})
	assert.Equal(t, model.StatusExtractionFailed, out.ProcessingStatus)
	assert.Equal(t, []string{"Extraction error: nil map write"}, out.Errors)
	assert.Len(t, out.RawReviews, 31)
}
