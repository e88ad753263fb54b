package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/logger"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/metrics"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/oracle"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/report"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/review"
)

// Options 引擎可选项
type Options struct {
	// Delay 相邻两次采集请求之间的间隔
	Delay time.Duration
	// TitleResolver 为报告解析应用名称，可以为空
	TitleResolver func(ctx context.Context, appURL string) string
	// Now 报告生成时间，测试时替换
	Now func() time.Time
}

// Engine 核心处理引擎：采集 -> 抽取 -> 合并 -> 报告
type Engine struct {
	source review.Source
	oracle oracle.TopicOracle
	sinks  report.MultiSink
	opts   Options
}

// NewEngine 创建引擎实例
func NewEngine(source review.Source, topics oracle.TopicOracle, sinks report.MultiSink, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		source: source,
		oracle: topics,
		sinks:  sinks,
		opts:   opts,
	}
}

// ProgressCallback 进度回调，progress 取值 0-100
type ProgressCallback func(status string, progress int)

// RunOptions 运行选项
type RunOptions struct {
	AnalysisID       string
	AppURL           string
	TargetDate       string
	ProgressCallback ProgressCallback
}

// Run 构造初始状态并执行一次完整分析
func (e *Engine) Run(ctx context.Context, opts RunOptions) model.AnalysisState {
	state := model.NewAnalysisState(opts.AnalysisID, opts.AppURL, opts.TargetDate)
	return e.Execute(ctx, state, opts.ProgressCallback)
}

type stage struct {
	name      string
	step      string // 进度回调中的描述
	failed    model.Status
	errPrefix string
	run       func(ctx context.Context, s model.AnalysisState) model.AnalysisState
}

func (e *Engine) stages() []stage {
	return []stage{
		{name: "ingest_data", step: "ingesting reviews", failed: model.StatusIngestionFailed, errPrefix: ingestionErr, run: e.ingest},
		{name: "extract_topics", step: "extracting topics", failed: model.StatusExtractionFailed, errPrefix: extractionErr, run: e.extract},
		{name: "consolidate_topics", step: "consolidating topics", failed: model.StatusConsolidationFailed, errPrefix: consolidationErr, run: e.consolidate},
		{name: "generate_report", step: "generating report", failed: model.StatusReportFailed, errPrefix: reportErr, run: e.report},
	}
}

// Execute 依次执行各阶段。某个阶段失败后不再执行后续阶段，
// 返回的状态保留之前阶段已经产生的结果。
func (e *Engine) Execute(ctx context.Context, state model.AnalysisState, progress ProgressCallback) model.AnalysisState {
	logger.Log.Infof("开始分析 [%s]: app=%s target_date=%s", state.AnalysisID, state.AppURL, state.TargetDate)
	notify(progress, "starting", 0)

	stages := e.stages()
	for i, st := range stages {
		if state.Failed() {
			break
		}
		notify(progress, st.step, i*100/len(stages))

		start := time.Now()
		state = runStage(ctx, st, state)
		metrics.RecordStage(st.name, time.Since(start), state.Failed())
	}

	if state.Failed() {
		logger.Log.Errorf("分析失败 [%s]: status=%s errors=%v", state.AnalysisID, state.ProcessingStatus, state.Errors)
		notify(progress, string(state.ProcessingStatus), 100)
		return state
	}

	logger.Log.Infof("分析完成 [%s]: %d 个话题", state.AnalysisID, len(state.TrendAnalysis))
	notify(progress, "completed", 100)
	return state
}

// runStage 执行单个阶段，阶段内的 panic 转为该阶段的失败
func runStage(ctx context.Context, st stage, in model.AnalysisState) (out model.AnalysisState) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Errorf("阶段 [%s] panic: %v\n%s", st.name, r, debug.Stack())
			out = in.Fail(st.failed, fmt.Sprintf("%s%v", st.errPrefix, r))
		}
	}()
	return st.run(ctx, in)
}

func notify(cb ProgressCallback, status string, progress int) {
	if cb != nil {
		cb(status, progress)
	}
}
