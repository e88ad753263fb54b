package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/engine"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/model"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/trigger"
)

// ErrBusy 已有分析在运行
var ErrBusy = errors.New("an analysis is already running")

// Runner 执行一次分析
type Runner interface {
	Execute(ctx context.Context, state model.AnalysisState, progress engine.ProgressCallback) model.AnalysisState
}

// Progress 当前或最近一次分析的进度
type Progress struct {
	AnalysisID string `json:"analysis_id"`
	Running    bool   `json:"running"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
}

// AnalysisUseCase 分析业务逻辑，同一时间只运行一个分析
type AnalysisUseCase struct {
	runner Runner
	now    func() time.Time
	log    *log.Helper

	running sync.Mutex

	mu       sync.RWMutex
	progress Progress
}

// NewAnalysisUseCase 创建分析业务逻辑实例
func NewAnalysisUseCase(runner Runner, logger log.Logger) *AnalysisUseCase {
	return &AnalysisUseCase{runner: runner, now: time.Now, log: log.NewHelper(logger)}
}

// Run 校验请求并同步执行分析，已有分析在运行时返回 ErrBusy
func (uc *AnalysisUseCase) Run(ctx context.Context, req trigger.Request) (model.AnalysisState, error) {
	req = req.Normalize(uc.now())
	if err := req.Validate(); err != nil {
		return model.AnalysisState{}, err
	}
	if uc.runner == nil {
		return model.AnalysisState{}, errors.New("radar engine is not configured")
	}

	if !uc.running.TryLock() {
		return model.AnalysisState{}, ErrBusy
	}
	defer uc.running.Unlock()

	uc.log.Infof("analysis %s started: app=%s target_date=%s", req.AnalysisID, req.AppURL, req.TargetDate)
	uc.setProgress(Progress{AnalysisID: req.AnalysisID, Running: true, Status: "starting"})

	// 客户端断开时不中断分析
	state := uc.runner.Execute(context.WithoutCancel(ctx), req.InitialState(), func(status string, progress int) {
		uc.setProgress(Progress{AnalysisID: req.AnalysisID, Running: true, Status: status, Progress: progress})
	})

	uc.setProgress(Progress{AnalysisID: req.AnalysisID, Status: string(state.ProcessingStatus), Progress: 100})
	uc.log.Infof("analysis %s finished: %s", req.AnalysisID, state.ProcessingStatus)
	return state, nil
}

// Current 返回当前进度
func (uc *AnalysisUseCase) Current() Progress {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.progress
}

func (uc *AnalysisUseCase) setProgress(p Progress) {
	uc.mu.Lock()
	uc.progress = p
	uc.mu.Unlock()
}
