package server

import (
	"context"

	"github.com/go-kratos/kratos/v2/log"

	"github.com/iWorld-y/review_radar/app/dashboard/internal/conf"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/config"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/engine"
	rrLogger "github.com/iWorld-y/review_radar/app/review_radar/pkg/logger"
)

// NewRadarEngine 初始化 review_radar 引擎
func NewRadarEngine(c *conf.Radar, logger log.Logger) (*engine.Engine, func(), error) {
	helper := log.NewHelper(logger)
	path := "app/review_radar/configs/config.yaml"
	if c != nil && c.Config != "" {
		path = c.Config
	}

	rrCfg, err := config.LoadConfig(path)
	if err != nil {
		helper.Errorf("Failed to load review_radar config %s: %v", path, err)
		return nil, nil, err
	}

	// 初始化日志
	if err := rrLogger.InitLogger(rrCfg.Log.Level, rrCfg.Log.File); err != nil {
		helper.Errorf("Failed to init review_radar logger: %v", err)
		_ = rrLogger.InitLogger("info", "") // 降级处理
	}

	eng, cleanup, err := engine.NewFromConfig(context.Background(), rrCfg)
	if err != nil {
		helper.Errorf("Failed to init engine: %v", err)
		return nil, nil, err
	}

	return eng, func() {
		helper.Info("Cleaning up review_radar engine")
		cleanup()
	}, nil
}
