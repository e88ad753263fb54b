package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/config"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/llm"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/logger"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/oracle"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/report"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/review/factory"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/storage"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/storeinfo"
)

// NewFromConfig 根据配置组装引擎，返回的 cleanup 用于释放数据库连接。
// 模型未配置时不会报错，抽取阶段会在调用模型之前失败。
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Engine, func(), error) {
	source, err := factory.NewSource(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("评论来源初始化失败: %w", err)
	}

	var topics *oracle.LLMOracle
	completer, err := llm.NewCompleter(ctx, cfg)
	switch {
	case err == nil:
		topics = oracle.NewLLMOracle(completer)
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Log.Warnf("LLM 未配置: %v", err)
		topics = oracle.Unavailable(err)
	default:
		return nil, nil, err
	}

	cleanup := func() {}
	sinks, store := buildSinks(cfg)
	if store != nil {
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Log.Errorf("关闭数据库连接失败: %v", err)
			}
		}
	}

	opts := Options{Delay: cfg.Ingestion.Delay()}
	if cfg.Report.ResolveAppTitle {
		timeout := time.Duration(cfg.Report.TitleTimeout) * time.Second
		opts.TitleResolver = func(ctx context.Context, appURL string) string {
			title, err := storeinfo.LookupTitle(ctx, appURL, timeout)
			if err != nil {
				logger.Log.Warnf("获取应用名称失败 [%s]: %v", appURL, err)
				return ""
			}
			return title
		}
	}

	return NewEngine(source, topics, sinks, opts), cleanup, nil
}

// buildSinks 按配置创建报告输出。对象存储和数据库不可用时跳过，不影响分析本身。
func buildSinks(cfg *config.Config) (report.MultiSink, *storage.Storage) {
	var sinks report.MultiSink
	for _, format := range cfg.Report.Formats {
		switch format {
		case "csv":
			sinks = append(sinks, &report.CSVSink{Dir: cfg.Report.OutputDir})
		case "html":
			sinks = append(sinks, &report.HTMLSink{Dir: cfg.Report.OutputDir})
		default:
			logger.Log.Warnf("未知的报告格式: %s", format)
		}
	}

	if cfg.ObjectStore.Endpoint != "" {
		s3, err := report.NewS3Sink(cfg.ObjectStore)
		if err != nil {
			logger.Log.Errorf("对象存储初始化失败: %v", err)
		} else {
			sinks = append(sinks, s3)
		}
	}

	var store *storage.Storage
	if cfg.DB.Host != "" {
		s, err := storage.NewStorage(cfg.DB)
		if err != nil {
			logger.Log.Errorf("数据库初始化失败: %v", err)
		} else {
			store = s
			sinks = append(sinks, s)
		}
	}

	logger.Log.Infof("报告输出: [%s]", sinks.Names())
	return sinks, store
}
