package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iWorld-y/review_radar/app/review_radar/pkg/config"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/engine"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/logger"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/report"
	"github.com/iWorld-y/review_radar/app/review_radar/pkg/trigger"
)

var (
	flagconf   string
	flagapp    string
	flagdate   string
	flagid     string
	flagformat string
)

func init() {
	flag.StringVar(&flagconf, "conf", "app/review_radar/configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.StringVar(&flagapp, "app", "", "app package name or Google Play url")
	flag.StringVar(&flagdate, "date", "", "target date (YYYY-MM-DD), defaults to today")
	flag.StringVar(&flagid, "id", "", "analysis id, defaults to a random uuid")
	flag.StringVar(&flagformat, "format", "", "comma separated report formats, overrides config (csv,html)")
}

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	// 1. 加载配置
	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		log.Fatalf("无法加载配置文件: %v", err)
	}
	if flagformat != "" {
		cfg.Report.Formats = splitFormats(flagformat)
	}

	// 2. 初始化日志
	if err = logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	logger.Log.Info("启动评论雷达...")

	// 3. 校验请求
	req := trigger.Request{AnalysisID: flagid, AppURL: flagapp, TargetDate: flagdate}.Normalize(time.Now())
	if err := req.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, renderError(err))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. 组装引擎
	e, cleanup, err := engine.NewFromConfig(ctx, cfg)
	if err != nil {
		logger.Log.Fatalf("引擎初始化失败: %v", err)
	}
	defer cleanup()

	// 5. 执行
	state := e.Execute(ctx, req.InitialState(), func(status string, progress int) {
		logger.Log.Infof("[%3d%%] %s", progress, status)
	})

	fmt.Println(renderSummary(state, report.NewTable(state, time.Now())))
	if state.Failed() {
		return 1
	}
	return 0
}
