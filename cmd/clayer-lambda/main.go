package main

import (
	"context"
	stdErrors "errors"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"CircleLayer-Assistant/internal/api"
	"CircleLayer-Assistant/internal/app"
	"CircleLayer-Assistant/internal/config"
	"CircleLayer-Assistant/pkg/logger"
)

// main 在 API Gateway 代理集成下运行助手。配置只在冷启动时加载一次。
func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.Path())
	if err != nil {
		fail("加载配置失败", err)
	}
	if cfg.NeedsSecrets() {
		params, err := config.NewParameterAPI(ctx, os.Getenv("AWS_REGION"))
		if err != nil {
			fail("创建 SSM 客户端失败", err)
		}
		if err := config.ResolveSecrets(ctx, cfg, params); err != nil {
			fail("解析密钥失败", err)
		}
	}
	if err := logger.Init(cfg.Logging); err != nil {
		fail("初始化日志失败", err)
	}

	a, err := app.Build(ctx, cfg)
	if err != nil {
		fail("装配助手失败", err)
	}

	// 只在调用期间运行；共享队列时由 clayerd 承担主要的消费。
	go func() {
		if err := a.Processor.Start(ctx); err != nil && !stdErrors.Is(err, context.Canceled) {
			logger.Named("lambda").Error("任务处理器异常退出", slog.Any("error", err))
		}
	}()

	lambda.Start(api.NewLambdaHandler(a.Server.Handler()))
}

func fail(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}
