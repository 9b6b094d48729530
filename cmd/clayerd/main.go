package main

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"CircleLayer-Assistant/internal/app"
	"CircleLayer-Assistant/internal/config"
	"CircleLayer-Assistant/pkg/logger"
)

// main 是 Circle Layer 助手守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("clayerd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(config.Path())
	if err != nil {
		return err
	}
	if cfg.NeedsSecrets() {
		api, err := config.NewParameterAPI(ctx, "")
		if err != nil {
			return err
		}
		if err := config.ResolveSecrets(ctx, cfg, api); err != nil {
			return err
		}
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Named("clayerd")

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("释放资源失败", slog.Any("error", err))
		}
	}()

	if a.Watcher != nil {
		if err := a.Watcher.Start(ctx); err != nil {
			return fmt.Errorf("启动目录热加载失败: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(a.Processor.Start(gctx))
	})
	g.Go(func() error {
		log.Info("http server listening", slog.String("address", cfg.Server.Address))
		return ignoreCanceled(a.Server.Start(gctx))
	})
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if stdErrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
