package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"katydid-mvc-binding/pkg/binding"
	"katydid-mvc-binding/pkg/binding/validate"
	"katydid-mvc-binding/pkg/config"
	"katydid-mvc-binding/pkg/logger"
	"katydid-mvc-binding/pkg/validator"
)

// shutdownTimeout 收到退出信号后等待进行中请求的时间
const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "colorform",
		Short:        "Color form server demonstrating MVC binding of constraint violations",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, undo, err := logger.Init(cfg.Log)
	if err != nil {
		return err
	}
	defer undo()
	defer func() { _ = log.Sync() }()

	b, err := newBinder(cfg, log, binding.DefaultMetrics())
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	router := newRouter(log, b, newColorEjb(log), cfg.Server.MetricsPath, prometheus.DefaultGatherer)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("colorform listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newBinder 解析器与验证器共用默认注册表
func newBinder(cfg *config.Config, log *zap.Logger, metrics *binding.Metrics) (*binding.Binder, error) {
	resolver, err := validate.NewResolver(
		validate.WithLogger(log),
		validate.WithTags(cfg.Tags),
		validate.WithCacheSize(cfg.TypeCacheSize),
	)
	if err != nil {
		return nil, err
	}

	v := validator.New(validator.WithLogger(log))
	if err := registerValidations(v); err != nil {
		return nil, fmt.Errorf("register validations: %w", err)
	}

	return binding.NewBinder(
		binding.WithResolver(resolver),
		binding.WithValidator(v),
		binding.WithMetrics(metrics),
		binding.WithLogger(log),
	), nil
}
