package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stemsplit/internal/adapters/fetcher"
	"stemsplit/internal/adapters/ffmpeg"
	"stemsplit/internal/adapters/replicate"
	"stemsplit/internal/observability"
	"stemsplit/internal/server"
	"stemsplit/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		shutdownTracing, err := observability.InitTracingFromEnv("stemsplit")
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTracing(ctx)
		}()

		runner := replicate.New(cfg.APIToken, cfg.ModelVersion)
		fetch := fetcher.NewHTTPFetcher()
		proxy := service.NewProxy(runner, fetch, cfg.PollInterval, cfg.PollDeadline, logger)
		converter := ffmpeg.NewConverter(cfg.FFmpegPath)
		srv := server.New(proxy, converter, fetch, logger)

		httpServer := &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: srv.Handler(),
		}

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(ctx)
		}()

		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
