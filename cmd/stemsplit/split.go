package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"stemsplit/internal/adapters/fetcher"
	"stemsplit/internal/adapters/localstorage"
	"stemsplit/internal/adapters/objectstore"
	"stemsplit/internal/adapters/replicate"
	"stemsplit/internal/core/domain"
	"stemsplit/internal/core/ports"
	"stemsplit/internal/service"
)

var splitURL string

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Run one stem-separation job and store the bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		if splitURL == "" {
			return fmt.Errorf("required flag -url not set")
		}

		var store ports.Storage
		var err error
		if cfg.BundleBackend == "minio" {
			store, err = objectstore.New(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOUseSSL)
			if err != nil {
				return err
			}
		} else {
			store = localstorage.NewLocalStorage(cfg.DataDir)
		}

		runner := replicate.New(cfg.APIToken, cfg.ModelVersion)
		fetch := fetcher.NewHTTPFetcher()
		proxy := service.NewProxy(runner, fetch, cfg.PollInterval, cfg.PollDeadline, logger)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigChan
			logger.Info("received interrupt signal, cancelling")
			cancel()
		}()

		job := domain.Job{
			ID:        uuid.New().String(),
			SourceURL: splitURL,
			CreatedAt: time.Now().UTC(),
		}
		if err := store.InitJob(ctx, job.ID); err != nil {
			return fmt.Errorf("failed to init job: %w", err)
		}
		inputData, _ := json.MarshalIndent(job, "", "  ")
		_ = store.SaveInput(ctx, job.ID, inputData)

		result, err := proxy.Split(ctx, splitURL)
		if err != nil {
			return err
		}

		location, err := store.SaveBundle(ctx, job.ID, bytes.NewReader(result.Content), result.Filename)
		if err != nil {
			return fmt.Errorf("failed to save bundle: %w", err)
		}

		fmt.Println("\n=== Job Summary ===")
		fmt.Printf("Job ID:       %s\n", job.ID)
		fmt.Printf("Source:       %s\n", job.SourceURL)
		fmt.Printf("Bundle:       %s\n", location)
		fmt.Printf("Size:         %d bytes\n", len(result.Content))
		fmt.Printf("Completed At: %s\n", time.Now().UTC().Format(time.RFC3339))
		return nil
	},
}

func init() {
	splitCmd.Flags().StringVar(&splitURL, "url", "", "Source audio URL to split into stems")
	rootCmd.AddCommand(splitCmd)
}
