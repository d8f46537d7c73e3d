package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"cloud.google.com/go/pubsub"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/kzharvest/harvester/pkg/fetch"
	"github.com/kzharvest/harvester/pkg/logging"
	"github.com/kzharvest/harvester/pkg/processing"
	"github.com/kzharvest/harvester/pkg/scanning"
	"github.com/kzharvest/harvester/pkg/storage"
	pgstore "github.com/kzharvest/harvester/pkg/storage/postgres"
	"github.com/kzharvest/harvester/pkg/storage/topic"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg := loadConfig()

	logger := logging.Init(cfg.LogFormat, logging.ParseLevel(cfg.LogLevel)).
		With("run_id", uuid.NewString())

	if err := run(cfg, logger); err != nil {
		logger.Error("harvester stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config, logger *slog.Logger) error {
	in, err := collectInputs(cfg, newPrompter(os.Stdin, os.Stdout))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var mirrors []storage.Sink
	var dlq processing.DLQPublisher = &processing.NoopDLQPublisher{}

	if cfg.DatabaseURL != "" {
		pool, err := pgstore.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		if err := pgstore.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return fmt.Errorf("db schema: %w", err)
		}
		mirrors = append(mirrors, pgstore.NewRepository(pool))
		logger.Info("mirroring records to postgres")
	}

	if cfg.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			closeAll(mirrors, logger)
			return fmt.Errorf("pubsub client: %w", err)
		}
		defer client.Close()

		if cfg.RecordsTopic != "" {
			mirrors = append(mirrors, topic.NewSink(client.Topic(cfg.RecordsTopic)))
			logger.Info("mirroring records to pubsub", "topic", cfg.RecordsTopic)
		}
		if cfg.DLQTopicID != "" {
			t := client.Topic(cfg.DLQTopicID)
			defer t.Stop()
			dlq = processing.NewPubSubDLQPublisher(t)
		}
	}

	open, closeShared, err := buildOpen(in.Output, cfg.SerialWriter, mirrors, logger)
	if err != nil {
		closeAll(mirrors, logger)
		return fmt.Errorf("open output: %w", err)
	}

	c := &scanning.Coordinator{
		Fetcher: fetch.NewClient(cfg.APIURL,
			fetch.WithTimeout(cfg.HTTPTimeout),
			fetch.WithRateLimit(cfg.RequestRPS)),
		Open: open,
		DLQ:  dlq,
		Policy: processing.Policy{
			StallDelay: cfg.StallDelay,
			MaxStalls:  cfg.MaxStalls,
		},
		Pacing: cfg.Pacing,
		Logger: logger,
	}

	logger.Info("harvester started",
		"forward_start", in.ForwardStart,
		"forward_count", cfg.ForwardCount,
		"backward_start", in.BackwardStart,
		"output", in.Output,
		"serial_writer", cfg.SerialWriter)

	runErr := c.Run(ctx, scanning.Plan{
		ForwardStart:  in.ForwardStart,
		ForwardCount:  cfg.ForwardCount,
		BackwardStart: in.BackwardStart,
	})
	if err := closeShared(); err != nil {
		logger.Error("closing output", "error", err)
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("harvester finished")
	return nil
}

func closeAll(sinks []storage.Sink, logger *slog.Logger) {
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			logger.Error("closing sink", "error", err)
		}
	}
}
