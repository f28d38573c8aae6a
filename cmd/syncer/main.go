package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/hirosato/pocketbank/backend/internal/app"
	"github.com/hirosato/pocketbank/backend/internal/common/config"
	"github.com/hirosato/pocketbank/backend/internal/common/logging"
)

var (
	application *app.App
	logger      *zap.Logger
)

func init() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err = logging.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	application, err = app.New(context.Background(), cfg, logger, app.Options{})
	if err != nil {
		logger.Fatal("Failed to initialize application", zap.Error(err))
	}
}

// handleRequest refreshes the transactions of the persisted session on every
// scheduled invocation
func handleRequest(ctx context.Context, e events.CloudWatchEvent) error {
	defer func() { _ = logger.Sync() }()

	// another process may have logged in or out since the last invocation
	restored, err := application.Session.Restore(ctx)
	if err != nil {
		return err
	}
	if !restored {
		logger.Info("no session to refresh", zap.String("event_id", e.ID))
		return nil
	}

	// the cache is partitioned by account, reload it for the restored one
	if err := application.Store.Load(ctx); err != nil {
		return err
	}

	accountID, _ := application.Session.AccountID()
	count, err := application.Coordinator.Refresh(ctx, accountID)
	if err != nil {
		logger.Error("scheduled refresh failed", zap.Int64("account_id", accountID), zap.String("event_id", e.ID), zap.Error(err))
		return err
	}
	logger.Info("scheduled refresh completed", zap.Int64("account_id", accountID), zap.Int("count", count))
	return nil
}

func main() {
	lambda.Start(handleRequest)
}
