package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hirosato/pocketbank/backend/internal/api/handlers"
	"github.com/hirosato/pocketbank/backend/internal/common/config"
	"github.com/hirosato/pocketbank/backend/internal/domain/account"
	"github.com/hirosato/pocketbank/backend/internal/domain/event"
	syncer "github.com/hirosato/pocketbank/backend/internal/domain/sync"
	"github.com/hirosato/pocketbank/backend/internal/domain/transaction"
	"github.com/hirosato/pocketbank/backend/internal/domain/transfer"
	"github.com/hirosato/pocketbank/backend/internal/domain/viewmodel"
	"github.com/hirosato/pocketbank/backend/internal/platform/credentials"
	ddbclient "github.com/hirosato/pocketbank/backend/internal/platform/dynamodb/client"
	dynamodbRepository "github.com/hirosato/pocketbank/backend/internal/platform/dynamodb/repository"
	"github.com/hirosato/pocketbank/backend/internal/platform/memory"
	"github.com/hirosato/pocketbank/backend/internal/platform/remote"
	"github.com/hirosato/pocketbank/backend/internal/platform/sqlite"
)

// tokens within this window of their exp claim are treated as expired
const tokenExpiryLeeway = 30 * time.Second

// App holds the wired components of one process
type App struct {
	Config      *config.Config
	Session     *account.Session
	Store       *transaction.Store
	Bus         *event.Bus
	Coordinator *syncer.Coordinator
	Scheduler   *syncer.Scheduler
	View        *viewmodel.ViewModel
	Transfers   *transfer.Flow
	Server      *handlers.Server

	logger *zap.Logger
	db     *sql.DB
}

// Options override the remote side, mainly for tests
type Options struct {
	Fetcher    syncer.Fetcher
	Transferer transfer.Transferer
	Tokens     transfer.TokenProvider
}

type backend struct {
	sessions     account.Repository
	transactions func(accounts dynamodbRepository.AccountSource) transaction.Repository
	// the cache can only be listed once the owning account is known
	needsAccount bool
	db           *sql.DB
}

// New wires every component from cfg. A persisted session is restored and the
// cached transactions are loaded before New returns.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, logger: logger, db: be.db}

	a.Session = account.NewSession(be.sessions, logger)
	restored, err := a.Session.Restore(ctx)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}

	a.Store = transaction.NewStore(be.transactions(a.Session), logger)
	if restored || !be.needsAccount {
		if err := a.Store.Load(ctx); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to load transactions: %w", err)
		}
	}

	if opts.Fetcher == nil || opts.Transferer == nil {
		client, err := remote.NewClient(cfg.APIBaseURL, nil, cfg.HTTPTimeout, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		if opts.Fetcher == nil {
			opts.Fetcher = client
		}
		if opts.Transferer == nil {
			opts.Transferer = client
		}
	}
	if opts.Tokens == nil {
		tokens, err := newTokenProvider(ctx, cfg, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		opts.Tokens = tokens
	}

	a.Bus = event.NewBus(logger)
	a.Store.Subscribe(func(snap transaction.Snapshot) {
		a.Bus.Publish(context.Background(), event.StoreChanged{
			ID:      event.NewID(),
			Version: snap.Version(),
			Count:   snap.Len(),
		})
	})
	a.Coordinator = syncer.NewCoordinator(opts.Fetcher, a.Store, a.Session, a.Bus, logger)
	a.Scheduler = syncer.NewScheduler(a.Coordinator, a.Session, logger)

	a.View = viewmodel.New(a.Store, a.Session, a.Bus, logger)
	a.View.Activate()

	a.Transfers = transfer.NewFlow(transfer.Dependencies{
		Session:    a.Session,
		Records:    a.Store,
		Transferer: opts.Transferer,
		Tokens:     opts.Tokens,
		Refresher:  a.Coordinator,
		Publisher:  a.Bus,
		Logger:     logger,
	})
	a.Transfers.OnStateChange(func(from, to transfer.State) {
		logger.Debug("transfer state changed", zap.Stringer("from", from), zap.Stringer("to", to))
	})

	a.Server = handlers.NewServer(handlers.Dependencies{
		Session:   a.Session,
		Records:   a.Store,
		Refresher: a.Coordinator,
		View:      a.View,
		Transfers: a.Transfers,
		Logger:    logger,
	})

	a.Bus.Subscribe(event.TopicStoreChanged, func(ctx context.Context, e event.Event) {
		if changed, ok := e.(event.StoreChanged); ok {
			logger.Debug("store changed", zap.Uint64("version", changed.Version), zap.Int("count", changed.Count))
		}
	})
	a.Bus.Subscribe(event.TopicSyncFailed, func(ctx context.Context, e event.Event) {
		if failed, ok := e.(event.SyncFailed); ok {
			logger.Warn("sync failed", zap.Int64("account_id", failed.AccountID), zap.String("event_id", failed.EventID()), zap.Error(failed.Err))
		}
	})

	logger.Info("application wired",
		zap.String("store_backend", cfg.StoreBackend),
		zap.Bool("session_restored", restored),
		zap.Int("count", a.Store.Len()))
	return a, nil
}

// Close releases the database, if any
func (a *App) Close() error {
	if a.View != nil {
		a.View.Deactivate()
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backend, error) {
	switch cfg.StoreBackend {
	case config.BackendMemory:
		repo := memory.NewTransactionRepository()
		return &backend{
			sessions:     memory.NewSessionRepository(),
			transactions: func(dynamodbRepository.AccountSource) transaction.Repository { return repo },
		}, nil

	case config.BackendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database %s: %w", cfg.SQLitePath, err)
		}
		return &backend{
			sessions: sqlite.NewSessionRepository(db),
			transactions: func(dynamodbRepository.AccountSource) transaction.Repository {
				return sqlite.NewTransactionRepository(db)
			},
			db: db,
		}, nil

	case config.BackendDynamoDB:
		client, err := ddbclient.NewDynamoDBClient(ctx, cfg.AWSRegion, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create DynamoDB client: %w", err)
		}
		factory := dynamodbRepository.NewFactory(client, cfg.DynamoDBTableName, logger)
		return &backend{
			sessions:     factory.SessionRepository(cfg.ProfileID),
			transactions: factory.TransactionRepository,
			needsAccount: true,
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func newTokenProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (transfer.TokenProvider, error) {
	var source credentials.TokenSource
	switch cfg.TokenSource {
	case config.TokenSourceSecretsManager:
		client, err := credentials.NewSecretsManagerClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		if cfg.TokenCache {
			cached, err := credentials.NewCachedSecretsManagerTokenProvider(client, cfg.TokenSecretID, logger)
			if err != nil {
				return nil, err
			}
			source = cached
		} else {
			source = credentials.NewSecretsManagerTokenProvider(client, cfg.TokenSecretID, logger)
		}
	default:
		source = credentials.NewStaticTokenProvider(cfg.AccessToken)
	}
	return credentials.WithExpiryCheck(source, tokenExpiryLeeway, logger), nil
}
