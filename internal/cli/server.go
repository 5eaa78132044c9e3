package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trivia-round-service/internal/app"
	"trivia-round-service/internal/catalog"
	"trivia-round-service/internal/config"
	"trivia-round-service/internal/domain"
	"trivia-round-service/internal/infra/file"
	"trivia-round-service/internal/infra/memory"
	"trivia-round-service/internal/infra/postgres"
	redisstore "trivia-round-service/internal/infra/redis"
	"trivia-round-service/internal/infra/sqlite"
	"trivia-round-service/internal/logger"
	transport "trivia-round-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func newLogger(cfg config.Config) *logger.Logger {
	log := logger.New(logger.WithLevel(logger.ParseLevel(cfg.Log.Level)))
	logger.SetDefault(log)
	return log
}

func categoriesOf(cfg config.Config) []domain.Category {
	if len(cfg.Categories) > 0 {
		return cfg.Categories
	}
	return catalog.DefaultCategories
}

// backends holds the connections shared by the store and the catalog loader.
type backends struct {
	redis   *redis.Client
	pool    *pgxpool.Pool
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func (b *backends) postgresPool(ctx context.Context, cfg config.Config, log *logger.Logger) (*pgxpool.Pool, error) {
	if b.pool != nil {
		return b.pool, nil
	}
	if err := runMigrations(ctx, cfg, log); err != nil {
		return nil, err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	b.pool = pool
	b.closers = append(b.closers, pool.Close)
	return pool, nil
}

func (b *backends) sessionStore(ctx context.Context, cfg config.Config, log *logger.Logger) (app.SessionStore, error) {
	switch cfg.Store.Driver {
	case config.StoreRedis:
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = b.redis.Close() })
		if err := b.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return redisstore.NewSessionStore(b.redis), nil
	case config.StorePostgres:
		pool, err := b.postgresPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return postgres.NewSessionStore(pool), nil
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = store.Close() })
		return store, nil
	default:
		log.Warn("using in-memory session store; progress is lost on restart")
		return memory.NewSessionStore(), nil
	}
}

func (b *backends) questionLoader(ctx context.Context, cfg config.Config, log *logger.Logger) (catalog.Loader, error) {
	switch cfg.Catalog.Source {
	case config.SourceFile:
		return file.NewQuestionLoader(cfg.Catalog.Path), nil
	case config.SourcePostgres:
		pool, err := b.postgresPool(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return postgres.NewQuestionLoader(pool), nil
	default:
		return memory.NewStaticQuestionLoader(memory.SampleQuestions()), nil
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}
	log := newLogger(cfg)
	log.Info("configuration loaded: store=%s catalog=%s", cfg.Store.Driver, cfg.Catalog.Source)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := &backends{}
	defer b.close()

	store, err := b.sessionStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	loader, err := b.questionLoader(ctx, cfg, log)
	if err != nil {
		return err
	}
	questions, err := catalog.Load(ctx, categoriesOf(cfg), loader, log)
	if err != nil {
		return err
	}
	if questions.Len() == 0 {
		log.Warn("catalog is empty; every start will report an exhausted pool")
	}

	hub := transport.NewHub(log)
	service := app.NewRoundService(questions, store, hub, app.WithLogger(log))
	defer service.Close()

	wsHandler := transport.NewWSHandler(service, hub, questions, log)
	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     transport.NewRouter(wsHandler, service, questions, log),
		ReadTimeout: 15 * time.Second,
	}
	server.RegisterOnShutdown(hub.Shutdown)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting trivia service on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.Server.ShutdownTimeout, 5*time.Second))
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
