package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"math-dash-service/internal/app"
	"math-dash-service/internal/config"
	"math-dash-service/internal/domain"
	"math-dash-service/internal/infra/memory"
	"math-dash-service/internal/infra/postgres"
	redisstore "math-dash-service/internal/infra/redis"
	"math-dash-service/internal/infra/sqlite"
	"math-dash-service/internal/logger"
	"math-dash-service/internal/metrics"
	"math-dash-service/internal/round"
	transport "math-dash-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if *port != "" {
				cfg.Server.Port = *port
			}
			log := logger.New(cfg)
			defer log.Sync()
			return runServer(cmd.Context(), cfg, log)
		},
	}
}

// backends holds whatever storage the config enables; zero values mean the
// in-memory fallback.
type backends struct {
	kv      app.KeyValueStore
	rounds  app.RoundRepository
	archive app.SummaryArchive
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg config.Config, log *zap.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		// Player documents never expire; the TTL only bounds round liveness markers.
		b.kv = redisstore.NewKVStore(client, 0)
		b.rounds = redisstore.NewRoundStore(client, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
		log.Info("using redis", zap.String("addr", cfg.Redis.Addr))
	}

	if b.kv == nil && cfg.SQLite.Path != "" {
		store, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = store.Close() })
		b.kv = store
		log.Info("using sqlite", zap.String("path", cfg.SQLite.Path))
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			b.close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
		b.archive = postgres.NewSummaryArchive(pool)
		log.Info("round archive enabled")
	}

	if b.kv == nil {
		b.kv = memory.NewKVStore()
		log.Warn("no persistent store configured, progress lives in memory")
	}
	if b.rounds == nil {
		b.rounds = memory.NewRoundStore()
	}
	return b, nil
}

func runServer(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	metrics.Init()

	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.close()

	loc := cfg.Location()
	clock := func() time.Time { return time.Now().In(loc) }
	defaults := domain.Settings{
		DurationSeconds: cfg.Game.DurationSeconds,
		Difficulty:      domain.Difficulty(cfg.Game.Difficulty),
		Mode:            domain.PresentationMode(cfg.Game.Mode),
	}
	if err := defaults.Validate(); err != nil {
		log.Warn("invalid game defaults in config, using built-in defaults", zap.Error(err))
	}

	service := app.NewGameService(app.GameDeps{
		Rounds:      b.rounds,
		Progress:    app.NewProgressService(b.kv, log.Named("progress"), clock),
		Preferences: app.NewPreferencesService(b.kv, defaults, log.Named("preferences")),
		Archive:     b.archive,
		Hub:         app.NewHubWithClock(clock),
		Scheduler:   round.RealScheduler{},
		AnswerDelay: config.TTLDuration(cfg.Game.AnswerDelay, 400*time.Millisecond),
		Log:         log.Named("game"),
	})

	limit := transport.RateLimit{PerSecond: cfg.Server.MessagesPerSecond, Burst: cfg.Server.MessageBurst}
	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           transport.NewRouter(service, limit, log.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting math dash", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case err := <-serveErr:
		log.Error("server stopped", zap.Error(err))
		return err
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
