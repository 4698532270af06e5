package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iliyamo/movie-catalog/internal/asset"
	"github.com/iliyamo/movie-catalog/internal/config"
	"github.com/iliyamo/movie-catalog/internal/database"
	"github.com/iliyamo/movie-catalog/internal/handler"
	"github.com/iliyamo/movie-catalog/internal/middleware"
	"github.com/iliyamo/movie-catalog/internal/queue"
	"github.com/iliyamo/movie-catalog/internal/repository"
	"github.com/iliyamo/movie-catalog/internal/router"
	"github.com/iliyamo/movie-catalog/internal/service"
)

func newServeCommand(a *app) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				a.cfg.Port = port
			}
			return runServe(cmd.Context(), a)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on (overrides APP_PORT)")
	return cmd
}

func runServe(ctx context.Context, a *app) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log := a.cfg, a.log

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	assets := asset.NewManager(cfg.Uploads.Dir, cfg.Uploads.Route)
	if err := assets.EnsureDir(); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if cfg.Redis.Enabled && rdb == nil {
		log.Warn().Str("addr", cfg.Redis.Addr).Msg("redis unreachable; caching and rate limiting disabled")
	}

	var notifiers []service.Notifier
	if purger := middleware.NewCachePurger(cfg.Cache, rdb, log); purger != nil {
		notifiers = append(notifiers, purger)
	}
	var async *service.AsyncNotifier
	if cfg.Events.Enabled {
		async = service.NewAsyncNotifier(queue.NewPublisher(cfg.Events.AMQPURL, log), 5*time.Second, log)
		notifiers = append(notifiers, async)
	}

	svc := service.NewMovieService(store, assets, service.Options{
		UpdateMode:   service.UpdateMode(cfg.Movies.UpdateMode),
		RequireImage: cfg.Movies.RequireImage,
	}, log, notifiers...)

	e := router.New(router.Options{BodyLimit: cfg.BodyLimit, CORSOrigins: cfg.CORSOrigins}, log)
	router.RegisterRoutes(e, svc)
	router.RegisterUploads(e, assets.Route(), assets.Dir())
	router.RegisterMovies(e, handler.NewMovieHandler(svc, cfg.Movies.NotFoundStatus, log), router.MovieMiddleware{
		RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		Cache:     middleware.NewRedisCache(cfg.Cache, rdb),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.Addr()).
			Str("env", cfg.Env).
			Str("backend", cfg.Storage.Backend).
			Str("update_mode", cfg.Movies.UpdateMode).
			Msg("listening")
		errCh <- e.Start(cfg.Addr())
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
		defer cancel()
		if err := e.Shutdown(sctx); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}

	if async != nil {
		async.Wait()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}

// openStore builds the configured document backend and makes sure an
// empty collection exists.
func openStore(ctx context.Context, cfg config.Config) (repository.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.BackendMySQL:
		db, err := database.Open(database.Options{
			User: cfg.Database.User,
			Pass: cfg.Database.Pass,
			Host: cfg.Database.Host,
			Port: cfg.Database.Port,
			Name: cfg.Database.Name,
		}, 5*time.Second)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}
		s := repository.NewMySQLStore(db, cfg.Storage.Document)
		if err := s.EnsureExists(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return s, closeDB(db), nil

	case config.BackendMemory:
		return repository.NewMemoryStore(), func() {}, nil

	default:
		s := repository.NewFileStore(cfg.Storage.DataFile)
		if err := s.EnsureExists(ctx); err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

func closeDB(db *sql.DB) func() {
	return func() { _ = db.Close() }
}
