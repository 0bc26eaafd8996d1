package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pulsewire/internal/cache"
	"pulsewire/internal/clock"
	"pulsewire/internal/config"
	"pulsewire/internal/deliver"
	"pulsewire/internal/generate"
	"pulsewire/internal/httpapi"
	"pulsewire/internal/jobs"
	"pulsewire/internal/storage"
	"pulsewire/internal/trigger"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) openCache() (*cache.SnapshotCache, func()) {
	if a.Config.Cache.Path == "" {
		return nil, nil
	}

	c, err := cache.Open(a.Config.Cache.Path)
	if err != nil {
		a.Logger.Warn().Err(err).Str("path", a.Config.Cache.Path).Msg("snapshot cache unavailable, continuing without it")
		return nil, nil
	}
	return c, func() { c.Close() }
}

func (a *App) newGenerator() generate.Generator {
	return generate.NewClient(generate.ClientOptions{
		BaseURL:   a.Config.Generator.BaseURL,
		APIKey:    a.Config.Generator.APIKey,
		Timeout:   a.Config.Generator.RequestTimeout,
		UserAgent: a.Config.Generator.UserAgent,
	}, a.Logger)
}

// newDeliverer resolves a job's channel to its delivery adapter and the
// destination the adapter sends to.
func (a *App) newDeliverer(channel string) (deliver.Deliverer, string, error) {
	switch channel {
	case config.ChannelSMS:
		d := deliver.NewSMSDeliverer(deliver.SMSOptions{
			BaseURL: a.Config.SMS.BaseURL,
			APIKey:  a.Config.SMS.APIKey,
			From:    a.Config.SMS.From,
			Timeout: a.Config.SMS.RequestTimeout,
		}, a.Logger)
		return d, a.Config.SMS.Destination, nil
	case config.ChannelSocial:
		d := deliver.NewSocialDeliverer(deliver.SocialOptions{
			BaseURL:        a.Config.Social.BaseURL,
			AccessToken:    a.Config.Social.AccessToken,
			Timeout:        a.Config.Social.RequestTimeout,
			PostsPerMinute: a.Config.Social.PostsPerMinute,
		}, a.Logger)
		return d, a.Config.Social.Handle, nil
	default:
		return nil, "", fmt.Errorf("unknown delivery channel %q", channel)
	}
}

// buildRegistry assembles every configured job with its collaborators.
func (a *App) buildRegistry(store *storage.Store, snapCache *cache.SnapshotCache) (*jobs.Registry, error) {
	location := a.Config.Location()
	generator := a.newGenerator()
	registry := jobs.NewRegistry()

	for _, jobCfg := range a.Config.Jobs {
		deliverer, destination, err := a.newDeliverer(jobCfg.Channel)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", jobCfg.Name, err)
		}

		deps := jobs.Dependencies{
			Generator: generator,
			Deliverer: deliverer,
		}
		if store != nil {
			deps.Store = store
			deps.Trends = store
			deps.Locker = store
		}
		if snapCache != nil {
			deps.Cache = snapCache
		}

		if err := registry.Add(jobs.New(jobCfg, destination, location, deps, a.Logger)); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// Serve runs the HTTP trigger surface, and the local clock when enabled,
// until the process receives SIGINT or SIGTERM.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; jobs will report no data")
	}
	if closeStore != nil {
		defer closeStore()
	}

	snapCache, closeCache := a.openCache()
	if closeCache != nil {
		defer closeCache()
	}

	registry, err := a.buildRegistry(store, snapCache)
	if err != nil {
		return err
	}

	gate := trigger.NewGate(a.Config.Trigger.Secret)
	if a.Config.Trigger.Secret == "" {
		a.Logger.Error().Msg("trigger.secret not configured; every trigger will be rejected")
	}

	var snapshots httpapi.SnapshotReader
	if snapCache != nil {
		snapshots = snapCache
	}

	server := &http.Server{
		Addr:         a.Config.Server.Addr,
		Handler:      httpapi.NewServer(gate, registry, snapshots, a.Logger),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}

	if a.Config.Clock.Enabled {
		localClock := clock.New(a.Config.Location(), a.Logger)
		for _, job := range registry.All() {
			if err := localClock.Register(job); err != nil {
				return fmt.Errorf("register schedule for %s: %w", job.Name(), err)
			}
		}
		localClock.Start()
		defer localClock.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", server.Addr).Int("jobs", len(registry.Names())).Msg("trigger server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info().Msg("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancelShutdown()
	return server.Shutdown(shutdownCtx)
}

func (a *App) shutdownTimeout() time.Duration {
	if a.Config.Server.ShutdownTimeout > 0 {
		return a.Config.Server.ShutdownTimeout
	}
	return 10 * time.Second
}

// ExportOptions hold parameters for exporting a series' numeric history.
type ExportOptions struct {
	SeriesKey string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	SeriesKeys []string
	Limit      int
}
