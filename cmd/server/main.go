package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "time/tzdata"

	"muzikuj/internal/auth"
	"muzikuj/internal/authz"
	"muzikuj/internal/config"
	"muzikuj/internal/db"
	"muzikuj/internal/handlers"
	"muzikuj/internal/housekeeping"
	"muzikuj/internal/logging"
	"muzikuj/internal/mailer"
	"muzikuj/internal/moderation"
	"muzikuj/internal/ratings"
	"muzikuj/internal/uploads"
	"muzikuj/web"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("config")
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Caller: cfg.Logging.Caller})

	if err := run(cfg); err != nil {
		logging.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	for _, dir := range []string{filepath.Dir(cfg.Database.Path), cfg.Uploads.Dir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	dbc, err := db.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer dbc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx, dbc); err != nil {
		return err
	}

	enforcer, err := authz.New()
	if err != nil {
		return err
	}
	loc := web.Location(cfg.App.Timezone)
	tpls, err := web.Templates(loc)
	if err != nil {
		return err
	}
	mail := mailer.New(cfg.SMTP)
	if !cfg.SMTP.Configured() {
		logging.Warn().Msg("smtp not configured, emails will be skipped")
	}

	h := handlers.New(handlers.Deps{
		DB:         dbc,
		Sessions:   auth.NewManager(dbc, cfg.Session.MaxAge, cfg.Server.SecureCookies),
		Authz:      enforcer,
		Ratings:    ratings.NewService(dbc),
		Moderation: moderation.NewService(dbc),
		Mailer:     mail,
		Uploads:    uploads.NewStore(cfg.Uploads.Dir),
		Templates:  tpls,
		BaseURL:    cfg.Server.BaseURL,
		Location:   loc,
	})
	hk := housekeeping.New(dbc, cfg.Housekeeping.Interval, loc)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h.Routes(web.Static(), hk.Middleware),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", cfg.Server.Addr).Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
