package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/mbolis/quick-forms/app"
	"github.com/mbolis/quick-forms/database"
	"github.com/mbolis/quick-forms/log"
	"github.com/mbolis/quick-forms/metrics"
	"github.com/mbolis/quick-forms/routes"
	"github.com/spf13/cobra"
)

const tokenPurgeInterval = time.Hour

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	flags := serveCmd.Flags()
	flags.String("host", "0.0.0.0", "HTTP server host")
	flags.Int("port", 80, "HTTP server port")
	flags.String("token-secret", "", "secret used to sign access tokens")
	flags.Duration("token-ttl", 120*time.Second, "access token lifetime")
	flags.Bool("auto-migrate", true, "apply pending migrations on startup")
	flags.Bool("trust-proxy", false, "take client IPs from X-Forwarded-For (behind a reverse proxy only)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.RequireTokenSecret(); err != nil {
		return err
	}

	printBanner()

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	m := metrics.New()
	m.WatchDB(db.DB)

	store, err := database.NewStore(db, database.WithObserver(m))
	if err != nil {
		return fmt.Errorf("load queries: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go purgeTokens(ctx, store)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      routes.Wire(app.New(cfg, store, m)),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Listening on " + cfg.Url())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func purgeTokens(ctx context.Context, store *database.Store) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		n, err := store.PurgeExpiredTokens(ctx)
		if err != nil && ctx.Err() == nil {
			log.Warnf("tokens.purge: %s", err)
		} else if n > 0 {
			log.WithField("purged", n).Debug("tokens.purge")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func printBanner() {
	figure.NewFigure("QUICK FORMS", "", true).Print()
	fmt.Println("======================================================")
	fmt.Printf("Quick Forms API (v%s)\n\n", Version)
}
