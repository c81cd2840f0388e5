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

	"github.com/spf13/cobra"

	"github.com/beesaferoot/rentals/internal/application"
	"github.com/beesaferoot/rentals/internal/auth"
	"github.com/beesaferoot/rentals/internal/calendar"
	"github.com/beesaferoot/rentals/internal/events"
	"github.com/beesaferoot/rentals/internal/httpapi"
	"github.com/beesaferoot/rentals/internal/lease"
	"github.com/beesaferoot/rentals/internal/listing"
	"github.com/beesaferoot/rentals/internal/store"
)

const shutdownTimeout = 10 * time.Second

func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrate, _ := cmd.Flags().GetBool("migrate")

			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.ValidateServer(); err != nil {
				return err
			}

			db, err := store.Open(cfg, log)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %v", err)
			}
			defer store.Close(db)

			if migrate {
				if err := store.Migrate(cmd.Context(), db); err != nil {
					return fmt.Errorf("failed to migrate: %v", err)
				}
			}

			var publisher events.Publisher = events.Nop{}
			if cfg.AMQPURL != "" {
				p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
				if err != nil {
					return err
				}
				defer p.Close()
				publisher = p
			} else {
				log.Warn("[serve] RENTALS_AMQP_URL not set, domain events are discarded")
			}

			cal := calendar.New(db, calendar.Options{
				CacheTTL:  cfg.CalendarCacheTTL,
				CacheSize: cfg.CalendarCacheSize,
				Logger:    log,
			})
			defer cal.Stop()

			listings := listing.NewStore(db)
			api := httpapi.NewServer(httpapi.Deps{
				Listings: listings,
				Applications: application.NewService(db, listings, cal, application.Options{
					Publisher: publisher,
					Logger:    log,
				}),
				Leases: lease.NewService(db, lease.Options{
					Publisher: publisher,
					Logger:    log,
				}),
				Verifier: auth.NewTokenVerifier(auth.TokenConfig{
					Secret: []byte(cfg.JWTSecret),
					Issuer: cfg.JWTIssuer,
				}),
				Logger: log,
			})
			srv := httpapi.NewHTTPServer(cfg.HTTPAddr, api.Handler())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Info("[serve] listening on %s", cfg.HTTPAddr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("http server: %v", err)
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("[serve] shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("graceful shutdown: %v", err)
			}
			return nil
		},
	}

	cmd.Flags().Bool("migrate", false, "Apply pending migrations before serving")

	return cmd
}
