// The dispatcher is the scheduled notification engine: it polls the booking
// platform on the configured cadences, decides which appointments are due a
// reminder or confirmation notice, and delivers over the configured
// channels with crash-safe at-most-once semantics per appointment schedule.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bookbell/internal/config"
	"bookbell/internal/dedup"
	"bookbell/internal/domain/entity"
	"bookbell/internal/infra/provider"
	"bookbell/internal/infra/sender"
	"bookbell/internal/infra/worker"
	"bookbell/internal/resilience/circuitbreaker"
	"bookbell/internal/scheduler"
	"bookbell/internal/usecase/dispatch"
)

func main() {
	_ = godotenv.Load()
	logger := initLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration error", slog.Any("error", err))
		os.Exit(1)
	}
	loc := cfg.Location()
	logger.Info("dispatcher configuration loaded",
		slog.String("timezone", cfg.Timezone),
		slog.Int("tolerance_minutes", cfg.ToleranceMinutes),
		slog.String("store_backend", cfg.Store.Backend),
		slog.Any("channels", cfg.EnabledChannels()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reminderStore, confirmationStore, cleanup := buildStores(cfg, logger)
	defer cleanup()

	// Loading before the first cycle is what makes restarts duplicate-free.
	if err := reminderStore.Load(ctx); err != nil {
		logger.Error("reminder dedup store failed to load", slog.Any("error", err))
		os.Exit(1)
	}
	if err := confirmationStore.Load(ctx); err != nil {
		logger.Error("confirmation dedup store failed to load", slog.Any("error", err))
		os.Exit(1)
	}

	bookingAPI := provider.NewClient(cfg.Provider.BaseURL, cfg.Provider.Token)
	senders := buildSenders(cfg, logger)
	templates := dispatch.Templates{
		WhatsAppReminderID:     cfg.Templates.WhatsAppReminder,
		WhatsAppConfirmationID: cfg.Templates.WhatsAppConfirmation,
	}

	reminderCycle := dispatch.NewCycle(bookingAPI, senders,
		dispatch.NewReminderCampaign(reminderStore, templates),
		loc, cfg.ToleranceMinutes, logger)
	confirmationCycle := dispatch.NewCycle(bookingAPI, senders,
		dispatch.NewConfirmationCampaign(confirmationStore, templates),
		loc, cfg.ToleranceMinutes, logger)

	sched := scheduler.New(loc, logger)
	if err := addCadence(sched, "reminder", cfg.Reminder, reminderCycle); err != nil {
		logger.Error("invalid reminder cadence", slog.Any("error", err))
		os.Exit(1)
	}
	if err := addCadence(sched, "confirmation", cfg.Confirmation, confirmationCycle); err != nil {
		logger.Error("invalid confirmation cadence", slog.Any("error", err))
		os.Exit(1)
	}

	healthServer := worker.NewHealthServer(cfg.Health.Addr, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := healthServer.Start(gctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})

	healthServer.SetReady(true)
	logger.Info("dispatcher running")

	if err := g.Wait(); err != nil {
		logger.Error("dispatcher terminated", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("dispatcher stopped")
}

// initLogger initializes the process-wide structured JSON logger.
func initLogger() *slog.Logger {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// buildStores creates the two dedup stores on the configured backend and
// returns a cleanup for the shared database handle, if any.
func buildStores(cfg *config.Config, logger *slog.Logger) (reminder, confirmation dedup.Store, cleanup func()) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		database, err := sql.Open("pgx", cfg.Store.DatabaseURL)
		if err != nil {
			logger.Error("failed to open dedup database", slog.Any("error", err))
			os.Exit(1)
		}
		database.SetMaxOpenConns(4)
		database.SetConnMaxIdleTime(5 * time.Minute)

		breaker := circuitbreaker.NewDBCircuitBreaker(database)
		reminder = dedup.NewPostgresStore(breaker, dedup.NamespaceReminders, logger)
		confirmation = dedup.NewPostgresStore(breaker, dedup.NamespaceConfirmations, logger)
		cleanup = func() {
			if err := database.Close(); err != nil {
				logger.Error("failed to close dedup database", slog.Any("error", err))
			}
		}
		return reminder, confirmation, cleanup

	default:
		reminder = dedup.NewFileStore(cfg.Store.Dir, dedup.NamespaceReminders, logger)
		confirmation = dedup.NewFileStore(cfg.Store.Dir, dedup.NamespaceConfirmations, logger)
		return reminder, confirmation, func() {}
	}
}

// buildSenders wires one sender per enabled channel.
func buildSenders(cfg *config.Config, logger *slog.Logger) map[entity.Channel]dispatch.Sender {
	senders := make(map[entity.Channel]dispatch.Sender)

	if cfg.Email.Enabled {
		senders[entity.ChannelEmail] = sender.NewEmailSender(sender.EmailConfig{
			Enabled:     true,
			APIURL:      cfg.Email.APIURL,
			APIKey:      cfg.Email.APIKey,
			FromAddress: cfg.Email.FromAddress,
			Timeout:     cfg.Email.Timeout.Std(),
		})
		logger.Info("email channel initialized")
	}
	if cfg.SMS.Enabled {
		senders[entity.ChannelSMS] = sender.NewSMSSender(sender.SMSConfig{
			Enabled:     true,
			APIURL:      cfg.SMS.APIURL,
			APIKey:      cfg.SMS.APIKey,
			SenderID:    cfg.SMS.SenderID,
			CountryCode: cfg.SMS.CountryCode,
			Timeout:     cfg.SMS.Timeout.Std(),
		})
		logger.Info("sms channel initialized")
	}
	if cfg.WhatsApp.Enabled {
		senders[entity.ChannelWhatsApp] = sender.NewWhatsAppSender(sender.WhatsAppConfig{
			Enabled:     true,
			APIURL:      cfg.WhatsApp.APIURL,
			Token:       cfg.WhatsApp.Token,
			CountryCode: cfg.WhatsApp.CountryCode,
			Timeout:     cfg.WhatsApp.Timeout.Std(),
		})
		logger.Info("whatsapp channel initialized")
	}

	return senders
}

// addCadence registers one campaign cycle under its configured discipline.
func addCadence(sched *scheduler.Scheduler, name string, cad config.Cadence, cycle *dispatch.Cycle) error {
	job := func(ctx context.Context) {
		_, _ = cycle.Run(ctx)
	}
	if cad.Discipline == config.DisciplineAligned {
		return sched.AddAligned(name, cad.Every.Std(), job)
	}
	return sched.AddInterval(name, cad.Every.Std(), job)
}
