// The api binary serves the control-plane HTTP surface: authenticated
// endpoints the booking platform calls for on-demand sends (booking
// confirmed, appointment moved, tenant broadcast), separate from the
// scheduled dispatcher process.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"bookbell/internal/config"
	"bookbell/internal/domain/entity"
	httphandler "bookbell/internal/handler/http"
	"bookbell/internal/infra/sender"
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
	if cfg.HTTP.SharedSecret == "" {
		logger.Error("NOTIFY_SHARED_SECRET is required for the control-plane server")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	senders := buildSenders(cfg, logger)
	templates := dispatch.Templates{
		WhatsAppReminderID:     cfg.Templates.WhatsAppReminder,
		WhatsAppConfirmationID: cfg.Templates.WhatsAppConfirmation,
	}
	notify := httphandler.NewNotifyHandler(senders, templates, logger)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httphandler.NewRouter(notify, cfg.HTTP.SharedSecret),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("control-plane server starting", slog.String("addr", cfg.HTTP.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("control-plane server shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("control-plane server terminated", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("control-plane server stopped")
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
