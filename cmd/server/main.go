package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/letterdrop/letterdrop/internal/config"
	"github.com/letterdrop/letterdrop/internal/handler"
	"github.com/letterdrop/letterdrop/internal/letter"
	"github.com/letterdrop/letterdrop/internal/logger"
	"github.com/letterdrop/letterdrop/internal/mailer"
	"github.com/letterdrop/letterdrop/internal/middleware"
	"github.com/letterdrop/letterdrop/internal/model"
	"github.com/letterdrop/letterdrop/internal/router"
	"github.com/letterdrop/letterdrop/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", "0.1.0").Msg("starting Letterdrop server")

	// Initialize the letter generator (converter only when enabled)
	var converter *letter.Converter
	if cfg.Letter.ConvertToPDF {
		converter = letter.NewConverter(cfg.Letter.SofficeBin, cfg.Letter.ConvertTimeout)
		if !converter.Available() {
			log.Warn().Str("bin", cfg.Letter.SofficeBin).Msg("converter binary not found, conversions will fail")
		}
	}
	gen := letter.NewGenerator(converter, log)

	// Choose the sender provider
	newSender, err := senderFactory(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize email provider")
	}

	// Initialize the batch service
	batchSvc := service.NewBatchService(gen, newSender, cfg, log)

	// Initialize handlers and middleware
	h := handler.New(log, cfg, batchSvc, converter)
	mw := middleware.New(log, cfg)

	// Create the HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.New(h, mw, cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start the server
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}

// senderFactory builds the per-run Sender constructor. SMTP senders are
// created per run from the request's credentials; the Gmail sender is
// created once from static configuration and shared.
func senderFactory(cfg *config.Config, log *logger.Logger) (service.SenderFactory, error) {
	if cfg.Email.Provider != "gmail" {
		return func(creds model.SMTPCredentials) mailer.Sender {
			return mailer.NewSMTPSender(creds, cfg.Email.SessionTimeout)
		}, nil
	}

	var (
		sender *mailer.GmailSender
		err    error
	)
	gc := cfg.Email.Gmail
	if gc.CredentialsJSON != "" {
		sender, err = mailer.NewGmailSender(context.Background(), mailer.GmailConfig{
			CredentialsJSON: gc.CredentialsJSON,
			SenderAddress:   gc.SenderAddress,
			SenderName:      gc.SenderName,
		})
	} else {
		sender, err = mailer.NewGmailSenderWithToken(context.Background(),
			gc.ClientID, gc.ClientSecret, gc.RefreshToken, gc.SenderAddress, gc.SenderName)
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("sender", gc.SenderAddress).Msg("using Gmail API provider")
	return func(model.SMTPCredentials) mailer.Sender { return sender }, nil
}
