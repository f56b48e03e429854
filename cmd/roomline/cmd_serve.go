package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sjawhar/roomline/internal/audio"
	"github.com/sjawhar/roomline/internal/bus"
	"github.com/sjawhar/roomline/internal/call"
	"github.com/sjawhar/roomline/internal/config"
	"github.com/sjawhar/roomline/internal/gdrive"
	"github.com/sjawhar/roomline/internal/notify"
	"github.com/sjawhar/roomline/internal/order"
	"github.com/sjawhar/roomline/internal/server"
	"github.com/sjawhar/roomline/internal/storage"
	"github.com/sjawhar/roomline/internal/voice"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the call and order server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, warnings := loadConfig()
	logger := setupLogging(cfg)
	for _, w := range warnings {
		logger.Warn("config", "warning", w)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := bus.New(bus.Config{Heartbeat: cfg.Heartbeat(), BufferSize: cfg.Bus.BufferSize, Logger: logger})
	go b.Run(ctx)

	orchestrator, extractor := newSummaryPipeline(cfg, logger)
	recorder := audio.NewRecorder(cfg.AudioDir, cfg.AudioSampleRate)
	archive := storage.NewWriter(cfg.ArchiveDir)

	manager := call.NewManager(call.Deps{
		Store:      store,
		Summarizer: orchestrator,
		Extractor:  extractor,
		Events:     b,
		Recorder:   recorder,
		Archiver:   archive,
	}, call.Config{
		IdleTimeout:     cfg.IdleTimeout(),
		DefaultLanguage: cfg.Summary.DefaultLanguage,
		ForceHeuristic:  cfg.Summary.ForceHeuristic,
		Logger:          logger,
	})

	orders := order.NewService(store, b, newNotifier(cfg, logger), order.ServiceConfig{
		Strict: cfg.Orders.Strict,
		Logger: logger,
	})

	transcriber := voice.NewTranscriber(voice.Options{
		APIKey:     cfg.DeepgramAPIKey,
		Model:      cfg.Deepgram.Model,
		Language:   cfg.Deepgram.Language,
		SampleRate: recorder.SampleRate(),
		Logger:     logger,
	}, manager)

	handler := server.Handler(server.Deps{
		Calls:     manager,
		CallStore: store,
		Orders:    orders,
		Bus:       b,
		Audio:     transcriber,
		Recorder:  recorder,
		Staff:     server.NewStaffAuth(cfg.StaffTokens),
		Warnings:  func() []string { return warnings },
		Logger:    logger,
	})

	if cfg.GDrive.FolderID != "" {
		files, err := gdrive.NewDriveFiles(ctx, cfg.GDrive.CredentialsFile)
		if err != nil {
			logger.Warn("gdrive sync disabled", "error", err)
		} else {
			syncer := gdrive.NewSyncer(files, archive, cfg.GDrive.FolderID, logger)
			go syncer.Run(ctx, cfg.GDriveInterval())
			logger.Info("gdrive sync started", "folder_id", cfg.GDrive.FolderID, "interval", cfg.GDriveInterval())
		}
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	logger.Info("roomline started",
		"listen", cfg.ListenAddr,
		"db", cfg.DBPath,
		"live_transcribe", transcriber.Enabled(),
		"strict_orders", cfg.Orders.Strict)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig)
	case err := <-serveErr:
		logger.Error("http server error", "error", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ending active calls failed", "error", err)
	}
	orders.Wait()
	return nil
}

// newNotifier returns nil when no channel is configured.
func newNotifier(cfg config.Config, logger *slog.Logger) order.Notifier {
	d := &notify.Dispatcher{
		StaffRecipients: cfg.Notify.StaffRecipients,
		SlackChannel:    cfg.Notify.SlackChannel,
		Logger:          logger,
	}
	if cfg.Notify.SMTPHost != "" && cfg.Notify.From != "" {
		d.Email = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			From:     cfg.Notify.From,
			Username: cfg.Notify.SMTPUsername,
			Password: cfg.SMTPPassword,
		})
	}
	if cfg.SlackWebhookURL != "" {
		d.Slack = notify.NewSlackNotifier(cfg.SlackWebhookURL)
	}
	if !d.Enabled() {
		logger.Info("order notifications disabled")
		return nil
	}
	return d
}
