package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/handlers"
	"github.com/hodlisma/hodlisma-engine/pkg/llm"
	"github.com/hodlisma/hodlisma-engine/pkg/mcp"
	"github.com/hodlisma/hodlisma-engine/pkg/middleware"
	"github.com/hodlisma/hodlisma-engine/pkg/realtime"
)

const shutdownTimeout = 15 * time.Second

func serveCommand(opts *rootOptions) *cobra.Command {
	var skipMigrations bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, chat and MCP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts, skipMigrations)
		},
	}

	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations on startup")
	return cmd
}

func serve(ctx context.Context, opts *rootOptions, skipMigrations bool) error {
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", cfg.Database.Host),
		zap.Bool("redis", cfg.Redis.Enabled()),
		zap.Bool("llm", cfg.LLM.IsAvailable()))

	if !skipMigrations {
		if _, err := migrate(cfg, logger); err != nil {
			return err
		}
	}

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()

	// Live audit feed: NOTIFY on insert -> hub -> SSE subscribers and Redis.
	var sinks []realtime.Sink
	redisClient, err := database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		sinks = append(sinks, realtime.NewRedisPublisher(redisClient, cfg.Redis.Channel, logger))
	}
	hub := realtime.NewHub(logger, sinks...)

	listener := database.NewListener(cfg.Database.URL(), database.AuditLogChannel, logger)
	feed := realtime.NewFeed(listener, a.audit, hub, logger)
	feedDone := make(chan error, 1)
	go func() { feedDone <- feed.Run(feedCtx) }()

	// A nil generator keeps the chat route up and answering 503.
	var generator llm.Generator
	if cfg.LLM.IsAvailable() {
		client, err := llm.NewClient(&llm.Config{
			Endpoint: cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			APIKey:   cfg.LLM.APIKey,
		}, logger)
		if err != nil {
			return err
		}
		generator = client
	}

	executor := llm.NewFinanceToolExecutor(&llm.FinanceToolExecutorConfig{
		Crypto:     a.crypto,
		Finance:    a.finance,
		Categories: a.categories,
		Savings:    a.savings,
		Audit:      a.audit,
		Logger:     logger,
	})
	chat := llm.NewChatService(generator, executor, a.crypto, a.finance, a.money, logger)

	mcpServer := mcp.NewServer("hodlisma", cfg.Version, logger)
	if err := mcpServer.RegisterFinanceTools(executor); err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, a.db, logger).RegisterRoutes(mux)
	auditHandler := handlers.NewAuditHandler(a.audit, a.rollback, hub, logger)
	auditHandler.RegisterRoutes(mux)
	handlers.NewAssetHandler(a.crypto, logger).RegisterRoutes(mux)
	handlers.NewTransactionHandler(a.finance, logger).RegisterRoutes(mux)
	handlers.NewCategoryHandler(a.categories, logger).RegisterRoutes(mux)
	handlers.NewSavingsHandler(a.savings, logger).RegisterRoutes(mux)
	handlers.NewChatHandler(chat, logger).RegisterRoutes(mux)
	mux.Handle("/mcp", mcpServer.Handler())

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           middleware.Recoverer(logger)(middleware.RequestLogger(logger)(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(auditHandler.CloseStreams)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting hodlisma-engine", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	stopFeed()
	if err := <-feedDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("Audit feed stopped with error", zap.Error(err))
	}
	return nil
}
