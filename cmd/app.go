package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/config"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/logging"
	"github.com/hodlisma/hodlisma-engine/pkg/money"
	"github.com/hodlisma/hodlisma-engine/pkg/repositories"
	"github.com/hodlisma/hodlisma-engine/pkg/services"
)

// app is the wired service graph shared by the server and the CLI commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB
	money  money.Formatter

	audit      services.AuditService
	rollback   services.RollbackService
	crypto     services.CryptoService
	finance    services.FinanceService
	categories services.CategoryService
	savings    services.SavingsService
}

// loadConfig reads configuration and builds the process logger.
func loadConfig(opts *rootOptions) (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadFrom(opts.configPath, opts.version)
	if err != nil {
		return nil, nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logger, err := logging.NewLogger(cfg.IsProduction(), cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return cfg, logger, nil
}

// newApp connects to the database and wires repositories into services.
func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, logger, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.URL(),
		MaxConnections: cfg.Database.MaxConnections,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database %s: %w",
			logging.SanitizeConnectionString(cfg.Database.URL()), err)
	}

	var tx database.TxRunner = database.NoTx{}
	if cfg.Audit.Transactional {
		tx = database.NewPgxTxRunner(db, logger)
	}
	formatter := money.NewFormatter(cfg.Finance.Currency)

	auditRepo := repositories.NewAuditRepository(db)
	txRepo := repositories.NewTransactionRepository(db)

	audit := services.NewAuditService(auditRepo, logger)

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		money:  formatter,
		audit:  audit,
		rollback: services.NewRollbackService(audit, repositories.NewCollectionStore(db), tx,
			services.RollbackConfig{RequireUnchanged: cfg.Rollback.RequireUnchanged}, logger),
		crypto:     services.NewCryptoService(repositories.NewAssetRepository(db), audit, tx, formatter, logger),
		finance:    services.NewFinanceService(txRepo, audit, tx, formatter, logger),
		categories: services.NewCategoryService(repositories.NewCategoryRepository(db), txRepo, audit, tx, logger),
		savings:    services.NewSavingsService(repositories.NewSavingsRepository(db), audit, tx, formatter, logger),
	}

	logger.Debug("Services wired",
		zap.Bool("transactional_audit", cfg.Audit.Transactional),
		zap.Bool("rollback_require_unchanged", cfg.Rollback.RequireUnchanged),
		zap.String("currency", formatter.Currency()))

	return a, nil
}

func (a *app) Close() {
	a.db.Close()
	_ = a.logger.Sync()
}

// migrate applies pending migrations and returns the schema version.
func migrate(cfg *config.Config, logger *zap.Logger) (uint, error) {
	version, err := database.Migrate(cfg.Database.URL(), logger)
	if err != nil {
		return 0, fmt.Errorf("migrate %s: %w", logging.SanitizeConnectionString(cfg.Database.URL()), err)
	}
	return version, nil
}
