package main

import (
	"context"
	"database/sql"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	_ "github.com/vendacrm/venda-engine/pkg/adapters/datasource/postgres"
	_ "github.com/vendacrm/venda-engine/pkg/adapters/datasource/sqlserver"

	"github.com/vendacrm/venda-engine/pkg/adapters/datasource"
	"github.com/vendacrm/venda-engine/pkg/config"
	"github.com/vendacrm/venda-engine/pkg/database"
	"github.com/vendacrm/venda-engine/pkg/logging"
	"github.com/vendacrm/venda-engine/pkg/repositories"
	"github.com/vendacrm/venda-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.Int("tenants", len(cfg.Tenants)),
	)

	ctx := context.Background()

	// Run engine schema migrations over a plain database/sql handle.
	migrationDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.Migrate(migrationDB, cfg.DrillDown.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = migrationDB.Close()

	db, err := database.Open(ctx, cfg.Database.ConnectionString(), cfg.Database.MaxConnections)
	if err != nil {
		logger.Fatal("Failed to connect to engine database", zap.Error(err))
	}
	defer db.Close()

	resolver := datasource.NewStaticResolver(cfg.TenantSources())
	defer func() { _ = resolver.Close() }()

	configRepo := repositories.NewConfigRepository(db.Pool)
	executor := services.NewQueryExecutor(logger, cfg.DrillDown.MaxResults, cfg.DrillDown.TimeoutSeconds)
	svc := services.NewDrillDownService(configRepo, resolver, executor, logger)

	// Startup summary: how many drill-down configs each tenant carries.
	for _, tenant := range cfg.Tenants {
		configs, err := svc.ListConfigs(ctx, tenant.ClientID)
		if err != nil {
			logger.Warn("Failed to list drill-down configs",
				zap.Int64("client_id", tenant.ClientID),
				zap.Error(err),
			)
			continue
		}
		logger.Info("Tenant drill-down configs",
			zap.Int64("client_id", tenant.ClientID),
			zap.Int("configs", len(configs)),
		)
	}

	logger.Info("venda-engine ready",
		zap.Strings("datasource_types", typeNames(datasource.SupportedTypes())),
	)
}

func typeNames(types []datasource.Type) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}
