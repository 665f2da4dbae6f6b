package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/vendacrm/venda-engine/pkg/adapters/datasource"
)

// Config holds all configuration for venda-engine.
// Configuration comes from config.yaml with environment variable overrides.
// Secrets (the engine database password) must only come from environment
// variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Engine database (PostgreSQL) holding drill-down configs.
	Database DatabaseConfig `yaml:"database"`

	// Drill-down execution defaults, applied when a config leaves them unset.
	DrillDown DrillDownConfig `yaml:"drilldown"`

	// Tenant data sources the detail queries run against.
	Tenants []TenantConfig `yaml:"tenants"`
}

// DatabaseConfig holds engine PostgreSQL configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"venda"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"venda_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// DrillDownConfig holds execution defaults.
type DrillDownConfig struct {
	// MaxResults caps detail rows when a config does not set max_results.
	MaxResults int `yaml:"max_results" env:"DRILLDOWN_MAX_RESULTS" env-default:"1000"`
	// TimeoutSeconds bounds execution when a config does not set
	// query_timeout_seconds.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"DRILLDOWN_TIMEOUT_SECONDS" env-default:"30"`
	// MigrationsPath is where engine schema migrations live.
	MigrationsPath string `yaml:"migrations_path" env:"DRILLDOWN_MIGRATIONS_PATH" env-default:"migrations"`
}

// TenantConfig maps one tenant to its data source.
type TenantConfig struct {
	ClientID   int64  `yaml:"client_id"`
	Type       string `yaml:"type"` // postgres | sqlserver
	ConnString string `yaml:"conn_string"`
}

// Load reads configuration from config.yaml with environment variable
// overrides.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	for i, t := range cfg.Tenants {
		switch datasource.Type(t.Type) {
		case datasource.TypePostgres, datasource.TypeSQLServer:
		default:
			return nil, fmt.Errorf("tenants[%d]: unsupported datasource type %q", i, t.Type)
		}
	}

	return cfg, nil
}

// TenantSources converts the configured tenants into the resolver's map form.
func (c *Config) TenantSources() map[int64]datasource.TenantSource {
	sources := make(map[int64]datasource.TenantSource, len(c.Tenants))
	for _, t := range c.Tenants {
		sources[t.ClientID] = datasource.TenantSource{
			Type:       datasource.Type(t.Type),
			ConnString: t.ConnString,
		}
	}
	return sources
}

// ConnectionString returns a PostgreSQL connection string for the engine DB.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
