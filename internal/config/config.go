package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"greentrace/lifecycle-engine/internal/fees"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Fees     FeesConfig     `json:"fees"`
	NATS     NATSConfig     `json:"nats"`
	Auth     AuthConfig     `json:"auth"`
	Stats    StatsConfig    `json:"stats"`
	Logging  LoggingConfig  `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DatabaseConfig represents database configuration. Leaving Host empty runs
// the engine on the in-memory store.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// FeesConfig holds the fee rates, loaded once at engine initialization.
// All rates are basis points; MinMintFeeUnits is whole tokens.
type FeesConfig struct {
	BaseRateBps             uint64 `json:"base_rate_bps"`
	AuditFeeRateBps         uint64 `json:"audit_fee_rate_bps"`
	AuditorShareBps         uint64 `json:"auditor_share_bps"`
	SystemFeeRateBps        uint64 `json:"system_fee_rate_bps"`
	ExchangeAuditFeeRateBps uint64 `json:"exchange_audit_fee_rate_bps"`
	MinMintFeeUnits         int64  `json:"min_mint_fee_units"`
}

// Rates converts the config into the policy's rate set.
func (f FeesConfig) Rates() fees.Rates {
	return fees.Rates{
		BaseRateBps:             f.BaseRateBps,
		AuditFeeRateBps:         f.AuditFeeRateBps,
		AuditorShareBps:         f.AuditorShareBps,
		SystemFeeRateBps:        f.SystemFeeRateBps,
		ExchangeAuditFeeRateBps: f.ExchangeAuditFeeRateBps,
		MinMintFee:              fees.NewAmountFromUnits(f.MinMintFeeUnits),
	}
}

// NATSConfig wires the event bus. An empty URL selects the in-process bus.
type NATSConfig struct {
	URL string `json:"url"`
}

// AuthConfig
type AuthConfig struct {
	JWTSecret string   `json:"jwt_secret"`
	Admins    []string `json:"admins"`
	Auditors  []string `json:"auditors"`
}

// StatsConfig
type StatsConfig struct {
	CacheTTL time.Duration `json:"cache_ttl"`
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	// Default config
	config := &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Port:    5432,
			User:    os.Getenv("USER"),
			DBName:  "greentrace_engine",
			SSLMode: "disable",
		},
		Fees: FeesConfig{
			BaseRateBps:             100,  // 1% mint request fee
			AuditFeeRateBps:         5000, // half the fee funds the audit
			AuditorShareBps:         8000,
			SystemFeeRateBps:        100, // 1% of audited value on redemption
			ExchangeAuditFeeRateBps: 400, // 4% of audited value on redemption
			MinMintFeeUnits:         1,
		},
		Stats: StatsConfig{
			CacheTTL: 30 * time.Second,
		},
	}

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		config.NATS.URL = url
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
