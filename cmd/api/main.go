package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"greentrace/lifecycle-engine/internal/api"
	"greentrace/lifecycle-engine/internal/auth"
	"greentrace/lifecycle-engine/internal/config"
	"greentrace/lifecycle-engine/internal/escrow"
	"greentrace/lifecycle-engine/internal/events"
	"greentrace/lifecycle-engine/internal/fees"
	"greentrace/lifecycle-engine/internal/lifecycle"
	"greentrace/lifecycle-engine/internal/roles"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(configPathFromEnv())
	if err != nil {
		log.Fatal("loading config: ", err)
	}

	logger, err := buildLogger(cfg.Logging.Level)
	if err != nil {
		log.Fatal("building logger: ", err)
	}
	defer logger.Sync()

	// ---------------- STORE ----------------
	var (
		store       lifecycle.Store
		roleManager roles.Manager
		db          *gorm.DB
	)
	if cfg.Database.Host != "" {
		db, err = gorm.Open(postgres.Open(cfg.Database.GetDatabaseURL()), &gorm.Config{})
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		pg := lifecycle.NewPGStore(db)
		if err := pg.AutoMigrate(); err != nil {
			logger.Fatal("migrating schema", zap.Error(err))
		}
		store = pg

		dir := roles.NewGormDirectory(db)
		if err := dir.AutoMigrate(); err != nil {
			logger.Fatal("migrating roles", zap.Error(err))
		}
		roleManager = dir
	} else {
		logger.Warn("no database configured, running on the in-memory store")
		store = lifecycle.NewMemStore()
		roleManager = roles.NewStaticDirectory(nil)
	}

	// Seed configured auditors.
	ctx := context.Background()
	for _, a := range cfg.Auth.Auditors {
		if err := roleManager.AddAuditor(ctx, lifecycle.Actor(a), "config"); err != nil {
			logger.Fatal("seeding auditor", zap.String("actor", a), zap.Error(err))
		}
	}

	// ---------------- BUS ----------------
	var bus events.Bus
	if cfg.NATS.URL != "" {
		bus, err = events.NewNatsBus(cfg.NATS.URL)
		if err != nil {
			logger.Fatal("connecting to NATS", zap.Error(err))
		}
	} else {
		bus = events.NewLocalBus()
	}
	defer bus.Close()

	// ---------------- ENGINE ----------------
	policy := fees.NewPolicy(cfg.Fees.Rates())
	treasury := escrow.NewMemTreasury()
	registry := lifecycle.NewRegistry(store, bus, logger)
	ledger := lifecycle.NewLedger(store, policy, treasury, bus, logger)
	auditEngine := lifecycle.NewAuditEngine(store, policy, roleManager, treasury, registry, bus, logger)
	stats := lifecycle.NewAggregator(store, bus, logger, cfg.Stats.CacheTTL)

	// ---------------- HTTP ----------------
	r := gin.Default()
	handler := api.NewHandler(ledger, auditEngine, registry, stats, policy, roleManager, logger)
	api.RegisterRoutes(r, handler,
		auth.Middleware(cfg.Auth.JWTSecret),
		auth.RequireAdmin(cfg.Auth.Admins))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "API alive!"})
	})

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	logger.Info("server starting", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func configPathFromEnv() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.json"
}

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		parsed, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, err
		}
		cfg.Level = parsed
	}
	return cfg.Build()
}
