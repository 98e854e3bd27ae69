package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"dairy-collection-backend/config"
	"dairy-collection-backend/internal/api"
	"dairy-collection-backend/internal/db"
	"dairy-collection-backend/internal/logs"
	"dairy-collection-backend/internal/model"
	"dairy-collection-backend/internal/notification"
	"dairy-collection-backend/internal/retention"
	"dairy-collection-backend/internal/store"
	"dairy-collection-backend/internal/tenant"
)

func main() {
	provisionName := flag.String("provision-tenant", "", "create a tenant with this display name and exit (requires -org-key)")
	provisionKey := flag.String("org-key", "", "tenant key for -provision-tenant")
	flag.Parse()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logs.Logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logs.Init(logs.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	logs.Logger.Infof("configuration loaded from %s", configPath)

	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logs.Logger.Fatalf("failed to initialize database: %v", err)
	}
	logs.Logger.Info("database initialized")

	if *provisionName != "" {
		if err := provisionTenant(gormDB, *provisionName, *provisionKey); err != nil {
			logs.Logger.Fatalf("tenant provisioning failed: %v", err)
		}
		return
	}

	appStore := store.NewGormStore(gormDB)
	resolver := tenant.NewResolver(gormDB)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Push notifications are optional; without VAPID keys the device
	// protocol runs as usual and events are simply not dispatched.
	var webpushOptions *webpush.Options
	var pool *notification.WorkerPool
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions)
		pool.Start(ctx)
	} else {
		logs.Logger.Warn("VAPID keys not configured, push notifications disabled")
	}

	go retention.NewService(cfg, appStore).Run(ctx)

	router := api.NewRouter(&cfg.Server, appStore, resolver, webpushOptions, pool)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logs.Logger.Infof("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logs.Logger.Info("shutdown signal received, stopping services")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logs.Logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logs.Logger.Info("server gracefully stopped")
}

// provisionTenant registers a tenant row and creates its relational
// schema with the tenant tables migrated into it.
func provisionTenant(gormDB *gorm.DB, name, key string) error {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return fmt.Errorf("-org-key is required")
	}

	row := model.Tenant{Name: name, OrgKey: key, Active: true}
	if err := gormDB.Where("org_key = ?", key).FirstOrCreate(&row).Error; err != nil {
		return fmt.Errorf("create tenant row: %w", err)
	}

	schemaName := tenant.SchemaName(row.Name, row.OrgKey)
	if err := db.CreateTenantSchema(gormDB, schemaName); err != nil {
		return err
	}
	logs.Logger.Infof("tenant %q provisioned with schema %s", row.Name, schemaName)
	return nil
}
