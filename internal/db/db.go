package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"dairy-collection-backend/config"
	"dairy-collection-backend/internal/model"
)

// Init opens the database connection, tunes the pool, and migrates the
// public-schema tables (tenants and push subscriptions). Tenant-schema
// tables are migrated per schema by CreateTenantSchema.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := db.AutoMigrate(
		&model.Tenant{},
		&model.PushSubscription{},
		&model.SubscriptionTarget{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	return db, nil
}

// TenantModels lists the models migrated into every tenant schema.
func TenantModels() []any {
	return []any{
		&model.Society{},
		&model.Machine{},
		&model.Farmer{},
		&model.MachineCorrection{},
		&model.RateChart{},
		&model.RateChartPrice{},
		&model.RateChartDownload{},
	}
}

// CreateTenantSchema provisions the relational schema for one tenant and
// migrates the tenant tables into it. Safe to call repeatedly.
func CreateTenantSchema(base *gorm.DB, schemaName string) error {
	if schemaName == "" {
		return fmt.Errorf("empty schema name")
	}
	if err := base.Exec(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %q", schemaName)).Error; err != nil {
		return fmt.Errorf("create schema %s: %w", schemaName, err)
	}

	sqlDB, err := base.DB()
	if err != nil {
		return err
	}

	// A second gorm handle over the same pool, with table names prefixed
	// into the tenant schema.
	scoped, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		NamingStrategy: schema.NamingStrategy{TablePrefix: schemaName + "."},
	})
	if err != nil {
		return fmt.Errorf("open scoped handle for %s: %w", schemaName, err)
	}

	if err := scoped.AutoMigrate(TenantModels()...); err != nil {
		return fmt.Errorf("migrate schema %s: %w", schemaName, err)
	}
	return nil
}
