package database

import (
	"context"
	"fmt"
	"time"

	"staybook/internal/shared/config"
	"staybook/pkg/cache"
	"staybook/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB holds database connections. Either field may be nil: PostgreSQL when the
// memory storage driver is selected, Redis when caching is disabled or down.
type DB struct {
	PostgreSQL *gorm.DB
	Redis      *redis.Client
}

// InitDB initializes the database connections
func InitDB(ctx context.Context, cfg *config.Config) (*DB, error) {
	db := &DB{}
	log := logger.GetDefault()

	if !cfg.UsesMemoryStorage() {
		pg, err := initPostgreSQL(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		if err := Migrate(pg); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		if err := MigrateConstraints(pg); err != nil {
			return nil, fmt.Errorf("failed to add constraints: %w", err)
		}
		db.PostgreSQL = pg
	} else {
		log.Warn("Using in-memory storage; data is lost on restart")
	}

	// Redis backs the room cache and the rate limiter, neither of which may fail a request
	if cfg.Redis.Enabled {
		rdb, err := cache.NewClient(ctx, cache.Config{
			Address:  cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warn("Redis unavailable, continuing without cache and rate limiting", "error", err.Error())
		} else {
			log.Info("Redis connected successfully", "addr", cfg.Redis.Addr)
			db.Redis = rdb
		}
	}

	return db, nil
}

// initPostgreSQL initializes PostgreSQL connection with GORM
func initPostgreSQL(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	// Configure GORM logger
	var gormLogger gormlogger.Interface
	if cfg.IsDevelopment() {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Info)
	} else {
		gormLogger = gormlogger.Default.LogMode(gormlogger.Silent)
	}

	gormConfig := &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.GetDefault().Info("PostgreSQL connected successfully", "host", cfg.Database.Host, "database", cfg.Database.Name)
	return db, nil
}

// Close closes all database connections
func (db *DB) Close() error {
	var errs []error

	if db.PostgreSQL != nil {
		if sqlDB, err := db.PostgreSQL.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close PostgreSQL: %w", err))
			}
		}
	}

	if db.Redis != nil {
		if err := db.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing databases: %v", errs)
	}

	logger.GetDefault().Info("All database connections closed")
	return nil
}

// HealthCheck pings PostgreSQL. Redis is reported separately through the
// cache service since the app keeps serving without it.
func (db *DB) HealthCheck(ctx context.Context) error {
	if db.PostgreSQL == nil {
		return nil
	}
	sqlDB, err := db.PostgreSQL.DB()
	if err != nil {
		return fmt.Errorf("PostgreSQL health check failed: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("PostgreSQL ping failed: %w", err)
	}
	return nil
}

// GetRedisClient returns the Redis client
func (db *DB) GetRedisClient() *redis.Client {
	return db.Redis
}

// GetPostgreSQL returns the PostgreSQL GORM instance
func (db *DB) GetPostgreSQL() *gorm.DB {
	return db.PostgreSQL
}
