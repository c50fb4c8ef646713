package testutil

import (
	"context"
	"os"
	"testing"

	"staybook/internal/shared/database"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testDBLockID int64 = 701234567

// NewTestDB opens the database named by TEST_DATABASE_URL, migrates it and
// empties every table. Tests are skipped when the variable is unset.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration tests")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Skipf("skipping Postgres integration tests: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(25)
	if err := sqlDB.Ping(); err != nil {
		t.Skipf("skipping Postgres integration tests: %v", err)
	}

	lockTestDB(t, db)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := database.MigrateConstraints(db); err != nil {
		t.Fatalf("failed to add constraints: %v", err)
	}
	TruncateAll(t, db)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// TruncateAll empties every application table
func TruncateAll(t *testing.T, db *gorm.DB) {
	t.Helper()
	if err := db.Exec(`TRUNCATE settlements, reservations, rooms RESTART IDENTITY CASCADE`).Error; err != nil {
		t.Fatalf("truncate: %v", err)
	}
}

// InsertRoom adds a minimal active room row
func InsertRoom(t *testing.T, db *gorm.DB, id string, price float64) {
	t.Helper()
	err := db.Exec(`
INSERT INTO rooms (id, name, type, nightly_price, capacity, description, amenities, images, active, created_at, updated_at)
VALUES (?, ?, 'double', ?, 2, '', '{}', '{}', true, NOW(), NOW())`,
		id, "Room "+id, price,
	).Error
	if err != nil {
		t.Fatalf("insert room: %v", err)
	}
}

// lockTestDB serialises integration tests across packages sharing one database
func lockTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	conn, err := sqlDB.Conn(context.Background())
	if err != nil {
		t.Fatalf("acquire lock conn: %v", err)
	}
	if _, err := conn.ExecContext(context.Background(), `SELECT pg_advisory_lock($1)`, testDBLockID); err != nil {
		_ = conn.Close()
		t.Fatalf("acquire test lock: %v", err)
	}
	t.Cleanup(func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, testDBLockID)
		_ = conn.Close()
	})
}
