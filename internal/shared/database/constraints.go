package database

import (
	"gorm.io/gorm"
)

// MigrateConstraints adds the constraints AutoMigrate cannot express. Every
// statement is idempotent so it runs on each start.
func MigrateConstraints(db *gorm.DB) error {
	statements := []string{
		// gist support for equality on room_id inside the exclusion constraint
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,

		`DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'reservations_valid_range') THEN
				ALTER TABLE reservations
				ADD CONSTRAINT reservations_valid_range CHECK (check_out > check_in);
			END IF;
		END $$`,

		// No two held or confirmed reservations may overlap on the same room
		`DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'reservations_no_overlap') THEN
				ALTER TABLE reservations
				ADD CONSTRAINT reservations_no_overlap
				EXCLUDE USING gist (
					room_id WITH =,
					daterange(check_in, check_out, '[)') WITH &&
				) WHERE (status IN ('held', 'confirmed'));
			END IF;
		END $$`,

		// Sweep scans only live holds
		`CREATE INDEX IF NOT EXISTS idx_reservations_live_holds
		ON reservations (hold_expires_at) WHERE status = 'held'`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_settlements_reservation
		ON settlements (reservation_id)`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
