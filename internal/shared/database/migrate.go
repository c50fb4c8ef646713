package database

import (
	"staybook/internal/payments"
	"staybook/internal/reservations"
	"staybook/internal/rooms"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&rooms.Room{},
		&reservations.Reservation{},
		&payments.Settlement{},
	)
}
