package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"staybook/internal/auth"
	"staybook/internal/rooms"
	"staybook/internal/shared/config"
	"staybook/internal/shared/database"
	"staybook/pkg/cache"

	"github.com/joho/godotenv"
	"github.com/lib/pq"
)

type Seeder struct {
	db      *database.DB
	service rooms.Service
}

func main() {
	clean := flag.Bool("clean", false, "truncate settlements, reservations and rooms first")
	tokens := flag.Bool("tokens", true, "print development bearer tokens")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of printed tokens")
	flag.Parse()

	_ = godotenv.Load()

	fmt.Println("Starting StayBook database seeder...")

	cfg := config.Load()
	if cfg.UsesMemoryStorage() {
		log.Fatal("STORAGE_DRIVER=memory has nothing to seed; the server starts empty")
	}

	ctx := context.Background()
	db, err := database.InitDB(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	service := rooms.NewService(rooms.NewRepository(db.GetPostgreSQL()))
	if db.Redis != nil {
		// Upserts invalidate whatever a running server has cached
		service.SetCacheService(cache.NewService(db.GetRedisClient()))
	}
	seeder := &Seeder{db: db, service: service}

	if *clean {
		fmt.Println("\nCleaning database...")
		if err := seeder.CleanDatabase(); err != nil {
			log.Fatalf("Failed to clean database: %v", err)
		}
		fmt.Println("Database cleaned successfully")
	}

	fmt.Println("\nSeeding rooms...")
	if err := seeder.SeedRooms(ctx); err != nil {
		log.Fatalf("Failed to seed rooms: %v", err)
	}
	fmt.Println("Rooms seeded successfully")

	if *tokens {
		if err := printTokens(cfg, *tokenTTL); err != nil {
			log.Fatalf("Failed to issue tokens: %v", err)
		}
	}

	fmt.Println("\nSeeding completed! Database is ready for testing.")
}

// CleanDatabase truncates every application table
func (s *Seeder) CleanDatabase() error {
	return s.db.GetPostgreSQL().Exec(`TRUNCATE TABLE settlements, reservations, rooms RESTART IDENTITY CASCADE`).Error
}

// SeedRooms upserts the app's launch inventory. Re-running replaces the rows in place.
func (s *Seeder) SeedRooms(ctx context.Context) error {
	admin := rooms.GrantAdmin("seeder")
	for _, room := range seedRooms() {
		saved, err := s.service.UpsertRoom(ctx, admin, room)
		if err != nil {
			return fmt.Errorf("room %s: %w", room.ID, err)
		}
		status := "active"
		if !saved.Active {
			status = "inactive"
		}
		fmt.Printf("  %-2s %-20s %-7s $%.2f/night  up to %d guests  (%s)\n",
			saved.ID, saved.Name, saved.Type, saved.NightlyPrice, saved.Capacity, status)
	}
	return nil
}

func seedRooms() []rooms.Room {
	return []rooms.Room{
		{
			ID:           "1",
			Name:         "Deluxe Ocean View",
			Type:         rooms.RoomTypeDeluxe,
			NightlyPrice: 299,
			Capacity:     2,
			Description:  "Luxurious room with stunning ocean views, featuring a king-size bed and private balcony.",
			Amenities:    pq.StringArray{"Ocean View", "King Bed", "Balcony", "Mini Bar", "Free Wi-Fi", "Room Service"},
			Images: pq.StringArray{
				"https://images.unsplash.com/photo-1611892440504-42a792e24d32?ixlib=rb-4.0.3",
				"https://images.unsplash.com/photo-1582719478250-c89cae4dc85b?ixlib=rb-4.0.3",
			},
			Active: true,
		},
		{
			ID:           "2",
			Name:         "Premium Suite",
			Type:         rooms.RoomTypeSuite,
			NightlyPrice: 499,
			Capacity:     4,
			Description:  "Spacious suite with separate living area, perfect for families or extended stays.",
			Amenities:    pq.StringArray{"Living Room", "2 Bathrooms", "Kitchen", "Work Desk", "Free Wi-Fi", "24/7 Service"},
			Images: pq.StringArray{
				"https://images.unsplash.com/photo-1582719478250-c89cae4dc85b?ixlib=rb-4.0.3",
				"https://images.unsplash.com/photo-1611892440504-42a792e24d32?ixlib=rb-4.0.3",
			},
			Active: true,
		},
		{
			ID:           "3",
			Name:         "Standard Double",
			Type:         rooms.RoomTypeDouble,
			NightlyPrice: 199,
			Capacity:     2,
			Description:  "Comfortable room with two double beds, ideal for friends or business travelers.",
			Amenities:    pq.StringArray{"2 Double Beds", "Work Desk", "Free Wi-Fi", "TV", "Coffee Maker"},
			Images: pq.StringArray{
				"https://images.unsplash.com/photo-1566665797739-1674de7a421a?ixlib=rb-4.0.3",
				"https://images.unsplash.com/photo-1611892440504-42a792e24d32?ixlib=rb-4.0.3",
			},
			Active: true,
		},
		{
			ID:           "4",
			Name:         "Single Room",
			Type:         rooms.RoomTypeSingle,
			NightlyPrice: 149,
			Capacity:     1,
			Description:  "Cozy room perfect for solo travelers, featuring all essential amenities.",
			Amenities:    pq.StringArray{"Single Bed", "Work Desk", "Free Wi-Fi", "TV", "Coffee Maker"},
			Images: pq.StringArray{
				"https://images.unsplash.com/photo-1631049307264-da0ec9d70304?ixlib=rb-4.0.3",
				"https://images.unsplash.com/photo-1611892440504-42a792e24d32?ixlib=rb-4.0.3",
			},
			Active: false,
		},
	}
}

// printTokens mints bearer tokens the way the identity bridge would, for curl and the app's dev build
func printTokens(cfg *config.Config, ttl time.Duration) error {
	oracle := auth.NewJWTOracle(cfg.JWT)

	fmt.Println("\nDevelopment tokens:")
	for _, identity := range []auth.Identity{
		{GuestID: "guest-demo", Email: "guest@staybook.local", Role: auth.RoleGuest},
		{GuestID: "admin-demo", Email: "admin@staybook.local", Role: auth.RoleAdmin},
	} {
		token, err := oracle.IssueAccessToken(identity, ttl)
		if err != nil {
			return err
		}
		fmt.Printf("  %-5s Authorization: Bearer %s\n", identity.Role, token)
	}
	return nil
}
