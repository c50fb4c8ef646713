// api/routes/router.go
package routes

import (
	"context"
	"net/http"
	"time"

	"staybook/internal/auth"
	"staybook/internal/bookings"
	"staybook/internal/payments"
	"staybook/internal/reservations"
	"staybook/internal/rooms"
	"staybook/internal/search"
	"staybook/internal/shared/clock"
	"staybook/internal/shared/config"
	"staybook/internal/shared/database"
	"staybook/pkg/cache"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router holds all route dependencies
type Router struct {
	config    *config.Config
	db        *database.DB
	clock     clock.Clock
	oracle    auth.Oracle
	publisher bookings.EventPublisher
	cache     cache.Service // nil without Redis

	// Built while routes are set up, shared across modules
	roomService    rooms.Service
	ledger         reservations.Ledger
	bookingService bookings.Service
}

// NewRouter creates a new router instance. publisher may be nil, in which
// case booking events are not emitted.
func NewRouter(cfg *config.Config, db *database.DB, clk clock.Clock, publisher bookings.EventPublisher) *Router {
	if clk == nil {
		clk = clock.NewSystem()
	}
	r := &Router{
		config:    cfg,
		db:        db,
		clock:     clk,
		oracle:    auth.NewJWTOracle(cfg.JWT),
		publisher: publisher,
	}
	if db.Redis != nil {
		r.cache = cache.NewService(db.GetRedisClient())
	}
	return r
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	// Health check and basic info endpoints
	r.setupHealthRoutes(engine)

	// API documentation
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := engine.Group(r.config.GetAPIBasePath())
	{
		// Rooms first: search and bookings read the inventory
		r.setupRoomRoutes(api)

		r.setupSearchRoutes(api)

		r.setupBookingRoutes(api)
	}
}

// BookingService returns the coordinator built by SetupRoutes. The hold
// sweeper runs through it so expirations are announced.
func (r *Router) BookingService() bookings.Service {
	return r.bookingService
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "staybook-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "staybook-backend",
			"storage":   r.config.StorageDriver,
			"redis":     r.redisStatus(c.Request.Context()),
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		})
	})
}

// redisStatus reports the optional cache; the service keeps serving without it
func (r *Router) redisStatus(ctx context.Context) string {
	if r.cache == nil {
		return "disabled"
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.cache.Ping(pingCtx); err != nil {
		return "unreachable"
	}
	return "healthy"
}

// setupRoomRoutes configures the inventory store and its routes
func (r *Router) setupRoomRoutes(rg *gin.RouterGroup) {
	var roomRepo rooms.Repository
	if r.config.UsesMemoryStorage() {
		roomRepo = rooms.NewMemoryRepository()
	} else {
		roomRepo = rooms.NewRepository(r.db.GetPostgreSQL())
	}
	roomService := rooms.NewService(roomRepo)

	// Inject cache service dependency
	if r.cache != nil {
		roomService.SetCacheService(r.cache)
	}

	r.roomService = roomService
	rooms.SetupRoomRoutes(rg, rooms.NewController(roomService), r.oracle)
}

// setupSearchRoutes configures the read-only query service
func (r *Router) setupSearchRoutes(rg *gin.RouterGroup) {
	searchService := search.NewService(r.roomService, r.getLedger(), r.clock)
	search.SetupSearchRoutes(rg, search.NewController(searchService, r.clock))
}

// setupBookingRoutes configures the booking coordinator
func (r *Router) setupBookingRoutes(rg *gin.RouterGroup) {
	var settlementRepo payments.Repository
	if r.config.UsesMemoryStorage() {
		settlementRepo = payments.NewMemoryRepository()
	} else {
		settlementRepo = payments.NewRepository(r.db.GetPostgreSQL())
	}

	bookingService := bookings.NewService(
		r.roomService,
		r.getLedger(),
		payments.NewSettler(r.config.Payment),
		settlementRepo,
		bookings.OptionsFromConfig(r.config),
	)

	// Inject event publisher dependency
	if r.publisher != nil {
		bookingService.SetEventPublisher(r.publisher)
	}

	r.bookingService = bookingService
	bookings.SetupBookingRoutes(rg, bookings.NewController(bookingService, r.clock), r.oracle)
}

// getLedger returns the one ledger instance shared by search and bookings
func (r *Router) getLedger() reservations.Ledger {
	if r.ledger == nil {
		if r.config.UsesMemoryStorage() {
			r.ledger = reservations.NewMemoryLedger(r.clock)
		} else {
			r.ledger = reservations.NewPostgresLedger(r.db.GetPostgreSQL(), r.clock)
		}
	}
	return r.ledger
}
