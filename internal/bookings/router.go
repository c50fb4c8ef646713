package bookings

import (
	"staybook/internal/auth"
	"staybook/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures all booking-related routes
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller, oracle auth.Oracle) {
	// Guest booking routes
	bookings := rg.Group("/bookings")
	bookings.Use(middleware.JWTAuth(oracle), middleware.RequireRoles(string(auth.RoleGuest), string(auth.RoleAdmin)))
	{
		bookings.POST("", controller.CreateBooking)            // POST /api/v1/bookings
		bookings.GET("", controller.ListBookings)              // GET /api/v1/bookings
		bookings.GET("/:id", controller.GetBooking)            // GET /api/v1/bookings/:id
		bookings.POST("/:id/cancel", controller.CancelBooking) // POST /api/v1/bookings/:id/cancel
	}

	// Admin ledger maintenance
	admin := rg.Group("/admin")
	admin.Use(middleware.JWTAuth(oracle), middleware.RequireAdmin())
	{
		admin.POST("/reservations/sweep", controller.SweepExpired) // POST /api/v1/admin/reservations/sweep
		admin.GET("/settlements/refunds", controller.ListRefunds)  // GET /api/v1/admin/settlements/refunds
	}
}

// Route definitions for reference:
//
// BOOKING
// POST   /api/v1/bookings                 - Hold, settle and confirm in one attempt
// Request body: { "room_id": "1", "check_in": "2024-06-01", "check_out": "2024-06-03", "payment_token": "tok_visa" }
//
// RETRIEVAL
// GET    /api/v1/bookings                 - Caller's reservations, newest first
// GET    /api/v1/bookings/:id             - One reservation
//
// CANCELLATION
// POST   /api/v1/bookings/:id/cancel      - Release a held or confirmed reservation
//
// ADMIN
// POST   /api/v1/admin/reservations/sweep - Expire lapsed holds now
// GET    /api/v1/admin/settlements/refunds - Charges flagged REFUND_REQUIRED, oldest first
//
// Flow:
// 1. Guest searches with GET /search?check_in=...&check_out=...
// 2. Guest books with POST /bookings; the hold is created before payment
// 3. Settlement succeeds -> confirmed; fails -> hold released, 402 returned
// 4. Unconfirmed holds lapse after HOLD_TTL and are swept
