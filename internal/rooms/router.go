package rooms

import (
	"staybook/internal/auth"
	"staybook/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoomRoutes(router *gin.RouterGroup, controller Controller, oracle auth.Oracle) {
	// Public routes - the app browses rooms without signing in
	publicRooms := router.Group("/rooms")
	{
		publicRooms.GET("", controller.GetRooms)    // GET /api/v1/rooms - List rooms with filters
		publicRooms.GET("/:id", controller.GetRoom) // GET /api/v1/rooms/:id - Room details
	}

	// Admin routes - inventory edits
	adminRooms := router.Group("/admin/rooms")
	adminRooms.Use(middleware.JWTAuth(oracle), middleware.RequireAdmin())
	{
		adminRooms.PUT("/:id", controller.UpsertRoom) // PUT /api/v1/admin/rooms/:id - Create or replace room
	}
}
