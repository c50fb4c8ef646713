package search

import (
	"github.com/gin-gonic/gin"
)

// SetupSearchRoutes registers the public read paths. Both are safe to call
// anonymously; the app shows availability before sign-in.
func SetupSearchRoutes(router *gin.RouterGroup, controller Controller) {
	router.GET("/search", controller.SearchRooms)                     // GET /api/v1/search?check_in=&check_out=&type=...
	router.GET("/rooms/:id/availability", controller.GetAvailability) // GET /api/v1/rooms/:id/availability?check_in=&check_out=
}
