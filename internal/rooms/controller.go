package rooms

import (
	"errors"
	"net/http"

	"staybook/internal/shared/middleware"
	"staybook/internal/shared/utils/response"
	"staybook/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Controller interface {
	GetRooms(c *gin.Context)
	GetRoom(c *gin.Context)
	UpsertRoom(c *gin.Context)
}

type controller struct {
	service Service
	logger  *logger.Logger
}

func NewController(service Service) Controller {
	return &controller{service: service, logger: logger.GetDefault()}
}

// GetRooms godoc
// @Summary List rooms
// @Tags rooms
// @Param type query string false "single, double, suite or deluxe"
// @Param min_price query number false "inclusive lower price bound"
// @Param max_price query number false "inclusive upper price bound"
// @Param min_capacity query int false "minimum capacity"
// @Success 200 {object} response.StandardApiResponse
// @Router /rooms [get]
func (ctrl *controller) GetRooms(c *gin.Context) {
	var query RoomListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	rooms, err := ctrl.service.ListRooms(c.Request.Context(), query.Filter())
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Rooms retrieved successfully", rooms, nil)
}

// GetRoom godoc
// @Summary Get a room
// @Tags rooms
// @Param id path string true "room id"
// @Success 200 {object} response.StandardApiResponse
// @Failure 404 {object} response.StandardApiResponse
// @Router /rooms/{id} [get]
func (ctrl *controller) GetRoom(c *gin.Context) {
	room, err := ctrl.service.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Room retrieved successfully", room, nil)
}

// UpsertRoom godoc
// @Summary Create or replace a room
// @Tags admin
// @Security BearerAuth
// @Param id path string true "room id"
// @Param room body UpsertRoomRequest true "room attributes"
// @Success 200 {object} response.StandardApiResponse
// @Router /admin/rooms/{id} [put]
func (ctrl *controller) UpsertRoom(c *gin.Context) {
	var req UpsertRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	identity, ok := middleware.GetIdentity(c)
	if !ok || !identity.IsAdmin() {
		response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
		return
	}

	room, err := ctrl.service.UpsertRoom(c.Request.Context(), GrantAdmin(identity.GuestID), req.ToRoom(c.Param("id")))
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Room saved successfully", room, nil)
}

func (ctrl *controller) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	middleware.RequestScoped(c, ctrl.logger).LogHTTPError(c, err, status)
	response.RespondJSON(c, "error", status, err.Error(), nil, nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidRoom), errors.Is(err, ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
