package search

import (
	"errors"
	"net/http"

	"staybook/internal/reservations"
	"staybook/internal/shared/clock"
	"staybook/internal/shared/middleware"
	"staybook/internal/shared/utils/response"
	"staybook/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Controller interface {
	SearchRooms(c *gin.Context)
	GetAvailability(c *gin.Context)
}

type controller struct {
	service Service
	clock   clock.Clock
	logger  *logger.Logger
}

func NewController(service Service, clk clock.Clock) Controller {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &controller{service: service, clock: clk, logger: logger.GetDefault()}
}

// SearchRooms godoc
// @Summary Search rooms free for a stay
// @Description Rooms matching the filter with no held or confirmed reservation overlapping the stay
// @Tags search
// @Param check_in query string true "YYYY-MM-DD"
// @Param check_out query string true "YYYY-MM-DD, exclusive"
// @Param type query string false "single, double, suite or deluxe"
// @Param min_price query number false "inclusive lower price bound"
// @Param max_price query number false "inclusive upper price bound"
// @Param min_capacity query int false "minimum capacity"
// @Success 200 {object} response.StandardApiResponse
// @Failure 400 {object} response.StandardApiResponse
// @Router /search [get]
func (ctrl *controller) SearchRooms(c *gin.Context) {
	var query SearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	stay, err := reservations.ParseDateRange(query.CheckIn, query.CheckOut)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
		return
	}

	asOf := ctrl.clock.Now()
	found, err := ctrl.service.Search(c.Request.Context(), query.Filter(), stay)
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Rooms retrieved successfully", SearchResponse{
		CheckIn:  query.CheckIn,
		CheckOut: query.CheckOut,
		Nights:   stay.Nights(),
		Rooms:    found,
		AsOf:     asOf,
	}, nil)
}

// GetAvailability godoc
// @Summary Free date windows for a room
// @Tags search
// @Param id path string true "room id"
// @Param check_in query string true "horizon start, YYYY-MM-DD"
// @Param check_out query string true "horizon end, YYYY-MM-DD, exclusive"
// @Success 200 {object} response.StandardApiResponse
// @Failure 404 {object} response.StandardApiResponse
// @Router /rooms/{id}/availability [get]
func (ctrl *controller) GetAvailability(c *gin.Context) {
	var query HorizonQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	horizon, err := reservations.ParseDateRange(query.CheckIn, query.CheckOut)
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, err.Error(), nil, nil)
		return
	}

	roomID := c.Param("id")
	windows, err := ctrl.service.Availability(c.Request.Context(), roomID, horizon)
	if err != nil {
		ctrl.respondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Availability retrieved successfully", ToAvailabilityResponse(roomID, horizon, windows), nil)
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
	case errors.Is(err, ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
