package bookings

import (
	"context"
	"errors"
	"net/http"
	"time"

	"staybook/internal/reservations"
	"staybook/internal/shared/clock"
	"staybook/internal/shared/middleware"
	"staybook/internal/shared/utils/response"
	"staybook/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
	clock   clock.Clock
	logger  *logger.Logger
}

func NewController(service Service, clk clock.Clock) *Controller {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Controller{service: service, clock: clk, logger: logger.GetDefault()}
}

// CreateBooking godoc
// @Summary Book a room
// @Description Holds the room, settles the payment token and confirms. A failed settlement releases the hold.
// @Tags bookings
// @Security BearerAuth
// @Param booking body CreateBookingRequest true "booking request"
// @Success 201 {object} response.StandardApiResponse
// @Failure 402 {object} response.StandardApiResponse
// @Failure 409 {object} response.StandardApiResponse
// @Router /bookings [post]
func (c *Controller) CreateBooking(ctx *gin.Context) {
	identity, ok := middleware.GetIdentity(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req CreateBookingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	stay, err := reservations.ParseDateRange(req.CheckIn, req.CheckOut)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, err.Error(), nil, nil)
		return
	}

	result, err := c.service.Book(ctx.Request.Context(), BookingRequest{
		RoomID:       req.RoomID,
		Stay:         stay,
		GuestID:      identity.GuestID,
		PaymentToken: req.PaymentToken,
	})
	if err != nil {
		var data interface{}
		if result != nil {
			data = ToBookingResponse(result)
		}
		c.respondError(ctx, err, data)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Booking confirmed successfully", ToBookingResponse(result), nil)
}

// ListBookings godoc
// @Summary List the caller's reservations
// @Tags bookings
// @Security BearerAuth
// @Success 200 {object} response.StandardApiResponse
// @Router /bookings [get]
func (c *Controller) ListBookings(ctx *gin.Context) {
	identity, ok := middleware.GetIdentity(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	list, err := c.service.ListReservations(ctx.Request.Context(), identity.GuestID)
	if err != nil {
		c.respondError(ctx, err, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Bookings retrieved successfully", ToReservationResponses(list), nil)
}

// GetBooking godoc
// @Summary Get one of the caller's reservations
// @Tags bookings
// @Security BearerAuth
// @Param id path string true "reservation id"
// @Success 200 {object} response.StandardApiResponse
// @Failure 404 {object} response.StandardApiResponse
// @Router /bookings/{id} [get]
func (c *Controller) GetBooking(ctx *gin.Context) {
	identity, ok := middleware.GetIdentity(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	r, err := c.service.GetReservation(ctx.Request.Context(), identity.GuestID, ctx.Param("id"))
	if err != nil {
		c.respondError(ctx, err, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking retrieved successfully", ToReservationResponse(*r), nil)
}

// CancelBooking godoc
// @Summary Cancel one of the caller's reservations
// @Tags bookings
// @Security BearerAuth
// @Param id path string true "reservation id"
// @Success 200 {object} response.StandardApiResponse
// @Router /bookings/{id}/cancel [post]
func (c *Controller) CancelBooking(ctx *gin.Context) {
	identity, ok := middleware.GetIdentity(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	r, err := c.service.Cancel(ctx.Request.Context(), identity.GuestID, ctx.Param("id"))
	if err != nil {
		c.respondError(ctx, err, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Booking cancelled successfully", ToReservationResponse(*r), nil)
}

// SweepExpired godoc
// @Summary Expire lapsed holds now
// @Tags admin
// @Security BearerAuth
// @Param sweep body SweepRequest false "optional sweep instant"
// @Success 200 {object} response.StandardApiResponse
// @Router /admin/reservations/sweep [post]
func (c *Controller) SweepExpired(ctx *gin.Context) {
	var req SweepRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
			return
		}
	}

	now := c.clock.Now()
	if req.Now != "" {
		parsed, err := time.Parse(time.RFC3339, req.Now)
		if err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "now must be an RFC3339 timestamp", nil, err.Error())
			return
		}
		now = parsed.UTC()
	}

	expired, err := c.service.SweepExpired(ctx.Request.Context(), now)
	if err != nil {
		c.respondError(ctx, err, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Sweep completed", SweepResponse{Expired: len(expired), SweptAt: now}, nil)
}

// ListRefunds godoc
// @Summary List settlements awaiting refund
// @Description Payments collected for reservations that did not stand (lapsed during settlement or cancelled after confirmation), oldest first
// @Tags admin
// @Security BearerAuth
// @Success 200 {object} response.StandardApiResponse
// @Router /admin/settlements/refunds [get]
func (c *Controller) ListRefunds(ctx *gin.Context) {
	due, err := c.service.ListRefundsDue(ctx.Request.Context())
	if err != nil {
		c.respondError(ctx, err, nil)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Refunds retrieved successfully", ToSettlementResponses(due), nil)
}

func (c *Controller) respondError(ctx *gin.Context, err error, data interface{}) {
	status := statusFor(err)
	middleware.RequestScoped(ctx, c.logger).LogHTTPError(ctx, err, status)
	response.RespondJSON(ctx, "error", status, err.Error(), data, nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRoomUnavailable), errors.Is(err, ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, ErrPaymentFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
