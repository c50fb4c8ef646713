package bookings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"staybook/internal/auth"
	"staybook/internal/payments"
	"staybook/internal/reservations"
	"staybook/internal/shared/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type bookingsEnv struct {
	*harness
	router *gin.Engine
	oracle *auth.JWTOracle
}

func newBookingsEnv(t *testing.T) *bookingsEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := newHarness(t)
	oracle := auth.NewJWTOracle(config.JWTConfig{Secret: "bookings-test-secret", Issuer: "staybook-test"})
	router := gin.New()
	SetupBookingRoutes(router.Group("/api/v1"), NewController(h.svc, h.clock), oracle)

	return &bookingsEnv{harness: h, router: router, oracle: oracle}
}

func (e *bookingsEnv) token(t *testing.T, guestID string, role auth.Role) string {
	t.Helper()
	tok, err := e.oracle.IssueAccessToken(auth.Identity{GuestID: guestID, Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

// bookingEnvelope mirrors StandardApiResponse with a typed payload
type bookingEnvelope[T any] struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Data       T      `json:"data"`
}

func doJSON[T any](t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, bookingEnvelope[T]) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp bookingEnvelope[T]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func bookingBody(room, checkIn, checkOut, token string) map[string]string {
	return map[string]string{
		"room_id":       room,
		"check_in":      checkIn,
		"check_out":     checkOut,
		"payment_token": token,
	}
}

func TestCreateBookingEndpoint(t *testing.T) {
	env := newBookingsEnv(t)
	env.settler.On("Settle", mock.Anything, "tok_visa", 200.0).Return("STL_HTTP", nil).Once()
	g1 := env.token(t, "G1", auth.RoleGuest)

	w, resp := doJSON[BookingResponse](t, env.router, http.MethodPost, "/api/v1/bookings", g1,
		bookingBody("R1", "2024-06-01", "2024-06-03", "tok_visa"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, StateConfirmed, resp.Data.State)
	assert.Equal(t, "STL_HTTP", resp.Data.SettlementID)
	assert.Equal(t, "2024-06-01", resp.Data.Reservation.CheckIn)
	assert.Equal(t, 2, resp.Data.Reservation.Nights)
	assert.Equal(t, "G1", resp.Data.Reservation.GuestID)

	// Overlapping request from another guest
	w, resp = doJSON[BookingResponse](t, env.router, http.MethodPost, "/api/v1/bookings", env.token(t, "G2", auth.RoleGuest),
		bookingBody("R1", "2024-06-02", "2024-06-04", "tok_visa"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "error", resp.Status)
}

func TestCreateBookingPaymentFailureReturnsRolledBackAttempt(t *testing.T) {
	env := newBookingsEnv(t)
	env.settler.On("Settle", mock.Anything, "tok_decline", 100.0).Return("", payments.ErrDeclined).Once()

	w, resp := doJSON[BookingResponse](t, env.router, http.MethodPost, "/api/v1/bookings", env.token(t, "G1", auth.RoleGuest),
		bookingBody("R1", "2024-06-01", "2024-06-02", "tok_decline"))
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, StateRolledBack, resp.Data.State)
	assert.Equal(t, string(reservations.StatusReleased), resp.Data.Reservation.Status)
}

func TestCreateBookingRejectsBadInput(t *testing.T) {
	env := newBookingsEnv(t)
	tok := env.token(t, "G1", auth.RoleGuest)

	cases := []struct {
		name string
		body interface{}
		code int
	}{
		{"missing token", bookingBody("R1", "2024-06-01", "2024-06-02", ""), http.StatusBadRequest},
		{"bad date", bookingBody("R1", "06/01/2024", "2024-06-02", "tok"), http.StatusBadRequest},
		{"empty range", bookingBody("R1", "2024-06-02", "2024-06-02", "tok"), http.StatusBadRequest},
		{"unknown room", bookingBody("R404", "2024-06-01", "2024-06-02", "tok"), http.StatusNotFound},
		{"inactive room", bookingBody("R3", "2024-06-01", "2024-06-02", "tok"), http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, _ := doJSON[json.RawMessage](t, env.router, http.MethodPost, "/api/v1/bookings", tok, tc.body)
			assert.Equal(t, tc.code, w.Code)
		})
	}
	env.settler.AssertNotCalled(t, "Settle", mock.Anything, mock.Anything, mock.Anything)
}

func TestBookingEndpointsRequireAuthentication(t *testing.T) {
	env := newBookingsEnv(t)

	w, _ := doJSON[json.RawMessage](t, env.router, http.MethodGet, "/api/v1/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = doJSON[json.RawMessage](t, env.router, http.MethodPost, "/api/v1/admin/reservations/sweep", env.token(t, "G1", auth.RoleGuest), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetListAndCancelEndpoints(t *testing.T) {
	env := newBookingsEnv(t)
	env.settler.On("Settle", mock.Anything, "tok_visa", 100.0).Return("STL_1", nil).Once()
	g1 := env.token(t, "G1", auth.RoleGuest)
	g2 := env.token(t, "G2", auth.RoleGuest)

	_, created := doJSON[BookingResponse](t, env.router, http.MethodPost, "/api/v1/bookings", g1,
		bookingBody("R1", "2024-06-01", "2024-06-02", "tok_visa"))
	id := created.Data.Reservation.ID
	require.NotEmpty(t, id)

	w, list := doJSON[[]ReservationResponse](t, env.router, http.MethodGet, "/api/v1/bookings", g1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, list.Data, 1)
	assert.Equal(t, id, list.Data[0].ID)

	w, _ = doJSON[json.RawMessage](t, env.router, http.MethodGet, "/api/v1/bookings/"+id, g2, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, got := doJSON[ReservationResponse](t, env.router, http.MethodGet, "/api/v1/bookings/"+id, g1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(reservations.StatusConfirmed), got.Data.Status)

	w, cancelled := doJSON[ReservationResponse](t, env.router, http.MethodPost, "/api/v1/bookings/"+id+"/cancel", g1, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(reservations.StatusReleased), cancelled.Data.Status)
}

func TestSweepEndpoint(t *testing.T) {
	env := newBookingsEnv(t)
	admin := env.token(t, "ops", auth.RoleAdmin)

	_, err := env.ledger.CreateHold(t.Context(), "R1", reservations.MustDateRange("2024-06-01", "2024-06-02"), "G1", 15*time.Minute)
	require.NoError(t, err)

	// Server clock has not moved, nothing lapses
	w, resp := doJSON[SweepResponse](t, env.router, http.MethodPost, "/api/v1/admin/reservations/sweep", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, resp.Data.Expired)

	w, _ = doJSON[json.RawMessage](t, env.router, http.MethodPost, "/api/v1/admin/reservations/sweep", admin, map[string]string{"now": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	at := bookingEpoch.Add(time.Hour).Format(time.RFC3339)
	w, resp = doJSON[SweepResponse](t, env.router, http.MethodPost, "/api/v1/admin/reservations/sweep", admin, map[string]string{"now": at})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, resp.Data.Expired)
}

func TestListRefundsEndpoint(t *testing.T) {
	env := newBookingsEnv(t)
	env.settler.On("Settle", mock.Anything, "tok_visa", 100.0).Return("STL_R", nil).Once()
	g1 := env.token(t, "G1", auth.RoleGuest)
	admin := env.token(t, "ops", auth.RoleAdmin)

	w, _ := doJSON[json.RawMessage](t, env.router, http.MethodGet, "/api/v1/admin/settlements/refunds", g1, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, empty := doJSON[[]SettlementResponse](t, env.router, http.MethodGet, "/api/v1/admin/settlements/refunds", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, empty.Data)

	_, created := doJSON[BookingResponse](t, env.router, http.MethodPost, "/api/v1/bookings", g1,
		bookingBody("R1", "2024-06-01", "2024-06-02", "tok_visa"))
	id := created.Data.Reservation.ID
	w, _ = doJSON[ReservationResponse](t, env.router, http.MethodPost, "/api/v1/bookings/"+id+"/cancel", g1, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, due := doJSON[[]SettlementResponse](t, env.router, http.MethodGet, "/api/v1/admin/settlements/refunds", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, due.Data, 1)
	assert.Equal(t, "STL_R", due.Data[0].ID)
	assert.Equal(t, id, due.Data[0].ReservationID)
	assert.Equal(t, "cancelled by guest", due.Data[0].Reason)
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		ErrRoomNotFound:          http.StatusNotFound,
		ErrRoomUnavailable:       http.StatusConflict,
		ErrPaymentFailed:         http.StatusPaymentRequired,
		ErrInvalidRequest:        http.StatusBadRequest,
		ErrServiceUnavailable:    http.StatusServiceUnavailable,
		context.DeadlineExceeded: http.StatusGatewayTimeout,
		assert.AnError:           http.StatusInternalServerError,
	}
	for err, code := range cases {
		assert.Equal(t, code, statusFor(fmt.Errorf("wrapped: %w", err)), err.Error())
	}
}
