package bookings

type CreateBookingRequest struct {
	RoomID       string `json:"room_id" binding:"required,max=64"`
	CheckIn      string `json:"check_in" binding:"required,datetime=2006-01-02"`
	CheckOut     string `json:"check_out" binding:"required,datetime=2006-01-02"`
	PaymentToken string `json:"payment_token" binding:"required"`
}

type SweepRequest struct {
	// Optional RFC3339 instant; defaults to the server clock
	Now string `json:"now"`
}
