package payments

import (
	"time"
)

const (
	StatusCompleted      = "COMPLETED"
	StatusRefundRequired = "REFUND_REQUIRED"
)

// Settlement is the durable proof that a reservation's payment was collected
type Settlement struct {
	ID            string    `gorm:"type:varchar(128);primaryKey" json:"id"`
	ReservationID string    `gorm:"type:varchar(64);index;not null" json:"reservation_id"`
	GuestID       string    `gorm:"type:varchar(128);index;not null" json:"guest_id"`
	Amount        float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency      string    `gorm:"type:varchar(3);not null" json:"currency"`
	Status        string    `gorm:"type:varchar(20);not null;check:status IN ('COMPLETED', 'REFUND_REQUIRED')" json:"status"`
	FailureReason string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName sets the table name for Settlement
func (Settlement) TableName() string {
	return "settlements"
}

func (s *Settlement) NeedsRefund() bool {
	return s.Status == StatusRefundRequired
}

func (s *Settlement) MarkRefundRequired(reason string) {
	s.Status = StatusRefundRequired
	s.FailureReason = reason
	s.UpdatedAt = time.Now().UTC()
}
