package bookings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"staybook/internal/notifications"
	"staybook/internal/payments"
	"staybook/internal/reservations"
	"staybook/internal/rooms"
	"staybook/internal/shared/config"
	"staybook/pkg/logger"

	"github.com/cenkalti/backoff/v5"
)

// RoomCatalog is the slice of the inventory store the coordinator reads
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (*rooms.Room, error)
}

// EventPublisher receives reservation outcomes
type EventPublisher interface {
	PublishBookingEvent(ctx context.Context, event *notifications.BookingEvent) error
}

// Options is the coordinator's hold and settlement policy
type Options struct {
	HoldTTL             time.Duration
	PaymentTimeout      time.Duration
	PaymentMaxAttempts  int
	PaymentRetryBackoff time.Duration
	Currency            string
	// Bounds the release and confirm steps that run detached from the caller
	FinalizeTimeout time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		HoldTTL:             cfg.Booking.HoldTTL,
		PaymentTimeout:      cfg.Booking.PaymentTimeout,
		PaymentMaxAttempts:  cfg.Booking.PaymentMaxAttempts,
		PaymentRetryBackoff: cfg.Booking.PaymentRetryBackoff,
		Currency:            cfg.Payment.Currency,
	}
}

func (o Options) withDefaults() Options {
	if o.HoldTTL <= 0 {
		o.HoldTTL = 15 * time.Minute
	}
	if o.PaymentTimeout <= 0 {
		o.PaymentTimeout = 10 * time.Second
	}
	if o.PaymentMaxAttempts <= 0 {
		o.PaymentMaxAttempts = 3
	}
	if o.PaymentRetryBackoff <= 0 {
		o.PaymentRetryBackoff = 200 * time.Millisecond
	}
	if o.Currency == "" {
		o.Currency = "USD"
	}
	if o.FinalizeTimeout <= 0 {
		o.FinalizeTimeout = 30 * time.Second
	}
	return o
}

// Service coordinates a booking attempt across the ledger and the payment collaborator
type Service interface {
	Book(ctx context.Context, req BookingRequest) (*BookingResult, error)
	Cancel(ctx context.Context, guestID, reservationID string) (*reservations.Reservation, error)
	GetReservation(ctx context.Context, guestID, reservationID string) (*reservations.Reservation, error)
	ListReservations(ctx context.Context, guestID string) ([]reservations.Reservation, error)
	SweepExpired(ctx context.Context, now time.Time) ([]reservations.Reservation, error)
	ListRefundsDue(ctx context.Context) ([]payments.Settlement, error)
	SetEventPublisher(publisher EventPublisher)
}

type service struct {
	catalog     RoomCatalog
	ledger      reservations.Ledger
	settler     payments.Settler
	settlements payments.Repository
	publisher   EventPublisher
	opts        Options
	logger      *logger.Logger
}

// NewService builds the coordinator and registers it as the ledger's expiry
// observer, so holds expired by CreateHold or Confirm are announced too.
func NewService(catalog RoomCatalog, ledger reservations.Ledger, settler payments.Settler, settlements payments.Repository, opts Options) Service {
	s := &service{
		catalog:     catalog,
		ledger:      ledger,
		settler:     settler,
		settlements: settlements,
		opts:        opts.withDefaults(),
		logger:      logger.GetDefault(),
	}
	ledger.SetExpiryObserver(s.announceExpired)
	return s
}

// SetEventPublisher sets the booking event sink for dependency injection
func (s *service) SetEventPublisher(publisher EventPublisher) {
	s.publisher = publisher
}

// Book runs Requested -> Held -> {Confirmed | RolledBack}. A caller never
// sees StateConfirmed unless a settlement was recorded for the reservation.
func (s *service) Book(ctx context.Context, req BookingRequest) (*BookingResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "Booking requested",
		"state", StateRequested,
		"room_id", req.RoomID,
		"guest_id", req.GuestID,
		"stay", req.Stay.String(),
	)

	room, err := s.catalog.GetRoom(ctx, req.RoomID)
	if err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, req.RoomID)
		}
		return nil, s.unavailable(ctx, "Room lookup failed", err)
	}
	if !room.Active {
		return nil, fmt.Errorf("%w: room %s is not accepting bookings", ErrRoomUnavailable, room.ID)
	}

	// Requested -> Held
	hold, err := s.ledger.CreateHold(ctx, room.ID, req.Stay, req.GuestID, s.opts.HoldTTL)
	if err != nil {
		if errors.Is(err, reservations.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, req.RoomID)
		}
		return nil, s.translateLedgerError(ctx, err)
	}
	s.logger.LogHoldCreated(ctx, hold.ID, hold.RoomID, hold.GuestID, hold.HoldExpiresAt)

	result := &BookingResult{
		Reservation: hold,
		State:       StateHeld,
		Amount:      totalFor(req.Stay, room.NightlyPrice),
	}

	settlementID, err := s.settle(ctx, hold, req.PaymentToken, result.Amount)
	if err != nil {
		s.rollback(ctx, result, err)
		return result, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	// The guest has been charged; finish even if the caller goes away
	finalizeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FinalizeTimeout)
	defer cancel()

	settlement := &payments.Settlement{
		ID:            settlementID,
		ReservationID: hold.ID,
		GuestID:       hold.GuestID,
		Amount:        result.Amount,
		Currency:      s.opts.Currency,
		Status:        payments.StatusCompleted,
	}
	if err := s.settlements.Create(finalizeCtx, settlement); err != nil {
		s.logger.ErrorWithContext(ctx, "Settlement could not be recorded; charge needs manual refund", err, map[string]interface{}{
			"reservation_id": hold.ID,
			"settlement_id":  settlementID,
			"amount":         result.Amount,
		})
		s.rollback(ctx, result, err)
		return result, fmt.Errorf("%w: settlement could not be recorded: %v", ErrServiceUnavailable, err)
	}
	result.SettlementID = settlementID

	// Held -> Confirmed
	confirmed, err := s.ledger.Confirm(finalizeCtx, hold.ID, reservations.SettlementProof{ID: settlementID, Amount: result.Amount})
	if err != nil {
		if markErr := s.settlements.MarkRefundRequired(finalizeCtx, settlementID, err.Error()); markErr != nil {
			s.logger.ErrorWithContext(ctx, "Failed to flag settlement for refund", markErr, map[string]interface{}{
				"settlement_id": settlementID,
			})
		}
		s.rollback(ctx, result, err)
		if errors.Is(err, reservations.ErrInvalidState) {
			return result, fmt.Errorf("%w: hold lapsed before confirmation: %w", ErrPaymentFailed, err)
		}
		return result, fmt.Errorf("%w: %w", ErrPaymentFailed, s.translateLedgerError(ctx, err))
	}

	result.Reservation = confirmed
	result.State = StateConfirmed
	s.logger.LogBookingConfirmed(ctx, confirmed.ID, confirmed.RoomID, settlementID, result.Amount)
	s.publish(finalizeCtx, newEvent(notifications.EventReservationConfirmed, confirmed))

	return result, nil
}

// settle charges the token with a per-attempt timeout. Transport errors are
// retried with exponential backoff; declines and timeouts are final.
func (s *service) settle(ctx context.Context, hold reservations.Reservation, token string, amount float64) (string, error) {
	attempt := 0
	operation := func() (string, error) {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.PaymentTimeout)
		defer cancel()

		settlementID, err := s.settler.Settle(attemptCtx, token, amount)
		switch {
		case err == nil:
			return settlementID, nil
		case errors.Is(err, payments.ErrTransport):
			return "", err
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			return "", backoff.Permanent(fmt.Errorf("settlement timed out after %s: %w", s.opts.PaymentTimeout, err))
		default:
			return "", backoff.Permanent(err)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.opts.PaymentRetryBackoff
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.1
	policy.MaxInterval = 5 * time.Second
	policy.Reset()

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(s.opts.PaymentMaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.logger.WarnContext(ctx, "Retrying payment settlement",
				"reservation_id", hold.ID,
				"attempt", attempt,
				"retry_in", next.String(),
				"error", err.Error(),
			)
		}),
	)
}

// rollback releases the hold with a context detached from the caller. If the
// release itself fails, hold expiry plus the sweeper reclaims the room.
func (s *service) rollback(ctx context.Context, result *BookingResult, cause error) {
	result.State = StateRolledBack

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FinalizeTimeout)
	defer cancel()

	released, err := s.ledger.Release(releaseCtx, result.Reservation.ID)
	if err != nil {
		s.logger.ErrorWithContext(ctx, "Hold release failed; expiry will reclaim it", err, map[string]interface{}{
			"reservation_id":  result.Reservation.ID,
			"hold_expires_at": result.Reservation.HoldExpiresAt,
		})
		return
	}

	before := result.Reservation.Status
	result.Reservation = released
	s.logger.LogBookingRolledBack(ctx, released.ID, released.RoomID, cause)
	// An expired hold was announced by whichever path expired it
	if released.Status == reservations.StatusReleased && before != reservations.StatusReleased {
		s.publish(releaseCtx, newEvent(notifications.EventReservationReleased, released))
	}
}

// Cancel releases a reservation the guest owns. Releasing a confirmed
// reservation flags its settlement for refund.
func (s *service) Cancel(ctx context.Context, guestID, reservationID string) (*reservations.Reservation, error) {
	current, err := s.owned(ctx, guestID, reservationID)
	if err != nil {
		return nil, err
	}

	released, err := s.ledger.Release(ctx, reservationID)
	if err != nil {
		return nil, s.translateLedgerError(ctx, err)
	}

	if !current.Status.IsTerminal() && released.Status == reservations.StatusReleased {
		s.logger.LogBookingCancelled(ctx, released.ID, released.RoomID, guestID)
		if released.SettlementID != "" {
			if err := s.settlements.MarkRefundRequired(ctx, released.SettlementID, "cancelled by guest"); err != nil {
				s.logger.ErrorWithContext(ctx, "Failed to flag settlement for refund", err, map[string]interface{}{
					"reservation_id": released.ID,
					"settlement_id":  released.SettlementID,
				})
			}
		}
		s.publish(ctx, newEvent(notifications.EventReservationReleased, released))
	}

	return &released, nil
}

func (s *service) GetReservation(ctx context.Context, guestID, reservationID string) (*reservations.Reservation, error) {
	r, err := s.owned(ctx, guestID, reservationID)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *service) ListReservations(ctx context.Context, guestID string) ([]reservations.Reservation, error) {
	if guestID == "" {
		return nil, fmt.Errorf("%w: guest id is required", ErrInvalidRequest)
	}
	list, err := s.ledger.ListByGuest(ctx, guestID)
	if err != nil {
		return nil, s.translateLedgerError(ctx, err)
	}
	return list, nil
}

// SweepExpired expires lapsed holds and announces each one
func (s *service) SweepExpired(ctx context.Context, now time.Time) ([]reservations.Reservation, error) {
	expired, err := s.ledger.SweepExpired(ctx, now)
	s.announceExpired(ctx, expired)
	if err != nil {
		return expired, s.translateLedgerError(ctx, err)
	}
	return expired, nil
}

// ListRefundsDue returns collected payments whose reservation did not stand,
// oldest first, for the operator to refund.
func (s *service) ListRefundsDue(ctx context.Context) ([]payments.Settlement, error) {
	due, err := s.settlements.ListRefundRequired(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, s.unavailable(ctx, "Settlement store unavailable", err)
	}
	return due, nil
}

func (s *service) announceExpired(ctx context.Context, expired []reservations.Reservation) {
	for _, r := range expired {
		s.publish(ctx, newEvent(notifications.EventReservationExpired, r))
	}
}

// owned hides reservations belonging to other guests behind ErrNotFound
func (s *service) owned(ctx context.Context, guestID, reservationID string) (reservations.Reservation, error) {
	r, err := s.ledger.Get(ctx, reservationID)
	if err != nil {
		return reservations.Reservation{}, s.translateLedgerError(ctx, err)
	}
	if r.GuestID != guestID {
		return reservations.Reservation{}, fmt.Errorf("%w: %s", ErrNotFound, reservationID)
	}
	return r, nil
}

func (s *service) publish(ctx context.Context, event *notifications.BookingEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishBookingEvent(ctx, event); err != nil {
		s.logger.ErrorWithContext(ctx, "Failed to publish booking event", err, map[string]interface{}{
			"type":           string(event.Type),
			"reservation_id": event.ReservationID,
		})
	}
}

func (s *service) translateLedgerError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, reservations.ErrConflict):
		return fmt.Errorf("%w: %w", ErrRoomUnavailable, err)
	case errors.Is(err, reservations.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, reservations.ErrInvalidState):
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	case errors.Is(err, reservations.ErrInvalidRange), errors.Is(err, reservations.ErrInvalidRequest):
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return s.unavailable(ctx, "Reservation ledger unavailable", err)
	}
}

func (s *service) unavailable(ctx context.Context, msg string, err error) error {
	s.logger.ErrorWithContext(ctx, msg, err, nil)
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}

func validateRequest(req BookingRequest) error {
	if req.RoomID == "" {
		return fmt.Errorf("%w: room id is required", ErrInvalidRequest)
	}
	if req.GuestID == "" {
		return fmt.Errorf("%w: guest id is required", ErrInvalidRequest)
	}
	if req.PaymentToken == "" {
		return fmt.Errorf("%w: payment token is required", ErrInvalidRequest)
	}
	if err := req.Stay.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// totalFor prices a stay at nights x nightly price, rounded to cents
func totalFor(stay reservations.DateRange, nightlyPrice float64) float64 {
	return math.Round(float64(stay.Nights())*nightlyPrice*100) / 100
}

func newEvent(eventType notifications.EventType, r reservations.Reservation) *notifications.BookingEvent {
	event := notifications.NewBookingEvent(eventType, r.ID, r.RoomID, r.GuestID).
		WithStay(r.CheckIn.Format(reservations.DateLayout), r.CheckOut.Format(reservations.DateLayout))
	if r.SettlementID != "" {
		event.WithSettlement(r.SettlementID, r.Amount)
	}
	return event
}
