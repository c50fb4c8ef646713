package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"staybook/pkg/logger"

	"github.com/IBM/sarama"
)

// EventHandler reacts to a consumed booking event
type EventHandler interface {
	HandleBookingEvent(ctx context.Context, event *BookingEvent) error
}

// HandlerFunc adapts a function to EventHandler
type HandlerFunc func(ctx context.Context, event *BookingEvent) error

func (f HandlerFunc) HandleBookingEvent(ctx context.Context, event *BookingEvent) error {
	return f(ctx, event)
}

type Consumer interface {
	StartConsumers(ctx context.Context, numWorkers int) error
	Stop() error
	HealthCheck(ctx context.Context) error
}

type ConsumerConfig struct {
	Brokers              []string
	GroupID              string
	Topics               []string
	SessionTimeoutMs     int
	HeartbeatMs          int
	RetryBackoffMs       int
	MaxProcessingTime    time.Duration
	AutoCommit           bool
	OffsetOldest         bool
	MaxRetries           int
	RetryBackoffDuration time.Duration
}

func DefaultConsumerConfig() *ConsumerConfig {
	return &ConsumerConfig{
		Brokers:              []string{"localhost:9092"},
		GroupID:              "staybook-notification-workers",
		Topics:               []string{"booking-events"},
		SessionTimeoutMs:     30000,
		HeartbeatMs:          3000,
		RetryBackoffMs:       100,
		MaxProcessingTime:    time.Minute,
		AutoCommit:           true,
		OffsetOldest:         false,
		MaxRetries:           3,
		RetryBackoffDuration: time.Second,
	}
}

type KafkaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        *ConsumerConfig
	handler       EventHandler
	logger        *logger.Logger
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

func NewKafkaConsumer(config *ConsumerConfig, handler EventHandler) (*KafkaConsumer, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Consumer.Group.Session.Timeout = time.Duration(config.SessionTimeoutMs) * time.Millisecond
	saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(config.HeartbeatMs) * time.Millisecond
	saramaConfig.Consumer.Retry.Backoff = time.Duration(config.RetryBackoffMs) * time.Millisecond
	saramaConfig.Consumer.MaxProcessingTime = config.MaxProcessingTime
	saramaConfig.Consumer.Return.Errors = true

	if config.OffsetOldest {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	}

	if config.AutoCommit {
		saramaConfig.Consumer.Offsets.AutoCommit.Enable = true
		saramaConfig.Consumer.Offsets.AutoCommit.Interval = 1 * time.Second
	}

	consumerGroup, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &KafkaConsumer{
		consumerGroup: consumerGroup,
		config:        config,
		handler:       handler,
		logger:        logger.GetDefault(),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func (kc *KafkaConsumer) StartConsumers(ctx context.Context, numWorkers int) error {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	kc.logger.Info("Starting booking event consumers", "workers", numWorkers, "topics", kc.config.Topics)

	go kc.handleErrors()

	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		<-kc.ctx.Done()
		cancel()
	}()

	for i := 0; i < numWorkers; i++ {
		kc.wg.Add(1)
		go func(workerID int) {
			defer kc.wg.Done()
			kc.runWorker(runCtx, workerID)
		}(i)
	}
	return nil
}

func (kc *KafkaConsumer) runWorker(ctx context.Context, workerID int) {
	handler := newGroupHandler(kc.handler, workerID, kc.config.MaxRetries, kc.config.RetryBackoffDuration, kc.logger)

	for {
		select {
		case <-ctx.Done():
			kc.logger.Info("Booking event worker shutting down", "worker", workerID)
			return
		default:
			if err := kc.consumerGroup.Consume(ctx, kc.config.Topics, handler); err != nil {
				kc.logger.Error("Booking event worker consume failed", "worker", workerID, "error", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (kc *KafkaConsumer) handleErrors() {
	for err := range kc.consumerGroup.Errors() {
		kc.logger.Error("Consumer group error", "error", err)
	}
}

func (kc *KafkaConsumer) Stop() error {
	kc.logger.Info("Stopping booking event consumer")
	kc.cancel()
	kc.wg.Wait()

	if err := kc.consumerGroup.Close(); err != nil {
		return fmt.Errorf("failed to close consumer group: %w", err)
	}
	return nil
}

func (kc *KafkaConsumer) HealthCheck(ctx context.Context) error {
	select {
	case <-kc.ctx.Done():
		return fmt.Errorf("consumer context is cancelled")
	default:
		if kc.handler == nil {
			return fmt.Errorf("event handler not configured")
		}
		return nil
	}
}

// groupHandler implements sarama.ConsumerGroupHandler
type groupHandler struct {
	handler    EventHandler
	workerID   int
	maxRetries int
	backoff    time.Duration
	logger     *logger.Logger
}

func newGroupHandler(handler EventHandler, workerID, maxRetries int, backoff time.Duration, log *logger.Logger) *groupHandler {
	return &groupHandler{
		handler:    handler,
		workerID:   workerID,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     log,
	}
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Debug("Consumer group session started", "worker", h.workerID)
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Debug("Consumer group session ended", "worker", h.workerID)
	return nil
}

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			if err := h.processMessage(session.Context(), message); err != nil {
				h.logger.Error("Booking event processing failed", "worker", h.workerID, "offset", message.Offset, "error", err)
				continue
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// processMessage decodes one message and hands it to the handler. Malformed
// payloads are dropped, not retried.
func (h *groupHandler) processMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	event, err := FromJSON(message.Value)
	if err != nil {
		h.logger.Warn("Dropping malformed booking event", "topic", message.Topic, "offset", message.Offset, "error", err)
		return nil
	}
	if !IsValidEventType(event.Type) {
		h.logger.Warn("Dropping unknown booking event type", "type", string(event.Type))
		return nil
	}
	return h.executeWithRetry(ctx, event)
}

func (h *groupHandler) executeWithRetry(ctx context.Context, event *BookingEvent) error {
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		err := h.handler.HandleBookingEvent(ctx, event)
		if err == nil {
			return nil
		}

		if attempt == h.maxRetries {
			return fmt.Errorf("handler failed after %d attempts: %w", attempt+1, err)
		}

		// Exponential backoff
		delay := h.backoff * time.Duration(1<<attempt)
		h.logger.Warn("Retrying booking event", "worker", h.workerID, "attempt", attempt+1, "delay", delay.String(), "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// GuestNotifier turns booking events into guest-facing notices in the log
type GuestNotifier struct {
	logger *logger.Logger
}

func NewGuestNotifier(log *logger.Logger) *GuestNotifier {
	if log == nil {
		log = logger.GetDefault()
	}
	return &GuestNotifier{logger: log}
}

func (n *GuestNotifier) HandleBookingEvent(ctx context.Context, event *BookingEvent) error {
	n.logger.InfoContext(ctx, "Guest notified",
		"guest_id", event.GuestID,
		"reservation_id", event.ReservationID,
		"subject", Subject(event),
	)
	return nil
}

// Subject renders the one-line notice a guest sees for an event
func Subject(event *BookingEvent) string {
	switch event.Type {
	case EventReservationConfirmed:
		return fmt.Sprintf("Booking confirmed: room %s, %s to %s", event.RoomID, event.CheckIn, event.CheckOut)
	case EventReservationReleased:
		return fmt.Sprintf("Booking cancelled: room %s, %s to %s", event.RoomID, event.CheckIn, event.CheckOut)
	case EventReservationExpired:
		return fmt.Sprintf("Hold expired: room %s, %s to %s", event.RoomID, event.CheckIn, event.CheckOut)
	default:
		return "Booking update"
	}
}
