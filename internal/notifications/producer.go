package notifications

import (
	"context"
	"fmt"
	"time"

	"staybook/pkg/logger"

	"github.com/IBM/sarama"
)

// Producer publishes booking events
type Producer interface {
	PublishBookingEvent(ctx context.Context, event *BookingEvent) error
	Close() error
	HealthCheck(ctx context.Context) error
}

// KafkaProducerConfig contains configuration for the Kafka booking event producer
type KafkaProducerConfig struct {
	Brokers          []string
	Topic            string
	RetryMax         int
	TimeoutMs        int
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

// DefaultKafkaProducerConfig returns a default producer configuration
func DefaultKafkaProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          []string{"localhost:9092"},
		Topic:            "booking-events",
		RetryMax:         3,
		TimeoutMs:        10000,             // 10 seconds
		RequiredAcks:     sarama.WaitForAll, // Wait for all in-sync replicas
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000, // 1MB
	}
}

// NewSaramaConfig translates the producer config into sarama settings
func (c *KafkaProducerConfig) NewSaramaConfig() *sarama.Config {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = c.RequiredAcks
	saramaConfig.Producer.Compression = c.CompressionType
	saramaConfig.Producer.Retry.Max = c.RetryMax
	saramaConfig.Producer.Timeout = time.Duration(c.TimeoutMs) * time.Millisecond
	saramaConfig.Producer.Idempotent = c.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = c.MaxMessageBytes

	// Idempotent producers require a single in-flight request
	if c.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}

	// Hash partitioner keeps a room's events ordered
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner
	return saramaConfig
}

// KafkaProducer handles publishing booking events to Kafka
type KafkaProducer struct {
	producer sarama.SyncProducer
	config   *KafkaProducerConfig
	logger   *logger.Logger
}

// NewKafkaProducer connects to the brokers and creates a sync producer
func NewKafkaProducer(config *KafkaProducerConfig) (*KafkaProducer, error) {
	producer, err := sarama.NewSyncProducer(config.Brokers, config.NewSaramaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	logger.GetDefault().Info("Kafka booking event producer created", "brokers", config.Brokers, "topic", config.Topic)
	return NewKafkaProducerWithClient(producer, config), nil
}

// NewKafkaProducerWithClient wraps an existing sarama producer
func NewKafkaProducerWithClient(producer sarama.SyncProducer, config *KafkaProducerConfig) *KafkaProducer {
	return &KafkaProducer{
		producer: producer,
		config:   config,
		logger:   logger.GetDefault(),
	}
}

// PublishBookingEvent publishes a single event keyed by room id
func (p *KafkaProducer) PublishBookingEvent(ctx context.Context, event *BookingEvent) error {
	messageBytes, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal booking event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     p.config.Topic,
		Key:       sarama.StringEncoder(event.GetPartitionKey()),
		Value:     sarama.ByteEncoder(messageBytes),
		Headers:   p.createHeaders(event),
		Timestamp: event.OccurredAt,
	}

	partition, offset, err := p.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send booking event to Kafka: %w", err)
	}

	p.logger.DebugContext(ctx, "Booking event published",
		"topic", p.config.Topic,
		"partition", partition,
		"offset", offset,
		"type", string(event.Type),
		"reservation_id", event.ReservationID,
	)
	return nil
}

// createHeaders creates Kafka headers for booking events
func (p *KafkaProducer) createHeaders(event *BookingEvent) []sarama.RecordHeader {
	return []sarama.RecordHeader{
		{Key: []byte("event_id"), Value: []byte(event.ID.String())},
		{Key: []byte("event_type"), Value: []byte(event.Type)},
		{Key: []byte("reservation_id"), Value: []byte(event.ReservationID)},
		{Key: []byte("room_id"), Value: []byte(event.RoomID)},
		{Key: []byte("version"), Value: []byte("1.0")},
		{Key: []byte("producer"), Value: []byte("staybook-bookings")},
		{Key: []byte("occurred_at"), Value: []byte(event.OccurredAt.Format(time.RFC3339))},
	}
}

// Close closes the Kafka producer
func (p *KafkaProducer) Close() error {
	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			return fmt.Errorf("failed to close Kafka producer: %w", err)
		}
		p.logger.Info("Kafka booking event producer closed")
	}
	return nil
}

// HealthCheck validates the producer configuration
func (p *KafkaProducer) HealthCheck(ctx context.Context) error {
	if p.producer == nil {
		return fmt.Errorf("health check failed - producer is nil")
	}
	if p.config.Topic == "" {
		return fmt.Errorf("health check failed - booking topic not configured")
	}
	return nil
}

// LogProducer records events in the application log. Used when Kafka is disabled.
type LogProducer struct {
	logger *logger.Logger
}

func NewLogProducer(log *logger.Logger) *LogProducer {
	if log == nil {
		log = logger.GetDefault()
	}
	return &LogProducer{logger: log}
}

func (p *LogProducer) PublishBookingEvent(ctx context.Context, event *BookingEvent) error {
	p.logger.InfoContext(ctx, "Booking event",
		"type", string(event.Type),
		"reservation_id", event.ReservationID,
		"room_id", event.RoomID,
		"guest_id", event.GuestID,
		"check_in", event.CheckIn,
		"check_out", event.CheckOut,
	)
	return nil
}

func (p *LogProducer) Close() error { return nil }

func (p *LogProducer) HealthCheck(ctx context.Context) error { return nil }
