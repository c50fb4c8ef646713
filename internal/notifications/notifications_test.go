package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"staybook/pkg/logger"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func confirmedEvent() *BookingEvent {
	return NewBookingEvent(EventReservationConfirmed, "res-1", "R1", "G1").
		WithStay("2024-06-01", "2024-06-03").
		WithSettlement("STL_1", 200)
}

func TestKafkaProducerPublishesEvent(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var decoded BookingEvent
		if err := json.Unmarshal(val, &decoded); err != nil {
			return err
		}
		if decoded.Type != EventReservationConfirmed || decoded.ReservationID != "res-1" {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	cfg := DefaultKafkaProducerConfig()
	producer := NewKafkaProducerWithClient(sp, cfg)

	require.NoError(t, producer.PublishBookingEvent(context.Background(), confirmedEvent()))
	require.NoError(t, producer.HealthCheck(context.Background()))
	require.NoError(t, producer.Close())
}

func TestKafkaProducerSurfacesSendFailure(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewKafkaProducerWithClient(sp, DefaultKafkaProducerConfig())

	err := producer.PublishBookingEvent(context.Background(), confirmedEvent())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

func TestEventRoundTripsThroughJSON(t *testing.T) {
	in := confirmedEvent()
	data, err := in.ToJSON()
	require.NoError(t, err)

	out, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.SettlementID, out.SettlementID)
	assert.True(t, in.OccurredAt.Equal(out.OccurredAt))
	assert.Equal(t, "R1", out.GetPartitionKey())
}

func TestGroupHandlerRetriesThenSucceeds(t *testing.T) {
	calls := 0
	handler := HandlerFunc(func(ctx context.Context, event *BookingEvent) error {
		calls++
		if calls < 3 {
			return errors.New("downstream busy")
		}
		return nil
	})
	h := newGroupHandler(handler, 0, 3, time.Millisecond, logger.Discard())

	data, err := confirmedEvent().ToJSON()
	require.NoError(t, err)

	require.NoError(t, h.processMessage(context.Background(), &sarama.ConsumerMessage{Value: data}))
	assert.Equal(t, 3, calls)
}

func TestGroupHandlerGivesUp(t *testing.T) {
	calls := 0
	handler := HandlerFunc(func(ctx context.Context, event *BookingEvent) error {
		calls++
		return errors.New("downstream down")
	})
	h := newGroupHandler(handler, 0, 2, time.Millisecond, logger.Discard())

	data, err := confirmedEvent().ToJSON()
	require.NoError(t, err)

	assert.Error(t, h.processMessage(context.Background(), &sarama.ConsumerMessage{Value: data}))
	assert.Equal(t, 3, calls)
}

func TestGroupHandlerDropsMalformedPayloads(t *testing.T) {
	called := false
	handler := HandlerFunc(func(ctx context.Context, event *BookingEvent) error {
		called = true
		return nil
	})
	h := newGroupHandler(handler, 0, 3, time.Millisecond, logger.Discard())

	assert.NoError(t, h.processMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte("{oops")}))
	assert.NoError(t, h.processMessage(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"type":"room.painted"}`)}))
	assert.False(t, called)
}

func TestSubject(t *testing.T) {
	e := confirmedEvent()
	assert.Equal(t, "Booking confirmed: room R1, 2024-06-01 to 2024-06-03", Subject(e))

	e.Type = EventReservationExpired
	assert.Contains(t, Subject(e), "Hold expired")

	assert.NoError(t, NewGuestNotifier(logger.Discard()).HandleBookingEvent(context.Background(), e))
	assert.NoError(t, NewLogProducer(logger.Discard()).PublishBookingEvent(context.Background(), e))
}
