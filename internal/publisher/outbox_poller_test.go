package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"go.uber.org/zap"

	"github.com/smartdepot/storefront/internal/domain"
)

type MockStore struct {
	mu           sync.Mutex
	Events       []*domain.OutboxEvent
	FetchErr     error
	MarkErr      error
	PublishedIDs []int64
}

func (m *MockStore) GetUnpublishedEvents(context.Context, int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	out := make([]*domain.OutboxEvent, 0, len(m.Events))
	for _, e := range m.Events {
		if !m.published(e.ID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockStore) MarkEventPublished(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.PublishedIDs = append(m.PublishedIDs, id)
	return nil
}

func (m *MockStore) published(id int64) bool {
	for _, p := range m.PublishedIDs {
		if p == id {
			return true
		}
	}
	return false
}

type MockWriter struct {
	Messages []kafkaGo.Message
	FailOn   int // 1-based call index that fails, 0 = never
	calls    int
}

func (m *MockWriter) WriteMessages(_ context.Context, msgs ...kafkaGo.Message) error {
	m.calls++
	if m.FailOn == m.calls {
		return errors.New("broker unavailable")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockWriter) Close() error { return nil }

func testEvent(id int64, eventType string) *domain.OutboxEvent {
	return &domain.OutboxEvent{
		ID:          id,
		EventID:     fmt.Sprintf("evt-%d", id),
		AggregateID: "17",
		EventType:   eventType,
		Payload:     json.RawMessage(`{"order_id":17,"user_id":3}`),
		CreatedAt:   time.Now(),
	}
}

func TestProcessUnpublishedEvents_PublishesAndMarks(t *testing.T) {
	store := &MockStore{Events: []*domain.OutboxEvent{testEvent(1, domain.EventOrderPlaced), testEvent(2, domain.EventOrderPaid)}}
	writer := &MockWriter{}
	p := &OutboxPoller{eventTick: time.Second, repo: store, writer: writer, log: zap.NewNop()}

	p.processUnpublishedEvents(context.Background())

	require.Len(t, writer.Messages, 2)
	assert.Equal(t, "17", string(writer.Messages[0].Key))
	assert.Equal(t, "event_type", writer.Messages[0].Headers[0].Key)
	assert.Equal(t, domain.EventOrderPlaced, string(writer.Messages[0].Headers[0].Value))
	assert.Equal(t, []int64{1, 2}, store.PublishedIDs)
}

func TestProcessUnpublishedEvents_StopsAtFirstFailure(t *testing.T) {
	store := &MockStore{Events: []*domain.OutboxEvent{testEvent(1, domain.EventOrderPlaced), testEvent(2, domain.EventOrderPaid)}}
	writer := &MockWriter{FailOn: 1}
	p := &OutboxPoller{eventTick: time.Second, repo: store, writer: writer, log: zap.NewNop()}

	p.processUnpublishedEvents(context.Background())
	assert.Empty(t, store.PublishedIDs)
	assert.Empty(t, writer.Messages)

	// next tick succeeds and keeps order
	p.processUnpublishedEvents(context.Background())
	assert.Equal(t, []int64{1, 2}, store.PublishedIDs)
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	store := &MockStore{FetchErr: errors.New("db down")}
	writer := &MockWriter{}
	p := &OutboxPoller{eventTick: time.Second, repo: store, writer: writer, log: zap.NewNop()}

	p.processUnpublishedEvents(context.Background())
	assert.Empty(t, writer.Messages)
}

func TestProcessUnpublishedEvents_MarkErrorRepublishesLater(t *testing.T) {
	store := &MockStore{Events: []*domain.OutboxEvent{testEvent(1, domain.EventOrderPlaced)}, MarkErr: errors.New("db down")}
	writer := &MockWriter{}
	p := &OutboxPoller{eventTick: time.Second, repo: store, writer: writer, log: zap.NewNop()}

	p.processUnpublishedEvents(context.Background())
	store.MarkErr = nil
	p.processUnpublishedEvents(context.Background())

	// at-least-once: the same event went out twice
	assert.Len(t, writer.Messages, 2)
	assert.Equal(t, []int64{1}, store.PublishedIDs)
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafkaGo.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestOutboxPoller_PublishesEventsToKafka(t *testing.T) {
	brokerAddr, cleanup := setupKafka(t)
	defer cleanup()

	topic := "order-events"
	createTopic(t, brokerAddr, topic)
	time.Sleep(5 * time.Second)

	store := &MockStore{Events: []*domain.OutboxEvent{testEvent(1, domain.EventOrderPlaced)}}
	poller := NewOutboxPoller(store, zap.NewNop(), time.Second, topic, brokerAddr)
	defer poller.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	go poller.Run(ctx)

	reader := kafkaGo.NewReader(kafkaGo.ReaderConfig{
		Brokers:  []string{brokerAddr},
		Topic:    topic,
		GroupID:  "test-consumer",
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	msg, err := reader.ReadMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "17", string(msg.Key))

	var payload domain.OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, int64(17), payload.OrderID)
	assert.Equal(t, int64(3), payload.UserID)

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.PublishedIDs) == 1
	}, 5*time.Second, 100*time.Millisecond)
}
