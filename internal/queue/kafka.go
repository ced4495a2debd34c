package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"tasksync/internal/models"
	"tasksync/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// EnsureTopic creates the sync-request topic with the given partitions (idempotent).
// Call at startup; if it fails (e.g. no broker or topic exists), the app still runs.
func EnsureTopic(ctx context.Context, brokers []string, topic string, partitions int) {
	if len(brokers) == 0 {
		return
	}
	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		logger.Debug(ctx, "Kafka dial for topic creation failed", "error", err)
		return
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		logger.Debug(ctx, "Kafka controller lookup failed", "error", err)
		return
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		logger.Debug(ctx, "Kafka controller dial failed", "error", err)
		return
	}
	defer ctrlConn.Close()
	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     partitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Debug(ctx, "Kafka create topic failed (topic may already exist)", "error", err)
		return
	}
	logger.Info(ctx, "Kafka topic ensured", "topic", topic, "partitions", partitions)
}

// KafkaPublisher submits sync requests to a Kafka topic so they survive a
// process restart. worker.Run is the matching consumer.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher returns a publisher writing to topic on brokers.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	logger.Info(ctx, "Kafka producer initialized", "topic", topic, "brokers", brokers)
	return &KafkaPublisher{writer: w}, nil
}

// Submit publishes the request. Messages are keyed by user so one user's
// requests stay ordered within a partition.
func (p *KafkaPublisher) Submit(ctx context.Context, req models.SyncRequest) error {
	payload, err := EncodeSyncRequest(req)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(req.UserID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("failed to publish sync request: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// EncodeSyncRequest is the wire form of a sync request.
func EncodeSyncRequest(req models.SyncRequest) ([]byte, error) {
	if req.UserID == "" {
		return nil, errors.New("sync request without user")
	}
	b, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sync request: %w", err)
	}
	return b, nil
}

// DecodeSyncRequest parses a message produced by EncodeSyncRequest.
func DecodeSyncRequest(payload []byte) (models.SyncRequest, error) {
	var req models.SyncRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("failed to decode sync request: %w", err)
	}
	if req.UserID == "" {
		return req, errors.New("sync request without user")
	}
	return req, nil
}
