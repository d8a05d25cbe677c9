package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/workshop-relay/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Topics published by the relay
const (
	TopicPurchaseCompleted  = "purchase_completed"
	TopicAccountProvisioned = "account_provisioned"
)

// PurchaseMessage is the value of every message the relay publishes
type PurchaseMessage struct {
	Event             string    `json:"event"`
	CheckoutSessionID string    `json:"checkout_session_id"`
	PaymentIntentID   string    `json:"payment_intent_id,omitempty"`
	CustomerID        string    `json:"customer_id,omitempty"`
	UserID            string    `json:"user_id,omitempty"`
	Email             string    `json:"email,omitempty"`
	ExternalUserID    string    `json:"external_user_id,omitempty"`
	AmountTotal       int64     `json:"amount_total"`
	Currency          string    `json:"currency"`
	OccurredAt        time.Time `json:"occurred_at"`
}

// Producer определяет интерфейс для публикации сообщений в Kafka.
type Producer interface {
	// Publish sends msg to topic keyed by the checkout session id, so every
	// message about one purchase lands in the same partition.
	Publish(ctx context.Context, topic string, msg PurchaseMessage) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaProducer реализует интерфейс Producer, используя segmentio/kafka-go.
type kafkaProducer struct {
	writer messageWriter
	log    *logger.Logger
}

// NewKafkaProducer создает и настраивает новый продюсер Kafka.
func NewKafkaProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)
	return &kafkaProducer{writer: writer, log: log}, nil
}

// Publish преобразует сообщение в JSON и отправляет в указанный топик Kafka.
func (k *kafkaProducer) Publish(ctx context.Context, topic string, msg PurchaseMessage) error {
	if msg.Event == "" {
		msg.Event = topic
	}
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	err = k.writer.WriteMessages(writeCtx, kafka.Message{
		Topic: topic,
		Key:   []byte(msg.CheckoutSessionID),
		Value: value,
		Time:  msg.OccurredAt,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", topic, "sessionID", msg.CheckoutSessionID)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", topic, "sessionID", msg.CheckoutSessionID)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Infow("Successfully published message to Kafka", "topic", topic, "sessionID", msg.CheckoutSessionID)
	return nil
}

// Close закрывает соединение Kafka Writer.
func (k *kafkaProducer) Close() error {
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	k.log.Infow("Kafka producer writer closed successfully")
	return nil
}
