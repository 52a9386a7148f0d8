package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/sheve777/kanpai-sub002/pkg/tracing"
)

// Producer publishes reservation lifecycle events
type Producer struct {
	writer *kafka.Writer
	logger ectologger.Logger
	topic  string
}

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int
	Compression  string
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, logger ectologger.Logger) *Producer {
	compression := kafka.Snappy
	switch cfg.Compression {
	case "gzip":
		compression = kafka.Gzip
	case "lz4":
		compression = kafka.Lz4
	case "zstd":
		compression = kafka.Zstd
	case "none":
		compression = 0
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              cfg.BatchSize,
		BatchTimeout:           cfg.BatchTimeout,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            compression,
		AllowAutoTopicCreation: true,
	}

	return &Producer{
		writer: writer,
		logger: logger,
		topic:  cfg.Topic,
	}
}

// Close closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// ReservationEvent is the wire shape for reservation lifecycle events
type ReservationEvent struct {
	EventType     string    `json:"event_type"` // reservation.confirmed, reservation.cancelled
	StoreID       string    `json:"store_id"`
	ReservationID string    `json:"reservation_id"`
	SeatTypeID    string    `json:"seat_type_id,omitempty"`
	SeatTypeName  string    `json:"seat_type_name,omitempty"`
	PartySize     int       `json:"party_size"`
	ReservedOn    string    `json:"reserved_on"`
	StartTime     string    `json:"start_time"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
}

// PublishReservationEvent publishes a reservation event, keyed by store so
// one store's events stay ordered
func (p *Producer) PublishReservationEvent(ctx context.Context, event *ReservationEvent) error {
	ctx, span := tracing.StartSpan(ctx, "kafka.Producer.PublishReservationEvent")
	defer span.End()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.StoreID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "store_id", Value: []byte(event.StoreID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithContext(ctx).WithError(err).Error("Failed to publish reservation event")
		return err
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_type":     event.EventType,
		"reservation_id": event.ReservationID,
		"store_id":       event.StoreID,
	}).Debug("Published reservation event")

	return nil
}
