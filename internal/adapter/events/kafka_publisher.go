package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"wallet-escrow-engine/config"
	"wallet-escrow-engine/internal/core/domain"

	"github.com/segmentio/kafka-go"
)

// TransactionEvent is the wire shape for ledger entries on the event topic.
type TransactionEvent struct {
	Event       string    `json:"event"`
	Transaction any       `json:"transaction"`
	EmittedAt   time.Time `json:"emitted_at"`
}

// DealEvent is the wire shape for escrow deal transitions.
type DealEvent struct {
	Event     string    `json:"event"`
	Deal      any       `json:"deal"`
	EmittedAt time.Time `json:"emitted_at"`
}

// KafkaPublisher implements ports.EventPublisher on a kafka-go writer.
// Messages are keyed by user id (transactions) or deal id (deals) so the
// hash balancer keeps per-entity ordering.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher from configuration.
func NewKafkaPublisher(cfg config.KafkaConfig) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        false,
			MaxAttempts:  10,
		},
	}
}

// PublishTransaction emits a ledger entry keyed by the owning user.
func (p *KafkaPublisher) PublishTransaction(ctx context.Context, t *domain.Transaction) error {
	payload, err := json.Marshal(TransactionEvent{
		Event:       "transaction." + string(t.Kind),
		Transaction: t,
		EmittedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal transaction event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(t.UserID, 10)),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("write transaction event: %w", err)
	}
	return nil
}

// PublishDeal emits a deal transition keyed by the deal id.
func (p *KafkaPublisher) PublishDeal(ctx context.Context, d *domain.Deal, event string) error {
	payload, err := json.Marshal(DealEvent{
		Event:     "deal." + event,
		Deal:      d,
		EmittedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal deal event: %w", err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(d.ID),
		Value: payload,
	}); err != nil {
		return fmt.Errorf("write deal event: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
