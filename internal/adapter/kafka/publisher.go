package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/flood-risk-monitor/internal/config"
	"github.com/couchcryptid/flood-risk-monitor/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher produces one message per changed area to the risk topic.
// It implements monitor.ChangeNotifier.
type Publisher struct {
	writer messageWriter
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the configured risk topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaRiskTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// RiskDataChanged publishes every change of the cycle in a single
// WriteMessages call. Messages are keyed by area ID so a consumer sees each
// area's transitions in order.
func (p *Publisher) RiskDataChanged(ctx context.Context, result domain.CycleResult, changes []domain.RiskChange) error {
	if len(changes) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(changes))
	for i := range changes {
		msg, err := serializeToMessage(result.CycleID, changes[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish risk changes: %w", err)
	}
	p.logger.Debug("risk changes published", "cycle_id", result.CycleID, "count", len(msgs))
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// changeMessage is the wire form of a risk transition.
type changeMessage struct {
	CycleID   string               `json:"cycle_id"`
	AreaID    string               `json:"area_id"`
	AreaName  string               `json:"area_name,omitempty"`
	From      domain.RiskLevel     `json:"from,omitempty"`
	To        domain.RiskLevel     `json:"to"`
	Score     int                  `json:"score"`
	Tier      domain.Tier          `json:"tier"`
	Weather   domain.WeatherSample `json:"weather"`
	ChangedAt time.Time            `json:"changed_at"`
}

// serializeToMessage marshals a RiskChange into a Kafka message.
func serializeToMessage(cycleID string, change domain.RiskChange) (kafkago.Message, error) {
	data, err := json.Marshal(changeMessage{
		CycleID:   cycleID,
		AreaID:    change.AreaID,
		AreaName:  change.AreaName,
		From:      change.From,
		To:        change.To.Level,
		Score:     change.To.Score,
		Tier:      change.To.Tier,
		Weather:   change.Weather,
		ChangedAt: change.ChangedAt,
	})
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize risk change: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(change.AreaID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "risk_level", Value: []byte(change.To.Level)},
			{Key: "changed_at", Value: []byte(change.ChangedAt.Format(time.RFC3339))},
		},
	}, nil
}
