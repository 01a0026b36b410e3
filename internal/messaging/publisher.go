package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	deadLetterExchange = "novel_engine_dlx"
	deadLetterQueue    = "novel_engine_dlq"
	deadLetterKey      = "dlq"
)

// EventPublisher publishes committed-turn events.
type EventPublisher interface {
	PublishTurnCommitted(ctx context.Context, event TurnCommittedEvent) error
}

// AssetTaskPublisher publishes asset generation tasks.
type AssetTaskPublisher interface {
	PublishAssetTask(ctx context.Context, task AssetTask) error
}

// RabbitMQPublisher implements EventPublisher and AssetTaskPublisher on one channel.
type RabbitMQPublisher struct {
	mu         sync.Mutex
	channel    *amqp.Channel
	turnQueue  string
	assetQueue string
	logger     *zap.Logger
}

var (
	_ EventPublisher     = (*RabbitMQPublisher)(nil)
	_ AssetTaskPublisher = (*RabbitMQPublisher)(nil)
)

// NewRabbitMQPublisher opens a channel and declares both durable queues with a shared dead-letter exchange.
func NewRabbitMQPublisher(conn *amqp.Connection, turnQueue, assetQueue string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := declareTopology(ch, turnQueue, assetQueue); err != nil {
		_ = ch.Close()
		return nil, err
	}
	logger.Info("RabbitMQ publisher ready",
		zap.String("turnQueue", turnQueue), zap.String("assetQueue", assetQueue))
	return &RabbitMQPublisher{
		channel:    ch,
		turnQueue:  turnQueue,
		assetQueue: assetQueue,
		logger:     logger.Named("RabbitMQPublisher"),
	}, nil
}

func declareTopology(ch *amqp.Channel, queues ...string) error {
	if err := ch.ExchangeDeclare(deadLetterExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare exchange %q: %w", deadLetterExchange, err)
	}
	if _, err := ch.QueueDeclare(deadLetterQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", deadLetterQueue, err)
	}
	if err := ch.QueueBind(deadLetterQueue, deadLetterKey, deadLetterExchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %q: %w", deadLetterQueue, err)
	}
	args := amqp.Table{
		"x-dead-letter-exchange":    deadLetterExchange,
		"x-dead-letter-routing-key": deadLetterKey,
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, args); err != nil {
			return fmt.Errorf("failed to declare queue %q: %w", q, err)
		}
	}
	return nil
}

func (p *RabbitMQPublisher) PublishTurnCommitted(ctx context.Context, event TurnCommittedEvent) error {
	return p.publish(ctx, p.turnQueue, event.EventID, event)
}

func (p *RabbitMQPublisher) PublishAssetTask(ctx context.Context, task AssetTask) error {
	return p.publish(ctx, p.assetQueue, task.TaskID, task)
}

func (p *RabbitMQPublisher) publish(ctx context.Context, queue, messageID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", queue, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		p.logger.Error("Failed to publish message", zap.String("queue", queue), zap.String("messageID", messageID), zap.Error(err))
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	p.logger.Debug("Message published", zap.String("queue", queue), zap.String("messageID", messageID))
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}

// NoopPublisher drops every message. Used when no broker is configured.
type NoopPublisher struct {
	logger *zap.Logger
}

func NewNoopPublisher(logger *zap.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger.Named("NoopPublisher")}
}

func (n *NoopPublisher) PublishTurnCommitted(_ context.Context, event TurnCommittedEvent) error {
	n.logger.Debug("Turn event dropped", zap.Stringer("storyID", event.StoryID), zap.Int64("version", event.Version))
	return nil
}

func (n *NoopPublisher) PublishAssetTask(_ context.Context, task AssetTask) error {
	n.logger.Debug("Asset task dropped", zap.String("key", task.Key))
	return nil
}
