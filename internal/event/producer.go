package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/limpabem/promotion-service/internal/domain"
	pkgkafka "github.com/limpabem/promotion-service/pkg/kafka"
	"github.com/limpabem/promotion-service/pkg/logger"
)

// Kafka topic constants for promotion domain events.
const (
	TopicPromotionCreated       = "limpabem.promotion.created"
	TopicPromotionUpdated       = "limpabem.promotion.updated"
	TopicPromotionUsageRecorded = "limpabem.promotion.usage_recorded"
)

// Aggregate type constant.
const AggregateTypePromotion = "promotion"

// Source identifier for events originating from this service.
const SourcePromotionService = "promotion-service"

// PromotionCreatedData is the payload for a promotion.created event.
type PromotionCreatedData struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	DiscountType  string  `json:"discount_type"`
	DiscountValue float64 `json:"discount_value"`
	Active        bool    `json:"active"`
}

// PromotionUpdatedData is the payload for a promotion.updated event.
type PromotionUpdatedData struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	DiscountType string `json:"discount_type"`
	Active       bool   `json:"active"`
}

// UsageRecordedData is the payload for a promotion.usage_recorded event.
type UsageRecordedData struct {
	PromotionID    string  `json:"promotion_id"`
	ClientID       string  `json:"client_id"`
	OrderID        string  `json:"order_id"`
	DiscountAmount float64 `json:"discount_amount"`
}

// Producer publishes promotion domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer for the promotion service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishPromotionCreated publishes a promotion.created event.
func (p *Producer) PublishPromotionCreated(ctx context.Context, promotion *domain.Promotion) error {
	data := PromotionCreatedData{
		ID:            promotion.ID,
		Name:          promotion.Name,
		DiscountType:  promotion.DiscountType,
		DiscountValue: promotion.DiscountValue,
		Active:        promotion.Active,
	}
	return p.publish(ctx, TopicPromotionCreated, promotion.ID, data)
}

// PublishPromotionUpdated publishes a promotion.updated event.
func (p *Producer) PublishPromotionUpdated(ctx context.Context, promotion *domain.Promotion) error {
	data := PromotionUpdatedData{
		ID:           promotion.ID,
		Name:         promotion.Name,
		DiscountType: promotion.DiscountType,
		Active:       promotion.Active,
	}
	return p.publish(ctx, TopicPromotionUpdated, promotion.ID, data)
}

// PublishUsageRecorded publishes a promotion.usage_recorded event.
func (p *Producer) PublishUsageRecorded(ctx context.Context, usage *domain.UsageRecord) error {
	data := UsageRecordedData{
		PromotionID:    usage.PromotionID,
		ClientID:       usage.ClientID,
		OrderID:        usage.OrderID,
		DiscountAmount: usage.DiscountAmount,
	}
	return p.publish(ctx, TopicPromotionUsageRecorded, usage.PromotionID, data)
}

func (p *Producer) publish(ctx context.Context, topic, aggregateID string, data any) error {
	evt, err := pkgkafka.NewEvent(topic, aggregateID, AggregateTypePromotion, SourcePromotionService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published promotion event",
		slog.String("topic", topic),
		slog.String("promotion_id", aggregateID),
	)
	return nil
}
