package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	type payload struct {
		PromotionID string `json:"promotion_id"`
	}

	event, err := NewEvent("promotion.created", "promo-1", "promotion", "promotion-service", payload{PromotionID: "promo-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "promotion.created", event.EventType)
	assert.Equal(t, "promo-1", event.AggregateID)
	assert.Equal(t, "promotion", event.AggregateType)
	assert.Equal(t, 1, event.Version)
	assert.False(t, event.Timestamp.IsZero())

	var got payload
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, "promo-1", got.PromotionID)
}

func TestEventCorrelationID(t *testing.T) {
	event, err := NewEvent("promotion.updated", "promo-1", "promotion", "promotion-service", nil)
	require.NoError(t, err)

	event.WithCorrelationID("corr-42")
	assert.Equal(t, "corr-42", event.CorrelationID)

	data, err := event.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(data), "corr-42")
}
