package repository

import (
	"context"
	"time"

	"github.com/limpabem/promotion-service/internal/domain"
)

// PromotionFilter defines filter criteria for listing promotions.
type PromotionFilter struct {
	Active       *bool
	DiscountType *string
	Page         int
	PerPage      int
}

// PromotionRepository is the persistence contract for promotions and their
// usage records.
type PromotionRepository interface {
	// Create inserts a new promotion.
	Create(ctx context.Context, promotion *domain.Promotion) error

	// GetByID retrieves a promotion by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Promotion, error)

	// List returns promotions matching the filter along with the total count.
	List(ctx context.Context, filter PromotionFilter) ([]domain.Promotion, int, error)

	// Update modifies an existing promotion.
	Update(ctx context.Context, promotion *domain.Promotion) error

	// ListActive returns the promotions whose active flag is set and whose
	// date range covers asOf. This filtering belongs to the store, not the
	// evaluation engine.
	ListActive(ctx context.Context, asOf time.Time) ([]domain.Promotion, error)

	// CountUsage returns how many times the client has redeemed each of the
	// given promotions. Promotions with no usage are absent from the map.
	CountUsage(ctx context.Context, clientID string, promotionIDs []string) (map[string]int, error)

	// UsageExists reports whether a usage record already exists for the
	// exact (promotion, order, client) triple.
	UsageExists(ctx context.Context, promotionID, orderID, clientID string) (bool, error)

	// RecordUsage inserts a usage record. The usage_records unique index on
	// (promotion_id, order_id, client_id) is the final authority on
	// duplicates; a violation surfaces as an already-exists error.
	RecordUsage(ctx context.Context, usage *domain.UsageRecord) error
}

// CatalogRepository resolves service display names, used only to build
// opportunity message labels.
type CatalogRepository interface {
	// ResolveServiceNames maps service IDs to display names. IDs with no
	// matching service are simply absent from the result.
	ResolveServiceNames(ctx context.Context, ids []string) (map[string]string, error)
}
