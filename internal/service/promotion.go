package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/limpabem/promotion-service/internal/domain"
	"github.com/limpabem/promotion-service/internal/repository"
	apperrors "github.com/limpabem/promotion-service/pkg/errors"
)

// EventPublisher emits domain events for promotion lifecycle changes.
// Publish failures are logged by the service, never surfaced to callers.
type EventPublisher interface {
	PublishPromotionCreated(ctx context.Context, promotion *domain.Promotion) error
	PublishPromotionUpdated(ctx context.Context, promotion *domain.Promotion) error
	PublishUsageRecorded(ctx context.Context, usage *domain.UsageRecord) error
}

// PromotionService implements the business logic for promotion operations:
// admin CRUD, cart evaluation, and usage registration.
type PromotionService struct {
	repo     repository.PromotionRepository
	catalog  repository.CatalogRepository
	producer EventPublisher
	logger   *slog.Logger
}

// NewPromotionService creates a new promotion service.
func NewPromotionService(
	repo repository.PromotionRepository,
	catalog repository.CatalogRepository,
	producer EventPublisher,
	logger *slog.Logger,
) *PromotionService {
	return &PromotionService{
		repo:     repo,
		catalog:  catalog,
		producer: producer,
		logger:   logger,
	}
}

// CreatePromotionInput holds the parameters for creating a promotion.
type CreatePromotionInput struct {
	Name               string
	Description        string
	Active             bool
	StartDate          *time.Time
	EndDate            *time.Time
	DiscountType       string
	DiscountValue      float64
	EligibleServiceIDs []string
	MinimumQuantity    int
	MinimumValue       float64
	UsesPerClient      int
	Combo              *domain.ComboConfig
}

// UpdatePromotionInput holds the parameters for partially updating a promotion.
type UpdatePromotionInput struct {
	Name               *string
	Description        *string
	Active             *bool
	StartDate          *time.Time
	EndDate            *time.Time
	DiscountType       *string
	DiscountValue      *float64
	EligibleServiceIDs []string
	MinimumQuantity    *int
	MinimumValue       *float64
	UsesPerClient      *int
	Combo              *domain.ComboConfig
}

// CreatePromotion validates and persists a new promotion.
func (s *PromotionService) CreatePromotion(ctx context.Context, input *CreatePromotionInput) (*domain.Promotion, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.InvalidInput("promotion name is required")
	}
	if !domain.IsValidDiscountType(input.DiscountType) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid discount type %q, must be one of: %s",
			input.DiscountType, strings.Join(domain.ValidDiscountTypes(), ", ")))
	}
	if err := validateDiscountConfig(input.DiscountType, input.DiscountValue, input.Combo); err != nil {
		return nil, err
	}
	if input.MinimumQuantity < 0 {
		return nil, apperrors.InvalidInput("minimum quantity must not be negative")
	}
	if input.MinimumValue < 0 {
		return nil, apperrors.InvalidInput("minimum value must not be negative")
	}
	if input.UsesPerClient < 0 {
		return nil, apperrors.InvalidInput("uses per client must not be negative")
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return nil, apperrors.InvalidInput("end date must not be before start date")
	}

	now := time.Now().UTC()
	promotion := &domain.Promotion{
		ID:                 uuid.New().String(),
		Name:               input.Name,
		Description:        input.Description,
		Active:             input.Active,
		StartDate:          input.StartDate,
		EndDate:            input.EndDate,
		DiscountType:       input.DiscountType,
		DiscountValue:      input.DiscountValue,
		EligibleServiceIDs: input.EligibleServiceIDs,
		MinimumQuantity:    input.MinimumQuantity,
		MinimumValue:       input.MinimumValue,
		UsesPerClient:      input.UsesPerClient,
		Combo:              input.Combo,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if promotion.EligibleServiceIDs == nil {
		promotion.EligibleServiceIDs = []string{}
	}

	if err := s.repo.Create(ctx, promotion); err != nil {
		return nil, fmt.Errorf("create promotion: %w", err)
	}

	if err := s.producer.PublishPromotionCreated(ctx, promotion); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promotion.created event",
			slog.String("promotion_id", promotion.ID),
			slog.String("error", err.Error()),
		)
		// Event publishing never fails the operation.
	}

	s.logger.InfoContext(ctx, "promotion created",
		slog.String("promotion_id", promotion.ID),
		slog.String("discount_type", promotion.DiscountType),
	)

	return promotion, nil
}

// GetPromotion retrieves a promotion by ID.
func (s *PromotionService) GetPromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	promotion, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion by id: %w", err)
	}
	return promotion, nil
}

// ListPromotions returns a filtered, paginated list of promotions.
func (s *PromotionService) ListPromotions(ctx context.Context, filter repository.PromotionFilter) ([]domain.Promotion, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	promotions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotions: %w", err)
	}
	return promotions, total, nil
}

// UpdatePromotion applies partial updates to an existing promotion.
func (s *PromotionService) UpdatePromotion(ctx context.Context, id string, input *UpdatePromotionInput) (*domain.Promotion, error) {
	promotion, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion for update: %w", err)
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, apperrors.InvalidInput("promotion name must not be empty")
		}
		promotion.Name = *input.Name
	}
	if input.Description != nil {
		promotion.Description = *input.Description
	}
	if input.Active != nil {
		promotion.Active = *input.Active
	}
	if input.StartDate != nil {
		promotion.StartDate = input.StartDate
	}
	if input.EndDate != nil {
		promotion.EndDate = input.EndDate
	}
	if input.DiscountType != nil {
		if !domain.IsValidDiscountType(*input.DiscountType) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("invalid discount type %q, must be one of: %s",
				*input.DiscountType, strings.Join(domain.ValidDiscountTypes(), ", ")))
		}
		promotion.DiscountType = *input.DiscountType
	}
	if input.DiscountValue != nil {
		promotion.DiscountValue = *input.DiscountValue
	}
	if input.EligibleServiceIDs != nil {
		promotion.EligibleServiceIDs = input.EligibleServiceIDs
	}
	if input.MinimumQuantity != nil {
		if *input.MinimumQuantity < 0 {
			return nil, apperrors.InvalidInput("minimum quantity must not be negative")
		}
		promotion.MinimumQuantity = *input.MinimumQuantity
	}
	if input.MinimumValue != nil {
		if *input.MinimumValue < 0 {
			return nil, apperrors.InvalidInput("minimum value must not be negative")
		}
		promotion.MinimumValue = *input.MinimumValue
	}
	if input.UsesPerClient != nil {
		if *input.UsesPerClient < 0 {
			return nil, apperrors.InvalidInput("uses per client must not be negative")
		}
		promotion.UsesPerClient = *input.UsesPerClient
	}
	if input.Combo != nil {
		promotion.Combo = input.Combo
	}

	if err := validateDiscountConfig(promotion.DiscountType, promotion.DiscountValue, promotion.Combo); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, promotion); err != nil {
		return nil, fmt.Errorf("update promotion: %w", err)
	}

	if err := s.producer.PublishPromotionUpdated(ctx, promotion); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promotion.updated event",
			slog.String("promotion_id", promotion.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promotion updated",
		slog.String("promotion_id", promotion.ID),
	)

	return promotion, nil
}

// DeactivatePromotion clears a promotion's active flag.
func (s *PromotionService) DeactivatePromotion(ctx context.Context, id string) (*domain.Promotion, error) {
	promotion, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get promotion for deactivate: %w", err)
	}

	promotion.Active = false

	if err := s.repo.Update(ctx, promotion); err != nil {
		return nil, fmt.Errorf("deactivate promotion: %w", err)
	}

	if err := s.producer.PublishPromotionUpdated(ctx, promotion); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish promotion.updated event",
			slog.String("promotion_id", promotion.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "promotion deactivated",
		slog.String("promotion_id", promotion.ID),
	)

	return promotion, nil
}

// validateDiscountConfig checks that the discount value and combo config
// make sense for the declared type.
func validateDiscountConfig(discountType string, discountValue float64, combo *domain.ComboConfig) error {
	switch discountType {
	case domain.DiscountTypePercentage:
		if discountValue <= 0 || discountValue > 100 {
			return apperrors.InvalidInput("percentage discount value must be between 0 and 100")
		}

	case domain.DiscountTypeFixedAmount:
		if discountValue <= 0 {
			return apperrors.InvalidInput("fixed amount discount value must be positive")
		}

	case domain.DiscountTypeCombo:
		if combo == nil {
			return apperrors.InvalidInput("combo promotion requires a combo config")
		}
		if !domain.IsValidComboKind(combo.Kind) {
			return apperrors.InvalidInput(fmt.Sprintf("invalid combo kind %q, must be one of: %s",
				combo.Kind, strings.Join(domain.ValidComboKinds(), ", ")))
		}
		switch combo.Kind {
		case domain.ComboKindBuyXGetY:
			if combo.Buy <= 0 || combo.Get <= 0 {
				return apperrors.InvalidInput("buy_x_get_y combo requires positive buy and get counts")
			}
		case domain.ComboKindTiered:
			if len(combo.Tiers) == 0 {
				return apperrors.InvalidInput("tiered combo requires at least one tier")
			}
			for _, tier := range combo.Tiers {
				if tier.Min < 0 || tier.Max < tier.Min {
					return apperrors.InvalidInput("tier bounds must satisfy 0 <= min <= max")
				}
				if tier.PercentOff <= 0 || tier.PercentOff > 100 {
					return apperrors.InvalidInput("tier percent off must be between 0 and 100")
				}
			}
		case domain.ComboKindMinimumSpend, domain.ComboKindFirstPurchase:
			if combo.MinimumValue <= 0 {
				return apperrors.InvalidInput("minimum spend combo requires a positive minimum value")
			}
			if discountValue <= 0 {
				return apperrors.InvalidInput("minimum spend combo requires a positive discount value")
			}
		}
	}
	return nil
}
