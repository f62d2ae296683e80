package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/limpabem/promotion-service/internal/domain"
	"github.com/limpabem/promotion-service/internal/repository"
)

type mockPromotionRepository struct {
	mock.Mock
}

func (m *mockPromotionRepository) Create(ctx context.Context, promotion *domain.Promotion) error {
	args := m.Called(ctx, promotion)
	return args.Error(0)
}

func (m *mockPromotionRepository) GetByID(ctx context.Context, id string) (*domain.Promotion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Promotion), args.Error(1)
}

func (m *mockPromotionRepository) List(ctx context.Context, filter repository.PromotionFilter) ([]domain.Promotion, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Promotion), args.Int(1), args.Error(2)
}

func (m *mockPromotionRepository) Update(ctx context.Context, promotion *domain.Promotion) error {
	args := m.Called(ctx, promotion)
	return args.Error(0)
}

func (m *mockPromotionRepository) ListActive(ctx context.Context, asOf time.Time) ([]domain.Promotion, error) {
	args := m.Called(ctx, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Promotion), args.Error(1)
}

func (m *mockPromotionRepository) CountUsage(ctx context.Context, clientID string, promotionIDs []string) (map[string]int, error) {
	args := m.Called(ctx, clientID, promotionIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *mockPromotionRepository) UsageExists(ctx context.Context, promotionID, orderID, clientID string) (bool, error) {
	args := m.Called(ctx, promotionID, orderID, clientID)
	return args.Bool(0), args.Error(1)
}

func (m *mockPromotionRepository) RecordUsage(ctx context.Context, usage *domain.UsageRecord) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}

type mockCatalogRepository struct {
	mock.Mock
}

func (m *mockCatalogRepository) ResolveServiceNames(ctx context.Context, ids []string) (map[string]string, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]string), args.Error(1)
}

type mockEventPublisher struct {
	mock.Mock
}

func (m *mockEventPublisher) PublishPromotionCreated(ctx context.Context, promotion *domain.Promotion) error {
	args := m.Called(ctx, promotion)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishPromotionUpdated(ctx context.Context, promotion *domain.Promotion) error {
	args := m.Called(ctx, promotion)
	return args.Error(0)
}

func (m *mockEventPublisher) PublishUsageRecorded(ctx context.Context, usage *domain.UsageRecord) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}
