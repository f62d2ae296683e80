package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/limpabem/promotion-service/internal/domain"
)

func newTestService(repo *mockPromotionRepository, catalog *mockCatalogRepository, producer *mockEventPublisher) *PromotionService {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewPromotionService(repo, catalog, producer, logger)
}

func TestEvaluate_BestDiscountWins(t *testing.T) {
	repo := new(mockPromotionRepository)
	catalog := new(mockCatalogRepository)
	producer := new(mockEventPublisher)

	promotions := []domain.Promotion{
		{ID: "p1", Name: "Dez por cento", Active: true, DiscountType: domain.DiscountTypePercentage, DiscountValue: 10},
		{ID: "p2", Name: "Quinze fixos", Active: true, DiscountType: domain.DiscountTypeFixedAmount, DiscountValue: 15},
	}
	repo.On("ListActive", mock.Anything, mock.Anything).Return(promotions, nil)

	svc := newTestService(repo, catalog, producer)
	result, err := svc.Evaluate(context.Background(), &EvaluateInput{
		ClientID: "client-1",
		Items:    []domain.CartItem{{ServiceID: "sofa", UnitPrice: 100, Quantity: 2}},
		Subtotal: 200,
	})

	require.NoError(t, err)
	assert.InDelta(t, 20.0, result.Discount, 1e-9)
	require.NotNil(t, result.Promotion)
	assert.Equal(t, "p1", result.Promotion.ID)
	assert.Equal(t, `Promoção "Dez por cento" aplicada: R$ 20,00 de desconto`, result.Message)
	assert.Empty(t, result.Opportunities)
	repo.AssertExpectations(t)
}

func TestEvaluate_TieKeepsFirstSeen(t *testing.T) {
	repo := new(mockPromotionRepository)
	catalog := new(mockCatalogRepository)
	producer := new(mockEventPublisher)

	promotions := []domain.Promotion{
		{ID: "first", Name: "Primeira", Active: true, DiscountType: domain.DiscountTypeFixedAmount, DiscountValue: 20},
		{ID: "second", Name: "Segunda", Active: true, DiscountType: domain.DiscountTypeFixedAmount, DiscountValue: 20},
	}
	repo.On("ListActive", mock.Anything, mock.Anything).Return(promotions, nil)

	svc := newTestService(repo, catalog, producer)
	result, err := svc.Evaluate(context.Background(), &EvaluateInput{
		Items:    []domain.CartItem{{ServiceID: "sofa", UnitPrice: 100, Quantity: 1}},
		Subtotal: 100,
	})

	require.NoError(t, err)
	require.NotNil(t, result.Promotion)
	assert.Equal(t, "first", result.Promotion.ID)
}

func TestEvaluate_NoActivePromotions(t *testing.T) {
	repo := new(mockPromotionRepository)
	catalog := new(mockCatalogRepository)
	producer := new(mockEventPublisher)

	repo.On("ListActive", mock.Anything, mock.Anything).Return([]domain.Promotion{}, nil)

	svc := newTestService(repo, catalog, producer)
	result, err := svc.Evaluate(context.Background(), &EvaluateInput{
		ClientID: "client-1",
		Items:    []domain.CartItem{{ServiceID: "sofa", UnitPrice: 100, Quantity: 1}},
		Subtotal: 100,
	})

	require.NoError(t, err)
	assert.Zero(t, result.Discount)
	assert.Nil(t, result.Promotion)
	assert.Empty(t, result.Message)
	assert.Empty(t, result.Opportunities)
}

func TestEvaluate_CappedPromotionIsInvisible(t *testing.T) {
	repo := new(mockPromotionRepository)
	catalog := new(mockCatalogRepository)
	producer := new(mockEventPublisher)

	promotions := []domain.Promotion{
		{ID: "capped", Name: "Uma vez só", Active: true, DiscountType: domain.DiscountTypePercentage, DiscountValue: 50, UsesPerClient: 1},
		{ID: "open", Name: "Sempre vale", Active: true, DiscountType: domain.DiscountTypePercentage, DiscountValue: 5},
	}
	repo.On("ListActive", mock.Anything, mock.Anything).Return(promotions, nil)
	repo.On("CountUsage", mock.Anything, "client-1", []string{"capped"}).
		Return(map[string]int{"capped": 1}, nil)

	svc := newTestService(repo, catalog, producer)
	result, err := svc.Evaluate(context.Background(), &EvaluateInput{
		ClientID: "client-1",
		Items:    []domain.CartItem{{ServiceID: "sofa", UnitPrice: 100, Quantity: 1}},
		Subtotal: 100,
	})

	require.NoError(t, err)
	require.NotNil(t, result.Promotion)
	assert.Equal(t, "open", result.Promotion.ID)
	assert.InDelta(t, 5.0, result.Discount, 1e-9)
	repo.AssertExpectations(t)
}

func TestEvaluate_AnonymousClientSkipsUsageLookup(t *testing.T) {
	repo := new(mockPromotionRepository)
	catalog := new(mockCatalogRepository)
	producer := new(mockEventPublisher)

	promotions := []domain.Promotion{
		{ID: "capped", Name: "Uma vez só", Active: true, DiscountType: domain.DiscountTypePercentage, DiscountValue: 50, UsesPerClient: 1},
	}
	repo.On("ListActive", mock.Anything, mock.Anything).Return(promotions, nil)

	svc := newTestService(repo, catalog, producer)
	result, err := svc.Evaluate(context.Background(), &EvaluateInput{
		Items:    []domain.CartItem{{ServiceID: "sofa", UnitPrice: 100, Quantity: 1}},
		Subtotal: 100,
	})

	require.NoError(t, err)
	assert.InDelta(t, 50.0, result.Discount, 1e-9)
	repo.AssertNotCalled(t, "CountUsage", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluate_OpportunitiesSortedByDistance(t *testing.T) {
	repo := new(mockPromotionRepository)
	catalog := new(mockCatalogRepository)
	producer := new(mockEventPublisher)

	promotions := []domain.Promotion{
		{
			ID: "far", Name: "Combo Grande", Active: true,
			DiscountType:       domain.DiscountTypeCombo,
			EligibleServiceIDs: []string{"sofa"},
			Combo:              &domain.ComboConfig{Kind: domain.ComboKindBuyXGetY, Buy: 5, Get: 1},
		},
		{
			ID: "near", Name: "Combo Pequeno", Active: true,
			DiscountType:       domain.DiscountTypeCombo,
			EligibleServiceIDs: []string{"sofa"},
			Combo:              &domain.ComboConfig{Kind: domain.ComboKindBuyXGetY, Buy: 4, Get: 1},
		},
	}
	repo.On("ListActive", mock.Anything, mock.Anything).Return(promotions, nil)
	catalog.On("ResolveServiceNames", mock.Anything, []string{"sofa"}).
		Return(map[string]string{"sofa": "Limpeza de Sofá"}, nil)

	svc := newTestService(repo, catalog, producer)
	result, err := svc.Evaluate(context.Background(), &EvaluateInput{
		ClientID: "client-1",
		Items:    []domain.CartItem{{ServiceID: "sofa", UnitPrice: 100, Quantity: 3}},
		Subtotal: 300,
	})

	require.NoError(t, err)
	assert.Zero(t, result.Discount)
	require.Len(t, result.Opportunities, 2)
	assert.Equal(t, "near", result.Opportunities[0].PromotionID)
	assert.Equal(t, 1, result.Opportunities[0].MissingQuantity)
	assert.Equal(t, "far", result.Opportunities[1].PromotionID)
	assert.Equal(t, 2, result.Opportunities[1].MissingQuantity)
	catalog.AssertExpectations(t)
}

func TestEvaluate_StoreFailureAborts(t *testing.T) {
	repo := new(mockPromotionRepository)
	catalog := new(mockCatalogRepository)
	producer := new(mockEventPublisher)

	repo.On("ListActive", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	svc := newTestService(repo, catalog, producer)
	result, err := svc.Evaluate(context.Background(), &EvaluateInput{
		Items:    []domain.CartItem{{ServiceID: "sofa", UnitPrice: 100, Quantity: 1}},
		Subtotal: 100,
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "list active promotions")
}

func TestEvaluate_UsageLookupFailureAborts(t *testing.T) {
	repo := new(mockPromotionRepository)
	catalog := new(mockCatalogRepository)
	producer := new(mockEventPublisher)

	promotions := []domain.Promotion{
		{ID: "capped", Name: "Uma vez só", Active: true, DiscountType: domain.DiscountTypePercentage, DiscountValue: 50, UsesPerClient: 1},
	}
	repo.On("ListActive", mock.Anything, mock.Anything).Return(promotions, nil)
	repo.On("CountUsage", mock.Anything, "client-1", []string{"capped"}).
		Return(nil, errors.New("timeout"))

	svc := newTestService(repo, catalog, producer)
	_, err := svc.Evaluate(context.Background(), &EvaluateInput{
		ClientID: "client-1",
		Items:    []domain.CartItem{{ServiceID: "sofa", UnitPrice: 100, Quantity: 1}},
		Subtotal: 100,
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "count promotion usage")
}

func TestRegisterUsage_Inserts(t *testing.T) {
	repo := new(mockPromotionRepository)
	catalog := new(mockCatalogRepository)
	producer := new(mockEventPublisher)

	repo.On("UsageExists", mock.Anything, "promo-1", "order-1", "client-1").Return(false, nil)
	repo.On("RecordUsage", mock.Anything, mock.MatchedBy(func(u *domain.UsageRecord) bool {
		return u.PromotionID == "promo-1" &&
			u.OrderID == "order-1" &&
			u.ClientID == "client-1" &&
			u.DiscountAmount == 25.0 &&
			u.ID != ""
	})).Return(nil)
	producer.On("PublishUsageRecorded", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(repo, catalog, producer)
	result, err := svc.RegisterUsage(context.Background(), &RegisterUsageInput{
		PromotionID:    "promo-1",
		OrderID:        "order-1",
		ClientID:       "client-1",
		DiscountAmount: 25,
	})

	require.NoError(t, err)
	assert.True(t, result.Inserted)
	assert.False(t, result.AlreadyExists)
	repo.AssertExpectations(t)
	producer.AssertExpectations(t)
}

func TestRegisterUsage_NegativeAmountIsNormalized(t *testing.T) {
	repo := new(mockPromotionRepository)
	catalog := new(mockCatalogRepository)
	producer := new(mockEventPublisher)

	repo.On("UsageExists", mock.Anything, "promo-1", "order-1", "client-1").Return(false, nil)
	repo.On("RecordUsage", mock.Anything, mock.MatchedBy(func(u *domain.UsageRecord) bool {
		return u.DiscountAmount == 25.0
	})).Return(nil)
	producer.On("PublishUsageRecorded", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(repo, catalog, producer)
	result, err := svc.RegisterUsage(context.Background(), &RegisterUsageInput{
		PromotionID:    "promo-1",
		OrderID:        "order-1",
		ClientID:       "client-1",
		DiscountAmount: -25,
	})

	require.NoError(t, err)
	assert.True(t, result.Inserted)
}

func TestRegisterUsage_DuplicateIsReportedNotInserted(t *testing.T) {
	repo := new(mockPromotionRepository)
	catalog := new(mockCatalogRepository)
	producer := new(mockEventPublisher)

	repo.On("UsageExists", mock.Anything, "promo-1", "order-1", "client-1").Return(true, nil)

	svc := newTestService(repo, catalog, producer)
	result, err := svc.RegisterUsage(context.Background(), &RegisterUsageInput{
		PromotionID:    "promo-1",
		OrderID:        "order-1",
		ClientID:       "client-1",
		DiscountAmount: 25,
	})

	require.NoError(t, err)
	assert.False(t, result.Inserted)
	assert.True(t, result.AlreadyExists)
	repo.AssertNotCalled(t, "RecordUsage", mock.Anything, mock.Anything)
}

func TestRegisterUsage_IncompleteInputIsNotAnError(t *testing.T) {
	svc := newTestService(new(mockPromotionRepository), new(mockCatalogRepository), new(mockEventPublisher))

	tests := []struct {
		name  string
		input RegisterUsageInput
	}{
		{name: "missing promotion", input: RegisterUsageInput{OrderID: "o", ClientID: "c", DiscountAmount: 10}},
		{name: "missing order", input: RegisterUsageInput{PromotionID: "p", ClientID: "c", DiscountAmount: 10}},
		{name: "missing client", input: RegisterUsageInput{PromotionID: "p", OrderID: "o", DiscountAmount: 10}},
		{name: "zero amount", input: RegisterUsageInput{PromotionID: "p", OrderID: "o", ClientID: "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.RegisterUsage(context.Background(), &tt.input)
			require.NoError(t, err)
			assert.False(t, result.Inserted)
			assert.False(t, result.AlreadyExists)
		})
	}
}

func TestRegisterUsage_PersistenceErrorPropagates(t *testing.T) {
	repo := new(mockPromotionRepository)
	catalog := new(mockCatalogRepository)
	producer := new(mockEventPublisher)

	repo.On("UsageExists", mock.Anything, "promo-1", "order-1", "client-1").Return(false, nil)
	repo.On("RecordUsage", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	svc := newTestService(repo, catalog, producer)
	result, err := svc.RegisterUsage(context.Background(), &RegisterUsageInput{
		PromotionID:    "promo-1",
		OrderID:        "order-1",
		ClientID:       "client-1",
		DiscountAmount: 25,
	})

	require.Error(t, err)
	assert.Nil(t, result)
	producer.AssertNotCalled(t, "PublishUsageRecorded", mock.Anything, mock.Anything)
}

func TestRegisterUsage_PublishFailureDoesNotFail(t *testing.T) {
	repo := new(mockPromotionRepository)
	catalog := new(mockCatalogRepository)
	producer := new(mockEventPublisher)

	repo.On("UsageExists", mock.Anything, "promo-1", "order-1", "client-1").Return(false, nil)
	repo.On("RecordUsage", mock.Anything, mock.Anything).Return(nil)
	producer.On("PublishUsageRecorded", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	svc := newTestService(repo, catalog, producer)
	result, err := svc.RegisterUsage(context.Background(), &RegisterUsageInput{
		PromotionID:    "promo-1",
		OrderID:        "order-1",
		ClientID:       "client-1",
		DiscountAmount: 25,
	})

	require.NoError(t, err)
	assert.True(t, result.Inserted)
}
