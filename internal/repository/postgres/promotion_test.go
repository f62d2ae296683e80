package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/limpabem/promotion-service/internal/domain"
	"github.com/limpabem/promotion-service/internal/repository"
	"github.com/limpabem/promotion-service/pkg/database"
	apperrors "github.com/limpabem/promotion-service/pkg/errors"
)

var promotionRowColumns = []string{
	"id", "name", "description", "active", "start_date", "end_date",
	"discount_type", "discount_value", "eligible_service_ids", "minimum_quantity",
	"minimum_value", "uses_per_client", "combo_config", "created_at", "updated_at",
}

func testPromotion() *domain.Promotion {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return &domain.Promotion{
		ID:                 "promo-1",
		Name:               "Semana do Sofá",
		Description:        "10% em limpeza de sofá",
		Active:             true,
		DiscountType:       domain.DiscountTypePercentage,
		DiscountValue:      10,
		EligibleServiceIDs: []string{"sofa"},
		MinimumQuantity:    1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func promotionRow(p *domain.Promotion) []any {
	eligible, _ := json.Marshal(p.EligibleServiceIDs)
	var combo []byte
	if p.Combo != nil {
		combo, _ = json.Marshal(p.Combo)
	}
	return []any{
		p.ID, p.Name, p.Description, p.Active, p.StartDate, p.EndDate,
		p.DiscountType, p.DiscountValue, eligible, p.MinimumQuantity,
		p.MinimumValue, p.UsesPerClient, combo, p.CreatedAt, p.UpdatedAt,
	}
}

// anyArgs returns n pgxmock.AnyArg matchers; pgxmock requires the expected
// argument count to match even when the values themselves are not checked.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPromotionRepository_Create(t *testing.T) {
	t.Run("inserts the row", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPromotionRepository(mock)
		p := testPromotion()

		mock.ExpectExec("INSERT INTO promotions").
			WithArgs(p.ID, p.Name, p.Description, p.Active, p.StartDate, p.EndDate,
				p.DiscountType, p.DiscountValue, pgxmock.AnyArg(), p.MinimumQuantity,
				p.MinimumValue, p.UsesPerClient, pgxmock.AnyArg(), p.CreatedAt, p.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.Create(context.Background(), p))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate id maps to already exists", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPromotionRepository(mock)
		p := testPromotion()

		mock.ExpectExec("INSERT INTO promotions").
			WithArgs(anyArgs(15)...).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Create(context.Background(), p)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
	})
}

func TestPromotionRepository_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPromotionRepository(mock)
		p := testPromotion()

		mock.ExpectQuery("SELECT (.+) FROM promotions WHERE id").
			WithArgs(p.ID).
			WillReturnRows(pgxmock.NewRows(promotionRowColumns).AddRow(promotionRow(p)...))

		got, err := repo.GetByID(context.Background(), p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Name, got.Name)
		assert.Equal(t, []string{"sofa"}, got.EligibleServiceIDs)
		assert.Nil(t, got.Combo)
	})

	t.Run("combo config round-trips", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPromotionRepository(mock)
		p := testPromotion()
		p.DiscountType = domain.DiscountTypeCombo
		p.Combo = &domain.ComboConfig{Kind: domain.ComboKindBuyXGetY, Buy: 3, Get: 1}

		mock.ExpectQuery("SELECT (.+) FROM promotions WHERE id").
			WithArgs(p.ID).
			WillReturnRows(pgxmock.NewRows(promotionRowColumns).AddRow(promotionRow(p)...))

		got, err := repo.GetByID(context.Background(), p.ID)
		require.NoError(t, err)
		require.NotNil(t, got.Combo)
		assert.Equal(t, domain.ComboKindBuyXGetY, got.Combo.Kind)
		assert.Equal(t, 3, got.Combo.Buy)
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPromotionRepository(mock)

		mock.ExpectQuery("SELECT (.+) FROM promotions WHERE id").
			WithArgs("missing").
			WillReturnRows(pgxmock.NewRows(promotionRowColumns))

		_, err := repo.GetByID(context.Background(), "missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	})
}

func TestPromotionRepository_List(t *testing.T) {
	mock := newMock(t)
	repo := NewPromotionRepository(mock)
	p := testPromotion()

	active := true
	row := append(promotionRow(p), 7)
	mock.ExpectQuery("SELECT (.+) count\\(\\*\\) OVER\\(\\) AS total_count").
		WithArgs(active, 20, 20).
		WillReturnRows(pgxmock.NewRows(append(promotionRowColumns, "total_count")).AddRow(row...))

	promotions, total, err := repo.List(context.Background(), repository.PromotionFilter{
		Active:  &active,
		Page:    2,
		PerPage: 20,
	})

	require.NoError(t, err)
	assert.Len(t, promotions, 1)
	assert.Equal(t, 7, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_Update(t *testing.T) {
	t.Run("updates the row", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPromotionRepository(mock)
		p := testPromotion()

		mock.ExpectExec("UPDATE promotions").
			WithArgs(anyArgs(14)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.Update(context.Background(), p))
	})

	t.Run("no rows affected means not found", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPromotionRepository(mock)
		p := testPromotion()

		mock.ExpectExec("UPDATE promotions").
			WithArgs(anyArgs(14)...).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.Update(context.Background(), p)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	})
}

func TestPromotionRepository_ListActive(t *testing.T) {
	mock := newMock(t)
	repo := NewPromotionRepository(mock)
	p := testPromotion()
	asOf := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("WHERE active = TRUE").
		WithArgs(asOf).
		WillReturnRows(pgxmock.NewRows(promotionRowColumns).AddRow(promotionRow(p)...))

	promotions, err := repo.ListActive(context.Background(), asOf)
	require.NoError(t, err)
	require.Len(t, promotions, 1)
	assert.Equal(t, p.ID, promotions[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPromotionRepository_CountUsage(t *testing.T) {
	t.Run("groups counts by promotion", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPromotionRepository(mock)

		mock.ExpectQuery("FROM usage_records").
			WithArgs("client-1", []string{"p1", "p2"}).
			WillReturnRows(pgxmock.NewRows([]string{"promotion_id", "count"}).
				AddRow("p1", 2))

		counts, err := repo.CountUsage(context.Background(), "client-1", []string{"p1", "p2"})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"p1": 2}, counts)
	})

	t.Run("empty id list skips the query", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPromotionRepository(mock)

		counts, err := repo.CountUsage(context.Background(), "client-1", nil)
		require.NoError(t, err)
		assert.Empty(t, counts)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPromotionRepository_UsageExists(t *testing.T) {
	mock := newMock(t)
	repo := NewPromotionRepository(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("p1", "o1", "c1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.UsageExists(context.Background(), "p1", "o1", "c1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPromotionRepository_RecordUsage(t *testing.T) {
	usage := &domain.UsageRecord{
		ID:             "u1",
		PromotionID:    "p1",
		ClientID:       "c1",
		OrderID:        "o1",
		DiscountAmount: 25,
		CreatedAt:      time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	t.Run("inserts the record", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPromotionRepository(mock)

		mock.ExpectExec("INSERT INTO usage_records").
			WithArgs(usage.ID, usage.PromotionID, usage.ClientID, usage.OrderID, usage.DiscountAmount, usage.CreatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, repo.RecordUsage(context.Background(), usage))
	})

	t.Run("unique index violation maps to already exists", func(t *testing.T) {
		mock := newMock(t)
		repo := NewPromotionRepository(mock)

		mock.ExpectExec("INSERT INTO usage_records").
			WithArgs(anyArgs(6)...).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "usage_records_promotion_order_client_key"})

		err := repo.RecordUsage(context.Background(), usage)
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))
	})
}
