package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/limpabem/promotion-service/internal/domain"
	"github.com/limpabem/promotion-service/internal/repository"
	apperrors "github.com/limpabem/promotion-service/pkg/errors"
)

// DBTX is the subset of pgxpool.Pool the repositories need. pgxmock's pool
// satisfies it too, which is what the repository tests rely on.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PromotionRepository implements repository.PromotionRepository on PostgreSQL.
type PromotionRepository struct {
	db DBTX
}

// NewPromotionRepository creates a PostgreSQL-backed promotion repository.
func NewPromotionRepository(db DBTX) *PromotionRepository {
	return &PromotionRepository{db: db}
}

const promotionColumns = `id, name, description, active, start_date, end_date,
	   discount_type, discount_value, eligible_service_ids, minimum_quantity,
	   minimum_value, uses_per_client, combo_config, created_at, updated_at`

// Create inserts a new promotion.
func (r *PromotionRepository) Create(ctx context.Context, p *domain.Promotion) error {
	eligibleJSON, comboJSON, err := marshalPromotionJSON(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO promotions (
			id, name, description, active, start_date, end_date,
			discount_type, discount_value, eligible_service_ids, minimum_quantity,
			minimum_value, uses_per_client, combo_config, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = r.db.Exec(ctx, query,
		p.ID,
		p.Name,
		p.Description,
		p.Active,
		p.StartDate,
		p.EndDate,
		p.DiscountType,
		p.DiscountValue,
		eligibleJSON,
		p.MinimumQuantity,
		p.MinimumValue,
		p.UsesPerClient,
		comboJSON,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("promotion", "id", p.ID)
		}
		return fmt.Errorf("insert promotion: %w", err)
	}

	return nil
}

// GetByID retrieves a promotion by its ID.
func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*domain.Promotion, error) {
	query := `
		SELECT ` + promotionColumns + `
		FROM promotions
		WHERE id = $1`

	row := r.db.QueryRow(ctx, query, id)
	p, err := scanPromotionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("promotion", id)
		}
		return nil, fmt.Errorf("get promotion: %w", err)
	}
	return p, nil
}

// List returns promotions matching the filter with the total count.
func (r *PromotionRepository) List(ctx context.Context, filter repository.PromotionFilter) ([]domain.Promotion, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", argIndex))
		args = append(args, *filter.Active)
		argIndex++
	}
	if filter.DiscountType != nil {
		conditions = append(conditions, fmt.Sprintf("discount_type = $%d", argIndex))
		args = append(args, *filter.DiscountType)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT `+promotionColumns+`,
			   count(*) OVER() AS total_count
		FROM promotions
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list promotions: %w", err)
	}
	defer rows.Close()

	var (
		promotions []domain.Promotion
		totalCount int
	)

	for rows.Next() {
		p, total, err := scanPromotionWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan promotion row: %w", err)
		}
		totalCount = total
		promotions = append(promotions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate promotion rows: %w", err)
	}

	if promotions == nil {
		promotions = []domain.Promotion{}
	}
	return promotions, totalCount, nil
}

// Update modifies an existing promotion.
func (r *PromotionRepository) Update(ctx context.Context, p *domain.Promotion) error {
	eligibleJSON, comboJSON, err := marshalPromotionJSON(p)
	if err != nil {
		return err
	}

	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE promotions
		SET name = $1, description = $2, active = $3, start_date = $4, end_date = $5,
		    discount_type = $6, discount_value = $7, eligible_service_ids = $8,
		    minimum_quantity = $9, minimum_value = $10, uses_per_client = $11,
		    combo_config = $12, updated_at = $13
		WHERE id = $14`

	ct, err := r.db.Exec(ctx, query,
		p.Name,
		p.Description,
		p.Active,
		p.StartDate,
		p.EndDate,
		p.DiscountType,
		p.DiscountValue,
		eligibleJSON,
		p.MinimumQuantity,
		p.MinimumValue,
		p.UsesPerClient,
		comboJSON,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update promotion: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("promotion", p.ID)
	}

	return nil
}

// ListActive returns active promotions valid as of the given instant. The
// date bounds are inclusive and an absent bound is unbounded on that side.
func (r *PromotionRepository) ListActive(ctx context.Context, asOf time.Time) ([]domain.Promotion, error) {
	query := `
		SELECT ` + promotionColumns + `
		FROM promotions
		WHERE active = TRUE
		  AND (start_date IS NULL OR start_date <= $1)
		  AND (end_date IS NULL OR end_date >= $1)
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("list active promotions: %w", err)
	}
	defer rows.Close()

	var promotions []domain.Promotion
	for rows.Next() {
		p, err := scanPromotionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan active promotion: %w", err)
		}
		promotions = append(promotions, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate active promotions: %w", err)
	}

	if promotions == nil {
		promotions = []domain.Promotion{}
	}
	return promotions, nil
}

// CountUsage returns per-promotion redemption counts for a client.
func (r *PromotionRepository) CountUsage(ctx context.Context, clientID string, promotionIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(promotionIDs))
	if len(promotionIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT promotion_id, count(*)
		FROM usage_records
		WHERE client_id = $1 AND promotion_id = ANY($2)
		GROUP BY promotion_id`

	rows, err := r.db.Query(ctx, query, clientID, promotionIDs)
	if err != nil {
		return nil, fmt.Errorf("count promotion usage: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			promotionID string
			count       int
		)
		if err := rows.Scan(&promotionID, &count); err != nil {
			return nil, fmt.Errorf("scan usage count: %w", err)
		}
		counts[promotionID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage counts: %w", err)
	}

	return counts, nil
}

// UsageExists reports whether the exact (promotion, order, client) triple
// was already recorded.
func (r *PromotionRepository) UsageExists(ctx context.Context, promotionID, orderID, clientID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM usage_records
			WHERE promotion_id = $1 AND order_id = $2 AND client_id = $3
		)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, promotionID, orderID, clientID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check usage exists: %w", err)
	}
	return exists, nil
}

// RecordUsage inserts a usage record. Two concurrent registrations for the
// same triple can both pass the service's existence check; the unique index
// here settles the race, surfacing the loser as already-exists.
func (r *PromotionRepository) RecordUsage(ctx context.Context, usage *domain.UsageRecord) error {
	query := `
		INSERT INTO usage_records (id, promotion_id, client_id, order_id, discount_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		usage.ID,
		usage.PromotionID,
		usage.ClientID,
		usage.OrderID,
		usage.DiscountAmount,
		usage.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("usage record", "order", usage.OrderID)
		}
		return fmt.Errorf("record promotion usage: %w", err)
	}

	return nil
}

// --- scanning helpers ---

func marshalPromotionJSON(p *domain.Promotion) (eligible, combo []byte, err error) {
	ids := p.EligibleServiceIDs
	if ids == nil {
		ids = []string{}
	}
	eligible, err = json.Marshal(ids)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal eligible_service_ids: %w", err)
	}

	if p.Combo != nil {
		combo, err = json.Marshal(p.Combo)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal combo_config: %w", err)
		}
	}
	return eligible, combo, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPromotion(row rowScanner, extra ...any) (*domain.Promotion, error) {
	var (
		p            domain.Promotion
		eligibleJSON []byte
		comboJSON    []byte
	)

	dest := []any{
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Active,
		&p.StartDate,
		&p.EndDate,
		&p.DiscountType,
		&p.DiscountValue,
		&eligibleJSON,
		&p.MinimumQuantity,
		&p.MinimumValue,
		&p.UsesPerClient,
		&comboJSON,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if eligibleJSON != nil {
		if err := json.Unmarshal(eligibleJSON, &p.EligibleServiceIDs); err != nil {
			return nil, fmt.Errorf("unmarshal eligible_service_ids: %w", err)
		}
	}
	if p.EligibleServiceIDs == nil {
		p.EligibleServiceIDs = []string{}
	}

	if comboJSON != nil {
		var combo domain.ComboConfig
		if err := json.Unmarshal(comboJSON, &combo); err != nil {
			return nil, fmt.Errorf("unmarshal combo_config: %w", err)
		}
		p.Combo = &combo
	}

	return &p, nil
}

func scanPromotionRow(row rowScanner) (*domain.Promotion, error) {
	return scanPromotion(row)
}

func scanPromotionWithTotal(row rowScanner) (*domain.Promotion, int, error) {
	var total int
	p, err := scanPromotion(row, &total)
	if err != nil {
		return nil, 0, err
	}
	return p, total, nil
}

// isUniqueViolation detects a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "23505")
}
