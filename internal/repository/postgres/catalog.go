package postgres

import (
	"context"
	"fmt"
)

// CatalogRepository resolves service display names from the services table.
type CatalogRepository struct {
	db DBTX
}

// NewCatalogRepository creates a PostgreSQL-backed service catalog.
func NewCatalogRepository(db DBTX) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ResolveServiceNames maps the given service IDs to display names. Unknown
// IDs are simply absent from the result; callers drop them from labels.
func (r *CatalogRepository) ResolveServiceNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	query := `SELECT id, name FROM services WHERE id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve service names: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan service name: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service names: %w", err)
	}

	return names, nil
}
