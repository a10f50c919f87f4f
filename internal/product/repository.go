package product

import (
	"context"
	"database/sql"

	"kopikita-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	GetByIDs(ctx context.Context, ids []uint) (map[uint]Product, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// GetByIDs loads the current menu price of every requested product.
// Unknown ids are simply absent from the result.
func (r *repository) GetByIDs(ctx context.Context, ids []uint) (map[uint]Product, error) {
	out := make(map[uint]Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	params := make([]int64, len(ids))
	for i, id := range ids {
		params[i] = int64(id)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price, is_available
		FROM products
		WHERE id = ANY($1)
	`, pq.Array(params))
	if err != nil {
		logger.FromCtx(ctx).Error("failed to query products", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.IsAvailable); err != nil {
			return nil, err
		}
		out[p.ID] = p
	}

	return out, rows.Err()
}
