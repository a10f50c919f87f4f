package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"kopikita-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uint) (*Order, error)
	GetByExternalID(ctx context.Context, externalID string) (*Order, error)
	List(ctx context.Context, filter OrderFilter) ([]*Order, error)

	// TransitionStatus locks the order row, runs check against the committed
	// status and only then writes to. check's error is returned unchanged.
	TransitionStatus(
		ctx context.Context,
		id uint,
		to Status,
		check func(from Status) error,
	) (*Order, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const orderColumns = `
	o.id, o.order_number, o.external_id, o.user_id, o.guest_name,
	o.table_number, o.status, o.total_amount, o.created_at, o.updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.ExternalID,
		&o.UserID,
		&o.GuestName,
		&o.TableNumber,
		&o.Status,
		&o.TotalAmount,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Create"),
		zap.String("order_number", o.OrderNumber),
		zap.Int("item_count", len(o.Items)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			order_number, external_id, user_id, guest_name,
			table_number, status, total_amount
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id, created_at, updated_at
	`,
		o.OrderNumber,
		o.ExternalID,
		o.UserID,
		o.GuestName,
		o.TableNumber,
		o.Status,
		o.TotalAmount,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		log.Error("failed to insert order", zap.Error(err))
		return err
	}

	for i := range o.Items {
		item := &o.Items[i]
		item.OrderID = o.ID

		err = tx.QueryRowContext(ctx, `
			INSERT INTO order_items (
				order_id, product_id, product_name,
				quantity, unit_price, subtotal
			) VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id
		`,
			o.ID,
			item.ProductID,
			item.ProductName,
			item.Quantity,
			item.UnitPrice,
			item.Subtotal,
		).Scan(&item.ID)
		if err != nil {
			log.Error("failed to insert order item",
				zap.Int("item_index", i),
				zap.Uint("product_id", item.ProductID),
				zap.Error(err),
			)
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit order transaction", zap.Error(err))
		return err
	}
	committed = true

	log.Info("order stored", zap.Uint("order_id", o.ID))
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uint) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+orderColumns+` FROM orders o WHERE o.id = $1`, id)
	return r.loadOrder(ctx, row)
}

func (r *repository) GetByExternalID(ctx context.Context, externalID string) (*Order, error) {
	row := r.db.QueryRowContext(ctx, `SELECT`+orderColumns+` FROM orders o WHERE o.external_id = $1`, externalID)
	return r.loadOrder(ctx, row)
}

func (r *repository) loadOrder(ctx context.Context, row *sql.Row) (*Order, error) {
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := r.getItems(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return o, nil
}

func (r *repository) getItems(ctx context.Context, orderID uint) ([]OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, quantity, unit_price, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(
			&it.ID,
			&it.OrderID,
			&it.ProductID,
			&it.ProductName,
			&it.Quantity,
			&it.UnitPrice,
			&it.Subtotal,
		); err != nil {
			return nil, err
		}
		items = append(items, it)
	}

	return items, rows.Err()
}

// List returns order headers, newest first. Items are not loaded.
func (r *repository) List(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	offset := filter.normalize()

	log := logger.FromCtx(ctx).With(
		zap.String("method", "List"),
		zap.Int("limit", filter.Limit),
		zap.Int("page", filter.Page),
	)

	query := `SELECT` + orderColumns + ` FROM orders o WHERE 1=1`
	args := []any{}
	argIndex := 1

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND o.user_id = $%d", argIndex)
		args = append(args, *filter.UserID)
		argIndex++
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND o.status = $%d", argIndex)
		args = append(args, *filter.Status)
		argIndex++
	}

	query += fmt.Sprintf(" ORDER BY o.created_at DESC LIMIT $%d OFFSET $%d", argIndex, argIndex+1)
	args = append(args, filter.Limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query orders", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			log.Error("failed to scan order row", zap.Error(err))
			return nil, err
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		log.Error("rows iteration error", zap.Error(err))
		return nil, err
	}

	return orders, nil
}

// TransitionStatus returns the order header after the write. Items are not loaded.
func (r *repository) TransitionStatus(
	ctx context.Context,
	id uint,
	to Status,
	check func(from Status) error,
) (*Order, error) {

	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "TransitionStatus"),
		zap.Uint("order_id", id),
		zap.String("to", string(to)),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin transaction", zap.Error(err))
		return nil, err
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(); rbErr != nil {
				log.Error("failed to rollback transaction", zap.Error(rbErr))
			}
		}
	}()

	// Concurrent requests for the same order queue up here and see the
	// status committed by whoever held the lock before them.
	var from Status
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&from)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		log.Error("failed to lock order", zap.Error(err))
		return nil, err
	}

	if err := check(from); err != nil {
		return nil, err
	}

	o, err := scanOrder(tx.QueryRowContext(ctx, `
		UPDATE orders o
		SET status = $1, updated_at = NOW()
		WHERE o.id = $2
		RETURNING`+orderColumns,
		to, id,
	))
	if err != nil {
		log.Error("failed to update order status", zap.Error(err))
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit status transition", zap.Error(err))
		return nil, err
	}
	committed = true

	log.Debug("status transition committed", zap.String("from", string(from)))
	return o, nil
}
