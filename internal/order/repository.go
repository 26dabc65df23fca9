package order

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Repository is the idempotent sink for order projections. InsertIfAbsent
// returns false for a row that already exists, which callers treat as a
// successful duplicate-delivery no-op.
type Repository interface {
	InsertIfAbsent(ctx context.Context, o Order) (bool, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) InsertIfAbsent(ctx context.Context, o Order) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (order_id, cart_id, customer_id, total_cents, currency, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (order_id) DO NOTHING`,
		o.OrderID, o.CartID, o.CustomerID, o.TotalCents, o.Currency, o.CompletedAt,
	)
	if err != nil {
		return false, fmt.Errorf("order insert failed: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("order insert result unavailable: %w", err)
	}
	return rows > 0, nil
}
