package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotFound        = errors.New("order not found")
	ErrProductNotFound = errors.New("order item references unknown product")
)

type Repository interface {
	Create(ctx context.Context, userID uuid.UUID, status Status, items []ItemInput) (uuid.UUID, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Order, error)
	List(ctx context.Context, f Filter) ([]Order, error)
	// Replace updates the order status and swaps the full item set in one
	// transaction. decide receives the status read under the row lock and
	// returns the status to write; if it errors, nothing is changed. Any
	// failure leaves the previous items untouched.
	Replace(ctx context.Context, orderID uuid.UUID, decide func(current Status) (Status, error), items []ItemInput) error
	Delete(ctx context.Context, orderID uuid.UUID) error
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

// withTx runs fn inside a transaction, rolling back on error or panic.
func (r *postgresRepository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository: failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback after panic")
			}
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("repository: failed to rollback transaction")
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
		}
	}()

	err = fn(tx)
	return err
}

func (r *postgresRepository) Create(ctx context.Context, userID uuid.UUID, status Status, items []ItemInput) (uuid.UUID, error) {
	orderID, err := uuid.NewV4()
	if err != nil {
		return uuid.Nil, fmt.Errorf("repository: failed to generate order ID: %w", err)
	}

	err = r.withTx(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		var orderPK int64
		insertOrder := `
			INSERT INTO orders (order_id, user_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`
		if err := tx.QueryRow(ctx, insertOrder, orderID, userID, string(status), now, now).Scan(&orderPK); err != nil {
			return fmt.Errorf("repository: failed to insert order: %w", err)
		}
		return insertItems(ctx, tx, orderPK, items)
	})
	if err != nil {
		return uuid.Nil, err
	}

	return orderID, nil
}

func (r *postgresRepository) Replace(ctx context.Context, orderID uuid.UUID, decide func(current Status) (Status, error), items []ItemInput) error {
	return r.withTx(ctx, func(tx pgx.Tx) error {
		// Lock the order row so concurrent replacements of the same order
		// fully precede or follow each other.
		var orderPK int64
		var current Status
		err := tx.QueryRow(ctx, "SELECT id, status FROM orders WHERE order_id = $1 FOR UPDATE", orderID).
			Scan(&orderPK, &current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("repository: failed to lock order %s: %w", orderID, err)
		}

		// The lock holds until commit, so the status decide sees cannot be
		// changed underneath it by a concurrent writer.
		status, err := decide(current)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		_, err = tx.Exec(ctx, "UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3",
			string(status), now, orderPK)
		if err != nil {
			return fmt.Errorf("repository: failed to update order %s: %w", orderID, err)
		}

		// Destructive replace: drop every existing item, then recreate from
		// the new list. An empty list empties the order.
		if _, err := tx.Exec(ctx, "DELETE FROM order_items WHERE order_pk = $1", orderPK); err != nil {
			return fmt.Errorf("repository: failed to clear items for order %s: %w", orderID, err)
		}
		return insertItems(ctx, tx, orderPK, items)
	})
}

func insertItems(ctx context.Context, tx pgx.Tx, orderPK int64, items []ItemInput) error {
	query := `
		INSERT INTO order_items (order_pk, product_id, quantity)
		VALUES ($1, $2, $3)
	`
	for _, item := range items {
		if _, err := tx.Exec(ctx, query, orderPK, item.ProductID, item.Quantity); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return fmt.Errorf("%w: product %d", ErrProductNotFound, item.ProductID)
			}
			return fmt.Errorf("repository: failed to insert item for product %d: %w", item.ProductID, err)
		}
	}
	return nil
}

const orderColumns = "id, order_id, user_id, status, created_at, updated_at"

func (r *postgresRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*Order, error) {
	query := fmt.Sprintf("SELECT %s FROM orders WHERE order_id = $1", orderColumns)

	var o Order
	err := r.db.QueryRow(ctx, query, orderID).Scan(
		&o.ID, &o.OrderID, &o.UserID, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order %s: %w", orderID, err)
	}

	items, err := r.fetchItems(ctx, []int64{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	if o.Items == nil {
		o.Items = make([]Item, 0)
	}

	return &o, nil
}

func (r *postgresRepository) List(ctx context.Context, f Filter) ([]Order, error) {
	where, args := f.SQL()
	query := fmt.Sprintf("SELECT %s FROM orders %s ORDER BY created_at DESC", orderColumns, where)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	var pks []int64
	for rows.Next() {
		var o Order
		err := rows.Scan(&o.ID, &o.OrderID, &o.UserID, &o.Status, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order: %w", err)
		}
		o.Items = make([]Item, 0)
		orders = append(orders, o)
		pks = append(pks, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating orders: %w", err)
	}

	if len(pks) == 0 {
		return orders, nil
	}

	itemsByOrder, err := r.fetchItems(ctx, pks)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if items, ok := itemsByOrder[orders[i].ID]; ok {
			orders[i].Items = items
		}
	}

	return orders, nil
}

// fetchItems loads the flattened item rows for a batch of orders in one
// round trip, joined against the current product name and price.
func (r *postgresRepository) fetchItems(ctx context.Context, orderPKs []int64) (map[int64][]Item, error) {
	query := `
		SELECT oi.order_pk, oi.product_id, p.name, p.price, oi.quantity
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_pk = ANY($1)
		ORDER BY oi.id
	`
	rows, err := r.db.Query(ctx, query, orderPKs)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query order items: %w", err)
	}
	defer rows.Close()

	itemsByOrder := make(map[int64][]Item)
	for rows.Next() {
		var orderPK int64
		var item Item
		err := rows.Scan(&orderPK, &item.ProductID, &item.ProductName, &item.ProductPrice, &item.Quantity)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan order item: %w", err)
		}
		itemsByOrder[orderPK] = append(itemsByOrder[orderPK], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating order items: %w", err)
	}

	return itemsByOrder, nil
}

func (r *postgresRepository) Delete(ctx context.Context, orderID uuid.UUID) error {
	// order_items carries ON DELETE CASCADE, so the children go with the row.
	cmdTag, err := r.db.Exec(ctx, "DELETE FROM orders WHERE order_id = $1", orderID)
	if err != nil {
		return fmt.Errorf("repository: failed to delete order %s: %w", orderID, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
