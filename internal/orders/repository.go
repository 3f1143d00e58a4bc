package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/database"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
)

// ErrEmptyCart is returned when checkout is attempted with no cart lines.
var ErrEmptyCart = errors.New("cart is empty")

// ErrAddressNotFound is returned when checkout names an address that does not
// exist or belongs to another user.
var ErrAddressNotFound = errors.New("address not found")

type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Place converts the user's cart into an order in one transaction: product
// rows are locked, stock is decremented with a conditional update, line items
// are snapshotted at current prices, and the cart is cleared. A failure at
// any step rolls the whole thing back.
func (r *OrderRepository) Place(ctx context.Context, userID, addressID, paymentMethod string) (*domain.Order, error) {
	order := &domain.Order{
		ID:            uuid.New().String(),
		UserID:        userID,
		Status:        domain.OrderStatusPending,
		AddressID:     addressID,
		PaymentMethod: paymentMethod,
		PaymentStatus: domain.PaymentStatusPending,
		CreatedAt:     time.Now().UTC(),
	}

	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		var addressExists bool
		err := tx.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM addresses WHERE id = $1 AND user_id = $2)
		`, addressID, userID).Scan(&addressExists)
		if err != nil {
			return fmt.Errorf("check address: %w", err)
		}
		if !addressExists {
			return ErrAddressNotFound
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT ci.product_id, ci.quantity, p.name, p.image_url, p.price
			FROM cart_items ci
			JOIN products p ON p.id = ci.product_id
			WHERE ci.user_id = $1
			ORDER BY ci.created_at
			FOR UPDATE OF p
		`, userID)
		if err != nil {
			return fmt.Errorf("load cart: %w", err)
		}

		var items []domain.OrderItem
		for rows.Next() {
			item := domain.OrderItem{ID: uuid.New().String(), OrderID: order.ID}
			if err := rows.Scan(&item.ProductID, &item.Quantity, &item.Name, &item.ImageURL, &item.UnitPrice); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scan cart line: %w", err)
			}
			items = append(items, item)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return fmt.Errorf("read cart: %w", err)
		}
		_ = rows.Close()

		if len(items) == 0 {
			return ErrEmptyCart
		}

		total := decimal.Zero
		for _, item := range items {
			total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		order.Total = total
		order.Items = items

		for _, item := range items {
			result, err := tx.ExecContext(ctx, `
				UPDATE products
				SET quantity = quantity - $2, in_stock = (quantity - $2 > 0), updated_at = NOW()
				WHERE id = $1 AND quantity >= $2
			`, item.ProductID, item.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock for product %s: %w", item.ProductID, err)
			}
			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if rowsAffected == 0 {
				return fmt.Errorf("product %s: %w", item.ProductID, domain.ErrInsufficientStock)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO orders (id, user_id, status, total, address_id, payment_method, payment_status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		`, order.ID, order.UserID, order.Status, order.Total, order.AddressID,
			order.PaymentMethod, order.PaymentStatus, order.CreatedAt)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, item := range items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO order_items (id, order_id, product_id, name, image_url, unit_price, quantity)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
			`, item.ID, order.ID, item.ProductID, item.Name, item.ImageURL, item.UnitPrice, item.Quantity)
			if err != nil {
				return fmt.Errorf("create order item: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, userID, id string) (*domain.Order, error) {
	order := &domain.Order{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, total, address_id, payment_method, payment_status, created_at
		FROM orders
		WHERE id = $1 AND user_id = $2
	`, id, userID).Scan(&order.ID, &order.UserID, &order.Status, &order.Total,
		&order.AddressID, &order.PaymentMethod, &order.PaymentStatus, &order.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	order.Items = []domain.OrderItem{}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, name, image_url, unit_price, quantity
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.ImageURL, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return order, nil
}

// ListByUser returns the user's orders newest first with nested items,
// fetched with one batched item query.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, status, total, address_id, payment_method, payment_status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orderMap := make(map[string]*domain.Order)
	var orderIDs []string

	for rows.Next() {
		var order domain.Order
		err := rows.Scan(&order.ID, &order.UserID, &order.Status, &order.Total,
			&order.AddressID, &order.PaymentMethod, &order.PaymentStatus, &order.CreatedAt)
		if err != nil {
			return nil, err
		}
		order.Items = []domain.OrderItem{}
		orderMap[order.ID] = &order
		orderIDs = append(orderIDs, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(orderIDs) == 0 {
		return []domain.Order{}, nil
	}

	itemRows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, name, image_url, unit_price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
	`, pq.Array(orderIDs))
	if err != nil {
		return nil, err
	}
	defer func() { _ = itemRows.Close() }()

	for itemRows.Next() {
		var item domain.OrderItem
		if err := itemRows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.ImageURL, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		orderMap[item.OrderID].Items = append(orderMap[item.OrderID].Items, item)
	}

	if err := itemRows.Err(); err != nil {
		return nil, err
	}

	result := make([]domain.Order, 0, len(orderIDs))
	for _, id := range orderIDs {
		result = append(result, *orderMap[id])
	}

	return result, nil
}

// Cancel moves an order to cancelled, allowed only while the status is still
// cancellable, and restores product stock in the same transaction. Returns
// the updated order, or nil when no matching order is visible to the user.
func (r *OrderRepository) Cancel(ctx context.Context, userID, id string) (*domain.Order, error) {
	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		var status domain.OrderStatus
		err := tx.QueryRowContext(ctx, `
			SELECT status FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE
		`, id, userID).Scan(&status)
		if err != nil {
			return err
		}

		if !status.Cancellable() {
			return domain.ErrInvalidTransition
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1
		`, id, domain.OrderStatusCancelled)
		if err != nil {
			return err
		}

		// Placement decremented stock, so cancellation compensates. Products
		// deleted since placement restore nothing.
		_, err = tx.ExecContext(ctx, `
			UPDATE products p
			SET quantity = p.quantity + oi.quantity, in_stock = TRUE, updated_at = NOW()
			FROM order_items oi
			WHERE oi.order_id = $1 AND p.id = oi.product_id
		`, id)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return r.GetByID(ctx, userID, id)
}

// UpdateStatus advances an order along the transition table. Used by the
// seller and logistics dashboards; not scoped to the buyer.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, next domain.OrderStatus) (*domain.Order, error) {
	var userID string
	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		var status domain.OrderStatus
		err := tx.QueryRowContext(ctx, `
			SELECT user_id, status FROM orders WHERE id = $1 FOR UPDATE
		`, id).Scan(&userID, &status)
		if err != nil {
			return err
		}

		if !status.CanTransitionTo(next) {
			return domain.ErrInvalidTransition
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1
		`, id, next)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return r.GetByID(ctx, userID, id)
}

// MarkPaid records the outcome of payment capture.
func (r *OrderRepository) MarkPaid(ctx context.Context, id string, status domain.PaymentStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET payment_status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}
