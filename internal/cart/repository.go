package cart

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
)

type CartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

// Get returns the user's cart joined with live product rows. Line subtotals
// and the cart total always reflect current catalog prices.
func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at,
			p.name, p.price, p.image_url, p.category, p.in_stock, p.quantity, p.seller_id
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cart := &domain.Cart{Items: []domain.CartItem{}, Total: decimal.Zero}
	for rows.Next() {
		var item domain.CartItem
		err := rows.Scan(
			&item.ID, &item.UserID, &item.ProductID, &item.Quantity, &item.CreatedAt,
			&item.Product.Name, &item.Product.Price, &item.Product.ImageURL,
			&item.Product.Category, &item.Product.InStock, &item.Product.Quantity,
			&item.Product.SellerID,
		)
		if err != nil {
			return nil, err
		}
		item.Subtotal = item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		cart.Total = cart.Total.Add(item.Subtotal)
		cart.Items = append(cart.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return cart, nil
}

// Add creates a cart line for (user, product) or increments the existing one.
// The unique constraint plus the upsert keeps one row per pair even under
// concurrent adds.
func (r *CartRepository) Add(ctx context.Context, userID, productID string, quantity int) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cart_items (id, user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
	`, uuid.New().String(), userID, productID, quantity)
	return err
}

// UpdateQuantity sets the stored quantity. Anything below 1 removes the line.
func (r *CartRepository) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (bool, error) {
	if quantity < 1 {
		return r.Remove(ctx, userID, itemID)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE cart_items
		SET quantity = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, itemID, userID, quantity)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// Remove deletes a line scoped to both the item and the user, so one user
// cannot delete another's row by id.
func (r *CartRepository) Remove(ctx context.Context, userID, itemID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE id = $1 AND user_id = $2
	`, itemID, userID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_items
		WHERE user_id = $1
	`, userID)
	return err
}
