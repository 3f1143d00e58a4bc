package saved

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
)

type SavedRepository struct {
	db *sql.DB
}

func NewSavedRepository(db *sql.DB) *SavedRepository {
	return &SavedRepository{db: db}
}

func (r *SavedRepository) IsSaved(ctx context.Context, userID, productID string) (bool, error) {
	var saved bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM saved_products WHERE user_id = $1 AND product_id = $2)
	`, userID, productID).Scan(&saved)
	if err != nil {
		return false, err
	}
	return saved, nil
}

// Save is idempotent: saving an already-saved product is a no-op, not an
// error. The unique (user_id, product_id) constraint backs this up.
func (r *SavedRepository) Save(ctx context.Context, userID, productID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO saved_products (id, user_id, product_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, product_id) DO NOTHING
	`, uuid.New().String(), userID, productID)
	return err
}

func (r *SavedRepository) Unsave(ctx context.Context, userID, savedID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM saved_products
		WHERE id = $1 AND user_id = $2
	`, savedID, userID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}

// List returns the user's saved products newest first, each with the full
// live product row.
func (r *SavedRepository) List(ctx context.Context, userID string) ([]domain.SavedProduct, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sp.id, sp.user_id, sp.product_id, sp.created_at,
			p.id, p.seller_id, p.name, p.description, p.price, p.category, p.image_url,
			p.company, p.perishable, p.expiry_date, p.priority, p.in_stock, p.quantity,
			p.created_at, p.updated_at
		FROM saved_products sp
		JOIN products p ON p.id = sp.product_id
		WHERE sp.user_id = $1
		ORDER BY sp.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	saved := []domain.SavedProduct{}
	for rows.Next() {
		var s domain.SavedProduct
		p := &domain.Product{}
		err := rows.Scan(
			&s.ID, &s.UserID, &s.ProductID, &s.CreatedAt,
			&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.Category, &p.ImageURL,
			&p.Company, &p.Perishable, &p.ExpiryDate, &p.Priority, &p.InStock, &p.Quantity,
			&p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		s.Product = p
		saved = append(saved, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return saved, nil
}
