package catalog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
)

type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

const productColumns = `id, seller_id, name, description, price, category, image_url, company,
		perishable, expiry_date, priority, in_stock, quantity, created_at, updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID, &p.SellerID, &p.Name, &p.Description, &p.Price, &p.Category,
		&p.ImageURL, &p.Company, &p.Perishable, &p.ExpiryDate, &p.Priority,
		&p.InStock, &p.Quantity, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ProductRepository) Create(ctx context.Context, p *domain.Product) error {
	p.ID = uuid.New().String()
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.InStock = p.Quantity > 0

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, seller_id, name, description, price, category, image_url,
			company, perishable, expiry_date, priority, in_stock, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
	`, p.ID, p.SellerID, p.Name, p.Description, p.Price, p.Category, p.ImageURL,
		p.Company, p.Perishable, p.ExpiryDate, p.Priority, p.InStock, p.Quantity, now)
	return err
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)

	p, err := scanProduct(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

type ListFilter struct {
	Category string
	SellerID string
}

func (r *ProductRepository) List(ctx context.Context, filter ListFilter) ([]domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR seller_id = $2)
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, filter.Category, filter.SellerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

// Update rewrites the seller-editable fields. Writes are scoped to the owning
// seller; a cross-seller update looks like a missing row.
func (r *ProductRepository) Update(ctx context.Context, sellerID string, p *domain.Product) (*domain.Product, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET name = $3, description = $4, price = $5, category = $6, image_url = $7,
			company = $8, perishable = $9, expiry_date = $10, priority = $11,
			quantity = $12, in_stock = ($12 > 0), updated_at = NOW()
		WHERE id = $1 AND seller_id = $2
	`, p.ID, sellerID, p.Name, p.Description, p.Price, p.Category, p.ImageURL,
		p.Company, p.Perishable, p.ExpiryDate, p.Priority, p.Quantity)
	if err != nil {
		return nil, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, nil
	}

	return r.GetByID(ctx, p.ID)
}

func (r *ProductRepository) Delete(ctx context.Context, sellerID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM products
		WHERE id = $1 AND seller_id = $2
	`, id, sellerID)
	if err != nil {
		return false, err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}
