package addresses

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
)

type AddressRepository struct {
	db *sql.DB
}

func NewAddressRepository(db *sql.DB) *AddressRepository {
	return &AddressRepository{db: db}
}

func (r *AddressRepository) Create(ctx context.Context, a *domain.Address) error {
	a.ID = uuid.New().String()
	a.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO addresses (id, user_id, label, line1, line2, city, state, postal_code, phone, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, a.ID, a.UserID, a.Label, a.Line1, a.Line2, a.City, a.State, a.PostalCode, a.Phone, a.IsDefault, a.CreatedAt)
	return err
}

func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]domain.Address, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, label, line1, line2, city, state, postal_code, phone, is_default, created_at
		FROM addresses
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	list := []domain.Address{}
	for rows.Next() {
		var a domain.Address
		err := rows.Scan(&a.ID, &a.UserID, &a.Label, &a.Line1, &a.Line2, &a.City,
			&a.State, &a.PostalCode, &a.Phone, &a.IsDefault, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		list = append(list, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (r *AddressRepository) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM addresses WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected > 0, nil
}
