package donations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ManaviP/dark-cart-emporium-sub001/internal/database"
	"github.com/ManaviP/dark-cart-emporium-sub001/internal/domain"
)

type DonationRepository struct {
	db *sql.DB
}

func NewDonationRepository(db *sql.DB) *DonationRepository {
	return &DonationRepository{db: db}
}

// Submit inserts a donation request. Status is always pending regardless of
// anything the caller supplied, and timestamps are server-assigned.
func (r *DonationRepository) Submit(ctx context.Context, req *domain.DonationRequest) error {
	req.ID = uuid.New().String()
	req.Status = domain.DonationStatusPending
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO donation_requests (id, organization, contact_name, contact_email, contact_phone,
			food_types, quantity_text, urgency, purpose, logistics_notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
	`, req.ID, req.Organization, req.ContactName, req.ContactEmail, req.ContactPhone,
		pq.Array(req.FoodTypes), req.QuantityText, req.Urgency, req.Purpose,
		req.LogisticsNotes, req.Status, now)
	return err
}

func scanRequest(row interface{ Scan(...any) error }) (*domain.DonationRequest, error) {
	req := &domain.DonationRequest{}
	err := row.Scan(
		&req.ID, &req.Organization, &req.ContactName, &req.ContactEmail, &req.ContactPhone,
		pq.Array(&req.FoodTypes), &req.QuantityText, &req.Urgency, &req.Purpose,
		&req.LogisticsNotes, &req.Status, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return req, nil
}

const requestColumns = `id, organization, contact_name, contact_email, contact_phone,
		food_types, quantity_text, urgency, purpose, logistics_notes, status, created_at, updated_at`

func (r *DonationRepository) GetByID(ctx context.Context, id string) (*domain.DonationRequest, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM donation_requests
		WHERE id = $1
	`, id)

	req, err := scanRequest(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return req, nil
}

func (r *DonationRepository) List(ctx context.Context, status domain.DonationStatus) ([]domain.DonationRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM donation_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	requests := []domain.DonationRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return requests, nil
}

// Accept fulfills a request in one transaction: the request is moved to
// fulfilled with a compare-and-set, a fulfillment with its allocations is
// recorded, and each allocated product's stock is decremented with a
// conditional update scoped to the accepting seller. Any failure rolls back
// every prior step.
func (r *DonationRepository) Accept(ctx context.Context, requestID, sellerID string, allocations []domain.DonationAllocation) (*domain.DonationFulfillment, error) {
	if len(allocations) == 0 {
		return nil, errors.New("at least one allocation is required")
	}
	for _, a := range allocations {
		if a.Quantity < 1 {
			return nil, errors.New("allocation quantity must be at least 1")
		}
	}

	fulfillment := &domain.DonationFulfillment{
		ID:          uuid.New().String(),
		RequestID:   requestID,
		SellerID:    sellerID,
		Status:      "processing",
		Allocations: allocations,
		CreatedAt:   time.Now().UTC(),
	}

	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE donation_requests
			SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = ANY($3)
		`, requestID, domain.DonationStatusFulfilled,
			pq.Array([]string{string(domain.DonationStatusPending), string(domain.DonationStatusApproved)}))
		if err != nil {
			return fmt.Errorf("fulfill request: %w", err)
		}

		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rowsAffected == 0 {
			var exists bool
			if err := tx.QueryRowContext(ctx,
				`SELECT EXISTS(SELECT 1 FROM donation_requests WHERE id = $1)`,
				requestID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return sql.ErrNoRows
			}
			return domain.ErrInvalidTransition
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO donation_fulfillments (id, request_id, seller_id, status, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, fulfillment.ID, requestID, sellerID, fulfillment.Status, fulfillment.CreatedAt)
		if err != nil {
			return fmt.Errorf("create fulfillment: %w", err)
		}

		for _, a := range allocations {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO donation_allocations (id, fulfillment_id, product_id, quantity)
				VALUES ($1, $2, $3, $4)
			`, uuid.New().String(), fulfillment.ID, a.ProductID, a.Quantity)
			if err != nil {
				return fmt.Errorf("create allocation: %w", err)
			}

			result, err := tx.ExecContext(ctx, `
				UPDATE products
				SET quantity = quantity - $3, in_stock = (quantity - $3 > 0), updated_at = NOW()
				WHERE id = $1 AND seller_id = $2 AND quantity >= $3
			`, a.ProductID, sellerID, a.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock for product %s: %w", a.ProductID, err)
			}

			rowsAffected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if rowsAffected == 0 {
				return fmt.Errorf("product %s: %w", a.ProductID, domain.ErrInsufficientStock)
			}
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return fulfillment, nil
}

// UpdateStatus applies a guarded status change using the donation transition
// table. The compare-and-set keeps concurrent writers from skipping states.
func (r *DonationRepository) UpdateStatus(ctx context.Context, id string, next domain.DonationStatus) (*domain.DonationRequest, error) {
	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		var status domain.DonationStatus
		err := tx.QueryRowContext(ctx, `
			SELECT status FROM donation_requests WHERE id = $1 FOR UPDATE
		`, id).Scan(&status)
		if err != nil {
			return err
		}

		if !status.CanTransitionTo(next) {
			return domain.ErrInvalidTransition
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE donation_requests SET status = $2, updated_at = NOW() WHERE id = $1
		`, id, next)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// ListFulfillmentsBySeller returns a seller's fulfillments newest first with
// their allocations.
func (r *DonationRepository) ListFulfillmentsBySeller(ctx context.Context, sellerID string) ([]domain.DonationFulfillment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, request_id, seller_id, status, created_at
		FROM donation_fulfillments
		WHERE seller_id = $1
		ORDER BY created_at DESC
	`, sellerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	fulfillmentMap := make(map[string]*domain.DonationFulfillment)
	var ids []string

	for rows.Next() {
		var f domain.DonationFulfillment
		if err := rows.Scan(&f.ID, &f.RequestID, &f.SellerID, &f.Status, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.Allocations = []domain.DonationAllocation{}
		fulfillmentMap[f.ID] = &f
		ids = append(ids, f.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []domain.DonationFulfillment{}, nil
	}

	allocRows, err := r.db.QueryContext(ctx, `
		SELECT fulfillment_id, product_id, quantity
		FROM donation_allocations
		WHERE fulfillment_id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer func() { _ = allocRows.Close() }()

	for allocRows.Next() {
		var fulfillmentID string
		var a domain.DonationAllocation
		if err := allocRows.Scan(&fulfillmentID, &a.ProductID, &a.Quantity); err != nil {
			return nil, err
		}
		fulfillmentMap[fulfillmentID].Allocations = append(fulfillmentMap[fulfillmentID].Allocations, a)
	}

	if err := allocRows.Err(); err != nil {
		return nil, err
	}

	result := make([]domain.DonationFulfillment, 0, len(ids))
	for _, id := range ids {
		result = append(result, *fulfillmentMap[id])
	}

	return result, nil
}
