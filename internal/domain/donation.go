package domain

import "time"

type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "pending"
	DonationStatusApproved  DonationStatus = "approved"
	DonationStatusFulfilled DonationStatus = "fulfilled"
	DonationStatusRejected  DonationStatus = "rejected"
)

// DonationRequest is submitted by a charitable organization, with or without
// an authenticated session.
type DonationRequest struct {
	ID             string         `json:"id"`
	Organization   string         `json:"organization"`
	ContactName    string         `json:"contact_name"`
	ContactEmail   string         `json:"contact_email"`
	ContactPhone   string         `json:"contact_phone,omitempty"`
	FoodTypes      []string       `json:"food_types"`
	QuantityText   string         `json:"quantity_text,omitempty"`
	Urgency        Priority       `json:"urgency"`
	Purpose        string         `json:"purpose,omitempty"`
	LogisticsNotes string         `json:"logistics_notes,omitempty"`
	Status         DonationStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

type DonationAllocation struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// DonationFulfillment records a seller accepting a request, with the product
// allocations whose stock was decremented.
type DonationFulfillment struct {
	ID          string               `json:"id"`
	RequestID   string               `json:"request_id"`
	SellerID    string               `json:"seller_id"`
	Status      string               `json:"status"`
	Allocations []DonationAllocation `json:"allocations"`
	CreatedAt   time.Time            `json:"created_at"`
}
