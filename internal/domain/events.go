package domain

import "time"

const (
	TopicOrderPlaced       = "order.placed"
	TopicDonationFulfilled = "donation.fulfilled"
)

type OrderPlacedEvent struct {
	OrderID   string      `json:"order_id"`
	UserID    string      `json:"user_id"`
	Total     string      `json:"total"`
	Items     []OrderItem `json:"items"`
	Timestamp time.Time   `json:"timestamp"`
}

type DonationFulfilledEvent struct {
	RequestID     string               `json:"request_id"`
	FulfillmentID string               `json:"fulfillment_id"`
	SellerID      string               `json:"seller_id"`
	Organization  string               `json:"organization"`
	ContactEmail  string               `json:"contact_email"`
	Allocations   []DonationAllocation `json:"allocations"`
	Timestamp     time.Time            `json:"timestamp"`
}
