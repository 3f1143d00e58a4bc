package domain

import "errors"

// ErrInvalidTransition is returned when a status change is not allowed by
// the transition table for its workflow.
var ErrInvalidTransition = errors.New("invalid status transition")

// ErrInsufficientStock is returned when an inventory decrement asks for more
// units than a product currently has.
var ErrInsufficientStock = errors.New("insufficient stock")

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:        {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing:     {OrderStatusReadyForPickup, OrderStatusCancelled},
	OrderStatusReadyForPickup: {OrderStatusDispatched},
	OrderStatusDispatched:     {OrderStatusDelivered},
	OrderStatusDelivered:      {},
	OrderStatusCancelled:      {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionTo reports whether the order may move from s to next.
// The happy path is forward-only; cancellation is a side exit available
// only from pending and processing.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether an order in status s may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

// Valid reports whether s is a payment status the capture endpoint accepts.
// Payment has no transition table; capture simply records the outcome.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed:
		return true
	}
	return false
}

var donationTransitions = map[DonationStatus][]DonationStatus{
	DonationStatusPending:  {DonationStatusApproved, DonationStatusRejected, DonationStatusFulfilled},
	DonationStatusApproved: {DonationStatusFulfilled, DonationStatusRejected},
	DonationStatusFulfilled: {},
	DonationStatusRejected:  {},
}

func (s DonationStatus) Valid() bool {
	_, ok := donationTransitions[s]
	return ok
}

func (s DonationStatus) CanTransitionTo(next DonationStatus) bool {
	for _, allowed := range donationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
