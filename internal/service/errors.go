package service

import "errors"

var (
	// ErrVehicleUnavailable is returned when the quote has no 2 Wheeler tier.
	ErrVehicleUnavailable = errors.New("2 Wheeler option not available")

	// ErrInvalidDropLocation is returned when drop lat/lng are missing or not numeric.
	ErrInvalidDropLocation = errors.New("drop_details must include numeric lat and lng")

	// ErrMissingDropDetails is returned when an order has no drop point.
	ErrMissingDropDetails = errors.New("drop_details is required")

	// ErrMissingOrderID is returned when tracking is requested without an order id.
	ErrMissingOrderID = errors.New("order_id is required")

	// ErrInvalidAmount is returned when checkout amount is not positive.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrPaymentFailed is returned when the storefront reports a failed payment.
	ErrPaymentFailed = errors.New("payment failed")

	// ErrPaymentUnverified is returned when the payment signature does not verify.
	ErrPaymentUnverified = errors.New("payment verification failed")

	// ErrMissingOrderDetails is returned when verify carries no order to dispatch.
	ErrMissingOrderDetails = errors.New("orderDetails is required")

	// ErrSessionNotFound is returned when the payment session is unknown,
	// expired or already used for a dispatch.
	ErrSessionNotFound = errors.New("payment session not found or already used")
)
