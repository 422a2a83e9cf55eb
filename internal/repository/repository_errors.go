package repository

import "errors"

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrAddressNotFound      = errors.New("address not found")
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrVersionConflict means an optimistic version check failed: the
	// row was modified by a concurrent writer since it was loaded.
	ErrVersionConflict = errors.New("version conflict")
)
