package repository

import "errors"

// ErrNotFound is returned when no ledger row matches the payment order id
// or fulfillment id asked for. Callers compare with errors.Is.
var ErrNotFound = errors.New("fulfillment record not found")
