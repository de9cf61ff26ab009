package storage

import "errors"

// Common storage errors
var (
	// ErrRecordNotFound indicates that record was not found in storage
	ErrRecordNotFound = errors.New("record not found")

	// ErrTxClosed indicates that batch transaction is already finished
	ErrTxClosed = errors.New("batch transaction is closed")
)
