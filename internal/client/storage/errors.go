package storage

import "errors"

// Common client storage errors
var (
	// ErrRecordNotFound indicates that local record was not found
	ErrRecordNotFound = errors.New("record not found")

	// ErrStateNotFound indicates that no sync state exists for the partition
	ErrStateNotFound = errors.New("sync state not found")

	// ErrOutboxEntryNotFound indicates that outbox entry was not found
	ErrOutboxEntryNotFound = errors.New("outbox entry not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
