package subsync

import "errors"

var (
	// ErrMappingNotFound is returned when no customer mapping exists
	ErrMappingNotFound = errors.New("customer mapping not found")

	// ErrSubscriptionNotFound is returned when a user has no subscription record
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrInvalidRecord is returned for records missing their natural key
	ErrInvalidRecord = errors.New("invalid record")

	// ErrStorageUnavailable is returned when storage is unavailable
	ErrStorageUnavailable = errors.New("storage unavailable")
)
