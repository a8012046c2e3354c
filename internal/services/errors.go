// Package services defines the business logic for lookup dispatch, user
// accounts, and the admin surface. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

var (
	// ErrInvalidQuery is returned when the raw input is empty, oversized,
	// fails the type's shape check, or names a type no source supports.
	// Invalid queries are rejected before touching cache or store.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrUserNotFound indicates the acting user is not registered.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserBanned indicates the acting user is soft-disabled.
	ErrUserBanned = errors.New("user is banned")

	// ErrInsufficientBalance is returned when a balance-guarded deduction
	// would go below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidCode is returned when a redeem code does not exist.
	ErrInvalidCode = errors.New("invalid code")

	// ErrCodeUsed is returned when a redeem code was already consumed.
	ErrCodeUsed = errors.New("code already used")

	// ErrDuplicate indicates the entity (blacklist entry, protected number,
	// redeem code) already exists.
	ErrDuplicate = errors.New("already exists")

	// ErrWritesHalted is returned once the store has been detected as
	// corrupt: cached reads are still served, but nothing new is accepted
	// for persistence until the operator intervenes.
	ErrWritesHalted = errors.New("store corrupt: writes halted")
)
