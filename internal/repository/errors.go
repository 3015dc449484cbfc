// Package repository defines the storage contracts of the slot table and
// the wallet ledger, together with their MySQL and in-memory
// implementations.  The sentinel errors below are shared by both
// implementations so that the service layer can translate them without
// knowing which store is in use.
package repository

import "errors"

// ErrNotFound is returned when a user or slot row does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned by CompareAndSwapSlot when the slot's
// version no longer matches the expected one, i.e. a concurrent writer
// committed first.
var ErrVersionConflict = errors.New("version conflict")

// ErrInsufficientFunds is returned when appending a ledger entry would
// drive the user's balance below zero.  The entry is not written.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrOccupantExists is returned when a user is assigned to a slot while
// already occupying another one.
var ErrOccupantExists = errors.New("user already occupies a slot")

// ErrDuplicate is returned when a unique user attribute (username or
// email) is already taken.
var ErrDuplicate = errors.New("duplicate entry")

// ErrBusy is returned when the database gave up waiting for a row lock or
// chose the transaction as a deadlock victim.  The operation did not
// commit and may be retried.
var ErrBusy = errors.New("storage busy")
