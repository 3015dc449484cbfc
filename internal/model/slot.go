package model

import "time"

// Slot is a single physical parking space.  Slots are pre-provisioned and
// only change through the reservation engine.  Every state change bumps
// Version, which doubles as the optimistic-concurrency token and as a
// staleness marker for polling clients.
//
// Invariant: OccupantUserID != nil implies OccupiedSince != nil.
type Slot struct {
	ID             uint64     // slots.id
	OccupantUserID *uint64    // slots.occupant_user_id (nullable)
	OccupiedSince  *time.Time // slots.occupied_since (nullable)
	Version        uint64     // slots.version
	UpdatedAt      time.Time  // slots.updated_at
}

// Occupied reports whether a user currently holds the slot.
func (s Slot) Occupied() bool { return s.OccupantUserID != nil }

// OccupiedBy reports whether the slot is held by userID.
func (s Slot) OccupiedBy(userID uint64) bool {
	return s.OccupantUserID != nil && *s.OccupantUserID == userID
}

// Occupant returns the occupant id or zero when the slot is empty.
func (s Slot) Occupant() uint64 {
	if s.OccupantUserID == nil {
		return 0
	}
	return *s.OccupantUserID
}

// SlotOccupancy is a slot joined with the username of its occupant, as
// read by the snapshot and admin paths.
type SlotOccupancy struct {
	Slot
	Username string
}
