// Package ledger contains the core domain types for the owner reservation-ledger notifier.
package ledger

import "time"

// Player is one participant on a reservation, as returned by the backend.
// A missing "paid" field decodes to false.
type Player struct {
	ID       int64  `json:"id"`
	FullName string `json:"fullName"`
	JerseyNo int    `json:"jerseyNo,omitempty"`
	Paid     bool   `json:"paid"`
}

// Reservation is one row of the owner reservation ledger.
// Identifiers are monotonically increasing per facility: a higher id means
// the reservation was created later. Everything in this module depends on that.
type Reservation struct {
	ID             int64     `json:"id"`
	FacilityID     int64     `json:"facilityId"`
	PitchID        int64     `json:"pitchId"`
	PitchName      string    `json:"pitchName"`
	MembershipID   int64     `json:"membershipId"`
	MemberUserID   int64     `json:"memberUserId"`
	MemberUsername string    `json:"memberUsername"`
	StartTime      time.Time `json:"startTime"`
	EndTime        time.Time `json:"endTime"`
	Status         string    `json:"status"`
	Players        []*Player `json:"players"`
}

// ScanSummary is the aggregate of one ledger scan for a facility.
// It is overwritten wholesale on each scan; there are no merge semantics.
type ScanSummary struct {
	NewCount        int64            `json:"new_count"`         // Total reservations above the watermark
	EarliestNewDate string           `json:"earliest_new_date"` // ISO date of the earliest day with new reservations, "" if none
	MaxIDSeen       int64            `json:"max_id_seen"`       // Highest id observed, seeded with the watermark
	NewByDate       map[string]int64 `json:"new_by_date"`       // ISO date -> new count; zero-count days omitted
	ScannedAt       time.Time        `json:"scanned_at"`        // When the scan ran
}

// DayBucket holds the ledger rows for one visible date, classified against
// the watermark current at load time. Buckets are ephemeral: they live in the
// pager for the currently open week and are dropped on refresh or selector change.
type DayBucket struct {
	Date         string         // ISO date
	Reservations []*Reservation // Sorted by start time, as the backend returns them
	NewCount     int64          // Rows with id above the watermark
}

// Total returns the number of reservations in the bucket.
func (b *DayBucket) Total() int {
	if b == nil {
		return 0
	}
	return len(b.Reservations)
}

// MaxID returns the highest reservation id in the bucket, 0 when empty.
func (b *DayBucket) MaxID() int64 {
	var maxID int64
	if b == nil {
		return 0
	}
	for _, r := range b.Reservations {
		if r.ID > maxID {
			maxID = r.ID
		}
	}
	return maxID
}

// Facility is an owner facility, used to populate selectors.
type Facility struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Pitch is one pitch within a facility.
type Pitch struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
