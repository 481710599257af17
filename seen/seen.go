// Package seen tracks the highest reservation id an owner has acknowledged.
//
// The watermark only ever moves forward. The badge reads it to classify
// reservations; only the ledger pager's mark-seen step raises it. Persistence
// failures degrade to "everything is new", which over-notifies but never
// hides a reservation.
package seen

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

const (
	facilityKeyPrefix = "eh_owner_seen_res_max_id_fac_"
	globalKey         = "eh_owner_seen_res_max_id"
)

// KV is the persistence surface the watermark needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Store reads and raises per-facility watermarks.
type Store struct {
	kv     KV
	logger *slog.Logger
}

// New creates a watermark store over the given key-value persistence.
func New(kv KV, logger *slog.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

func facilityKey(facilityID int64) string {
	return facilityKeyPrefix + strconv.FormatInt(facilityID, 10)
}

// Get returns the watermark for a facility: the facility-specific value when
// one is recorded, else the global fallback, else 0. Never fails; storage
// errors and malformed values read as 0.
func (s *Store) Get(ctx context.Context, facilityID int64) int64 {
	if v := s.read(ctx, facilityKey(facilityID)); v > 0 {
		return v
	}
	return s.read(ctx, globalKey)
}

// Raise records candidate as the facility's watermark if it exceeds the
// current value, and raises the global fallback under the same rule.
// Non-positive candidates and storage failures are silent no-ops.
func (s *Store) Raise(ctx context.Context, facilityID int64, candidate int64) {
	if candidate <= 0 {
		return
	}

	if cur := s.Get(ctx, facilityID); candidate > cur {
		if err := s.write(ctx, facilityKey(facilityID), candidate); err != nil {
			s.logger.Warn("Failed to persist facility watermark", "facility_id", facilityID, "candidate", candidate, "error", err)
		} else {
			s.logger.Info("Watermark raised", "facility_id", facilityID, "from", cur, "to", candidate)
		}
	}

	// The global key is a read-fallback for facilities with no recorded value;
	// it follows the same monotonic rule but never shadows a facility key.
	if g := s.read(ctx, globalKey); candidate > g {
		if err := s.write(ctx, globalKey, candidate); err != nil {
			s.logger.Warn("Failed to persist global watermark", "candidate", candidate, "error", err)
		}
	}
}

func (s *Store) read(ctx context.Context, key string) int64 {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func (s *Store) write(ctx context.Context, key string, v int64) error {
	if err := s.kv.Set(ctx, key, []byte(strconv.FormatInt(v, 10))); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
