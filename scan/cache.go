package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"ehalisaha-notifier/pkg/ledger"
)

// Scan summary keys, one field per key so readers can pick what they need.
const (
	keyNewCount    = "eh_owner_last_scan_new_count_fac_"
	keyEarliestNew = "eh_owner_last_scan_earliest_new_date_fac_"
	keyMaxID       = "eh_owner_last_scan_max_id_fac_"
	keyNewByDate   = "eh_owner_last_scan_new_by_date_fac_"
	keyScannedAt   = "eh_owner_last_scan_at_fac_"
)

// KV is the persistence surface the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Cache stores the last scan summary per facility so the ledger pager can pick
// an initial day without re-scanning. Saves are last-write-wins; there is at
// most one logical writer per facility (the badge's polling loop).
type Cache struct {
	kv     KV
	logger *slog.Logger
}

// NewCache creates a scan summary cache.
func NewCache(kv KV, logger *slog.Logger) *Cache {
	return &Cache{kv: kv, logger: logger}
}

func fk(prefix string, facilityID int64) string {
	return prefix + strconv.FormatInt(facilityID, 10)
}

// Save overwrites the facility's cached summary unconditionally.
func (c *Cache) Save(ctx context.Context, facilityID int64, s *ledger.ScanSummary) error {
	byDate, err := json.Marshal(s.NewByDate)
	if err != nil {
		return fmt.Errorf("marshal new-by-date map: %w", err)
	}

	if err := c.kv.Set(ctx, fk(keyNewCount, facilityID), []byte(strconv.FormatInt(s.NewCount, 10))); err != nil {
		return fmt.Errorf("save new count: %w", err)
	}

	// An empty earliest date means "no new reservations"; the key is removed
	// so a stale value can never select a day.
	if s.EarliestNewDate != "" {
		if err := c.kv.Set(ctx, fk(keyEarliestNew, facilityID), []byte(s.EarliestNewDate)); err != nil {
			return fmt.Errorf("save earliest new date: %w", err)
		}
	} else if err := c.kv.Delete(ctx, fk(keyEarliestNew, facilityID)); err != nil {
		return fmt.Errorf("clear earliest new date: %w", err)
	}

	if err := c.kv.Set(ctx, fk(keyMaxID, facilityID), []byte(strconv.FormatInt(s.MaxIDSeen, 10))); err != nil {
		return fmt.Errorf("save max id: %w", err)
	}
	if err := c.kv.Set(ctx, fk(keyNewByDate, facilityID), byDate); err != nil {
		return fmt.Errorf("save new-by-date map: %w", err)
	}
	if err := c.kv.Set(ctx, fk(keyScannedAt, facilityID), []byte(strconv.FormatInt(s.ScannedAt.UnixMilli(), 10))); err != nil {
		return fmt.Errorf("save scan timestamp: %w", err)
	}

	c.logger.Debug("Scan summary cached", "facility_id", facilityID, "new_count", s.NewCount)
	return nil
}

// Load returns the facility's last cached summary. A facility never scanned,
// or one whose stored state is corrupt, loads as defaults: zero new, no
// earliest date. Load never fails.
func (c *Cache) Load(ctx context.Context, facilityID int64) *ledger.ScanSummary {
	s := &ledger.ScanSummary{NewByDate: map[string]int64{}}

	s.NewCount = c.readInt(ctx, fk(keyNewCount, facilityID))
	s.MaxIDSeen = c.readInt(ctx, fk(keyMaxID, facilityID))

	if data, err := c.kv.Get(ctx, fk(keyEarliestNew, facilityID)); err == nil {
		if d := strings.TrimSpace(string(data)); d != "" {
			s.EarliestNewDate = d
		}
	}

	if data, err := c.kv.Get(ctx, fk(keyNewByDate, facilityID)); err == nil {
		var m map[string]int64
		if jsonErr := json.Unmarshal(data, &m); jsonErr != nil {
			c.logger.Warn("Corrupt new-by-date map in cache, ignoring", "facility_id", facilityID, "error", jsonErr)
		} else if m != nil {
			s.NewByDate = m
		}
	}

	if ms := c.readInt(ctx, fk(keyScannedAt, facilityID)); ms > 0 {
		s.ScannedAt = time.UnixMilli(ms)
	}

	return s
}

func (c *Cache) readInt(ctx context.Context, key string) int64 {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
