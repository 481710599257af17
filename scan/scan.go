// Package scan queries the reservation ledger across a bounded window of days
// and classifies each reservation as new or seen against a watermark.
package scan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"ehalisaha-notifier/dates"
	"ehalisaha-notifier/pkg/ledger"
)

// DefaultWindowDays bounds backend load per scan. A reservation dated beyond
// the window is invisible to the badge until the owner pages to it manually;
// that is a known product limitation, kept configurable rather than unbounded.
const DefaultWindowDays = 14

// Ledger fetches one day of the reservation ledger.
type Ledger interface {
	LedgerDay(ctx context.Context, facilityID int64, date string, pitchID int64) ([]*ledger.Reservation, error)
}

// Scanner runs bounded-window ledger scans. It never touches the watermark.
type Scanner struct {
	ledger Ledger
	logger *slog.Logger
}

// New creates a scanner.
func New(l Ledger, logger *slog.Logger) *Scanner {
	return &Scanner{ledger: l, logger: logger}
}

// Scan fetches windowDays consecutive dates starting at windowStart and
// aggregates reservations with id strictly above watermark.
//
// The per-day fetches run concurrently and the aggregation waits for all of
// them to settle. A day whose fetch fails contributes nothing; partial results
// beat a failed scan. The returned summary's MaxIDSeen is seeded with the
// watermark so it never regresses.
func (s *Scanner) Scan(ctx context.Context, facilityID int64, windowStart string, windowDays int, watermark int64) *ledger.ScanSummary {
	window := dates.Week(windowStart, windowDays)
	byDay := make([][]*ledger.Reservation, len(window))

	var wg sync.WaitGroup
	for i, date := range window {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := s.ledger.LedgerDay(ctx, facilityID, date, 0)
			if err != nil {
				s.logger.Warn("Ledger day fetch failed, skipping day",
					"facility_id", facilityID,
					"date", date,
					"error", err)
				return
			}
			byDay[i] = rows
		}()
	}
	wg.Wait()

	summary := &ledger.ScanSummary{
		MaxIDSeen: watermark,
		NewByDate: make(map[string]int64),
		ScannedAt: time.Now(),
	}

	for i, date := range window {
		for _, r := range byDay[i] {
			if r.ID > summary.MaxIDSeen {
				summary.MaxIDSeen = r.ID
			}
			if r.ID > watermark {
				summary.NewCount++
				summary.NewByDate[date]++
				if summary.EarliestNewDate == "" || date < summary.EarliestNewDate {
					summary.EarliestNewDate = date
				}
			}
		}
	}

	s.logger.Info("Ledger scan completed",
		"facility_id", facilityID,
		"window_start", windowStart,
		"window_days", windowDays,
		"watermark", watermark,
		"new_count", summary.NewCount,
		"earliest_new_date", summary.EarliestNewDate,
		"max_id_seen", summary.MaxIDSeen)

	return summary
}
