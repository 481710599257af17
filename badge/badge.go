// Package badge runs the notification badge loop: it periodically scans the
// ledger for reservations above the seen watermark and publishes the unseen
// count. It only ever reads the watermark. That one-way dependency is what
// makes the badge sticky: the count cannot disappear until the owner actually
// opens the ledger.
package badge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ehalisaha-notifier/dates"
	"ehalisaha-notifier/pkg/ledger"
	"ehalisaha-notifier/scan"
)

// DefaultInterval matches the original page's 25-second badge refresh.
const DefaultInterval = 25 * time.Second

// Scanner runs one bounded-window ledger scan.
type Scanner interface {
	Scan(ctx context.Context, facilityID int64, windowStart string, windowDays int, watermark int64) *ledger.ScanSummary
}

// Watermarks reads the seen watermark. There is deliberately no raise here.
type Watermarks interface {
	Get(ctx context.Context, facilityID int64) int64
}

// Cache stores scan summaries for the pager to consume.
type Cache interface {
	Save(ctx context.Context, facilityID int64, s *ledger.ScanSummary) error
}

// Facilities lists the owner's facilities to poll.
type Facilities interface {
	Facilities(ctx context.Context) ([]*ledger.Facility, error)
}

// Badge polls the scanner and renders the unseen count.
type Badge struct {
	scanner    Scanner
	watermarks Watermarks
	cache      Cache
	facilities Facilities
	renderer   Renderer
	logger     *slog.Logger
	interval   time.Duration
	windowDays int
}

// Config holds badge configuration.
type Config struct {
	Scanner    Scanner
	Watermarks Watermarks
	Cache      Cache
	Facilities Facilities
	Renderer   Renderer
	Logger     *slog.Logger
	Interval   time.Duration // 0 means DefaultInterval
	WindowDays int           // 0 means scan.DefaultWindowDays
}

// New creates a badge poller.
func New(cfg *Config) *Badge {
	b := &Badge{
		scanner:    cfg.Scanner,
		watermarks: cfg.Watermarks,
		cache:      cfg.Cache,
		facilities: cfg.Facilities,
		renderer:   cfg.Renderer,
		logger:     cfg.Logger,
		interval:   cfg.Interval,
		windowDays: cfg.WindowDays,
	}
	if b.interval <= 0 {
		b.interval = DefaultInterval
	}
	if b.windowDays <= 0 {
		b.windowDays = scan.DefaultWindowDays
	}
	return b
}

// Poll scans one facility's window starting today, caches the summary and
// renders the count. The watermark is read, never raised.
func (b *Badge) Poll(ctx context.Context, facilityID int64) error {
	watermark := b.watermarks.Get(ctx, facilityID)
	summary := b.scanner.Scan(ctx, facilityID, dates.Today(), b.windowDays, watermark)

	if err := b.cache.Save(ctx, facilityID, summary); err != nil {
		// The badge still renders; only the pager's initial-day hint is stale.
		b.logger.Warn("Failed to cache scan summary", "facility_id", facilityID, "error", err)
	}

	if err := b.renderer.Render(ctx, facilityID, summary); err != nil {
		return fmt.Errorf("render badge: %w", err)
	}
	return nil
}

// PollAll polls every facility the owner has. Per-facility failures are
// logged and do not stop the cycle.
func (b *Badge) PollAll(ctx context.Context) error {
	facilities, err := b.facilities.Facilities(ctx)
	if err != nil {
		return fmt.Errorf("list facilities: %w", err)
	}

	for _, f := range facilities {
		if err := b.Poll(ctx, f.ID); err != nil {
			b.logger.Warn("Badge poll failed", "facility_id", f.ID, "error", err)
		}
	}
	return nil
}

// Run polls immediately and then on the fixed interval until ctx is done.
// There is no overlap guard between ticks: a slow cycle may overlap the next
// one, and the cache's last-write-wins semantics make that harmless.
func (b *Badge) Run(ctx context.Context) {
	b.logger.Info("Badge poller starting", "interval", b.interval.String(), "window_days", b.windowDays)

	if err := b.PollAll(ctx); err != nil {
		b.logger.Warn("Initial badge poll failed", "error", err)
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Badge poller stopping", "error", ctx.Err())
			return
		case <-ticker.C:
			if err := b.PollAll(ctx); err != nil {
				b.logger.Warn("Badge poll cycle failed", "error", err)
			}
		}
	}
}
