// Package pager drives the owner's reservation-ledger view: a 7-day window
// paged by week, with automatic jump to the earliest day holding unseen
// reservations and the one code path that advances the seen watermark.
package pager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ehalisaha-notifier/dates"
	"ehalisaha-notifier/pkg/ledger"
)

// DaysPerPage is the width of one ledger page.
const DaysPerPage = 7

// Ledger is the backend surface the pager needs.
type Ledger interface {
	LedgerDay(ctx context.Context, facilityID int64, date string, pitchID int64) ([]*ledger.Reservation, error)
	SetPlayerPaid(ctx context.Context, reservationID, playerRef int64, paid bool) error
}

// Watermarks reads and raises the per-facility seen watermark.
type Watermarks interface {
	Get(ctx context.Context, facilityID int64) int64
	Raise(ctx context.Context, facilityID int64, candidate int64)
}

// ScanHints exposes the badge's last scan summary.
type ScanHints interface {
	Load(ctx context.Context, facilityID int64) *ledger.ScanSummary
}

// Pager holds the ledger view state for one facility.
// It is not safe for concurrent use; like the page it models, all operations
// run on one logical thread.
type Pager struct {
	backend    Ledger
	watermarks Watermarks
	hints      ScanHints
	logger     *slog.Logger

	facilityID int64
	pitchID    int64 // 0 means all pitches

	pageStart    string // Monday of the displayed week
	selectedDate string
	threshold    int64 // watermark snapshot from the latest week load
	buckets      map[string]*ledger.DayBucket
}

// New creates a pager for a facility.
func New(backend Ledger, watermarks Watermarks, hints ScanHints, facilityID int64, logger *slog.Logger) *Pager {
	return &Pager{
		backend:    backend,
		watermarks: watermarks,
		hints:      hints,
		logger:     logger,
		facilityID: facilityID,
		buckets:    make(map[string]*ledger.DayBucket),
	}
}

// PageStart returns the Monday of the currently displayed week.
func (p *Pager) PageStart() string { return p.pageStart }

// SelectedDate returns the date the view is focused on.
func (p *Pager) SelectedDate() string { return p.selectedDate }

// OpenInitial decides where the ledger opens: the scan cache's earliest new
// date when it names a valid one, otherwise today. After the week loads,
// selection snaps to the first day in the page with unseen reservations, and
// the visit is marked seen exactly once.
func (p *Pager) OpenInitial(ctx context.Context) error {
	initial := dates.Today()
	if hint := p.hints.Load(ctx, p.facilityID); dates.Valid(hint.EarliestNewDate) {
		initial = hint.EarliestNewDate
	}

	p.pageStart = dates.StartOfWeek(initial)
	p.selectedDate = initial

	if err := p.LoadWeek(ctx); err != nil {
		return err
	}

	for _, d := range dates.Week(p.pageStart, DaysPerPage) {
		if b := p.buckets[d]; b != nil && b.NewCount > 0 {
			p.selectedDate = d
			break
		}
	}

	p.MarkSeen(ctx)
	return nil
}

// LoadWeek fetches buckets for the 7 dates of the current page. The fetches
// run concurrently and the method returns after all of them settle. A failed
// day yields an empty bucket for that day only. Classification uses the
// watermark as it stands now, not as it stood at scan time.
func (p *Pager) LoadWeek(ctx context.Context) error {
	if p.pageStart == "" {
		return errors.New("pager: no page start set")
	}

	p.threshold = p.watermarks.Get(ctx, p.facilityID)
	week := dates.Week(p.pageStart, DaysPerPage)

	loaded := make([]*ledger.DayBucket, len(week))
	var wg sync.WaitGroup
	for i, date := range week {
		if cached, ok := p.buckets[date]; ok {
			cached.NewCount = countNew(cached.Reservations, p.threshold)
			loaded[i] = cached
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := p.backend.LedgerDay(ctx, p.facilityID, date, p.pitchID)
			if err != nil {
				p.logger.Warn("Ledger day load failed, showing empty day",
					"facility_id", p.facilityID,
					"date", date,
					"error", err)
				rows = nil
			}
			loaded[i] = &ledger.DayBucket{
				Date:         date,
				Reservations: rows,
				NewCount:     countNew(rows, p.threshold),
			}
		}()
	}
	wg.Wait()

	for i, date := range week {
		p.buckets[date] = loaded[i]
	}

	p.logger.Debug("Week loaded",
		"facility_id", p.facilityID,
		"page_start", p.pageStart,
		"threshold", p.threshold)
	return ctx.Err()
}

// SelectDate focuses the view on a date. A date outside the current week
// recomputes the page to that date's Monday and reloads; a date inside the
// week just switches selection using the cached buckets.
func (p *Pager) SelectDate(ctx context.Context, date string) error {
	if !dates.Valid(date) {
		return fmt.Errorf("invalid date %q", date)
	}
	p.selectedDate = date

	weekStart := dates.StartOfWeek(date)
	if weekStart != p.pageStart {
		p.pageStart = weekStart
		return p.LoadWeek(ctx)
	}
	return nil
}

// PageForward shifts the page one week later and reloads.
func (p *Pager) PageForward(ctx context.Context) error {
	return p.shift(ctx, DaysPerPage)
}

// PageBackward shifts the page one week earlier and reloads.
func (p *Pager) PageBackward(ctx context.Context) error {
	return p.shift(ctx, -DaysPerPage)
}

func (p *Pager) shift(ctx context.Context, days int) error {
	p.pageStart = dates.AddDays(p.pageStart, days)
	if dates.StartOfWeek(p.selectedDate) != p.pageStart {
		p.selectedDate = p.pageStart
	}
	return p.LoadWeek(ctx)
}

// Refresh drops every cached bucket and refetches the current week.
func (p *Pager) Refresh(ctx context.Context) error {
	p.buckets = make(map[string]*ledger.DayBucket)
	return p.LoadWeek(ctx)
}

// SetPitch narrows the view to one pitch (0 for all), refetches, and
// re-acknowledges what the narrowed week shows. Changing the filter is still
// the owner looking at the ledger, so it counts as a visit.
func (p *Pager) SetPitch(ctx context.Context, pitchID int64) error {
	p.pitchID = pitchID
	if err := p.Refresh(ctx); err != nil {
		return err
	}
	p.MarkSeen(ctx)
	return nil
}

// SetFacility switches the view to another facility and re-opens it from
// scratch: the pitch filter resets, cached buckets are dropped, and the
// initial-day logic runs against the new facility's scan hint and watermark.
func (p *Pager) SetFacility(ctx context.Context, facilityID int64) error {
	p.facilityID = facilityID
	p.pitchID = 0
	p.buckets = make(map[string]*ledger.DayBucket)
	return p.OpenInitial(ctx)
}

// MarkSeen acknowledges everything currently visible: the maximum reservation
// id across cached buckets and the last scan's high id goes to the watermark
// store, which only accepts it if it moves forward. This is the sole path
// that advances the watermark; polling never calls it.
func (p *Pager) MarkSeen(ctx context.Context) {
	candidate := p.hints.Load(ctx, p.facilityID).MaxIDSeen
	for _, b := range p.buckets {
		if id := b.MaxID(); id > candidate {
			candidate = id
		}
	}
	p.watermarks.Raise(ctx, p.facilityID, candidate)
}

// TogglePlayerPaid flips the payment flag of the playerIndex-th player on a
// reservation in the selected day. The backend is addressed by player id when
// the row carries one, by index otherwise. Local state changes only after the
// backend confirms; on failure the view keeps showing last-confirmed truth.
func (p *Pager) TogglePlayerPaid(ctx context.Context, reservationID int64, playerIndex int) error {
	bucket := p.buckets[p.selectedDate]
	if bucket == nil {
		return fmt.Errorf("no loaded day %q", p.selectedDate)
	}

	var target *ledger.Reservation
	for _, r := range bucket.Reservations {
		if r.ID == reservationID {
			target = r
			break
		}
	}
	if target == nil {
		return fmt.Errorf("reservation %d not in day %s", reservationID, p.selectedDate)
	}
	if playerIndex < 0 || playerIndex >= len(target.Players) {
		return fmt.Errorf("reservation %d has no player %d", reservationID, playerIndex)
	}

	player := target.Players[playerIndex]
	next := !player.Paid

	playerRef := int64(playerIndex)
	if player.ID > 0 {
		playerRef = player.ID
	}

	if err := p.backend.SetPlayerPaid(ctx, reservationID, playerRef, next); err != nil {
		p.logger.Warn("Payment toggle failed, keeping local state",
			"reservation_id", reservationID,
			"player_index", playerIndex,
			"error", err)
		return fmt.Errorf("set player paid: %w", err)
	}

	player.Paid = next
	p.logger.Info("Player payment toggled",
		"reservation_id", reservationID,
		"player_index", playerIndex,
		"paid", next)
	return nil
}

func countNew(rows []*ledger.Reservation, threshold int64) int64 {
	var n int64
	for _, r := range rows {
		if r.ID > threshold {
			n++
		}
	}
	return n
}
