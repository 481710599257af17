package pager

import (
	"context"
	"fmt"
	"log/slog"

	"ehalisaha-notifier/dates"
)

// Service opens ledger views on demand. A Pager lives for one owner visit;
// the service builds one per Open call, so concurrent visits never share
// state.
type Service struct {
	backend    Ledger
	watermarks Watermarks
	hints      ScanHints
	logger     *slog.Logger
}

// NewService creates a ledger view service.
func NewService(backend Ledger, watermarks Watermarks, hints ScanHints, logger *slog.Logger) *Service {
	return &Service{
		backend:    backend,
		watermarks: watermarks,
		hints:      hints,
		logger:     logger,
	}
}

// Open runs one ledger visit for a facility: the initial week loads, selection
// snaps to the earliest unseen day, and everything visible is acknowledged.
// A non-zero pitchID narrows the view; a non-empty date focuses it after the
// initial open, paging to that date's week when needed.
func (s *Service) Open(ctx context.Context, facilityID, pitchID int64, date string) (View, error) {
	if date != "" && !dates.Valid(date) {
		return View{}, fmt.Errorf("invalid date %q", date)
	}

	p := New(s.backend, s.watermarks, s.hints, facilityID, s.logger)
	p.pitchID = pitchID
	if err := p.OpenInitial(ctx); err != nil {
		return View{}, fmt.Errorf("open ledger: %w", err)
	}
	if date != "" {
		if err := p.SelectDate(ctx, date); err != nil {
			return View{}, fmt.Errorf("select date: %w", err)
		}
	}
	return p.View(), nil
}
