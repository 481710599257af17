// Package server exposes the notifier over HTTP: health, a poll trigger for
// the scheduler, badge state as JSON, and an embedded status page.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"ehalisaha-notifier/dates"
	"ehalisaha-notifier/pager"
	"ehalisaha-notifier/pkg/ledger"
)

//go:embed tmpl/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "tmpl/*.tmpl"))

// scanCountPrefix is the cache key family used to discover which facilities
// have been scanned.
const scanCountPrefix = "eh_owner_last_scan_new_count_fac_"

// Poller triggers a badge poll cycle.
type Poller interface {
	PollAll(ctx context.Context) error
}

// Hints reads cached scan summaries.
type Hints interface {
	Load(ctx context.Context, facilityID int64) *ledger.ScanSummary
}

// KeyLister enumerates persisted keys by prefix.
type KeyLister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// Ledgers opens the owner's ledger view. Opening counts as a visit and
// acknowledges what the view shows.
type Ledgers interface {
	Open(ctx context.Context, facilityID, pitchID int64, date string) (pager.View, error)
}

// Server handles HTTP requests.
type Server struct {
	poller  Poller
	hints   Hints
	keys    KeyLister
	ledgers Ledgers
	logger  *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Poller  Poller
	Hints   Hints
	Keys    KeyLister
	Ledgers Ledgers
	Logger  *slog.Logger
}

// New creates the HTTP server handler.
func New(cfg *Config) *Server {
	return &Server{
		poller:  cfg.Poller,
		hints:   cfg.Hints,
		keys:    cfg.Keys,
		ledgers: cfg.Ledgers,
		logger:  cfg.Logger,
	}
}

// Routes returns the request multiplexer with all endpoints registered.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/pollz", s.handlePoll)
	mux.HandleFunc("/badgez", s.handleBadge)
	mux.HandleFunc("/ledgerz", s.handleLedger)
	return mux
}

// ListenAndServe serves until failure.
func (s *Server) ListenAndServe(port string) error {
	// Timeouts prevent resource exhaustion from slow clients
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Routes(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.logger.Info("Starting HTTP server", "port", port)
	return server.ListenAndServe()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"healthy"}`); err != nil {
		s.logger.Warn("Failed to write health response", "error", err)
	}
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.logger.Info("Poll endpoint triggered")

	if err := s.poller.PollAll(r.Context()); err != nil {
		s.logger.Error("Poll cycle failed", "error", err)
		http.Error(w, "Poll failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, `{"status":"completed"}`); err != nil {
		s.logger.Warn("Failed to write response", "error", err)
	}
}

type badgeResponse struct {
	FacilityID      int64  `json:"facility_id"`
	NewCount        int64  `json:"new_count"`
	Visible         bool   `json:"visible"`
	EarliestNewDate string `json:"earliest_new_date,omitempty"`
	ScannedAt       string `json:"scanned_at,omitempty"`
}

func (s *Server) handleBadge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	facilityID, err := strconv.ParseInt(r.URL.Query().Get("facilityId"), 10, 64)
	if err != nil || facilityID <= 0 {
		http.Error(w, "facilityId query parameter required", http.StatusBadRequest)
		return
	}

	summary := s.hints.Load(r.Context(), facilityID)
	resp := badgeResponse{
		FacilityID:      facilityID,
		NewCount:        summary.NewCount,
		Visible:         summary.NewCount > 0,
		EarliestNewDate: summary.EarliestNewDate,
	}
	if !summary.ScannedAt.IsZero() {
		resp.ScannedAt = summary.ScannedAt.Format(time.RFC3339)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("Failed to write badge response", "error", err)
	}
}

// handleLedger serves one ledger visit: the week view for a facility, with
// selection snapped to the earliest unseen day. Opening it acknowledges the
// visible reservations, which is what clears the badge.
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	facilityID, err := strconv.ParseInt(q.Get("facilityId"), 10, 64)
	if err != nil || facilityID <= 0 {
		http.Error(w, "facilityId query parameter required", http.StatusBadRequest)
		return
	}

	var pitchID int64
	if raw := q.Get("pitchId"); raw != "" {
		pitchID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || pitchID < 0 {
			http.Error(w, "invalid pitchId", http.StatusBadRequest)
			return
		}
	}

	date := q.Get("date")
	if date != "" && !dates.Valid(date) {
		http.Error(w, "invalid date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	view, err := s.ledgers.Open(r.Context(), facilityID, pitchID, date)
	if err != nil {
		s.logger.Error("Ledger open failed", "facility_id", facilityID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		s.logger.Warn("Failed to write ledger response", "error", err)
	}
}

type statusRow struct {
	EarliestNewDate string
	ScannedAt       string
	FacilityID      int64
	NewCount        int64
	MaxIDSeen       int64
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	ids, err := s.scannedFacilities(r.Context())
	if err != nil {
		s.logger.Error("Failed to list scanned facilities", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	rows := make([]statusRow, 0, len(ids))
	for _, id := range ids {
		summary := s.hints.Load(r.Context(), id)
		row := statusRow{
			FacilityID:      id,
			NewCount:        summary.NewCount,
			EarliestNewDate: summary.EarliestNewDate,
			MaxIDSeen:       summary.MaxIDSeen,
		}
		if !summary.ScannedAt.IsZero() {
			row.ScannedAt = summary.ScannedAt.Format(time.RFC3339)
		}
		rows = append(rows, row)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")

	if err := templates.ExecuteTemplate(w, "status.tmpl", map[string]any{"Rows": rows}); err != nil {
		s.logger.Error("Failed to render template", "template", "status.tmpl", "error", err)
	}
}

// scannedFacilities derives facility ids from the cache key family.
func (s *Server) scannedFacilities(ctx context.Context) ([]int64, error) {
	keys, err := s.keys.List(ctx, scanCountPrefix)
	if err != nil {
		return nil, fmt.Errorf("list scan keys: %w", err)
	}

	var ids []int64
	for _, key := range keys {
		id, err := strconv.ParseInt(strings.TrimPrefix(key, scanCountPrefix), 10, 64)
		if err != nil || id <= 0 {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
