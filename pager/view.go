package pager

import (
	"time"

	"ehalisaha-notifier/dates"
	"ehalisaha-notifier/pkg/ledger"
)

// View is a render-ready projection of the pager state. Building it touches
// no network and no storage, so rendering concerns stay out of the fetch and
// caching logic and the mapping is testable on its own.
type View struct {
	RangeLabel string    `json:"range_label"`
	Days       []DayItem `json:"days"`
	Selected   DayDetail `json:"selected"`
}

// DayItem is one entry in the 7-day strip.
type DayItem struct {
	Date     string `json:"date"`
	Label    string `json:"label"`
	Total    int    `json:"total"`
	NewCount int64  `json:"new_count"`
	Selected bool   `json:"selected"`
}

// DayDetail is the expanded selected day.
type DayDetail struct {
	Date     string `json:"date"`
	Label    string `json:"label"`
	Total    int    `json:"total"`
	NewCount int64  `json:"new_count"`
	Rows     []Row  `json:"rows"`
}

// Row is one reservation card.
type Row struct {
	ID         int64        `json:"id"`
	PitchLabel string       `json:"pitch_label"`
	Member     string       `json:"member"`
	Start      time.Time    `json:"start"`
	End        time.Time    `json:"end"`
	Status     string       `json:"status"`
	New        bool         `json:"new"`
	Players    []PlayerChip `json:"players"`
}

// PlayerChip is one player pill with its payment state.
type PlayerChip struct {
	ID       int64  `json:"id"`
	Index    int    `json:"index"`
	FullName string `json:"full_name"`
	JerseyNo int    `json:"jersey_no"`
	Paid     bool   `json:"paid"`
}

// View projects the current pager state.
func (p *Pager) View() View {
	return BuildView(p.pageStart, p.selectedDate, p.threshold, p.buckets)
}

// BuildView is the pure mapping from (week start, selection, watermark,
// buckets) to the view structure.
func BuildView(pageStart, selectedDate string, threshold int64, buckets map[string]*ledger.DayBucket) View {
	v := View{
		RangeLabel: dates.RangeLabel(pageStart, DaysPerPage),
	}

	for _, d := range dates.Week(pageStart, DaysPerPage) {
		b := buckets[d]
		v.Days = append(v.Days, DayItem{
			Date:     d,
			Label:    dates.DayLabel(d),
			Total:    b.Total(),
			NewCount: bucketNew(b),
			Selected: d == selectedDate,
		})
	}

	sel := buckets[selectedDate]
	v.Selected = DayDetail{
		Date:     selectedDate,
		Label:    dates.DayLabel(selectedDate),
		Total:    sel.Total(),
		NewCount: bucketNew(sel),
	}
	if sel != nil {
		for _, r := range sel.Reservations {
			v.Selected.Rows = append(v.Selected.Rows, buildRow(r, threshold))
		}
	}
	return v
}

func buildRow(r *ledger.Reservation, threshold int64) Row {
	row := Row{
		ID:         r.ID,
		PitchLabel: r.PitchName,
		Member:     r.MemberUsername,
		Start:      r.StartTime.In(dates.Zone),
		End:        r.EndTime.In(dates.Zone),
		Status:     r.Status,
		New:        r.ID > threshold,
	}
	for i, pl := range r.Players {
		row.Players = append(row.Players, PlayerChip{
			ID:       pl.ID,
			Index:    i,
			FullName: pl.FullName,
			JerseyNo: pl.JerseyNo,
			Paid:     pl.Paid,
		})
	}
	return row
}

func bucketNew(b *ledger.DayBucket) int64 {
	if b == nil {
		return 0
	}
	return b.NewCount
}
