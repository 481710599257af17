package dates

import "testing"

func TestAddDays(t *testing.T) {
	tests := []struct {
		name string
		iso  string
		n    int
		want string
	}{
		{
			name: "one week forward",
			iso:  "2024-03-04",
			n:    7,
			want: "2024-03-11",
		},
		{
			name: "one week backward",
			iso:  "2024-03-11",
			n:    -7,
			want: "2024-03-04",
		},
		{
			name: "month rollover",
			iso:  "2024-01-31",
			n:    1,
			want: "2024-02-01",
		},
		{
			name: "year rollover",
			iso:  "2024-12-30",
			n:    5,
			want: "2025-01-04",
		},
		{
			name: "leap day",
			iso:  "2024-02-28",
			n:    1,
			want: "2024-02-29",
		},
		{
			name: "zero days",
			iso:  "2024-03-04",
			n:    0,
			want: "2024-03-04",
		},
		{
			name: "malformed input passes through",
			iso:  "not-a-date",
			n:    3,
			want: "not-a-date",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddDays(tt.iso, tt.n); got != tt.want {
				t.Errorf("AddDays(%q, %d) = %q, want %q", tt.iso, tt.n, got, tt.want)
			}
		})
	}
}

func TestStartOfWeek(t *testing.T) {
	tests := []struct {
		name string
		iso  string
		want string
	}{
		{
			name: "wednesday maps to preceding monday",
			iso:  "2024-03-06",
			want: "2024-03-04",
		},
		{
			name: "monday maps to itself",
			iso:  "2024-03-04",
			want: "2024-03-04",
		},
		{
			name: "sunday maps six days back",
			iso:  "2024-03-10",
			want: "2024-03-04",
		},
		{
			name: "saturday",
			iso:  "2024-03-09",
			want: "2024-03-04",
		},
		{
			name: "week spanning month boundary",
			iso:  "2024-03-02",
			want: "2024-02-26",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StartOfWeek(tt.iso); got != tt.want {
				t.Errorf("StartOfWeek(%q) = %q, want %q", tt.iso, got, tt.want)
			}
		})
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		iso  string
		want bool
	}{
		{"valid date", "2024-03-05", true},
		{"empty", "", false},
		{"missing zero padding", "2024-3-5", false},
		{"trailing garbage", "2024-03-05x", false},
		{"impossible month", "2024-13-05", false},
		{"impossible day", "2024-02-30", false},
		{"words", "tomorrow", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.iso); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.iso, got, tt.want)
			}
		})
	}
}

func TestWeek(t *testing.T) {
	got := Week("2024-03-04", 7)
	want := []string{"2024-03-04", "2024-03-05", "2024-03-06", "2024-03-07", "2024-03-08", "2024-03-09", "2024-03-10"}

	if len(got) != len(want) {
		t.Fatalf("Week() returned %d dates, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Week()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWeekNonPositiveLength(t *testing.T) {
	for _, n := range []int{0, -1, -7} {
		if got := Week("2024-03-04", n); len(got) != 0 {
			t.Errorf("Week(_, %d) = %v, want empty", n, got)
		}
	}
}

func TestToday(t *testing.T) {
	if got := Today(); !Valid(got) {
		t.Errorf("Today() = %q, not a valid ISO date", got)
	}
}
