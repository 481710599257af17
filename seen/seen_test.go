package seen

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
)

// memKV is an in-memory key-value store for tests.
type memKV struct {
	data map[string]string
	fail bool // every operation errors when set
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(_ context.Context, key string) ([]byte, error) {
	if m.fail {
		return nil, errors.New("storage unavailable")
	}
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("storage: object doesn't exist")
	}
	return []byte(v), nil
}

func (m *memKV) Set(_ context.Context, key string, value []byte) error {
	if m.fail {
		return errors.New("storage unavailable")
	}
	m.data[key] = string(value)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestRaiseIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := New(newMemKV(), testLogger())

	sequences := []struct {
		name   string
		raises []int64
		want   int64
	}{
		{"increasing", []int64{1, 5, 9}, 9},
		{"plateau", []int64{7, 7, 7}, 7},
		{"decreasing values ignored", []int64{10, 3, 9, 10}, 10},
		{"non-positive ignored", []int64{-4, 0, 6}, 6},
	}

	for _, tt := range sequences {
		t.Run(tt.name, func(t *testing.T) {
			kv := newMemKV()
			s = New(kv, testLogger())
			for _, v := range tt.raises {
				s.Raise(ctx, 42, v)
			}
			if got := s.Get(ctx, 42); got != tt.want {
				t.Errorf("Get() after raises %v = %d, want %d", tt.raises, got, tt.want)
			}
		})
	}
}

func TestRaiseNeverLowers(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := New(kv, testLogger())

	s.Raise(ctx, 1, 100)
	before := kv.data[facilityKey(1)]

	s.Raise(ctx, 1, 99)
	s.Raise(ctx, 1, 100)

	if kv.data[facilityKey(1)] != before {
		t.Errorf("stored value changed from %q to %q on smaller/equal candidates", before, kv.data[facilityKey(1)])
	}
}

func TestGetFallsBackToGlobal(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	s := New(kv, testLogger())

	// A raise on facility 1 also raises the global key.
	s.Raise(ctx, 1, 50)

	if got := s.Get(ctx, 2); got != 50 {
		t.Errorf("Get(unseen facility) = %d, want global fallback 50", got)
	}

	// Once the facility has its own value, it wins over the global key.
	s.Raise(ctx, 2, 60)
	if got := s.Get(ctx, 2); got != 60 {
		t.Errorf("Get() = %d, want facility-specific 60", got)
	}
	if got := s.Get(ctx, 1); got != 50 {
		t.Errorf("Get(1) = %d, want 50 (facility key must not be shadowed by global)", got)
	}
}

func TestGetDefaultsToZero(t *testing.T) {
	ctx := context.Background()
	s := New(newMemKV(), testLogger())

	if got := s.Get(ctx, 99); got != 0 {
		t.Errorf("Get() on empty store = %d, want 0", got)
	}
}

func TestCorruptValueReadsAsZero(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	kv.data[facilityKey(3)] = "not-a-number"
	kv.data[globalKey] = "{}"

	s := New(kv, testLogger())
	if got := s.Get(ctx, 3); got != 0 {
		t.Errorf("Get() with corrupt storage = %d, want 0", got)
	}
}

func TestStorageFailureDegradesToUnseen(t *testing.T) {
	ctx := context.Background()
	kv := newMemKV()
	kv.fail = true
	s := New(kv, testLogger())

	// Treat everything as new rather than hiding reservations.
	if got := s.Get(ctx, 1); got != 0 {
		t.Errorf("Get() with failing storage = %d, want 0", got)
	}

	// Raise must not panic or surface the error.
	s.Raise(ctx, 1, 10)

	kv.fail = false
	if got := s.Get(ctx, 1); got != 0 {
		t.Errorf("Get() = %d after failed raise, want 0 (nothing persisted)", got)
	}
}
