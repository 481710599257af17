package storage

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

func localStore(t *testing.T) *Store {
	t.Helper()
	return New(nil, "", t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSetGetDelete(t *testing.T) {
	ctx := context.Background()
	s := localStore(t)

	const key = "eh_owner_seen_res_max_id_fac_7"
	if err := s.Set(ctx, key, []byte("120")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	data, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "120" {
		t.Errorf("Get() = %q, want 120", data)
	}

	if err := s.Set(ctx, key, []byte("150")); err != nil {
		t.Fatalf("Set(overwrite) error = %v", err)
	}
	data, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() after overwrite error = %v", err)
	}
	if string(data) != "150" {
		t.Errorf("Get() = %q after overwrite, want 150", data)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(ctx, key); !IsNotFound(err) {
		t.Errorf("Get() after delete = %v, want ErrNotFound", err)
	}

	// Deleting again is a no-op.
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("Delete(absent) error = %v, want nil", err)
	}
}

func TestGetMissingKey(t *testing.T) {
	s := localStore(t)
	_, err := s.Get(context.Background(), "eh_owner_seen_res_max_id")
	if !IsNotFound(err) {
		t.Errorf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestInvalidKeys(t *testing.T) {
	ctx := context.Background()
	s := localStore(t)

	for _, key := range []string{
		"",
		"../escape",
		"has space",
		"UPPER",
		"slash/inside",
		strings.Repeat("a", 201),
	} {
		if err := s.Set(ctx, key, []byte("x")); err == nil {
			t.Errorf("Set(%q) accepted an invalid key", key)
		}
		if _, err := s.Get(ctx, key); err == nil || IsNotFound(err) {
			t.Errorf("Get(%q) = %v, want validation error", key, err)
		}
		if err := s.Delete(ctx, key); err == nil {
			t.Errorf("Delete(%q) accepted an invalid key", key)
		}
	}
}

func TestListByPrefix(t *testing.T) {
	ctx := context.Background()
	s := localStore(t)

	for _, key := range []string{
		"eh_owner_last_scan_new_count_fac_1",
		"eh_owner_last_scan_new_count_fac_22",
		"eh_owner_last_scan_max_id_fac_1",
		"eh_owner_seen_res_max_id",
	} {
		if err := s.Set(ctx, key, []byte("0")); err != nil {
			t.Fatalf("Set(%q) error = %v", key, err)
		}
	}

	keys, err := s.List(ctx, "eh_owner_last_scan_new_count_fac_")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	sort.Strings(keys)
	want := []string{
		"eh_owner_last_scan_new_count_fac_1",
		"eh_owner_last_scan_new_count_fac_22",
	}
	if len(keys) != len(want) {
		t.Fatalf("List() = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestListIgnoresForeignFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := New(nil, "", dir, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := s.Set(ctx, "eh_owner_seen_res_max_id_fac_7", []byte("1")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("scratch"), 0o600); err != nil {
		t.Fatalf("write foreign file: %v", err)
	}

	keys, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != "eh_owner_seen_res_max_id_fac_7" {
		t.Errorf("List() = %v, want only the stored key", keys)
	}
}

func TestListMissingDirectory(t *testing.T) {
	s := New(nil, "", "/nonexistent/storage/dir", slog.New(slog.NewTextHandler(io.Discard, nil)))
	keys, err := s.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List() error = %v, want nil for a missing directory", err)
	}
	if len(keys) != 0 {
		t.Errorf("List() = %v, want empty", keys)
	}
}
