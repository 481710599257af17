// Package storage persists small keyed values (watermarks, scan summaries)
// as one object per key. Production uses a Cloud Storage bucket; development
// uses a local directory.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/codeGROOVE-dev/retry"
	"google.golang.org/api/iterator"
)

// keyRe restricts keys to a safe shape so they can double as object names and
// file names without path traversal.
var keyRe = regexp.MustCompile(`^[a-z0-9_:-]+$`)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("storage: object doesn't exist")

// Store persists keyed values in Cloud Storage or a local directory.
type Store struct {
	client    *storage.Client
	logger    *slog.Logger
	localPath string
	bucket    string
}

// New creates a store. When localPath is non-empty the local filesystem is
// used and the Cloud Storage client may be nil.
func New(client *storage.Client, bucket, localPath string, logger *slog.Logger) *Store {
	return &Store{
		client:    client,
		logger:    logger,
		localPath: localPath,
		bucket:    bucket,
	}
}

// objectName maps a key to its object/file name.
// Returns "" for keys that fail validation.
func objectName(key string) string {
	if key == "" || len(key) > 200 || !keyRe.MatchString(key) {
		return ""
	}
	return "kv-" + key + ".json"
}

// Set writes a value under key, overwriting any previous value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	name := objectName(key)
	if name == "" {
		return fmt.Errorf("invalid key %q", key)
	}
	s.logger.Debug("Saving value", "key", key, "bytes", len(value))

	// Local filesystem storage
	if s.localPath != "" {
		filePath := filepath.Join(s.localPath, name)
		if err := os.WriteFile(filePath, value, 0o600); err != nil {
			return fmt.Errorf("write to local storage: %w", err)
		}
		return nil
	}

	// Cloud Storage with retry logic for reliability
	err := retry.Do(
		func() error {
			w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
			if _, writeErr := w.Write(value); writeErr != nil {
				if closeErr := w.Close(); closeErr != nil {
					s.logger.Warn("Failed to close writer after error", "error", closeErr)
				}
				return fmt.Errorf("write to storage: %w", writeErr)
			}
			if closeErr := w.Close(); closeErr != nil {
				return fmt.Errorf("close storage writer: %w", closeErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying set operation after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("set after retries: %w", err)
	}
	return nil
}

// Get reads the value stored under key. Returns ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	name := objectName(key)
	if name == "" {
		return nil, fmt.Errorf("invalid key %q", key)
	}

	// Local filesystem storage
	if s.localPath != "" {
		data, err := os.ReadFile(filepath.Join(s.localPath, name))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("read from local storage: %w", err)
		}
		return data, nil
	}

	// Cloud Storage with retry logic for reliability
	var data []byte
	err := retry.Do(
		func() error {
			r, openErr := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
			if openErr != nil {
				if errors.Is(openErr, storage.ErrObjectNotExist) {
					return retry.Unrecoverable(ErrNotFound)
				}
				return fmt.Errorf("open storage reader: %w", openErr)
			}
			defer func() {
				if closeErr := r.Close(); closeErr != nil {
					s.logger.Warn("Failed to close storage reader", "error", closeErr)
				}
			}()

			var readErr error
			data, readErr = io.ReadAll(r)
			if readErr != nil {
				return fmt.Errorf("read from storage: %w", readErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying get operation after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get after retries: %w", err)
	}
	return data, nil
}

// Delete removes the value stored under key. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, key string) error {
	name := objectName(key)
	if name == "" {
		return fmt.Errorf("invalid key %q", key)
	}

	// Local filesystem storage
	if s.localPath != "" {
		if err := os.Remove(filepath.Join(s.localPath, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("delete from local storage: %w", err)
		}
		return nil
	}

	err := retry.Do(
		func() error {
			if deleteErr := s.client.Bucket(s.bucket).Object(name).Delete(ctx); deleteErr != nil {
				// Deletion is idempotent
				if errors.Is(deleteErr, storage.ErrObjectNotExist) {
					return nil
				}
				return fmt.Errorf("delete from storage: %w", deleteErr)
			}
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, retryErr error) {
			s.logger.Info("Retrying delete operation after error", "attempt", n, "key", key, "error", retryErr)
		}),
	)
	if err != nil {
		return fmt.Errorf("delete after retries: %w", err)
	}
	return nil
}

// List returns all stored keys with the given prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	// Local filesystem storage
	if s.localPath != "" {
		entries, err := os.ReadDir(s.localPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("read local storage directory: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			key, ok := keyFromName(entry.Name())
			if !ok || !strings.HasPrefix(key, prefix) {
				continue
			}
			keys = append(keys, key)
		}
		return keys, nil
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{
		Prefix: "kv-" + prefix,
	})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate storage: %w", err)
		}
		if key, ok := keyFromName(attrs.Name); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func keyFromName(name string) (string, bool) {
	if !strings.HasPrefix(name, "kv-") || !strings.HasSuffix(name, ".json") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, "kv-"), ".json"), true
}

// IsNotFound checks if an error indicates a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
