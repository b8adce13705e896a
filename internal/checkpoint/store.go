package checkpoint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/singleflight"

	"github.com/DanHUMassMed/sumtube/internal/fileutil"
)

const recordSuffix = ".ckpt.json"

// Store persists one record per completed pipeline step inside a run's
// working directory. A stored record is authoritative for its key until it is
// explicitly invalidated; the store never expires or rewrites records on its
// own.
//
// Concurrency: GetOrCompute executes the compute function at most once per key
// within a process (singleflight) and serializes same-key writes across
// processes with a per-key file lock. Records are written to a temporary file,
// synced, and renamed, so an interrupted write never leaves a record that
// parses as valid.
type Store struct {
	dir   string
	group singleflight.Group
}

type record struct {
	StepKey   string    `json:"step_key"`
	CreatedAt time.Time `json:"created_at"`
	Checksum  string    `json:"sha256"`
	Payload   []byte    `json:"payload"`
}

// Open prepares a checkpoint store rooted at dir, creating it if needed.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("checkpoint directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// GetOrCompute returns the persisted payload for key, or runs compute exactly
// once, persists its result, and returns it. A corrupt or unreadable existing
// record counts as a miss and is recomputed.
func (s *Store) GetOrCompute(ctx context.Context, key Key, compute func(context.Context) ([]byte, error)) ([]byte, error) {
	id := key.ID()
	payload, err, _ := s.group.Do(id, func() (any, error) {
		if payload, ok := s.read(id); ok {
			return payload, nil
		}

		lock := flock.New(s.recordPath(id) + ".lock")
		if err := lock.Lock(); err != nil {
			return nil, fmt.Errorf("lock checkpoint %s: %w", id, err)
		}
		defer func() {
			_ = lock.Unlock()
		}()

		// Another process may have finished the step while we waited.
		if payload, ok := s.read(id); ok {
			return payload, nil
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.write(id, result); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return payload.([]byte), nil
}

// Has reports whether a valid record exists for key.
func (s *Store) Has(key Key) bool {
	_, ok := s.read(key.ID())
	return ok
}

// Lookup returns the persisted payload for key without computing anything.
func (s *Store) Lookup(key Key) ([]byte, bool) {
	return s.read(key.ID())
}

// Invalidate removes the record for key. Removing a record that does not
// exist is not an error. Invalidation is never transitive: callers that
// change an upstream input must invalidate every dependent step themselves.
func (s *Store) Invalidate(key Key) error {
	id := key.ID()
	if err := os.Remove(s.recordPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("invalidate checkpoint %s: %w", id, err)
	}
	return nil
}

// Clear removes every record in the store.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), recordSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil {
			return fmt.Errorf("remove checkpoint %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Count returns the number of valid records currently stored.
func (s *Store) Count() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), recordSuffix) {
			count++
		}
	}
	return count
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+recordSuffix)
}

func (s *Store) read(id string) ([]byte, bool) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		return nil, false
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false
	}
	if rec.StepKey != id {
		return nil, false
	}
	if rec.Checksum != payloadChecksum(rec.Payload) {
		return nil, false
	}
	return rec.Payload, true
}

func (s *Store) write(id string, payload []byte) error {
	rec := record{
		StepKey:   id,
		CreatedAt: time.Now().UTC(),
		Checksum:  payloadChecksum(payload),
		Payload:   payload,
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", id, err)
	}

	if err := fileutil.WriteAtomic(s.recordPath(id), encoded, 0o644); err != nil {
		return fmt.Errorf("publish checkpoint %s: %w", id, err)
	}
	return nil
}

func payloadChecksum(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// GetOrComputeJSON wraps Store.GetOrCompute for typed results, encoding the
// computed value as JSON inside the record payload.
func GetOrComputeJSON[T any](ctx context.Context, s *Store, key Key, compute func(context.Context) (T, error)) (T, error) {
	var zero T
	payload, err := s.GetOrCompute(ctx, key, func(ctx context.Context) ([]byte, error) {
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(value)
	})
	if err != nil {
		return zero, err
	}
	var value T
	if err := json.Unmarshal(payload, &value); err != nil {
		return zero, fmt.Errorf("decode checkpoint %s: %w", key.ID(), err)
	}
	return value, nil
}
