package checkpoint_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/DanHUMassMed/sumtube/internal/checkpoint"
)

func openStore(t *testing.T, dir string) *checkpoint.Store {
	t.Helper()
	store, err := checkpoint.Open(dir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return store
}

func TestKeyIDIgnoresParamOrder(t *testing.T) {
	a := checkpoint.Key{Step: "summarize_chunk", Params: []checkpoint.Param{
		checkpoint.P("model", "gpt-oss:20b"),
		checkpoint.PInt("chunk_index", 3),
	}}
	b := checkpoint.Key{Step: "summarize_chunk", Params: []checkpoint.Param{
		checkpoint.PInt("chunk_index", 3),
		checkpoint.P("model", "gpt-oss:20b"),
	}}
	if a.ID() != b.ID() {
		t.Fatalf("parameter order changed identity: %s vs %s", a.ID(), b.ID())
	}
}

func TestKeyIDVariesWithEveryInput(t *testing.T) {
	base := checkpoint.Key{Step: "summarize_chunk", Params: []checkpoint.Param{
		checkpoint.P("model", "gpt-oss:20b"),
		checkpoint.PFloat("temperature", 0.0),
		checkpoint.PInt("chunk_index", 3),
	}}
	variants := []checkpoint.Key{
		{Step: "summarize_chunk", Params: []checkpoint.Param{
			checkpoint.P("model", "llama3:8b"),
			checkpoint.PFloat("temperature", 0.0),
			checkpoint.PInt("chunk_index", 3),
		}},
		{Step: "summarize_chunk", Params: []checkpoint.Param{
			checkpoint.P("model", "gpt-oss:20b"),
			checkpoint.PFloat("temperature", 0.7),
			checkpoint.PInt("chunk_index", 3),
		}},
		{Step: "summarize_chunk", Params: []checkpoint.Param{
			checkpoint.P("model", "gpt-oss:20b"),
			checkpoint.PFloat("temperature", 0.0),
			checkpoint.PInt("chunk_index", 4),
		}},
		{Step: "draft_introduction", Params: base.Params},
	}
	for i, variant := range variants {
		if variant.ID() == base.ID() {
			t.Fatalf("variant %d should have a different identity", i)
		}
	}
}

func TestGetOrComputeCachesAcrossStoreReopen(t *testing.T) {
	dir := t.TempDir()
	key := checkpoint.Key{Step: "extract", Params: []checkpoint.Param{checkpoint.P("video_id", "abc123")}}

	calls := 0
	compute := func(context.Context) ([]byte, error) {
		calls++
		return []byte("transcript payload"), nil
	}

	store := openStore(t, dir)
	first, err := store.GetOrCompute(context.Background(), key, compute)
	if err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}

	// Reopening the store simulates a process restart.
	reopened := openStore(t, dir)
	second, err := reopened.GetOrCompute(context.Background(), key, compute)
	if err != nil {
		t.Fatalf("GetOrCompute after reopen failed: %v", err)
	}

	if calls != 1 {
		t.Fatalf("compute must run exactly once, ran %d times", calls)
	}
	if string(first) != string(second) {
		t.Fatalf("payload changed across restart: %q vs %q", first, second)
	}
}

func TestGetOrComputeDoesNotPersistFailures(t *testing.T) {
	store := openStore(t, t.TempDir())
	key := checkpoint.Key{Step: "render"}

	calls := 0
	boom := errors.New("renderer offline")
	if _, err := store.GetOrCompute(context.Background(), key, func(context.Context) ([]byte, error) {
		calls++
		return nil, boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if store.Has(key) {
		t.Fatal("failed compute must not leave a record behind")
	}

	payload, err := store.GetOrCompute(context.Background(), key, func(context.Context) ([]byte, error) {
		calls++
		return []byte("ok"), nil
	})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if string(payload) != "ok" || calls != 2 {
		t.Fatalf("unexpected retry result: payload=%q calls=%d", payload, calls)
	}
}

func TestConcurrentSameKeyComputesOnce(t *testing.T) {
	store := openStore(t, t.TempDir())
	key := checkpoint.Key{Step: "summarize_chunk", Params: []checkpoint.Param{checkpoint.PInt("chunk_index", 0)}}

	var mu sync.Mutex
	calls := 0
	gate := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-gate
			payload, err := store.GetOrCompute(context.Background(), key, func(context.Context) ([]byte, error) {
				mu.Lock()
				calls++
				mu.Unlock()
				return []byte("summary"), nil
			})
			if err != nil {
				t.Errorf("GetOrCompute failed: %v", err)
				return
			}
			results[i] = string(payload)
		}(i)
	}
	close(gate)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected a single compute under contention, got %d", calls)
	}
	for i, result := range results {
		if result != "summary" {
			t.Fatalf("goroutine %d saw %q", i, result)
		}
	}
}

func TestCorruptRecordIsCacheMiss(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, dir)
	key := checkpoint.Key{Step: "concatenate"}

	if _, err := store.GetOrCompute(context.Background(), key, func(context.Context) ([]byte, error) {
		return []byte("joined summaries"), nil
	}); err != nil {
		t.Fatalf("initial compute failed: %v", err)
	}

	// Truncate the record to simulate a partial write that survived a crash.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var recordPath string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".ckpt.json") {
			recordPath = filepath.Join(dir, entry.Name())
		}
	}
	if recordPath == "" {
		t.Fatal("record file not found")
	}
	if err := os.WriteFile(recordPath, []byte(`{"step_key":"conc`), 0o644); err != nil {
		t.Fatalf("corrupt record: %v", err)
	}

	reopened := openStore(t, dir)
	if reopened.Has(key) {
		t.Fatal("corrupt record must read as absent")
	}
	calls := 0
	payload, err := reopened.GetOrCompute(context.Background(), key, func(context.Context) ([]byte, error) {
		calls++
		return []byte("recomputed"), nil
	})
	if err != nil {
		t.Fatalf("recompute failed: %v", err)
	}
	if calls != 1 || string(payload) != "recomputed" {
		t.Fatalf("expected recompute after corruption: calls=%d payload=%q", calls, payload)
	}
}

func TestChecksumMismatchIsCacheMiss(t *testing.T) {
	dir := t.TempDir()
	store := openStore(t, dir)
	key := checkpoint.Key{Step: "assemble"}

	if _, err := store.GetOrCompute(context.Background(), key, func(context.Context) ([]byte, error) {
		return []byte("document"), nil
	}); err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	entries, _ := os.ReadDir(dir)
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".ckpt.json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read record: %v", err)
		}
		// Valid JSON, wrong payload bytes for the recorded checksum.
		tampered := strings.Replace(string(data), "ZG9jdW1lbnQ=", "dGFtcGVyZWQ=", 1)
		if tampered == string(data) {
			t.Fatal("expected base64 payload in record")
		}
		if err := os.WriteFile(path, []byte(tampered), 0o644); err != nil {
			t.Fatalf("tamper record: %v", err)
		}
	}

	if openStore(t, dir).Has(key) {
		t.Fatal("checksum mismatch must read as absent")
	}
}

func TestInvalidateRemovesSingleRecord(t *testing.T) {
	store := openStore(t, t.TempDir())
	keep := checkpoint.Key{Step: "extract"}
	drop := checkpoint.Key{Step: "render"}

	for _, key := range []checkpoint.Key{keep, drop} {
		if _, err := store.GetOrCompute(context.Background(), key, func(context.Context) ([]byte, error) {
			return []byte("x"), nil
		}); err != nil {
			t.Fatalf("compute failed: %v", err)
		}
	}

	if err := store.Invalidate(drop); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if store.Has(drop) {
		t.Fatal("invalidated record still present")
	}
	if !store.Has(keep) {
		t.Fatal("invalidation must not touch other keys")
	}
	// Invalidating an absent key is fine.
	if err := store.Invalidate(drop); err != nil {
		t.Fatalf("Invalidate of missing record failed: %v", err)
	}
}

func TestGetOrComputeJSONRoundTrip(t *testing.T) {
	type extractResult struct {
		Title string `json:"title"`
		Bytes int    `json:"bytes"`
	}
	store := openStore(t, t.TempDir())
	key := checkpoint.Key{Step: "extract"}

	calls := 0
	first, err := checkpoint.GetOrComputeJSON(context.Background(), store, key, func(context.Context) (extractResult, error) {
		calls++
		return extractResult{Title: "Deep Dive", Bytes: 1234}, nil
	})
	if err != nil {
		t.Fatalf("GetOrComputeJSON failed: %v", err)
	}
	second, err := checkpoint.GetOrComputeJSON(context.Background(), store, key, func(context.Context) (extractResult, error) {
		calls++
		return extractResult{}, nil
	})
	if err != nil {
		t.Fatalf("second GetOrComputeJSON failed: %v", err)
	}
	if calls != 1 {
		t.Fatalf("compute must run once, ran %d", calls)
	}
	if first != second {
		t.Fatalf("decoded values differ: %+v vs %+v", first, second)
	}
}

func TestClearRemovesAllRecords(t *testing.T) {
	store := openStore(t, t.TempDir())
	for i := 0; i < 3; i++ {
		key := checkpoint.Key{Step: "summarize_chunk", Params: []checkpoint.Param{checkpoint.PInt("chunk_index", i)}}
		if _, err := store.GetOrCompute(context.Background(), key, func(context.Context) ([]byte, error) {
			return []byte("s"), nil
		}); err != nil {
			t.Fatalf("compute failed: %v", err)
		}
	}
	if store.Count() != 3 {
		t.Fatalf("expected 3 records, got %d", store.Count())
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if store.Count() != 0 {
		t.Fatalf("expected empty store, got %d records", store.Count())
	}
}
