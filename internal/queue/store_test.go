package queue_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/DanHUMassMed/sumtube/internal/queue"
	"github.com/DanHUMassMed/sumtube/internal/testsupport"
)

func TestOpenInitializesSchemaAndInserts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item, err := store.Add(ctx, "https://www.youtube.com/watch?v=abc123", "abc123")
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if item.ID == 0 {
		t.Fatal("expected item ID to be assigned")
	}
	if item.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", item.Status)
	}

	fetched, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.VideoID != "abc123" {
		t.Fatalf("unexpected fetched item: %#v", fetched)
	}

	found, err := store.FindByVideoID(ctx, "abc123")
	if err != nil {
		t.Fatalf("FindByVideoID failed: %v", err)
	}
	if found == nil || found.ID != item.ID {
		t.Fatalf("expected to find inserted item, got %#v", found)
	}
}

func TestReopenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.AddItem(t, store, "https://youtu.be/keep1", "keep1")

	// Reopening the same database must succeed against a matching schema.
	second, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()

	items, err := second.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item after reopen, got %d", len(items))
	}
}

func TestUpdatePersistsFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	item := testsupport.AddItem(t, store, "https://youtu.be/vid42", "vid42")
	item.Title = "A Great Talk"
	item.WorkDir = "/tmp/results/vid42"
	item.Status = queue.StatusFetched
	item.ReportPath = "/tmp/results/vid42/report.pdf"
	item.SetProgress("Fetching", "transcript downloaded", 100)
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	updated, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if updated.Title != "A Great Talk" || updated.Status != queue.StatusFetched {
		t.Fatalf("unexpected item after update: %#v", updated)
	}
	if updated.ReportPath != "/tmp/results/vid42/report.pdf" {
		t.Fatalf("report path not persisted: %q", updated.ReportPath)
	}
	if updated.ProgressPercent != 100 {
		t.Fatalf("progress percent = %v", updated.ProgressPercent)
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"fetching", queue.StatusFetching, queue.StatusPending},
		{"summarizing", queue.StatusSummarizing, queue.StatusFetched},
		{"rendering", queue.StatusRendering, queue.StatusSummarized},
	}
	var ids []int64
	for i, tc := range cases {
		item := testsupport.AddItem(t, store, fmt.Sprintf("https://youtu.be/reset%d", i), fmt.Sprintf("reset%d", i))
		item.Status = tc.initialStatus
		item.ProgressStage = tc.name
		if err := store.Update(ctx, item); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if err := store.UpdateHeartbeat(ctx, item.ID); err != nil {
			t.Fatalf("UpdateHeartbeat failed: %v", err)
		}
		ids = append(ids, item.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d items reset, got %d", len(cases), count)
	}

	for idx, tc := range cases {
		updated, err := store.GetByID(ctx, ids[idx])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if updated.Status != tc.expected {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.expected, updated.Status)
		}
		if updated.LastHeartbeat != nil {
			t.Fatalf("%s: expected heartbeat cleared", tc.name)
		}
	}
}

func TestNextForStatusesReturnsOldest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.AddItem(t, store, "https://youtu.be/first", "first")
	testsupport.AddItem(t, store, "https://youtu.be/second", "second")

	next, err := store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending item, got %#v", next)
	}

	none, err := store.NextForStatuses(ctx, queue.StatusRendering)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected no rendering items, got %#v", none)
	}
}

func TestRetryFailedIncludesReviewItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	failed := testsupport.AddItem(t, store, "https://youtu.be/failed", "failed")
	failed.SetFailed("summarization blew up")
	if err := store.Update(ctx, failed); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	review := testsupport.AddItem(t, store, "https://youtu.be/review", "review")
	review.SetReview("context window too small")
	if err := store.Update(ctx, review); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 items retried, got %d", count)
	}

	for _, id := range []int64{failed.ID, review.ID} {
		item, err := store.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if item.Status != queue.StatusPending {
			t.Fatalf("expected pending after retry, got %s", item.Status)
		}
		if item.NeedsReview || item.ReviewReason != "" || item.ErrorMessage != "" {
			t.Fatalf("review fields not cleared: %#v", item)
		}
	}
}

func TestStatsAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.AddItem(t, store, "https://youtu.be/p1", "p1")
	active := testsupport.AddItem(t, store, "https://youtu.be/a1", "a1")
	active.Status = queue.StatusSummarizing
	if err := store.Update(ctx, active); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	done := testsupport.AddItem(t, store, "https://youtu.be/d1", "d1")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 3 || health.Pending != 1 || health.Processing != 1 || health.Completed != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestClearVariants(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	done := testsupport.AddItem(t, store, "https://youtu.be/done", "done")
	done.Status = queue.StatusCompleted
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	testsupport.AddItem(t, store, "https://youtu.be/keep", "keep")

	removed, err := store.ClearCompleted(ctx)
	if err != nil {
		t.Fatalf("ClearCompleted failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 item cleared, got %d", removed)
	}

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 1 || items[0].VideoID != "keep" {
		t.Fatalf("unexpected remaining items: %#v", items)
	}

	all, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if all != 1 {
		t.Fatalf("expected 1 item cleared, got %d", all)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := queue.ParseStatus(" Pending "); !ok || status != queue.StatusPending {
		t.Fatalf("ParseStatus normalized = %v %v", status, ok)
	}
	if _, ok := queue.ParseStatus("ripping"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}
