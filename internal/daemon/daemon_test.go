package daemon_test

import (
	"context"
	"testing"

	"github.com/DanHUMassMed/sumtube/internal/daemon"
	"github.com/DanHUMassMed/sumtube/internal/logging"
	"github.com/DanHUMassMed/sumtube/internal/notifications"
	"github.com/DanHUMassMed/sumtube/internal/queue"
	"github.com/DanHUMassMed/sumtube/internal/stage"
	"github.com/DanHUMassMed/sumtube/internal/testsupport"
	"github.com/DanHUMassMed/sumtube/internal/workflow"
)

type idleHandler struct{ name string }

func (h idleHandler) Prepare(ctx context.Context, item *queue.Item) error { return nil }
func (h idleHandler) Execute(ctx context.Context, item *queue.Item) error { return nil }
func (h idleHandler) HealthCheck(ctx context.Context) stage.Health        { return stage.Healthy(h.name) }

func newTestDaemon(t *testing.T) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManagerWithNotifier(cfg, store, logging.NewNop(), notifications.NewService(cfg))
	mgr.ConfigureStages(workflow.StageSet{
		Fetcher:    idleHandler{name: "fetcher"},
		Summarizer: idleHandler{name: "summarizer"},
		Renderer:   idleHandler{name: "renderer"},
	})
	d, err := daemon.New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, store
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := daemon.New(nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}

func TestStartStopLifecycle(t *testing.T) {
	d, _ := newTestDaemon(t)

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.Status(ctx).Running {
		t.Fatal("expected running after Start")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}
	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected stopped after Stop")
	}
}

func TestAddURLDeduplicatesByVideoID(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()

	first, added, err := d.AddURL(ctx, "https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("AddURL: %v", err)
	}
	if !added {
		t.Fatal("expected first add to create an item")
	}

	second, added, err := d.AddURL(ctx, "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("AddURL duplicate: %v", err)
	}
	if added {
		t.Fatal("expected duplicate add to return existing item")
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate returned item %d, want %d", second.ID, first.ID)
	}
}

func TestAddURLRejectsUnresolvableInput(t *testing.T) {
	d, _ := newTestDaemon(t)
	if _, _, err := d.AddURL(context.Background(), "https://example.com/nope"); err == nil {
		t.Fatal("expected error for unresolvable URL")
	}
	if _, _, err := d.AddURL(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank URL")
	}
}

func TestTestNotificationWithoutTopic(t *testing.T) {
	d, _ := newTestDaemon(t)
	sent, detail, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent {
		t.Fatal("expected no notification without a configured topic")
	}
	if detail == "" {
		t.Fatal("expected explanatory detail")
	}
}

func TestQueueMaintenanceHelpers(t *testing.T) {
	d, store := newTestDaemon(t)
	ctx := context.Background()

	item := testsupport.AddItem(t, store, "https://youtu.be/abc123DEF45", "abc123DEF45")
	item.Status = queue.StatusFailed
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("update item: %v", err)
	}

	retried, err := d.RetryFailed(ctx, nil)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried = %d, want 1", retried)
	}

	items, err := d.ListQueue(ctx, nil)
	if err != nil {
		t.Fatalf("ListQueue: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("queue length = %d, want 1", len(items))
	}

	health, err := d.QueueHealth(ctx)
	if err != nil {
		t.Fatalf("QueueHealth: %v", err)
	}
	if health.Total != 1 || health.Pending != 1 {
		t.Fatalf("health = %+v, want one pending item", health)
	}

	cleared, err := d.ClearQueue(ctx)
	if err != nil {
		t.Fatalf("ClearQueue: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("cleared = %d, want 1", cleared)
	}
}
