package ingestqueue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"alertd/internal/models"
)

func alertN(i int) models.Alert {
	return models.Alert{ID: fmt.Sprintf("a-%d", i), Type: models.ChannelTemperature}
}

func TestFlushMergesNewestFirst(t *testing.T) {
	q := New(Options{})
	q.Offer(alertN(1))
	q.Offer(alertN(2))
	q.Offer(alertN(3))

	if !q.Flush() {
		t.Fatalf("flush reported no change")
	}
	got := q.Snapshot()
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	for i, want := range []string{"a-3", "a-2", "a-1"} {
		if got[i].ID != want {
			t.Fatalf("row %d = %q, want %q", i, got[i].ID, want)
		}
	}

	// Later arrivals land ahead of the existing rows.
	q.Offer(alertN(4))
	q.Flush()
	if got := q.Snapshot(); got[0].ID != "a-4" || len(got) != 4 {
		t.Fatalf("new arrival not at head: %v", got[0].ID)
	}
}

func TestFlushDropsDuplicates(t *testing.T) {
	q := New(Options{})
	q.Offer(alertN(1))
	q.Flush()

	// Duplicate of a working-set row plus a duplicate within one batch.
	q.Offer(alertN(1))
	q.Offer(alertN(2))
	q.Offer(alertN(2))
	q.Flush()

	got := q.Snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 unique rows, got %d", len(got))
	}
	if got[0].ID != "a-2" || got[1].ID != "a-1" {
		t.Fatalf("unexpected order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestFlushAllDuplicatesIsNoOp(t *testing.T) {
	q := New(Options{})
	q.Offer(alertN(1))
	q.Flush()

	q.Offer(alertN(1))
	if q.Flush() {
		t.Fatalf("all-duplicate batch must report no change")
	}
	if q.Flush() {
		t.Fatalf("empty pending must report no change")
	}
}

func TestWorkingSetBounded(t *testing.T) {
	q := New(Options{MaxRows: 10, MaxBatch: 10})
	for i := 0; i < 25; i++ {
		q.Offer(alertN(i))
	}
	q.Flush()
	q.Flush()
	q.Flush()

	got := q.Snapshot()
	if len(got) != 10 {
		t.Fatalf("working set grew past bound: %d", len(got))
	}
	// The newest survive; the oldest were discarded.
	if got[0].ID != "a-24" || got[9].ID != "a-15" {
		t.Fatalf("wrong rows kept: head %s tail %s", got[0].ID, got[9].ID)
	}
	if q.PendingLen() != 0 {
		t.Fatalf("pending not drained: %d", q.PendingLen())
	}
}

func TestBurstDrainedAcrossFlushes(t *testing.T) {
	q := New(Options{MaxRows: 200, MaxBatch: 200})
	for i := 0; i < 500; i++ {
		q.Offer(alertN(i))
	}
	if q.PendingLen() != 500 {
		t.Fatalf("offers dropped: pending %d", q.PendingLen())
	}

	flushes := 0
	for q.PendingLen() > 0 {
		q.Flush()
		flushes++
		if flushes > 10 {
			t.Fatalf("burst never drained")
		}
	}
	if flushes != 3 {
		t.Fatalf("expected 3 flushes for 500 pending at batch 200, got %d", flushes)
	}
	got := q.Snapshot()
	if len(got) != 200 {
		t.Fatalf("expected full bounded set, got %d", len(got))
	}
	if got[0].ID != "a-499" {
		t.Fatalf("most recent arrival not at head: %s", got[0].ID)
	}
}

func TestNotifyThrottled(t *testing.T) {
	var notified []string
	q := New(Options{
		Notify:       func(a models.Alert) { notified = append(notified, a.ID) },
		NotifyMinGap: time.Hour,
	})
	for i := 0; i < 5; i++ {
		q.Offer(alertN(i))
	}
	if len(notified) != 1 || notified[0] != "a-0" {
		t.Fatalf("expected a single notification for the burst, got %v", notified)
	}
	// Throttled notifications still buffer every arrival.
	if q.PendingLen() != 5 {
		t.Fatalf("throttle dropped arrivals: %d", q.PendingLen())
	}
}

func TestSeedTruncatesAndKeepsPending(t *testing.T) {
	q := New(Options{MaxRows: 3})
	q.Offer(alertN(100))

	seed := []models.Alert{alertN(1), alertN(2), alertN(3), alertN(4)}
	q.Seed(seed)
	if got := q.Snapshot(); len(got) != 3 || got[0].ID != "a-1" {
		t.Fatalf("seed not truncated to bound: %v", len(got))
	}

	q.Flush()
	if got := q.Snapshot(); got[0].ID != "a-100" {
		t.Fatalf("pending arrival lost across seed: %s", got[0].ID)
	}
}

func TestUpdateReplacesInPlace(t *testing.T) {
	q := New(Options{})
	q.Offer(models.Alert{ID: "x", Status: models.StatusOpen})
	q.Offer(models.Alert{ID: "y", Status: models.StatusOpen})
	q.Flush()

	q.Update(models.Alert{ID: "x", Status: models.StatusAcknowledged})
	q.Update(models.Alert{ID: "unknown", Status: models.StatusAcknowledged})

	got := q.Snapshot()
	if len(got) != 2 {
		t.Fatalf("update changed row count: %d", len(got))
	}
	for _, a := range got {
		if a.ID == "x" && a.Status != models.StatusAcknowledged {
			t.Fatalf("update not applied to x")
		}
		if a.ID == "y" && a.Status != models.StatusOpen {
			t.Fatalf("update leaked onto y")
		}
	}
}

func TestRunFlushesPeriodically(t *testing.T) {
	q := New(Options{FlushInterval: 5 * time.Millisecond})
	q.Offer(alertN(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(q.Snapshot()) == 1 {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("ticker never flushed the pending alert")
}
