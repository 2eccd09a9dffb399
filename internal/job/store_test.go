package job

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"

	"github.com/ryabkov82/pvoutput-ingest/internal/ingest"
)

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func statusRequest() Request {
	return Request{Kind: KindStatus, SystemID: 42, Date: "20240301"}
}

func TestStoreCreateAndGet(t *testing.T) {
	store := NewStore(10, clocktesting.NewFakePassiveClock(testNow))

	id, err := store.Create(statusRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	j, err := store.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if j.Status != StatusQueued {
		t.Errorf("Status = %s, want %s", j.Status, StatusQueued)
	}
	if !j.CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want %v", j.CreatedAt, testNow)
	}
	if j.Request != statusRequest() {
		t.Errorf("Request = %+v, want %+v", j.Request, statusRequest())
	}
	if store.QueueLen() != 1 {
		t.Errorf("QueueLen() = %d, want 1", store.QueueLen())
	}

	if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStoreCreateQueueFull(t *testing.T) {
	store := NewStore(3, nil)

	for i := 0; i < 3; i++ {
		req := Request{Kind: KindSystem, SystemID: i + 1}
		if _, err := store.Create(req); err != nil {
			t.Fatalf("Create() should succeed when queue has space: %v", err)
		}
	}

	_, err := store.Create(Request{Kind: KindSystem, SystemID: 4})
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Create() should return ErrQueueFull when queue is full, got: %v", err)
	}

	// Rejected job must not be stored
	store.mu.RLock()
	jobCount := len(store.jobs)
	store.mu.RUnlock()
	if jobCount != 3 {
		t.Errorf("Expected 3 jobs, got %d", jobCount)
	}
}

func TestStoreLifecycle(t *testing.T) {
	clk := clocktesting.NewFakeClock(testNow)
	store := NewStore(10, clk)
	id, _ := store.Create(statusRequest())

	clk.Step(time.Second)
	if err := store.UpdateStatus(id, StatusRunning); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	clk.Step(time.Second)
	table := ingest.NewTable([]string{"v"}, "", 1)
	table.Append(ingest.Row{"v": 1.0})
	if err := store.Succeed(id, table); err != nil {
		t.Fatalf("Succeed() error = %v", err)
	}

	j, _ := store.Get(id)
	if j.Status != StatusSucceeded {
		t.Errorf("Status = %s, want %s", j.Status, StatusSucceeded)
	}
	if j.StartedAt == nil || !j.StartedAt.Equal(testNow.Add(time.Second)) {
		t.Errorf("StartedAt = %v, want %v", j.StartedAt, testNow.Add(time.Second))
	}
	if j.FinishedAt == nil || !j.FinishedAt.Equal(testNow.Add(2*time.Second)) {
		t.Errorf("FinishedAt = %v, want %v", j.FinishedAt, testNow.Add(2*time.Second))
	}
	if j.Result != table {
		t.Errorf("Result was not stored")
	}

	// Finished jobs are immutable
	if err := store.UpdateStatus(id, StatusFailed); !errors.Is(err, ErrFinished) {
		t.Errorf("UpdateStatus() on finished job error = %v, want ErrFinished", err)
	}
	if err := store.Cancel(id); !errors.Is(err, ErrFinished) {
		t.Errorf("Cancel() on finished job error = %v, want ErrFinished", err)
	}
}

func TestStoreFail(t *testing.T) {
	store := NewStore(10, nil)
	id, _ := store.Create(statusRequest())
	_ = store.UpdateStatus(id, StatusRunning)

	if err := store.Fail(id, fmt.Errorf("getstatus: %w", &ingest.MalformedRecordError{Record: 2, Expected: 11, Got: 3})); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}

	j, _ := store.Get(id)
	if j.Status != StatusFailed {
		t.Errorf("Status = %s, want %s", j.Status, StatusFailed)
	}
	if j.ErrorKind != ErrorMalformed {
		t.Errorf("ErrorKind = %s, want %s", j.ErrorKind, ErrorMalformed)
	}
	if j.LastError != "getstatus: record 2: expected 11 fields, got 3" {
		t.Errorf("LastError = %q", j.LastError)
	}
}

func TestStoreCancel(t *testing.T) {
	store := NewStore(10, nil)
	id, err := store.Create(statusRequest())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := store.SetCancel(id, cancel); err != nil {
		t.Fatalf("SetCancel() error = %v", err)
	}

	if err := store.Cancel(id); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	j, _ := store.Get(id)
	if j.Status != StatusCanceled {
		t.Errorf("Expected status Canceled, got %s", j.Status)
	}
	if j.ErrorKind != ErrorCanceled {
		t.Errorf("ErrorKind = %s, want %s", j.ErrorKind, ErrorCanceled)
	}

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("Context should be canceled")
	}

	// A canceled job cannot be started by a worker that dequeues it later
	if err := store.UpdateStatus(id, StatusRunning); !errors.Is(err, ErrFinished) {
		t.Errorf("UpdateStatus() after cancel error = %v, want ErrFinished", err)
	}

	store.ClearCancel(id)
	if err := store.Cancel("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.SetCancel("missing", func() {}); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetCancel(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStoreCreateRace(t *testing.T) {
	store := NewStore(1, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			j, err := store.NextJob(ctx)
			if err != nil {
				t.Errorf("NextJob() error = %v", err)
				return
			}
			// Job must already be registered when it is dequeued
			if err := store.UpdateStatus(j.ID, StatusRunning); err != nil {
				t.Errorf("UpdateStatus() error = %v", err)
			}
			if _, err := store.Get(j.ID); err != nil {
				t.Errorf("Get() error = %v", err)
			}
		}
	}()

	for created := 0; created < 50; {
		if _, err := store.Create(Request{Kind: KindSystem, SystemID: created + 1}); err != nil {
			if errors.Is(err, ErrQueueFull) {
				time.Sleep(time.Millisecond)
				continue
			}
			t.Fatalf("Create() error = %v", err)
		}
		created++
	}

	wg.Wait()
}

func TestNextJobCanceled(t *testing.T) {
	store := NewStore(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.NextJob(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("NextJob() error = %v, want context.Canceled", err)
	}
}

func TestStoreCancelRacingSucceed(t *testing.T) {
	store := NewStore(200, nil)
	table := ingest.NewTable([]string{"a"}, "", 1)

	for i := 0; i < 200; i++ {
		id, err := store.Create(Request{Kind: KindSystem, SystemID: i + 1})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		_ = store.UpdateStatus(id, StatusRunning)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.Succeed(id, table)
		}()
		go func() {
			defer wg.Done()
			_ = store.Cancel(id)
		}()
		wg.Wait()

		j, _ := store.Get(id)
		switch j.Status {
		case StatusSucceeded:
			if j.Result == nil {
				t.Fatalf("job %d succeeded without a result", i)
			}
		case StatusCanceled:
			if j.Result != nil {
				t.Fatalf("job %d canceled but carries a result", i)
			}
		default:
			t.Fatalf("job %d status = %s", i, j.Status)
		}
	}
}

func TestStoreSucceedAfterCancel(t *testing.T) {
	store := NewStore(10, nil)
	id, _ := store.Create(statusRequest())
	if err := store.Cancel(id); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if err := store.Succeed(id, ingest.NewTable([]string{"a"}, "", 0)); !errors.Is(err, ErrFinished) {
		t.Errorf("Succeed() after cancel error = %v, want ErrFinished", err)
	}
	if err := store.Fail(id, errors.New("boom")); !errors.Is(err, ErrFinished) {
		t.Errorf("Fail() after cancel error = %v, want ErrFinished", err)
	}

	j, _ := store.Get(id)
	if j.Result != nil || j.LastError != "" || j.ErrorKind != ErrorCanceled {
		t.Errorf("canceled job changed: result=%v lastError=%q kind=%s", j.Result, j.LastError, j.ErrorKind)
	}
}
