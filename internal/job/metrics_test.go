package job

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestQueueLengthGauge(t *testing.T) {
	store := NewStore(10, nil)
	g := NewQueueLengthGauge(prometheus.NewRegistry(), store)

	if got := testutil.ToFloat64(g); got != 0 {
		t.Errorf("queue length = %v, want 0", got)
	}

	for i := 0; i < 3; i++ {
		if _, err := store.Create(Request{Kind: KindSystem, SystemID: i + 1}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if got := testutil.ToFloat64(g); got != 3 {
		t.Errorf("queue length = %v, want 3", got)
	}

	if _, err := store.NextJob(context.Background()); err != nil {
		t.Fatalf("NextJob() error = %v", err)
	}
	if got := testutil.ToFloat64(g); got != 2 {
		t.Errorf("queue length = %v, want 2", got)
	}
}
