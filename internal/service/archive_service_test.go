package service

import (
	"context"
	"testing"
	"time"

	"github.com/alanyoungcy/settlement/internal/store/memory"
)

type fakeArchiver struct {
	months []time.Time
}

func (f *fakeArchiver) ArchiveOrders(_ context.Context, month time.Time) (int64, error) {
	f.months = append(f.months, month)
	return 3, nil
}

func TestArchiveRunOnceTargetsPreviousMonth(t *testing.T) {
	arch := &fakeArchiver{}
	svc := NewArchiveService(arch, memory.NewLocks(), time.Minute, discardLogger())
	svc.now = func() time.Time { return time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC) }

	n, err := svc.RunOnce(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("RunOnce = %d, %v; want 3, nil", n, err)
	}
	want := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	if len(arch.months) != 1 || !arch.months[0].Equal(want) {
		t.Fatalf("archived months = %v, want [%s]", arch.months, want)
	}
}

func TestArchiveRunOnceSkipsWhenLocked(t *testing.T) {
	arch := &fakeArchiver{}
	locks := memory.NewLocks()
	unlock, err := locks.Acquire(context.Background(), archiveLockKey, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	n, err := NewArchiveService(arch, locks, time.Minute, discardLogger()).RunOnce(context.Background())
	if err != nil || n != 0 || len(arch.months) != 0 {
		t.Fatalf("RunOnce while locked = %d, %v, %d calls; want skip", n, err, len(arch.months))
	}
}
