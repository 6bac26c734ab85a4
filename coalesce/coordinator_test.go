package coalesce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mare-synchronos/filecached/hashid"
)

func TestStartOrJoinRunsWorkOnce(t *testing.T) {
	c := New()
	h := hashid.Normalize("aabb")

	var calls int32
	start := make(chan struct{})
	release := make(chan struct{})

	work := func() error {
		atomic.AddInt32(&calls, 1)
		close(start)
		<-release
		return nil
	}

	const waiters = 50
	handles := make([]*Handle, waiters)
	var wg sync.WaitGroup
	wg.Add(waiters)
	for i := 0; i < waiters; i++ {
		go func(i int) {
			defer wg.Done()
			handles[i] = c.StartOrJoin(h, work)
		}(i)
	}
	wg.Wait()

	<-start
	if !c.Contains([]hashid.Hash{h}) {
		t.Fatal("Contains should report the hash in flight")
	}
	close(release)

	for _, hd := range handles {
		ok, err := hd.Wait(context.Background())
		if !ok || err != nil {
			t.Fatalf("Wait() = %v, %v; want true, nil", ok, err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("work ran %d times, want exactly 1", got)
	}
	// every waiter must have gotten the very same handle.
	for _, hd := range handles {
		if hd != handles[0] {
			t.Fatal("waiters did not share a single handle")
		}
	}
}

func TestHandleRemovedAfterCompletion(t *testing.T) {
	c := New()
	h := hashid.Normalize("ccdd")

	handle := c.StartOrJoin(h, func() error { return nil })
	ok, err := handle.Wait(context.Background())
	if !ok || err != nil {
		t.Fatalf("Wait() = %v, %v", ok, err)
	}

	if c.Contains([]hashid.Hash{h}) {
		t.Fatal("completed handle should not remain in the map")
	}

	// A subsequent StartOrJoin must start fresh work, not reuse the old handle.
	var secondCalls int32
	handle2 := c.StartOrJoin(h, func() error {
		atomic.AddInt32(&secondCalls, 1)
		return nil
	})
	if handle2 == handle {
		t.Fatal("expected a new handle for a new StartOrJoin after completion")
	}
	handle2.Wait(context.Background())
	if atomic.LoadInt32(&secondCalls) != 1 {
		t.Fatal("second StartOrJoin should have run its own work")
	}
}

func TestFailedWorkReportsFailure(t *testing.T) {
	c := New()
	h := hashid.Normalize("ee11")
	boom := errors.New("boom")

	handle := c.StartOrJoin(h, func() error { return boom })
	ok, err := handle.Wait(context.Background())
	if ok {
		t.Fatal("Wait should report failure")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("Wait err = %v, want %v", err, boom)
	}
	if handle.Status() != Failed {
		t.Fatalf("Status = %v, want Failed", handle.Status())
	}
}

func TestWaitRespectsContextDeadline(t *testing.T) {
	c := New()
	h := hashid.Normalize("ab01")
	release := make(chan struct{})
	defer close(release)

	handle := c.StartOrJoin(h, func() error {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ok, err := handle.Wait(ctx)
	if ok || err == nil {
		t.Fatalf("Wait should time out, got ok=%v err=%v", ok, err)
	}
}

func TestContainsFalseWhenIdle(t *testing.T) {
	c := New()
	if c.Contains([]hashid.Hash{hashid.Normalize("nope")}) {
		t.Fatal("Contains should be false with nothing in flight")
	}
}
