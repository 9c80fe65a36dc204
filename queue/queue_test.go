package queue

import (
	"sync/atomic"
	"testing"
	"time"
)

// TestFIFOOrder verifies items come out in insertion order with no loss
// or duplication.
func TestFIFOOrder(t *testing.T) {
	q := New[int](4)

	const n = 100
	go func() {
		for i := 0; i < n; i++ {
			if !q.Put(i) {
				t.Errorf("Put(%d) refused on open queue", i)
				return
			}
		}
		q.Close()
	}()

	for i := 0; i < n; i++ {
		v, ok := q.Get()
		if !ok {
			t.Fatalf("Get returned closed after %d items, want %d", i, n)
		}
		if v != i {
			t.Fatalf("Get = %d, want %d", v, i)
		}
	}
	if _, ok := q.Get(); ok {
		t.Error("Get returned an item after all were consumed")
	}
}

// TestCapacityBlocksProducer verifies a Put on a full queue makes no
// progress until the consumer takes an item.
func TestCapacityBlocksProducer(t *testing.T) {
	const k = 2
	q := New[int](k)

	for i := 0; i < k; i++ {
		if !q.Put(i) {
			t.Fatalf("Put(%d) refused below capacity", i)
		}
	}

	var done int32
	unblocked := make(chan bool)
	go func() {
		q.Put(k)
		atomic.StoreInt32(&done, 1)
		unblocked <- true
	}()

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&done) != 0 {
		t.Fatal("Put on full queue returned without a Get")
	}
	if got := q.Len(); got != k {
		t.Fatalf("Len = %d, want %d", got, k)
	}

	if v, ok := q.Get(); !ok || v != 0 {
		t.Fatalf("Get = (%d, %v), want (0, true)", v, ok)
	}

	select {
	case <-unblocked:
	case <-time.After(time.Second):
		t.Fatal("Put still blocked after Get freed a slot")
	}
}

// TestCloseDrainsBuffered verifies a closed queue yields every buffered
// item before reporting closed, and that Close is idempotent.
func TestCloseDrainsBuffered(t *testing.T) {
	q := New[int](5)
	for i := 0; i < 3; i++ {
		q.Put(i)
	}
	q.Close()
	q.Close()

	for i := 0; i < 3; i++ {
		v, ok := q.Get()
		if !ok || v != i {
			t.Fatalf("Get = (%d, %v), want (%d, true)", v, ok, i)
		}
	}
	for i := 0; i < 2; i++ {
		if _, ok := q.Get(); ok {
			t.Error("Get returned an item from a drained closed queue")
		}
	}
}

// TestPutAfterCloseRefused verifies a closed queue never accepts items.
func TestPutAfterCloseRefused(t *testing.T) {
	q := New[string](2)
	q.Close()
	if q.Put("late") {
		t.Error("Put accepted on a closed queue")
	}
	if got := q.Len(); got != 0 {
		t.Errorf("Len = %d after refused Put, want 0", got)
	}
}

// TestCloseUnblocksPut verifies phase two of shutdown: a producer
// blocked inside Put on a full queue is released by Close and told the
// item was not accepted.
func TestCloseUnblocksPut(t *testing.T) {
	q := New[int](1)
	q.Put(1)

	result := make(chan bool)
	go func() {
		result <- q.Put(2)
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case accepted := <-result:
		if accepted {
			t.Error("Put reported accepted after Close on a full queue")
		}
	case <-time.After(time.Second):
		t.Fatal("Put still blocked after Close")
	}
}

// TestCloseUnblocksGet verifies a consumer blocked on an empty queue is
// released by Close with the closed signal.
func TestCloseUnblocksGet(t *testing.T) {
	q := New[int](2)

	result := make(chan bool)
	go func() {
		_, ok := q.Get()
		result <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-result:
		if ok {
			t.Error("Get reported an item after Close on an empty queue")
		}
	case <-time.After(time.Second):
		t.Fatal("Get still blocked after Close")
	}
}

// TestNormalDrainScenario runs the capacity-2 producer/slow-consumer
// drain: all five items arrive in order, then closed.
func TestNormalDrainScenario(t *testing.T) {
	q := New[int](2)

	go func() {
		for i := 1; i <= 5; i++ {
			q.Put(i)
		}
		q.Close()
	}()

	var got []int
	for {
		v, ok := q.Get()
		if !ok {
			break
		}
		got = append(got, v)
		time.Sleep(10 * time.Millisecond)
	}

	if len(got) != 5 {
		t.Fatalf("received %d items, want 5", len(got))
	}
	for i, v := range got {
		if v != i+1 {
			t.Errorf("got[%d] = %d, want %d", i, v, i+1)
		}
	}
}

// TestDrainReturnsRemainder verifies Drain closes the queue and hands
// back whatever was still buffered.
func TestDrainReturnsRemainder(t *testing.T) {
	q := New[int](4)
	q.Put(7)
	q.Put(8)

	rest := q.Drain()
	if len(rest) != 2 || rest[0] != 7 || rest[1] != 8 {
		t.Fatalf("Drain = %v, want [7 8]", rest)
	}
	if !q.Closed() {
		t.Error("queue not closed after Drain")
	}
	if _, ok := q.Get(); ok {
		t.Error("Get returned an item after Drain")
	}
}
