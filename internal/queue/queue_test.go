package queue

import (
	"sync"
	"testing"
)

func TestQueue_New(t *testing.T) {
	q := New[int]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_PushPopOrder(t *testing.T) {
	q := New[int]()
	if n := q.Push(1, 2, 3); n != 0 {
		t.Errorf("unbounded queue evicted %d items", n)
	}

	for want := 1; want <= 3; want++ {
		if got := q.Pop(); got != want {
			t.Errorf("expected %d, got %d", want, got)
		}
	}
	if got := q.Pop(); got != 0 {
		t.Errorf("expected zero value from empty queue, got %d", got)
	}
}

func TestQueue_BoundedEvictsOldest(t *testing.T) {
	q := NewBounded[string](3)
	q.Push("a", "b", "c")
	if n := q.Push("d"); n != 1 {
		t.Errorf("expected 1 eviction, got %d", n)
	}

	got := q.Snapshot()
	want := []string{"b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: expected %q, got %q", i, want[i], got[i])
		}
	}

	if n := q.Push("e", "f", "g", "h"); n != 4 {
		t.Errorf("expected 4 evictions, got %d", n)
	}
	if last, ok := q.Last(); !ok || last != "h" {
		t.Errorf("expected last h, got %q", last)
	}
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_BoundedMinimumLimit(t *testing.T) {
	q := NewBounded[int](0)
	q.Push(1, 2)
	if q.Len() != 1 {
		t.Errorf("expected limit clamped to 1, got length %d", q.Len())
	}
}

func TestQueue_LastEmpty(t *testing.T) {
	q := New[int]()
	if _, ok := q.Last(); ok {
		t.Error("expected no last item")
	}
}

func TestQueue_SnapshotIsACopy(t *testing.T) {
	q := New[int]()
	q.Push(1)
	s := q.Snapshot()
	s[0] = 99
	if q.Pop() != 1 {
		t.Error("snapshot aliases queue storage")
	}
}

func TestQueue_GetAndEmpty(t *testing.T) {
	q := New[int]()
	q.Push(1, 2)
	items := q.GetAndEmpty()
	if len(items) != 2 || !q.Empty() {
		t.Errorf("expected 2 items and empty queue, got %v and len %d", items, q.Len())
	}
	q.Push(3)
	q.Clear()
	if !q.Empty() {
		t.Error("expected empty queue after Clear")
	}
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[int]()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(n*100 + j)
			}
		}(i)
	}
	wg.Wait()
	if q.Len() != 1000 {
		t.Errorf("expected 1000 items, got %d", q.Len())
	}
}
