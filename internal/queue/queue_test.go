package queue

import (
	"sync"
	"testing"
)

type row struct {
	ID   int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[row]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Dropped() != 0 {
		t.Errorf("expected no drops, got %d", q.Dropped())
	}
}

func TestQueue_PushPop(t *testing.T) {
	q := New[row]()

	if _, ok := q.Pop(); ok {
		t.Error("expected Pop on empty queue to report false")
	}

	q.Push(row{ID: 1, Name: "first"}, row{ID: 2, Name: "second"})
	first, ok := q.Pop()
	if !ok || first.ID != 1 || first.Name != "first" {
		t.Errorf("expected {1 first}, got %+v ok=%v", first, ok)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestQueue_BoundedDropsOldest(t *testing.T) {
	q := NewBounded[row](3)
	q.Push(row{ID: 1}, row{ID: 2}, row{ID: 3})
	q.Push(row{ID: 4}, row{ID: 5})

	if q.Len() != 3 {
		t.Fatalf("expected length 3, got %d", q.Len())
	}
	if q.Dropped() != 2 {
		t.Errorf("expected 2 drops, got %d", q.Dropped())
	}
	got := q.Drain(0)
	if got[0].ID != 3 || got[2].ID != 5 {
		t.Errorf("expected ids 3..5, got %+v", got)
	}
}

func TestQueue_Drain(t *testing.T) {
	q := New[row]()
	if got := q.Drain(0); got != nil {
		t.Errorf("expected nil from empty drain, got %+v", got)
	}

	q.Push(row{ID: 1}, row{ID: 2}, row{ID: 3})

	part := q.Drain(2)
	if len(part) != 2 || part[0].ID != 1 || part[1].ID != 2 {
		t.Errorf("unexpected partial drain: %+v", part)
	}
	rest := q.Drain(0)
	if len(rest) != 1 || rest[0].ID != 3 {
		t.Errorf("unexpected rest: %+v", rest)
	}
	if !q.Empty() {
		t.Error("expected empty queue after drain")
	}
}

func TestQueue_Requeue(t *testing.T) {
	q := NewBounded[row](3)
	q.Push(row{ID: 3})
	q.Requeue([]row{{ID: 1}, {ID: 2}})

	got := q.Drain(0)
	if len(got) != 3 || got[0].ID != 1 || got[1].ID != 2 || got[2].ID != 3 {
		t.Errorf("expected 1,2,3 got %+v", got)
	}

	q.Push(row{ID: 9})
	q.Requeue([]row{{ID: 6}, {ID: 7}, {ID: 8}})
	got = q.Drain(0)
	if len(got) != 3 || got[0].ID != 7 || got[2].ID != 9 {
		t.Errorf("expected 7,8,9 got %+v", got)
	}
	if q.Dropped() != 1 {
		t.Errorf("expected 1 drop, got %d", q.Dropped())
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[row]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(row{ID: id})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}

	var mu sync.Mutex
	seen := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n := len(q.Drain(10))
			mu.Lock()
			seen += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	if seen != 100 {
		t.Errorf("expected to drain 100 items, drained %d", seen)
	}
}
