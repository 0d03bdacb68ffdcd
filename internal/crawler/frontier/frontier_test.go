package frontier

import (
	"reflect"
	"sync"
	"testing"
)

func TestFIFOWithDuplicates(t *testing.T) {
	q := New("a", "b")
	q.Push("c", "a")

	if got := q.Drain(3); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("first drain = %v", got)
	}
	if got := q.Drain(10); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("second drain = %v", got)
	}
	if got := q.Drain(10); got != nil {
		t.Errorf("empty drain = %v", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d", q.Len())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	q := New("a", "b")
	snap := q.Snapshot()
	snap[0] = "z"
	if got := q.Drain(1); got[0] != "a" {
		t.Errorf("snapshot aliased queue storage: %v", got)
	}
}

func TestConcurrentPush(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push("u")
			}
		}()
	}
	wg.Wait()
	if q.Len() != 1000 {
		t.Errorf("Len = %d, want 1000", q.Len())
	}
}
