// Package frontier is the crawler's FIFO work queue. Enqueue does no
// de-duplication; the scheduler filters against the visited set when it
// dispatches.
package frontier

import "sync"

type Queue struct {
	mu    sync.Mutex
	items []string
}

func New(initial ...string) *Queue {
	q := &Queue{}
	q.Push(initial...)
	return q
}

// Push appends urls to the tail.
func (q *Queue) Push(urls ...string) {
	if len(urls) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, urls...)
	q.mu.Unlock()
}

// Drain removes and returns up to n URLs from the head.
func (q *Queue) Drain(n int) []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n > len(q.items) {
		n = len(q.items)
	}
	if n <= 0 {
		return nil
	}
	batch := make([]string, n)
	copy(batch, q.items[:n])
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return batch
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Snapshot returns a copy of the pending URLs in queue order.
func (q *Queue) Snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.items))
	copy(out, q.items)
	return out
}
