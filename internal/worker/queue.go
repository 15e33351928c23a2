package worker

import (
	"sync"
)

// Queue holds file paths waiting for the watch consumer. A path already
// waiting is not queued twice.
type Queue struct {
	ch        chan string
	mu        sync.Mutex
	enqueued  map[string]struct{}
	accepting bool
}

func NewQueue(buf int) *Queue {
	return &Queue{
		ch:        make(chan string, buf*2+10),
		enqueued:  make(map[string]struct{}),
		accepting: true,
	}
}

// Enqueue adds path unless it is already pending or the queue is closed to
// new work. It blocks while the buffer is full.
func (q *Queue) Enqueue(path string) bool {
	q.mu.Lock()
	if !q.accepting {
		q.mu.Unlock()
		return false
	}
	if _, ok := q.enqueued[path]; ok {
		q.mu.Unlock()
		return false
	}
	q.enqueued[path] = struct{}{}
	q.mu.Unlock()

	q.ch <- path
	return true
}

func (q *Queue) Dequeued(path string) {
	q.mu.Lock()
	delete(q.enqueued, path)
	q.mu.Unlock()
}

func (q *Queue) StopAccepting() {
	q.mu.Lock()
	q.accepting = false
	q.mu.Unlock()
}

func (q *Queue) Chan() <-chan string { return q.ch }

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.enqueued)
}
