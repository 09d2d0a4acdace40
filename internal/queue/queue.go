// Package queue implements the in-memory dispatch queue: a min-heap
// ordered by (priority, enqueue time), with a blocking pop. The store is
// the source of truth; the queue is rebuilt from pending rows at boot.
package queue

import (
	"container/heap"
	"sort"
	"sync"
	"time"

	"github.com/Bidon15/printspool/internal/models"
)

type queuedJob struct {
	job        *models.PrintJob
	enqueuedAt time.Time
	seq        uint64
	index      int
}

type jobHeap []*queuedJob

func (h jobHeap) Len() int { return len(h) }

// Lower priority value is more urgent; FIFO within a priority.
func (h jobHeap) Less(i, j int) bool { return h[i].before(h[j]) }

func (q *queuedJob) before(other *queuedJob) bool {
	if q.job.Priority != other.job.Priority {
		return q.job.Priority < other.job.Priority
	}
	if !q.enqueuedAt.Equal(other.enqueuedAt) {
		return q.enqueuedAt.Before(other.enqueuedAt)
	}
	return q.seq < other.seq
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	item := x.(*queuedJob)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// Position pairs a queued job id with its advisory 1-based rank.
type Position struct {
	JobID string
	Rank  int
}

// Queue is the broker's priority queue. Safe for concurrent use.
type Queue struct {
	mu     sync.Mutex
	items  jobHeap
	seq    uint64
	closed bool

	notify chan struct{}
	done   chan struct{}
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push enqueues a job and returns its advisory 1-based position at
// admission time. Returns 0 if the queue is closed.
func (q *Queue) Push(job *models.PrintJob) int {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0
	}

	q.seq++
	item := &queuedJob{job: job, enqueuedAt: time.Now(), seq: q.seq}

	// Rank before insertion: everything more urgent is served first.
	rank := 1
	for _, other := range q.items {
		if other.before(item) {
			rank++
		}
	}

	heap.Push(&q.items, item)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return rank
}

// Pop blocks until a job is available, the timeout elapses, or the queue
// closes. The boolean is false on timeout or close.
func (q *Queue) Pop(timeout time.Duration) (*models.PrintJob, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		if q.items.Len() > 0 {
			item := heap.Pop(&q.items).(*queuedJob)
			q.mu.Unlock()
			return item.job, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return nil, false
		}

		select {
		case <-q.notify:
		case <-timer.C:
			return nil, false
		case <-q.done:
			return nil, false
		}
	}
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Positions returns the advisory rank of every queued job in dispatch
// order. Ranks are written back to the store best-effort after each
// admission and never consulted for ordering decisions.
func (q *Queue) Positions() []Position {
	q.mu.Lock()
	snapshot := make([]*queuedJob, len(q.items))
	copy(snapshot, q.items)
	q.mu.Unlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].before(snapshot[j]) })

	out := make([]Position, len(snapshot))
	for i, item := range snapshot {
		out[i] = Position{JobID: item.job.JobID, Rank: i + 1}
	}
	return out
}

// Drain empties the queue and returns the remaining jobs in dispatch
// order.
func (q *Queue) Drain() []*models.PrintJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	var jobs []*models.PrintJob
	for q.items.Len() > 0 {
		item := heap.Pop(&q.items).(*queuedJob)
		jobs = append(jobs, item.job)
	}
	return jobs
}

// Close wakes blocked consumers and refuses further pushes. Queued jobs
// remain poppable until drained.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()
	close(q.done)
}
