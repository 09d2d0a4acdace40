package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/Bidon15/printspool/internal/models"
)

func testJob(id string, priority int) *models.PrintJob {
	return &models.PrintJob{
		JobID:    id,
		ClientID: "client-001",
		Priority: priority,
		Status:   models.JobStatusPending,
	}
}

func TestQueuePopOrder(t *testing.T) {
	q := New()
	defer q.Close()

	// Two priority-1 jobs to check FIFO within a priority level.
	q.Push(testJob("job-p10", 10))
	q.Push(testJob("job-p1-first", 1))
	q.Push(testJob("job-p5", 5))
	q.Push(testJob("job-p1-second", 1))

	want := []string{"job-p1-first", "job-p1-second", "job-p5", "job-p10"}
	for i, id := range want {
		job, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("pop %d: queue empty, want %s", i, id)
		}
		if job.JobID != id {
			t.Errorf("pop %d: got %s, want %s", i, job.JobID, id)
		}
	}

	if n := q.Len(); n != 0 {
		t.Errorf("queue length after draining = %d, want 0", n)
	}
}

func TestQueuePushPosition(t *testing.T) {
	q := New()
	defer q.Close()

	tests := []struct {
		id       string
		priority int
		wantPos  int
	}{
		{"job-a", 5, 1},
		{"job-b", 5, 2},  // same priority, enqueued later
		{"job-c", 1, 1},  // more urgent, jumps the line
		{"job-d", 10, 4}, // least urgent
		{"job-e", 5, 4},  // after c, a, b
	}
	for _, tt := range tests {
		if got := q.Push(testJob(tt.id, tt.priority)); got != tt.wantPos {
			t.Errorf("Push(%s, priority %d) position = %d, want %d", tt.id, tt.priority, got, tt.wantPos)
		}
	}
}

func TestQueuePositions(t *testing.T) {
	q := New()
	defer q.Close()

	q.Push(testJob("job-late", 9))
	q.Push(testJob("job-first", 2))
	q.Push(testJob("job-mid", 5))

	got := q.Positions()
	want := []Position{
		{JobID: "job-first", Rank: 1},
		{JobID: "job-mid", Rank: 2},
		{JobID: "job-late", Rank: 3},
	}
	if len(got) != len(want) {
		t.Fatalf("Positions() returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Positions()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestQueuePopTimeout(t *testing.T) {
	q := New()
	defer q.Close()

	start := time.Now()
	job, ok := q.Pop(50 * time.Millisecond)
	elapsed := time.Since(start)

	if ok || job != nil {
		t.Fatalf("Pop on empty queue = (%v, %v), want (nil, false)", job, ok)
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("Pop returned after %v, want it to block for the timeout", elapsed)
	}
}

func TestQueuePopWakesOnPush(t *testing.T) {
	q := New()
	defer q.Close()

	done := make(chan *models.PrintJob, 1)
	go func() {
		job, ok := q.Pop(2 * time.Second)
		if !ok {
			done <- nil
			return
		}
		done <- job
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(testJob("job-wake", 5))

	select {
	case job := <-done:
		if job == nil || job.JobID != "job-wake" {
			t.Fatalf("blocked Pop returned %v, want job-wake", job)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked Pop did not wake after Push")
	}
}

func TestQueueCloseWakesConsumer(t *testing.T) {
	q := New()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(5 * time.Second)
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("Pop on closed empty queue returned ok = true")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Close")
	}

	if pos := q.Push(testJob("job-rejected", 5)); pos != 0 {
		t.Errorf("Push after Close returned position %d, want 0", pos)
	}
}

func TestQueueDrain(t *testing.T) {
	q := New()
	defer q.Close()

	for i := 0; i < 5; i++ {
		q.Push(testJob(fmt.Sprintf("job-%d", i), 10-i))
	}

	jobs := q.Drain()
	if len(jobs) != 5 {
		t.Fatalf("Drain returned %d jobs, want 5", len(jobs))
	}
	for i := 1; i < len(jobs); i++ {
		if jobs[i-1].Priority > jobs[i].Priority {
			t.Errorf("Drain order broken at %d: priority %d before %d", i, jobs[i-1].Priority, jobs[i].Priority)
		}
	}
	if n := q.Len(); n != 0 {
		t.Errorf("queue length after Drain = %d, want 0", n)
	}
}

func TestQueueRestoreOrder(t *testing.T) {
	q := New()
	defer q.Close()

	// Pending rows arrive ordered by (priority, created_at); pushing in
	// that order must preserve it.
	restored := []struct {
		id       string
		priority int
	}{
		{"restore-1", 1},
		{"restore-2", 1},
		{"restore-3", 5},
		{"restore-4", 5},
		{"restore-5", 8},
	}
	for _, r := range restored {
		q.Push(testJob(r.id, r.priority))
	}

	for i, r := range restored {
		job, ok := q.Pop(time.Second)
		if !ok {
			t.Fatalf("pop %d: queue empty", i)
		}
		if job.JobID != r.id {
			t.Errorf("pop %d: got %s, want %s", i, job.JobID, r.id)
		}
	}
}
