// Package schedule runs callbacks at scheduled times, ordered by a min-heap.
package schedule

import (
	"container/heap"
	"errors"
	"sync"
	"time"
)

var ErrStopped = errors.New("scheduler is stopped")

// task is a callback scheduled for future execution.
type task struct {
	id    string
	runAt time.Time
	fn    func()
	index int // index in the heap (for heap.Interface)
}

// taskHeap is a min-heap of tasks ordered by runAt
type taskHeap []*task

func (h taskHeap) Len() int           { return len(h) }
func (h taskHeap) Less(i, j int) bool { return h[i].runAt.Before(h[j].runAt) }
func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil // avoid memory leak
	t.index = -1
	*h = old[0 : n-1]
	return t
}

// Scheduler manages scheduled callbacks using a min-heap.
type Scheduler struct {
	mu      sync.Mutex
	heap    taskHeap
	tasks   map[string]*task // O(1) lookup by ID
	wakeup  chan struct{}
	stopCh  chan struct{}
	stopped bool
}

func New() *Scheduler {
	s := &Scheduler{
		heap:   make(taskHeap, 0),
		tasks:  make(map[string]*task),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	heap.Init(&s.heap)
	go s.run()
	return s
}

// Stop stops the scheduler; pending tasks are discarded.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	close(s.stopCh)
}

// Schedule registers fn to run at runAt, replacing any task with the same id.
func (s *Scheduler) Schedule(id string, runAt time.Time, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}

	if existing, ok := s.tasks[id]; ok {
		heap.Remove(&s.heap, existing.index)
		delete(s.tasks, id)
	}

	t := &task{id: id, runAt: runAt, fn: fn}
	heap.Push(&s.heap, t)
	s.tasks[id] = t

	// Wake the loop if this became the earliest task.
	if s.heap[0] == t {
		select {
		case s.wakeup <- struct{}{}:
		default:
		}
	}
	return nil
}

// Cancel removes a scheduled task, reporting whether it existed.
func (s *Scheduler) Cancel(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return false
	}
	heap.Remove(&s.heap, t.index)
	delete(s.tasks, id)
	return true
}

func (s *Scheduler) run() {
	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}

		wait := 24 * time.Hour
		if s.heap.Len() > 0 {
			wait = time.Until(s.heap[0].runAt)
			if wait <= 0 {
				t := heap.Pop(&s.heap).(*task)
				delete(s.tasks, t.id)
				go t.fn()
				s.mu.Unlock()
				continue
			}
		}
		s.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.wakeup:
			timer.Stop()
		case <-s.stopCh:
			timer.Stop()
			return
		}
	}
}

// NextHourly returns the next time at delay past the top of an hour.
func NextHourly(now time.Time, delay time.Duration) time.Time {
	next := now.Truncate(time.Hour).Add(delay)
	if !next.After(now) {
		next = next.Add(time.Hour)
	}
	return next
}
