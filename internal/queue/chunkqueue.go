package queue

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

// chunkHeap orders Chunks by TopPriority, highest first.
type chunkHeap []*Chunk

func (h chunkHeap) Len() int            { return len(h) }
func (h chunkHeap) Less(i, j int) bool  { return h[i].TopPriority > h[j].TopPriority }
func (h chunkHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *chunkHeap) Push(x interface{}) { *h = append(*h, x.(*Chunk)) }
func (h *chunkHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// GlobalChunkQueue is a mutex-guarded max-heap of Chunks shared by every
// worker. A cached atomic top-priority lets workers compare their current
// task's priority against the queue without taking the mutex (TT-hit
// preemption, §4.8), and a condvar wakes workers blocked waiting for work.
type GlobalChunkQueue struct {
	mu   sync.Mutex
	cond *sync.Cond
	h    chunkHeap

	topPriority atomic.Int32
	shutdown    atomic.Bool
}

// NewGlobalChunkQueue returns an empty queue.
func NewGlobalChunkQueue() *GlobalChunkQueue {
	q := &GlobalChunkQueue{}
	q.cond = sync.NewCond(&q.mu)
	q.topPriority.Store(-1 << 31)
	return q
}

// Push adds a chunk and wakes one waiter.
func (q *GlobalChunkQueue) Push(c *Chunk) {
	q.mu.Lock()
	heap.Push(&q.h, c)
	q.refreshTop()
	q.mu.Unlock()
	q.cond.Signal()
}

// refreshTop must be called with mu held.
func (q *GlobalChunkQueue) refreshTop() {
	if len(q.h) == 0 {
		q.topPriority.Store(-1 << 31)
		return
	}
	q.topPriority.Store(q.h[0].TopPriority)
}

// TopPriority reads the cached top priority without locking.
func (q *GlobalChunkQueue) TopPriority() int32 {
	return q.topPriority.Load()
}

// Pop removes and returns the highest-priority chunk, or ok=false if empty.
func (q *GlobalChunkQueue) Pop() (c *Chunk, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return nil, false
	}
	c = heap.Pop(&q.h).(*Chunk)
	q.refreshTop()
	return c, true
}

// Len returns the number of queued chunks.
func (q *GlobalChunkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// WaitTimeout blocks on the condvar for up to the given duration, returning
// early if a chunk is pushed or shutdown is signaled. Callers re-check their
// own acquisition order after this returns; it makes no promises about
// queue state at wake time.
func (q *GlobalChunkQueue) WaitTimeout(d time.Duration) {
	done := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		q.mu.Lock()
		close(done)
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()

	q.mu.Lock()
	for len(q.h) == 0 && !q.shutdown.Load() {
		select {
		case <-done:
			q.mu.Unlock()
			return
		default:
		}
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// Shutdown marks the queue as shutting down and wakes every waiter.
func (q *GlobalChunkQueue) Shutdown() {
	q.shutdown.Store(true)
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}
