package queue

import "container/heap"

// LocalHeapCapacity is the fixed capacity of a worker's LocalHeap, chosen
// well above the chunked-export threshold so export lags behind growth
// rather than racing it.
const LocalHeapCapacity = 1024

// taskHeap is the container/heap-backed priority order: highest Priority
// first.
type taskHeap []Task

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].Priority > h[j].Priority }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(Task)) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// LocalHeap is a single-owner, unsynchronized max-heap of Tasks ordered by
// priority. It must only ever be touched by the worker that owns it.
type LocalHeap struct {
	h taskHeap
}

// NewLocalHeap returns an empty LocalHeap.
func NewLocalHeap() *LocalHeap {
	lh := &LocalHeap{h: make(taskHeap, 0, LocalHeapCapacity)}
	heap.Init(&lh.h)
	return lh
}

// Push inserts a task. Returns false if the heap is at capacity; the caller
// should export a chunk to the GlobalChunkQueue in that case.
func (lh *LocalHeap) Push(t Task) bool {
	if len(lh.h) >= LocalHeapCapacity {
		return false
	}
	heap.Push(&lh.h, t)
	return true
}

// Pop removes and returns the highest-priority task. ok is false if empty.
func (lh *LocalHeap) Pop() (t Task, ok bool) {
	if len(lh.h) == 0 {
		return Task{}, false
	}
	return heap.Pop(&lh.h).(Task), true
}

// Len returns the number of queued tasks.
func (lh *LocalHeap) Len() int { return len(lh.h) }

// TopPriority returns the priority of the highest-priority task, or
// math.MinInt32 if empty.
func (lh *LocalHeap) TopPriority() int32 {
	if len(lh.h) == 0 {
		return -1 << 31
	}
	return lh.h[0].Priority
}

// PopChunk drains up to ChunkSize top tasks into a Chunk, leaving the rest
// in the heap. Used by the chunked-export rule (§4.7): the caller keeps one
// task for itself before calling this, or calls it first and re-pushes its
// own pick — either ordering is safe since LocalHeap is single-owner.
func (lh *LocalHeap) PopChunk() *Chunk {
	n := ChunkSize
	if n > len(lh.h) {
		n = len(lh.h)
	}
	tasks := make([]Task, 0, n)
	for i := 0; i < n; i++ {
		t, _ := lh.Pop()
		tasks = append(tasks, t)
	}
	return NewChunk(tasks)
}
