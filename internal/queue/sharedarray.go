package queue

import "sync/atomic"

// cachePad is the padding added around hot atomic counters to keep them on
// separate cache lines from their neighbors.
type cachePad [64 - 8]byte

type cell struct {
	sequence atomic.Uint64
	data     Task
}

// SharedTaskArray is a bounded lock-free MPMC ring buffer used for the
// startup burst (all root tasks pushed at once) and for spillover when a
// LocalHeap would otherwise overflow. It is not priority-ordered: FIFO
// within the ring, contended only through atomic CAS on head/tail.
//
// The algorithm is Dmitry Vyukov's bounded MPMC queue: each slot carries its
// own sequence number so a producer/consumer can tell, without a lock,
// whether the slot is ready for it yet.
type SharedTaskArray struct {
	buf  []cell
	mask uint64

	_    cachePad
	tail atomic.Uint64
	_    cachePad
	head atomic.Uint64
	_    cachePad
}

// NewSharedTaskArray returns a ring sized to the next power of two >= size.
func NewSharedTaskArray(size int) *SharedTaskArray {
	n := uint64(1)
	for n < uint64(size) {
		n <<= 1
	}
	sa := &SharedTaskArray{buf: make([]cell, n), mask: n - 1}
	for i := range sa.buf {
		sa.buf[i].sequence.Store(uint64(i))
	}
	return sa
}

// Push enqueues a task, returning false if the ring is full.
func (sa *SharedTaskArray) Push(t Task) bool {
	pos := sa.tail.Load()
	for {
		c := &sa.buf[pos&sa.mask]
		seq := c.sequence.Load()
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if sa.tail.CompareAndSwap(pos, pos+1) {
				c.data = t
				c.sequence.Store(pos + 1)
				return true
			}
			pos = sa.tail.Load()
		case diff < 0:
			return false
		default:
			pos = sa.tail.Load()
		}
	}
}

// Pop dequeues a task, returning ok=false if the ring is empty.
func (sa *SharedTaskArray) Pop() (t Task, ok bool) {
	pos := sa.head.Load()
	for {
		c := &sa.buf[pos&sa.mask]
		seq := c.sequence.Load()
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if sa.head.CompareAndSwap(pos, pos+1) {
				t = c.data
				c.sequence.Store(pos + sa.mask + 1)
				return t, true
			}
			pos = sa.head.Load()
		case diff < 0:
			return Task{}, false
		default:
			pos = sa.head.Load()
		}
	}
}

// Len returns an approximate occupancy; exact only absent concurrent
// mutation, adequate for the 70%-full spawn-policy heuristic (§4.7).
func (sa *SharedTaskArray) Len() int {
	t := sa.tail.Load()
	h := sa.head.Load()
	if t < h {
		return 0
	}
	return int(t - h)
}

// Cap returns the ring's fixed capacity.
func (sa *SharedTaskArray) Cap() int {
	return int(sa.mask + 1)
}
