package engine

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// stripeCount is the number of cache-line-padded RW-mutex stripes guarding
// the table. A key's slot and its stripe are selected by independent hash
// functions so that stripe contention doesn't correlate with slot
// collisions.
const stripeCount = 1024

// stripe is one padded RW-mutex; the padding keeps adjacent stripes off the
// same cache line so unrelated workers never false-share a lock word.
type stripe struct {
	mu  sync.RWMutex
	_   [64 - 24]byte
}

// TTEntry is one transposition table slot: 24 bytes indicative, one entry
// per canonical position hash.
type TTEntry struct {
	Key       uint64
	Pn        int32
	Dn        int32
	Result    Result
	Depth     int16
	EvalScore int16
	Age       uint8
}

// TranspositionTable is the shared, striped-lock hash map of (pn, dn,
// result, depth) keyed by canonical position hash (§4.1).
type TranspositionTable struct {
	entries []TTEntry
	stripes []stripe
	mask    uint64

	age atomic.Uint32

	hits       atomic.Uint64
	probes     atomic.Uint64
	stores     atomic.Uint64
	collisions atomic.Uint64
}

// NewTranspositionTable builds a table sized from a byte budget, rounded
// down to a power of two entry count.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	const entrySize = uint64(32)
	numEntries := (uint64(sizeMB) * 1024 * 1024) / entrySize
	numEntries = roundDownToPowerOf2(numEntries)
	if numEntries == 0 {
		numEntries = 1
	}
	return &TranspositionTable{
		entries: make([]TTEntry, numEntries),
		stripes: make([]stripe, stripeCount),
		mask:    numEntries - 1,
	}
}

func roundDownToPowerOf2(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

func (tt *TranspositionTable) slot(key uint64) uint64 {
	return key & tt.mask
}

func (tt *TranspositionTable) stripeFor(key uint64) *stripe {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(key >> (8 * i))
	}
	h := xxhash.Sum64(b[:])
	return &tt.stripes[h&(stripeCount-1)]
}

// Probe looks up key, returning the entry and true iff found at depth >= the
// requested minimum. A non-zero stored key that doesn't match increments the
// collision counter (§4.1).
func (tt *TranspositionTable) Probe(key uint64, minDepth int) (TTEntry, bool) {
	tt.probes.Add(1)
	idx := tt.slot(key)
	s := tt.stripeFor(key)

	s.mu.RLock()
	entry := tt.entries[idx]
	s.mu.RUnlock()

	if entry.Key == key && int(entry.Depth) >= minDepth {
		tt.hits.Add(1)
		return entry, true
	}
	if entry.Key != 0 && entry.Key != key {
		tt.collisions.Add(1)
	}
	return TTEntry{}, false
}

// Store writes an entry, overwriting only if the incoming depth is >= the
// stored depth (§3, TT entry replacement policy).
func (tt *TranspositionTable) Store(key uint64, depth int, pn, dn int32, result Result, evalScore int16) {
	idx := tt.slot(key)
	s := tt.stripeFor(key)

	s.mu.Lock()
	e := &tt.entries[idx]
	if depth >= int(e.Depth) {
		e.Key = key
		e.Pn = pn
		e.Dn = dn
		e.Result = result
		e.Depth = int16(depth)
		e.EvalScore = evalScore
		e.Age = uint8(tt.age.Load())
	}
	s.mu.Unlock()
	tt.stores.Add(1)
}

// NewSearch bumps the generation counter; stored entries from prior
// generations remain probeable (staleness is tolerated, §4.1) but are the
// first candidates a future replacement strategy could age out.
func (tt *TranspositionTable) NewSearch() {
	tt.age.Add(1)
}

// Clear zeroes every entry and resets statistics.
func (tt *TranspositionTable) Clear() {
	for i := range tt.entries {
		tt.entries[i] = TTEntry{}
	}
	tt.hits.Store(0)
	tt.probes.Store(0)
	tt.stores.Store(0)
	tt.collisions.Store(0)
}

// HashFull returns the permille of sampled slots currently occupied.
func (tt *TranspositionTable) HashFull() int {
	sample := 1000
	if uint64(sample) > uint64(len(tt.entries)) {
		sample = len(tt.entries)
	}
	used := 0
	for i := 0; i < sample; i++ {
		if tt.entries[i].Key != 0 {
			used++
		}
	}
	if sample == 0 {
		return 0
	}
	return (used * 1000) / sample
}

// HitRate returns the probe hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	probes := tt.probes.Load()
	if probes == 0 {
		return 0
	}
	return float64(tt.hits.Load()) / float64(probes) * 100
}

func (tt *TranspositionTable) Collisions() uint64 { return tt.collisions.Load() }
func (tt *TranspositionTable) Stores() uint64      { return tt.stores.Load() }
func (tt *TranspositionTable) Size() uint64        { return uint64(len(tt.entries)) }

// Snapshot returns every proven entry currently stored, for persistence
// between runs by a caller that holds a -tt-cache directory. Intended to be
// called after a search has finished, once no worker is still writing.
func (tt *TranspositionTable) Snapshot() []TTEntry {
	var out []TTEntry
	for i, e := range tt.entries {
		if e.Key != 0 && IsProven(e.Pn, e.Dn) {
			out = append(out, tt.entries[i])
		}
	}
	return out
}

// LoadSnapshot seeds the table with previously proven entries, skipping any
// slot that already holds an equal-or-deeper entry.
func (tt *TranspositionTable) LoadSnapshot(entries []TTEntry) {
	for _, e := range entries {
		idx := tt.slot(e.Key)
		s := tt.stripeFor(e.Key)
		s.mu.Lock()
		cur := &tt.entries[idx]
		if cur.Key == 0 || int(e.Depth) > int(cur.Depth) {
			*cur = e
		}
		s.mu.Unlock()
	}
}

// IsProven reports whether an entry's (pn, dn) represents a proof rather
// than a heuristic hint (§4.1 correctness note, §4.6).
func IsProven(pn, dn int32) bool {
	return pn == 0 || dn == 0 || (pn == INF && dn == INF)
}
