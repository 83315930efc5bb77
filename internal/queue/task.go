// Package queue implements the three-tier task distribution system that
// feeds df-pn+ workers: a per-worker LocalHeap, a mutex-guarded
// GlobalChunkQueue, and a lock-free SharedTaskArray for startup bursts and
// spillover, plus a compact worker busy/idle bitmap.
package queue

import "github.com/dfpnsolver/othello/internal/board"

// NodeKind is the proof-number node type a Task targets.
type NodeKind uint8

const (
	OR  NodeKind = iota // root player to move
	AND                 // opponent to move
)

// Task names a subtree to prove. It is the unit moved between LocalHeap,
// GlobalChunkQueue and SharedTaskArray.
type Task struct {
	Player, Opponent board.Bitboard
	SideToMove       board.Color
	RootMove         board.Move
	Priority         int32
	EvalScore        int16
	IsRoot           bool
	Kind             NodeKind
	Depth            int
	Generation       int
}

// ChunkSize is the fixed number of tasks packed into one Chunk.
const ChunkSize = 16

// Chunk is a fixed-size batch of tasks exported from a LocalHeap to the
// GlobalChunkQueue, with top_priority cached so the queue can order chunks
// without touching the tasks inside.
type Chunk struct {
	Tasks       [ChunkSize]Task
	Count       int
	TopPriority int32
}

// NewChunk builds a chunk from the given tasks (len(tasks) <= ChunkSize),
// assumed already sorted so tasks[0] carries the highest priority.
func NewChunk(tasks []Task) *Chunk {
	c := &Chunk{Count: len(tasks)}
	copy(c.Tasks[:], tasks)
	if c.Count > 0 {
		c.TopPriority = c.Tasks[0].Priority
	}
	return c
}
