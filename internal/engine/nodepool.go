package engine

import (
	"github.com/dfpnsolver/othello/internal/board"
	"github.com/dfpnsolver/othello/internal/queue"
)

// blockSize is the number of Nodes per arena block.
const blockSize = 8192

// Node is an ephemeral, per-search-subtree tree node, owned exclusively by
// the worker that allocated it out of its NodePool (§3, Node).
type Node struct {
	Player, Opponent board.Bitboard
	SideToMove       board.Color
	Kind             queue.NodeKind
	Depth            int

	Pn, Dn   int32
	Tpn, Tdn int32

	Result   Result
	IsProven bool

	EvalScore int32

	Children []*Node
}

// nodeBlock is one contiguous arena block.
type nodeBlock struct {
	nodes [blockSize]Node
}

// NodePool is a per-worker arena allocator for search-tree nodes: a linked
// list of fixed-size blocks, bump-allocated, bulk-reset between tasks. No
// locking, no reference counting, no per-node free (§4.3).
type NodePool struct {
	blocks   []*nodeBlock
	curBlock int
	curIndex int
}

// NewNodePool returns a pool with one block pre-allocated.
func NewNodePool() *NodePool {
	return &NodePool{blocks: []*nodeBlock{{}}}
}

// Alloc returns a fresh zeroed Node, appending a new block (or reusing a
// previously retained one) on exhaustion.
func (np *NodePool) Alloc() *Node {
	if np.curIndex >= blockSize {
		np.curBlock++
		np.curIndex = 0
		if np.curBlock >= len(np.blocks) {
			np.blocks = append(np.blocks, &nodeBlock{})
		}
	}
	n := &np.blocks[np.curBlock].nodes[np.curIndex]
	*n = Node{}
	np.curIndex++
	return n
}

// Reset rewinds allocation to the first block, zeroing it; later blocks are
// kept allocated for reuse by the next task rather than freed (§4.3).
func (np *NodePool) Reset() {
	if len(np.blocks) > 0 {
		np.blocks[0] = &nodeBlock{}
	}
	np.curBlock = 0
	np.curIndex = 0
}

// InUse returns the approximate number of nodes allocated since the last
// Reset, for telemetry.
func (np *NodePool) InUse() int {
	return np.curBlock*blockSize + np.curIndex
}
