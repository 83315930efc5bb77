package engine

import (
	"log"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dfpnsolver/othello/internal/board"
	"github.com/dfpnsolver/othello/internal/eval"
	"github.com/dfpnsolver/othello/internal/queue"
)

// SpawnConfig holds the subtask-spawning tunables, settable from the CLI
// (-G, -D, -S) and relaxed dynamically under idle/contention pressure
// (§4.7).
type SpawnConfig struct {
	MaxGeneration    int
	MinDepthForSpawn int
	SpawnLimit       int
}

// DefaultSpawnConfig matches the hybrid engine's documented defaults.
func DefaultSpawnConfig() SpawnConfig {
	return SpawnConfig{MaxGeneration: 1, MinDepthForSpawn: 5, SpawnLimit: 9999}
}

// relax widens the spawn policy under idle or low-contention conditions, per
// the tiered rules: the least loaded systems spawn the most aggressively.
func relax(cfg SpawnConfig, idleFrac float64, localBelowChunk, sharedBelow70 bool) SpawnConfig {
	out := cfg
	if localBelowChunk && sharedBelow70 {
		out.MaxGeneration += 20
		out.SpawnLimit = 50
		out.MinDepthForSpawn /= 2
	}
	switch {
	case idleFrac >= 0.9:
		out.MaxGeneration += 10
		out.SpawnLimit *= 5
		out.MinDepthForSpawn /= 2
	case idleFrac >= 0.7:
		out.MaxGeneration += 5
		out.SpawnLimit *= 3
		out.MinDepthForSpawn = out.MinDepthForSpawn * 2 / 3
	case idleFrac >= 0.5:
		out.MaxGeneration += 2
		out.SpawnLimit *= 2
	}
	if out.MinDepthForSpawn < 0 {
		out.MinDepthForSpawn = 0
	}
	return out
}

// WorkerStats are the telemetry counters a worker exposes for CLI reporting.
type WorkerStats struct {
	Nodes atomic.Uint64
	Tasks atomic.Uint64

	EvalImpact EvalImpactStats
}

// EvalImpactStats counts, for every internal node that proves via a single
// decisive child (an OR node's winning child or an AND node's losing child),
// whether that child was the one static eval ranked first. A high ratio
// means the eval-guided child ordering is doing its job of trying the move
// that actually resolves the subtree before the others (supplemented
// feature, grounded on `engine.SearchInfo`'s move-ordering-quality callback
// in the teacher).
type EvalImpactStats struct {
	BestFirstDecisions atomic.Uint64
	TotalDecisions     atomic.Uint64
}

// Worker runs the acquire-task / solve / store-result loop against the
// shared queues and transposition table. Every field except the atomics is
// owned exclusively by this worker; nothing here is touched cross-goroutine
// except through the queue package's own synchronization.
type Worker struct {
	id int

	tt        *TranspositionTable
	pool      *NodePool
	local     *queue.LocalHeap
	global    *queue.GlobalChunkQueue
	shared    *queue.SharedTaskArray
	bitmap    *queue.WorkerBitmap
	evaluator eval.Evaluator
	tm        *TimeManager
	spawnCfg  SpawnConfig
	trace     TraceConfig

	// spillSem throttles how many workers may concurrently spill spawned
	// subtasks into SharedTaskArray while in contention mode (§4.7); shared
	// across the whole pool, not per-worker.
	spillSem *semaphore.Weighted

	shutdown        *atomic.Bool
	foundWin        *atomic.Bool
	shouldAbortTask atomic.Bool

	currentPriority int32
	nodeCount       uint64

	Stats WorkerStats
}

// NewWorker builds a worker bound to the shared scheduling and TT state.
func NewWorker(id int, tt *TranspositionTable, global *queue.GlobalChunkQueue, shared *queue.SharedTaskArray, bitmap *queue.WorkerBitmap, evaluator eval.Evaluator, tm *TimeManager, cfg SpawnConfig, trace TraceConfig, spillSem *semaphore.Weighted, shutdown, foundWin *atomic.Bool) *Worker {
	return &Worker{
		id:        id,
		tt:        tt,
		pool:      NewNodePool(),
		local:     queue.NewLocalHeap(),
		global:    global,
		shared:    shared,
		bitmap:    bitmap,
		evaluator: evaluator,
		tm:        tm,
		spawnCfg:  cfg,
		trace:     trace,
		spillSem:  spillSem,
		shutdown:  shutdown,
		foundWin:  foundWin,
	}
}

// acquireTask implements the hybrid acquisition order (§4.7): fast-sharing
// mode drains the owner's LocalHeap before stealing from SharedTaskArray;
// contention mode prefers importing a higher-priority GlobalChunkQueue
// chunk before falling back to LocalHeap, then the shared array.
func (w *Worker) acquireTask() (queue.Task, bool) {
	fastSharing := w.bitmap.HasIdle() || w.bitmap.IdleFraction() >= 0.3

	if fastSharing {
		if t, ok := w.local.Pop(); ok {
			return t, true
		}
		if t, ok := w.shared.Pop(); ok {
			w.traceSteal("shared array", t.Priority)
			return t, true
		}
		return queue.Task{}, false
	}

	if w.global.TopPriority() > w.local.TopPriority() {
		if chunk, ok := w.global.Pop(); ok {
			w.traceSteal("global chunk queue", chunk.TopPriority)
			return w.unpackChunk(chunk)
		}
	}
	if t, ok := w.local.Pop(); ok {
		return t, true
	}
	if chunk, ok := w.global.Pop(); ok {
		w.traceSteal("global chunk queue (fallback)", chunk.TopPriority)
		return w.unpackChunk(chunk)
	}
	if t, ok := w.shared.Pop(); ok {
		w.traceSteal("shared array (fallback)", t.Priority)
		return t, true
	}
	return queue.Task{}, false
}

func (w *Worker) traceSteal(source string, priority int32) {
	if w.trace.Steal {
		log.Printf("[Steal] worker %d took priority=%d from %s", w.id, priority, source)
	}
}

func (w *Worker) unpackChunk(chunk *queue.Chunk) (queue.Task, bool) {
	if chunk.Count == 0 {
		return queue.Task{}, false
	}
	for i := 1; i < chunk.Count; i++ {
		if !w.local.Push(chunk.Tasks[i]) {
			w.exportChunk()
			w.local.Push(chunk.Tasks[i])
		}
	}
	return chunk.Tasks[0], true
}

// exportChunk implements the chunked-export rule: once the LocalHeap grows
// past CHUNK_SIZE+4, pop 16 top tasks into a Chunk and push it to the
// GlobalChunkQueue, repeating while there is still enough surplus and the
// local top doesn't already dominate the global top.
func (w *Worker) exportChunk() {
	for w.local.Len() >= queue.ChunkSize+4 {
		chunk := w.local.PopChunk()
		w.global.Push(chunk)
		if w.local.Len() < queue.ChunkSize+1 {
			break
		}
		if w.local.TopPriority() >= w.global.TopPriority() {
			break
		}
	}
}

// pushLocal pushes a task into this worker's own LocalHeap, exporting a
// chunk to the GlobalChunkQueue first if the heap is full.
func (w *Worker) pushLocal(t queue.Task) bool {
	if w.local.Push(t) {
		return true
	}
	w.exportChunk()
	return w.local.Push(t)
}

// Loop runs the acquire/solve cycle until shutdown, reporting each completed
// root-generation task's result to table.
func (w *Worker) Loop(table *RootTable) {
	for !w.shutdown.Load() {
		task, ok := w.acquireTask()
		if !ok {
			w.bitmap.SetIdle(w.id)
			if w.trace.Thread {
				log.Printf("[Thread] worker %d idle", w.id)
			}
			w.global.WaitTimeout(5 * time.Millisecond)
			w.bitmap.SetBusy(w.id)
			if w.trace.Thread {
				log.Printf("[Thread] worker %d busy", w.id)
			}
			if w.shutdown.Load() {
				return
			}
			continue
		}
		w.bitmap.SetBusy(w.id)
		w.runTask(task, table)
	}
}

func (w *Worker) runTask(task queue.Task, table *RootTable) {
	w.currentPriority = task.Priority
	w.shouldAbortTask.Store(false)
	w.pool.Reset()

	node := w.pool.Alloc()
	node.Player, node.Opponent = task.Player, task.Opponent
	node.SideToMove = task.SideToMove
	node.Kind = task.Kind
	node.Depth = task.Depth
	node.Pn, node.Dn = 1, 1
	node.Tpn, node.Tdn = INF+1, INF+1

	startNodes := w.nodeCount
	w.solve(node, task.RootMove, task.Generation, task.IsRoot)
	w.Stats.Nodes.Add(w.nodeCount - startNodes)
	w.Stats.Tasks.Add(1)

	if !task.IsRoot {
		return
	}

	entry := table.entry(task.RootMove)
	if entry == nil {
		return
	}
	if node.IsProven {
		// Pn/Dn and Result are always carried root-mover-relative
		// regardless of a node's own OR/AND kind (only the aggregation
		// formula in updatePnDn differs between the two); node.Result is
		// therefore already what the root table wants.
		if entry.TrySetResult(node.Result) {
			table.tasksCompleted.Add(1)
			if node.Result == Win {
				w.foundWin.Store(true)
			}
		}
	} else if !w.shutdown.Load() {
		// Preempted or otherwise unresolved: retry later.
		w.pushLocal(task)
	}
	entry.NodesSearched.Add(w.nodeCount - startNodes)
}

// checkAbortPreemption compares the current task's priority against the
// global queue's cached top priority on every TT hit (§4.8); if outbid, the
// worker's inner loop observes the flag and unwinds.
func (w *Worker) checkAbortPreemption() {
	if w.global.TopPriority() > w.currentPriority {
		w.shouldAbortTask.Store(true)
		if w.trace.TT {
			log.Printf("[TT] worker %d task priority=%d preempted by queued priority=%d", w.id, w.currentPriority, w.global.TopPriority())
		}
	}
}

// solve is the recursive df-pn+ kernel (§4.5). node.Tpn/Tdn must already be
// set by the caller; node.Pn/Dn start at the conventional (1,1) for a fresh
// node. isRootSplit requests the aggressive root-task-split spawn behavior
// (§4.7) rather than the regular early/mid-search spawn.
func (w *Worker) solve(node *Node, rootMove board.Move, generation int, isRootSplit bool) {
	w.nodeCount++
	if w.nodeCount%pollInterval == 0 && w.tm.Expired() {
		w.shutdown.Store(true)
	}
	if w.shutdown.Load() || w.shouldAbortTask.Load() {
		return
	}

	hashKey := board.Hash(node.Player, node.Opponent, node.SideToMove)

	if entry, ok := w.tt.Probe(hashKey, node.Depth); ok {
		w.checkAbortPreemption()
		if IsProven(entry.Pn, entry.Dn) {
			if w.trace.TT {
				log.Printf("[TT] worker %d hit proven entry depth=%d result=%s", w.id, entry.Depth, entry.Result)
			}
			node.Pn, node.Dn, node.Result, node.IsProven = entry.Pn, entry.Dn, entry.Result, true
			return
		}
	}

	if node.Children == nil {
		if terminal := w.expand(node); terminal {
			w.tt.Store(hashKey, node.Depth, node.Pn, node.Dn, node.Result, int16(clampInt16(node.EvalScore)))
			return
		}
		if isRootSplit {
			w.rootSplitSpawn(node, rootMove, generation)
		} else {
			w.maybeSpawn(node, rootMove, generation)
		}
		w.updatePnDnTraced(node)
	}

	iterations := 0
	for node.Pn > 0 && node.Dn > 0 && node.Pn < node.Tpn && node.Dn < node.Tdn {
		if w.shutdown.Load() || w.shouldAbortTask.Load() {
			break
		}
		iterations++
		if iterations%50 == 0 && !isRootSplit {
			w.maybeSpawn(node, rootMove, generation)
		}

		best := selectBestChild(node)
		if best == nil {
			break
		}
		widenThresholds(node, best)
		w.solve(best, rootMove, generation, false)
		w.updatePnDnTraced(node)
	}

	w.tt.Store(hashKey, node.Depth, node.Pn, node.Dn, node.Result, int16(clampInt16(node.EvalScore)))
}

// expand generates node's children, or resolves node as a terminal leaf when
// neither side has a legal move (§4.5 step 4).
func (w *Worker) expand(node *Node) (terminal bool) {
	movesBB := board.LegalMoves(node.Player, node.Opponent)
	if movesBB == 0 {
		oppMoves := board.LegalMoves(node.Opponent, node.Player)
		if oppMoves == 0 {
			w.setTerminalResult(node)
			return true
		}
		child := w.pool.Alloc()
		child.Player, child.Opponent = node.Opponent, node.Player
		child.SideToMove = node.SideToMove.Other()
		child.Kind = flipKind(node.Kind)
		child.Depth = node.Depth
		child.Pn, child.Dn = 1, 1
		child.Tpn, child.Tdn = INF+1, INF+1
		node.Children = []*Node{child}
		return false
	}

	ml := board.ExtractMoves(movesBB)
	children := make([]*Node, 0, ml.Len())
	for i := 0; i < ml.Len(); i++ {
		sq := ml.Get(i)
		np, no := board.ApplyMove(node.Player, node.Opponent, int(sq))
		child := w.pool.Alloc()
		child.Player, child.Opponent = no, np
		child.SideToMove = node.SideToMove.Other()
		child.Kind = flipKind(node.Kind)
		child.Depth = node.Depth - 1
		child.Pn, child.Dn = 1, 1
		child.Tpn, child.Tdn = INF+1, INF+1

		raw := w.evaluator.Evaluate(child.Player, child.Opponent)
		child.EvalScore = -raw // parent-mover-relative: child's mover is the parent's opponent
		children = append(children, child)
	}
	sort.Slice(children, func(i, j int) bool { return children[i].EvalScore > children[j].EvalScore })
	node.Children = children
	return false
}

func (w *Worker) setTerminalResult(node *Node) {
	diff := int32(node.Player.PopCount() - node.Opponent.PopCount())
	win, lose := classifyTerminal(diff)
	if node.Kind == queue.AND {
		win, lose = lose, win
	}
	switch {
	case win:
		node.Pn, node.Dn, node.Result = 0, INF, Win
	case lose:
		node.Pn, node.Dn, node.Result = INF, 0, Lose
	default:
		node.Pn, node.Dn, node.Result = INF, INF, Draw
	}
	node.IsProven = true
}

func classifyTerminal(diff int32) (win, lose bool) {
	switch {
	case diff > 0:
		return true, false
	case diff < 0:
		return false, true
	default:
		return false, false
	}
}

func flipKind(k queue.NodeKind) queue.NodeKind {
	if k == queue.OR {
		return queue.AND
	}
	return queue.OR
}

// updatePnDn recomputes node.Pn/Dn and checks for proof from its children
// (§4.6). It must only run after every child currently reflects its latest
// recursive result.
func updatePnDn(node *Node) {
	if len(node.Children) == 0 {
		return
	}
	if node.Kind == queue.OR {
		pn := int32(INF)
		var dn int32
		anyWin := false
		allLose := true
		allProven := true
		anyDraw := false
		for _, c := range node.Children {
			if c.Pn < pn {
				pn = c.Pn
			}
			dn = saturatingAdd(dn, c.Dn)
			if c.Pn == 0 {
				anyWin = true
			}
			if c.Dn != 0 {
				allLose = false
			}
			if !c.IsProven {
				allProven = false
			} else if c.Result == Draw {
				anyDraw = true
			}
		}
		switch {
		case anyWin:
			node.Pn, node.Dn, node.Result, node.IsProven = 0, INF, Win, true
		case allLose:
			node.Pn, node.Dn, node.Result, node.IsProven = INF, 0, Lose, true
		case allProven && anyDraw:
			node.Pn, node.Dn, node.Result, node.IsProven = INF, INF, Draw, true
		default:
			node.Pn, node.Dn = pn, dn
		}
		return
	}

	// AND-node: pn/dn formulas and Win/Lose swapped relative to OR.
	dn := int32(INF)
	var pn int32
	anyLose := false
	allWin := true
	allProven := true
	anyDraw := false
	for _, c := range node.Children {
		if c.Dn < dn {
			dn = c.Dn
		}
		pn = saturatingAdd(pn, c.Pn)
		if c.Dn == 0 {
			anyLose = true
		}
		if c.Pn != 0 {
			allWin = false
		}
		if !c.IsProven {
			allProven = false
		} else if c.Result == Draw {
			anyDraw = true
		}
	}
	switch {
	case anyLose:
		node.Pn, node.Dn, node.Result, node.IsProven = INF, 0, Lose, true
	case allWin:
		node.Pn, node.Dn, node.Result, node.IsProven = 0, INF, Win, true
	case allProven && anyDraw:
		node.Pn, node.Dn, node.Result, node.IsProven = INF, INF, Draw, true
	default:
		node.Pn, node.Dn = pn, dn
	}
}

// updatePnDnTraced wraps updatePnDn with the eval-impact bookkeeping: whether
// a node that just became proven through a single decisive child (an OR
// node's winning child or an AND node's losing child) owes that proof to the
// child static eval ranked first.
func (w *Worker) updatePnDnTraced(node *Node) {
	wasProven := node.IsProven
	updatePnDn(node)
	if !wasProven && node.IsProven && len(node.Children) > 0 {
		w.recordEvalImpact(node)
	}
}

// decisiveChildIndex returns the index of the child whose own proof directly
// resolved node (an OR node's Pn==0 child, an AND node's Dn==0 child), or -1
// if node proved via allLose/allWin/Draw, where no single child is
// "decisive" in that sense.
func decisiveChildIndex(node *Node) int {
	if node.Kind == queue.OR {
		for i, c := range node.Children {
			if c.IsProven && c.Pn == 0 {
				return i
			}
		}
		return -1
	}
	for i, c := range node.Children {
		if c.IsProven && c.Dn == 0 {
			return i
		}
	}
	return -1
}

func (w *Worker) recordEvalImpact(node *Node) {
	idx := decisiveChildIndex(node)
	if idx < 0 {
		return
	}
	w.Stats.EvalImpact.TotalDecisions.Add(1)
	bestFirst := idx == 0
	if bestFirst {
		w.Stats.EvalImpact.BestFirstDecisions.Add(1)
	}
	if w.trace.EvalImpact {
		log.Printf("[EvalImpact] worker %d decisive child index=%d of %d children (eval-first=%v)", w.id, idx, len(node.Children), bestFirst)
	}
}

func saturatingAdd(a, b int32) int32 {
	if a > INF-b || b >= INF {
		return INF
	}
	s := a + b
	if s > INF {
		return INF
	}
	return s
}

// selectBestChild returns the unproven child with the smallest driving
// number (Pn for OR, Dn for AND), tie-broken by the better static eval
// ordering already baked into the sorted Children slice.
func selectBestChild(node *Node) *Node {
	var best *Node
	for _, c := range node.Children {
		if c.IsProven {
			continue
		}
		if best == nil {
			best = c
			continue
		}
		if node.Kind == queue.OR {
			if c.Pn < best.Pn {
				best = c
			}
		} else {
			if c.Dn < best.Dn {
				best = c
			}
		}
	}
	return best
}

// widenThresholds applies the standard df-pn widening rule to compute
// child's thresholds from node's current state (§4.5 step 6).
func widenThresholds(node, child *Node) {
	if node.Kind == queue.OR {
		child.Tpn = node.Tdn - node.Dn + child.Dn
		child.Tdn = node.Tpn
	} else {
		child.Tdn = node.Tpn - node.Pn + child.Pn
		child.Tpn = node.Tdn
	}
	if child.Tpn > INF+1 {
		child.Tpn = INF + 1
	}
	if child.Tdn > INF+1 {
		child.Tdn = INF + 1
	}
}

// maybeSpawn pushes promising, still-unproven sibling children as
// independent subtasks for other workers, governed by the dynamically
// relaxed SpawnConfig (§4.7).
func (w *Worker) maybeSpawn(node *Node, rootMove board.Move, generation int) {
	if generation >= w.spawnCfg.MaxGeneration {
		return
	}
	if node.Depth < w.spawnCfg.MinDepthForSpawn {
		return
	}
	if len(node.Children) < 2 || !w.bitmap.HasIdle() {
		return
	}

	idleFrac := w.bitmap.IdleFraction()
	sharedBelow70 := w.shared.Len() < (w.shared.Cap()*7)/10
	localBelowChunk := w.local.Len() < queue.ChunkSize
	cfg := relax(w.spawnCfg, idleFrac, localBelowChunk, sharedBelow70)

	best := node.Children[0].EvalScore
	margin := best/5 + 1
	if margin < 0 {
		margin = -margin
	}

	spawned := 0
	for i := 1; i < len(node.Children) && spawned < cfg.SpawnLimit; i++ {
		c := node.Children[i]
		if c.IsProven {
			continue
		}
		if c.EvalScore < best-margin {
			break
		}
		t := queue.Task{
			Player: c.Player, Opponent: c.Opponent, SideToMove: c.SideToMove,
			RootMove: rootMove, Priority: c.EvalScore + 5000 - int32(1000*generation),
			EvalScore: int16(clampInt16(c.EvalScore)), Kind: c.Kind, Depth: c.Depth,
			Generation: generation + 1,
		}
		w.pushSpill(t)
		spawned++
	}
}

// inContention mirrors acquireTask's mode test: the condition under which
// spillover into SharedTaskArray is throttled by spillSem (§4.7).
func (w *Worker) inContention() bool {
	return !(w.bitmap.HasIdle() || w.bitmap.IdleFraction() >= 0.3)
}

// pushSpill pushes t into SharedTaskArray, falling back to the worker's own
// LocalHeap when the ring is full or, in contention mode, when spillSem is
// already at its concurrent-producer limit: too many workers hammering the
// ring at once under contention just trades CAS retries for lock-free
// spinning, so throttle it the same way a bounded worker pool would throttle
// any other shared resource under load.
func (w *Worker) pushSpill(t queue.Task) {
	if w.inContention() {
		if !w.spillSem.TryAcquire(1) {
			w.pushLocal(t)
			return
		}
		defer w.spillSem.Release(1)
	}
	if !w.shared.Push(t) {
		w.pushLocal(t)
	}
}

// rootSplitSpawn implements the root-task-split rule: every non-best child
// of a freshly expanded generation-0 node is immediately pushed as a
// generation-1 subtask with a large priority boost, through pushSpill: into
// SharedTaskArray, or into the worker's own LocalHeap when the ring is full
// or spillover is throttled.
func (w *Worker) rootSplitSpawn(node *Node, rootMove board.Move, generation int) {
	for i := 1; i < len(node.Children); i++ {
		c := node.Children[i]
		t := queue.Task{
			Player: c.Player, Opponent: c.Opponent, SideToMove: c.SideToMove,
			RootMove: rootMove, Priority: c.EvalScore + 10000,
			EvalScore: int16(clampInt16(c.EvalScore)), Kind: c.Kind, Depth: c.Depth,
			Generation: generation + 1,
		}
		w.pushSpill(t)
	}
}

func clampInt16(v int32) int32 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}
