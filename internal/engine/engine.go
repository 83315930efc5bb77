package engine

import (
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dfpnsolver/othello/internal/board"
	"github.com/dfpnsolver/othello/internal/eval"
	"github.com/dfpnsolver/othello/internal/queue"
)

// RootMoveResult is one legal root move's outcome: a result that transitions
// exactly once, out of Unknown, via CAS, plus aggregated telemetry.
type RootMoveResult struct {
	Move      board.Move
	EvalScore int32

	result        atomic.Uint32
	NodesSearched atomic.Uint64
}

// TrySetResult CAS-transitions the result out of Unknown exactly once.
func (r *RootMoveResult) TrySetResult(res Result) bool {
	return r.result.CompareAndSwap(uint32(Unknown), uint32(res))
}

// Result returns the move's current (possibly still Unknown) result.
func (r *RootMoveResult) Result() Result {
	return Result(r.result.Load())
}

// RootTable aggregates per-root-move results across all workers.
type RootTable struct {
	entries        []*RootMoveResult
	byMove         map[board.Move]*RootMoveResult
	tasksCompleted atomic.Int64
}

func newRootTable(moves []board.Move, scores map[board.Move]int32) *RootTable {
	t := &RootTable{byMove: make(map[board.Move]*RootMoveResult, len(moves))}
	for _, m := range moves {
		e := &RootMoveResult{Move: m, EvalScore: scores[m]}
		t.entries = append(t.entries, e)
		t.byMove[m] = e
	}
	return t
}

func (t *RootTable) entry(m board.Move) *RootMoveResult {
	return t.byMove[m]
}

// Entries returns every root move's result record.
func (t *RootTable) Entries() []*RootMoveResult {
	return t.entries
}

// Solution is the orchestrator's final, aggregated answer.
type Solution struct {
	Result       Result
	BestMove     board.Move
	NodesTotal   uint64
	TasksTotal   uint64
	Elapsed      time.Duration
	RootMoves    []*RootMoveResult
	TTHitRate    float64
	TTCollisions uint64
	WorkerStats  []WorkerStats
	TimedOut     bool
	TT           *TranspositionTable

	// EvalImpactTotal/BestFirst aggregate every worker's EvalImpactStats:
	// how often a proving child was the one static eval ranked first.
	EvalImpactTotal     uint64
	EvalImpactBestFirst uint64
}

// Orchestrator drives a fixed pool of workers against a root position to a
// proved (or time-bounded) result (§4.9).
type Orchestrator struct {
	NumWorkers int
	TimeLimit  time.Duration
	SpawnCfg   SpawnConfig
	Evaluator  eval.Evaluator
	TTSizeMB   int

	// PreloadTT, if non-nil, seeds the transposition table before the
	// search starts (a caller restoring a prior -tt-cache snapshot).
	PreloadTT []TTEntry

	// Trace gates the workers' debug log.Printf hooks (-trace-steal,
	// -trace-tt, -trace-thread, -trace-eval-impact).
	Trace TraceConfig
}

// NewOrchestrator returns an orchestrator with the given worker count, time
// budget, evaluator and spawn policy.
func NewOrchestrator(numWorkers int, timeLimit time.Duration, evaluator eval.Evaluator, spawnCfg SpawnConfig, ttSizeMB int) *Orchestrator {
	return &Orchestrator{
		NumWorkers: numWorkers,
		TimeLimit:  timeLimit,
		SpawnCfg:   spawnCfg,
		Evaluator:  evaluator,
		TTSizeMB:   ttSizeMB,
	}
}

// Solve enumerates the root's legal moves, seeds one generation-0 task per
// move, launches the worker pool, and polls for completion, timeout, or an
// early win, then aggregates the final verdict.
func (o *Orchestrator) Solve(root *board.Position) Solution {
	tt := NewTranspositionTable(o.TTSizeMB)
	if len(o.PreloadTT) > 0 {
		tt.LoadSnapshot(o.PreloadTT)
	}
	global := queue.NewGlobalChunkQueue()
	shared := queue.NewSharedTaskArray(1024)
	bitmap := queue.NewWorkerBitmap(o.NumWorkers)
	tm := NewTimeManager(o.TimeLimit)

	var shutdown, foundWin atomic.Bool

	legalBB := root.LegalMoves()
	moveList := board.ExtractMoves(legalBB)

	moves := make([]board.Move, 0, moveList.Len())
	scores := make(map[board.Move]int32, moveList.Len())

	seeds := make([]rootSeed, 0, moveList.Len())

	for i := 0; i < moveList.Len(); i++ {
		sq := moveList.Get(i)
		// np/no are the mover's (root player's) own updated discs and the
		// opponent's; the task that follows is handed to the opponent, so
		// its Player/Opponent fields are the other way round.
		np, no := board.ApplyMove(root.Player(), root.Opponent(), int(sq))
		score := -o.Evaluator.Evaluate(no, np)
		m := sq
		moves = append(moves, m)
		scores[m] = score

		seeds = append(seeds, rootSeed{
			move:  m,
			score: score,
			task: queue.Task{
				Player: no, Opponent: np, SideToMove: root.SideToMove.Other(),
				RootMove: m, Priority: score, EvalScore: int16(clampInt16(score)),
				IsRoot: true, Kind: queue.AND, Depth: root.EmptyCount() - 1, Generation: 0,
			},
		})
	}

	table := newRootTable(moves, scores)

	if len(seeds) == 0 {
		// No legal moves at all for the side to move: either a forced pass
		// (not representable as a root "move") or the game has already
		// ended. Score the position directly as a terminal leaf.
		return o.solveNoLegalMoves(root, tt, tm)
	}

	sortSeedsByScore(seeds)
	for _, s := range seeds {
		shared.Push(s.task)
	}

	spillWeight := int64(o.NumWorkers / 2)
	if spillWeight < 2 {
		spillWeight = 2
	}
	spillSem := semaphore.NewWeighted(spillWeight)

	workers := make([]*Worker, o.NumWorkers)
	for i := range workers {
		workers[i] = NewWorker(i, tt, global, shared, bitmap, o.Evaluator, tm, o.SpawnCfg, o.Trace, spillSem, &shutdown, &foundWin)
	}

	// Each worker's Loop never returns an error (failures surface through
	// the root table and the shutdown flag instead), but errgroup still
	// buys a single clean join point over a bare sync.WaitGroup.
	var g errgroup.Group
	for _, w := range workers {
		w := w
		g.Go(func() error {
			w.Loop(table)
			return nil
		})
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
pollLoop:
	for {
		<-ticker.C
		if table.tasksCompleted.Load() >= int64(len(seeds)) {
			break pollLoop
		}
		if tm.Expired() {
			shutdown.Store(true)
			break pollLoop
		}
		if foundWin.Load() {
			shutdown.Store(true)
			break pollLoop
		}
	}

	shutdown.Store(true)
	global.Shutdown()
	g.Wait()

	sol := aggregate(table, moves)
	sol.RootMoves = table.Entries()
	sol.Elapsed = tm.Elapsed()
	sol.TTHitRate = tt.HitRate()
	sol.TTCollisions = tt.Collisions()
	sol.TimedOut = sol.Result == Unknown && tm.Expired()
	sol.TT = tt

	for _, w := range workers {
		sol.NodesTotal += w.Stats.Nodes.Load()
		sol.TasksTotal += w.Stats.Tasks.Load()
		sol.EvalImpactTotal += w.Stats.EvalImpact.TotalDecisions.Load()
		sol.EvalImpactBestFirst += w.Stats.EvalImpact.BestFirstDecisions.Load()
		sol.WorkerStats = append(sol.WorkerStats, w.Stats)
	}
	return sol
}

// solveNoLegalMoves handles the degenerate root where the side to move has
// no legal move at all (a root-level pass or a game already over).
func (o *Orchestrator) solveNoLegalMoves(root *board.Position, tt *TranspositionTable, tm *TimeManager) Solution {
	oppMoves := board.LegalMoves(root.Opponent(), root.Player())
	if oppMoves == 0 {
		winner, draw := root.Winner()
		res := Draw
		if !draw {
			if winner == root.SideToMove {
				res = Win
			} else {
				res = Lose
			}
		}
		return Solution{Result: res, BestMove: board.NoMove, Elapsed: tm.Elapsed()}
	}
	return Solution{Result: Unknown, BestMove: board.PassMove, Elapsed: tm.Elapsed()}
}

// rootSeed pairs a root move with its static eval and the generation-0 task
// that searches it.
type rootSeed struct {
	move  board.Move
	score int32
	task  queue.Task
}

func sortSeedsByScore(seeds []rootSeed) {
	for i := 1; i < len(seeds); i++ {
		for j := i; j > 0 && seeds[j].score > seeds[j-1].score; j-- {
			seeds[j], seeds[j-1] = seeds[j-1], seeds[j]
		}
	}
}

// aggregate computes the final verdict from the root table (§4.9): Win if
// any move proved Win, else Draw if any move proved Draw and none remain
// Unknown, else Lose iff every move proved Lose, else Unknown. Best move is
// a winning move, else the first proven Draw, else (everything unproven)
// the highest static eval.
func aggregate(table *RootTable, moves []board.Move) Solution {
	var anyWin, anyDraw, anyUnknown, allLose bool = false, false, false, true
	var winMove, drawMove, bestEvalMove board.Move = board.NoMove, board.NoMove, board.NoMove
	var bestEval int32 = -1 << 31

	for _, e := range table.entries {
		res := e.Result()
		switch res {
		case Win:
			anyWin = true
			if winMove == board.NoMove {
				winMove = e.Move
			}
		case Draw:
			anyDraw = true
			allLose = false
			if drawMove == board.NoMove {
				drawMove = e.Move
			}
		case Lose:
			// no-op: contributes to allLose remaining true
		default:
			anyUnknown = true
			allLose = false
		}
		if e.EvalScore > bestEval {
			bestEval = e.EvalScore
			bestEvalMove = e.Move
		}
	}

	switch {
	case anyWin:
		return Solution{Result: Win, BestMove: winMove}
	case anyDraw && !anyUnknown:
		return Solution{Result: Draw, BestMove: drawMove}
	case allLose && !anyUnknown:
		return Solution{Result: Lose, BestMove: moves[0]}
	default:
		return Solution{Result: Unknown, BestMove: bestEvalMove}
	}
}
