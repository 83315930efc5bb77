package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dfpnsolver/othello/internal/board"
	"github.com/dfpnsolver/othello/internal/engine"
	"github.com/dfpnsolver/othello/internal/eval"
	"github.com/dfpnsolver/othello/internal/fixtures"
	"github.com/dfpnsolver/othello/internal/posfile"
)

// Exit codes, per the position/proof result contract: 0 for any proved
// result, 1 for a parse error, 2 for a timeout.
const (
	exitProved     = 0
	exitParseError = 1
	exitUnknown    = 2
)

var (
	maxGeneration = flag.Int("G", 1, "maximum subtask spawn generation")
	minDepth      = flag.Int("D", 5, "minimum empties remaining to spawn a subtask")
	spawnLimit    = flag.Int("S", 9999, "maximum subtasks spawned per node")

	ttSizeMB = flag.Int("tt-mb", 256, "transposition table size in megabytes")
	ttCache  = flag.String("tt-cache", "", "directory for a persistent TT snapshot cache (disabled if empty)")

	verbose  = flag.Bool("v", false, "verbose progress logging")
	csvPath  = flag.String("csv", "", "append the result as a CSV row to this file")
	jsonPath = flag.String("json", "", "write the result as a JSON object to this file")

	traceSteal      = flag.Bool("trace-steal", false, "log scheduler steal events")
	traceTT         = flag.Bool("trace-tt", false, "log transposition table hits and TT-driven preemption")
	traceThread     = flag.Bool("trace-thread", false, "log worker idle/busy transitions")
	traceEvalImpact = flag.Bool("trace-eval-impact", false, "log and report move-ordering-quality telemetry")
)

func main() {
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: solver <pos_file> [threads] [time_limit_sec] [eval_file]")
		os.Exit(exitParseError)
	}

	posPath := args[0]
	threads := runtimeDefaultThreads()
	timeLimit := 60 * time.Second
	var evalPath string

	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			fmt.Fprintf(os.Stderr, "invalid thread count %q\n", args[1])
			os.Exit(exitParseError)
		}
		threads = n
	}
	if len(args) >= 3 {
		secs, err := strconv.Atoi(args[2])
		if err != nil || secs <= 0 {
			fmt.Fprintf(os.Stderr, "invalid time limit %q\n", args[2])
			os.Exit(exitParseError)
		}
		timeLimit = time.Duration(secs) * time.Second
	}
	if len(args) >= 4 {
		evalPath = args[3]
	}

	root, err := posfile.Load(posPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitParseError)
	}

	evaluator := loadEvaluator(evalPath)

	spawnCfg := engine.SpawnConfig{
		MaxGeneration:    *maxGeneration,
		MinDepthForSpawn: *minDepth,
		SpawnLimit:       *spawnLimit,
	}

	if *verbose {
		log.Printf("solving %s with %d workers, %s time limit", posPath, threads, timeLimit)
	}

	var cache *fixtures.Store
	if *ttCache != "" {
		cache, err = fixtures.Open(*ttCache)
		if err != nil {
			log.Printf("tt-cache disabled: %v", err)
		} else {
			defer cache.Close()
		}
	}

	orch := engine.NewOrchestrator(threads, timeLimit, evaluator, spawnCfg, *ttSizeMB)
	orch.Trace = engine.TraceConfig{
		Steal:      *traceSteal,
		TT:         *traceTT,
		Thread:     *traceThread,
		EvalImpact: *traceEvalImpact,
	}
	if cache != nil {
		snapName := cacheSnapshotName(posPath)
		if records, err := cache.LoadTTSnapshot(snapName); err != nil {
			log.Printf("tt-cache load failed: %v", err)
		} else if len(records) > 0 {
			orch.PreloadTT = recordsToEntries(records)
			if *verbose {
				log.Printf("seeded tt with %d cached entries", len(records))
			}
		}
	}

	start := time.Now()
	sol := orch.Solve(root)
	elapsed := time.Since(start)

	printResult(sol, elapsed)

	if cache != nil && sol.TT != nil {
		snapName := cacheSnapshotName(posPath)
		if err := cache.SaveTTSnapshot(snapName, entriesToRecords(sol.TT.Snapshot())); err != nil {
			log.Printf("tt-cache save failed: %v", err)
		}
	}

	if *csvPath != "" {
		if err := appendCSV(*csvPath, root, sol, elapsed); err != nil {
			log.Printf("csv output failed: %v", err)
		}
	}
	if *jsonPath != "" {
		if err := writeJSON(*jsonPath, root, sol, elapsed); err != nil {
			log.Printf("json output failed: %v", err)
		}
	}

	switch sol.Result {
	case engine.Unknown:
		os.Exit(exitUnknown)
	default:
		os.Exit(exitProved)
	}
}

func runtimeDefaultThreads() int {
	n := os.Getenv("GOMAXPROCS")
	if n != "" {
		if v, err := strconv.Atoi(n); err == nil && v > 0 {
			return v
		}
	}
	return 4
}

func loadEvaluator(path string) eval.Evaluator {
	if path == "" {
		return eval.MaterialEvaluator{}
	}
	wf, err := eval.LoadWeights(path)
	if err != nil {
		log.Printf("falling back to material evaluator: %v", err)
		return eval.MaterialEvaluator{}
	}
	return eval.NewPackedEvaluator(wf)
}

// cacheSnapshotName uses the position file path exactly as given on the
// command line as the TT-cache snapshot key, so solving the same file again
// through the same path reuses the same entry.
func cacheSnapshotName(posPath string) string {
	return posPath
}

func recordsToEntries(records []fixtures.TTRecord) []engine.TTEntry {
	out := make([]engine.TTEntry, len(records))
	for i, r := range records {
		out[i] = engine.TTEntry{
			Key:    r.Key,
			Pn:     r.Pn,
			Dn:     r.Dn,
			Result: engine.Result(r.Result),
			Depth:  r.Depth,
		}
	}
	return out
}

func entriesToRecords(entries []engine.TTEntry) []fixtures.TTRecord {
	out := make([]fixtures.TTRecord, len(entries))
	for i, e := range entries {
		out[i] = fixtures.TTRecord{
			Key:    e.Key,
			Pn:     e.Pn,
			Dn:     e.Dn,
			Result: uint8(e.Result),
			Depth:  e.Depth,
		}
	}
	return out
}

func appendCSV(path string, root *board.Position, sol engine.Solution, elapsed time.Duration) error {
	existing, err := os.Stat(path)
	needsHeader := err != nil || existing.Size() == 0

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if needsHeader {
		if err := w.Write([]string{"side_to_move", "result", "best_move", "nodes", "tasks", "elapsed_ms", "tt_hit_rate", "tt_collisions", "eval_impact_best_first", "eval_impact_total"}); err != nil {
			return err
		}
	}
	return w.Write([]string{
		root.SideToMove.String(),
		sol.Result.String(),
		sol.BestMove.String(),
		strconv.FormatUint(sol.NodesTotal, 10),
		strconv.FormatUint(sol.TasksTotal, 10),
		strconv.FormatInt(elapsed.Milliseconds(), 10),
		strconv.FormatFloat(sol.TTHitRate, 'f', 2, 64),
		strconv.FormatUint(sol.TTCollisions, 10),
		strconv.FormatUint(sol.EvalImpactBestFirst, 10),
		strconv.FormatUint(sol.EvalImpactTotal, 10),
	})
}

type jsonResult struct {
	SideToMove          string  `json:"side_to_move"`
	Result              string  `json:"result"`
	BestMove            string  `json:"best_move"`
	Nodes               uint64  `json:"nodes"`
	Tasks               uint64  `json:"tasks"`
	ElapsedMS           int64   `json:"elapsed_ms"`
	TTHitRate           float64 `json:"tt_hit_rate"`
	TTCollisions        uint64  `json:"tt_collisions"`
	TimedOut            bool    `json:"timed_out"`
	EvalImpactTotal     uint64  `json:"eval_impact_total"`
	EvalImpactBestFirst uint64  `json:"eval_impact_best_first"`
}

func writeJSON(path string, root *board.Position, sol engine.Solution, elapsed time.Duration) error {
	out := jsonResult{
		SideToMove:          root.SideToMove.String(),
		Result:              sol.Result.String(),
		BestMove:            sol.BestMove.String(),
		Nodes:               sol.NodesTotal,
		Tasks:               sol.TasksTotal,
		ElapsedMS:           elapsed.Milliseconds(),
		TTHitRate:           sol.TTHitRate,
		TTCollisions:        sol.TTCollisions,
		TimedOut:            sol.TimedOut,
		EvalImpactTotal:     sol.EvalImpactTotal,
		EvalImpactBestFirst: sol.EvalImpactBestFirst,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func printResult(sol engine.Solution, elapsed time.Duration) {
	fmt.Printf("result: %s\n", sol.Result)
	fmt.Printf("best move: %s\n", sol.BestMove)
	fmt.Printf("nodes: %s\n", humanize.Comma(int64(sol.NodesTotal)))
	fmt.Printf("tasks: %s\n", humanize.Comma(int64(sol.TasksTotal)))
	fmt.Printf("time: %s\n", elapsed)
	if elapsed > 0 {
		nps := float64(sol.NodesTotal) / elapsed.Seconds()
		fmt.Printf("nps: %s\n", humanize.Comma(int64(nps)))
	}
	fmt.Printf("tt hit rate: %.2f%%\n", sol.TTHitRate)
	fmt.Printf("tt collisions: %s\n", humanize.Comma(int64(sol.TTCollisions)))
	if *traceEvalImpact && sol.EvalImpactTotal > 0 {
		pct := float64(sol.EvalImpactBestFirst) / float64(sol.EvalImpactTotal) * 100
		fmt.Printf("eval impact: %s/%s decisive children ranked first (%.2f%%)\n",
			humanize.Comma(int64(sol.EvalImpactBestFirst)), humanize.Comma(int64(sol.EvalImpactTotal)), pct)
	}
}
