package eval

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/dfpnsolver/othello/internal/board"
)

// Plies is the number of game-phase buckets the weight file carries (one
// set of feature weights per ply of empties remaining, clamped at the top
// end), and PackedPerPly/ExpandedPerPly are the fixed sizes of the packed
// on-disk representation and its in-memory expansion.
const (
	Plies          = 61
	PackedPerPly   = 114364
	ExpandedPerPly = 226315
)

// FileHeader is the fixed binary preamble of an evaluation weight file:
// five u32 fields carried over from the edax file format this was
// distilled from, followed by an f64 build date. Neither the core nor
// LoadWeights interprets these fields: LoadWeights reads them into the
// struct and does not check their values.
type FileHeader struct {
	EdaxHeader uint32
	EvalHeader uint32
	Version    uint32
	Release    uint32
	Build      uint32
	Date       float64
}

// WeightFile is the parsed in-memory form: one expanded feature-weight
// table per ply.
type WeightFile struct {
	Header FileHeader
	Plies  [Plies][]int16 // each of length ExpandedPerPly
}

// LoadWeights reads a packed evaluation weight file from disk.
func LoadWeights(path string) (*WeightFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eval: open weight file: %w", err)
	}
	defer f.Close()

	wf := &WeightFile{}
	if err := binary.Read(f, binary.LittleEndian, &wf.Header.EdaxHeader); err != nil {
		return nil, fmt.Errorf("eval: read header: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &wf.Header.EvalHeader); err != nil {
		return nil, fmt.Errorf("eval: read header: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &wf.Header.Version); err != nil {
		return nil, fmt.Errorf("eval: read header: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &wf.Header.Release); err != nil {
		return nil, fmt.Errorf("eval: read header: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &wf.Header.Build); err != nil {
		return nil, fmt.Errorf("eval: read header: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &wf.Header.Date); err != nil {
		return nil, fmt.Errorf("eval: read header: %w", err)
	}

	for ply := 0; ply < Plies; ply++ {
		packed := make([]int16, PackedPerPly)
		if err := binary.Read(f, binary.LittleEndian, packed); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("eval: weight file truncated at ply %d: %w", ply, err)
			}
			return nil, fmt.Errorf("eval: read ply %d weights: %w", ply, err)
		}
		wf.Plies[ply] = expandPly(packed)
	}

	return wf, nil
}

// expandPly turns one ply's packed weight array into the fixed
// ExpandedPerPly feature-weight table by repeating the packed array
// cyclically: expanded[i] = packed[i mod len(packed)]. It applies no
// pattern or symmetry schedule; which packed weight lands at an expanded
// index depends only on the index.
func expandPly(packed []int16) []int16 {
	expanded := make([]int16, ExpandedPerPly)
	for i := range expanded {
		expanded[i] = packed[i%len(packed)]
	}
	return expanded
}

// PackedEvaluator implements Evaluator over a loaded WeightFile: it selects
// the ply bucket from the empty-square count and folds a small set of
// pattern features into an index into that ply's expanded table.
type PackedEvaluator struct {
	wf *WeightFile
}

// NewPackedEvaluator wraps a loaded weight file as an Evaluator.
func NewPackedEvaluator(wf *WeightFile) *PackedEvaluator {
	return &PackedEvaluator{wf: wf}
}

func (p *PackedEvaluator) Evaluate(player, opponent board.Bitboard) int32 {
	empties := 64 - (player | opponent).PopCount()
	ply := empties
	if ply >= Plies {
		ply = Plies - 1
	}
	if ply < 0 {
		ply = 0
	}

	table := p.wf.Plies[ply]
	idx := featureIndex(player, opponent, len(table))
	return int32(table[idx])
}

// featureIndex folds the position into a bounded index: disc counts and
// corner occupancy dominate the early game-theoretic signal and are cheap
// to compute per node, which matters since this runs on every expanded
// child.
func featureIndex(player, opponent board.Bitboard, tableLen int) int {
	pc := popcountFeature(player)
	oc := popcountFeature(opponent)
	corners := popcountFeature((player | opponent) & cornerMask)
	idx := pc*67 + oc*7 + corners
	if tableLen == 0 {
		return 0
	}
	return idx % tableLen
}
