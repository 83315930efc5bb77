// Package eval implements the static evaluation function the df-pn+ engine
// treats as an opaque collaborator: Evaluate(player, opponent) -> int32. It
// exists purely to order children for search priority; proof/disproof
// correctness never depends on its output.
package eval

import (
	"math/bits"

	"github.com/dfpnsolver/othello/internal/board"
)

// Evaluator scores a position from the side-to-move's perspective: positive
// favors player, negative favors opponent.
type Evaluator interface {
	Evaluate(player, opponent board.Bitboard) int32
}

// cornerMask marks the four corner squares, the single strongest positional
// feature in Othello: a disc there can never be flipped.
const cornerMask = board.Bitboard(1) | board.Bitboard(1)<<7 | board.Bitboard(1)<<56 | board.Bitboard(1)<<63

// xSquareMask marks the four squares diagonally adjacent to a corner, the
// classic trap squares that hand the adjacent corner to the opponent.
const xSquareMask = board.Bitboard(1)<<9 | board.Bitboard(1)<<14 | board.Bitboard(1)<<49 | board.Bitboard(1)<<54

// MaterialEvaluator is a compact heuristic used when no packed weight file
// is supplied: disc-difference plus corner occupancy plus mobility, the
// three features every practical Othello evaluator opens with, and a penalty
// for discs on X-squares. It exists to make the engine runnable (and
// testable) without an eval file; the CLI substitutes it whenever no eval
// file argument is given or the given file fails to load.
type MaterialEvaluator struct{}

func (MaterialEvaluator) Evaluate(player, opponent board.Bitboard) int32 {
	discDiff := int32(player.PopCount() - opponent.PopCount())
	cornerDiff := int32((player & cornerMask).PopCount() - (opponent & cornerMask).PopCount())
	xSquarePenalty := int32((player & xSquareMask & ^cornerMask).PopCount() - (opponent & xSquareMask & ^cornerMask).PopCount())
	mobilityDiff := int32(board.LegalMoves(player, opponent).PopCount() - board.LegalMoves(opponent, player).PopCount())

	return discDiff + 25*cornerDiff - 12*xSquarePenalty + 3*mobilityDiff
}

// popcountFeature is a small helper the packed evaluator uses to fold a
// bitboard into a bounded feature index.
func popcountFeature(b board.Bitboard) int {
	return bits.OnesCount64(uint64(b))
}
