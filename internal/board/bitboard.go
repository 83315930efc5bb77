// Package board implements the 8x8 Othello bitboard: position representation,
// legal move generation, disc flips, and symmetry canonicalization.
package board

import "math/bits"

// Bitboard represents one 8x8 Othello board as a 64-bit mask, one bit per
// square. Bit 0 is a corner square, bit 63 the opposite corner, in
// little-endian rank-file order: index = rank*8 + file.
type Bitboard uint64

// File masks.
const (
	FileA Bitboard = 0x0101010101010101
	FileH Bitboard = 0x8080808080808080
)

const (
	Empty    Bitboard = 0
	Full     Bitboard = 0xFFFFFFFFFFFFFFFF
	NotFileA          = ^FileA
	NotFileH          = ^FileH
	notEdge           = NotFileA & NotFileH
)

// StartBlack and StartWhite are the four starting discs from the
// perspective of Black to move.
const (
	StartBlack Bitboard = (1 << 28) | (1 << 35) // center diagonal pair
	StartWhite Bitboard = (1 << 27) | (1 << 36) // center diagonal pair
)

// PopCount returns the number of set bits.
func (b Bitboard) PopCount() int { return bits.OnesCount64(uint64(b)) }

// LSB returns the index of the least significant set bit, or -1 if empty.
func (b Bitboard) LSB() int {
	if b == 0 {
		return -1
	}
	return bits.TrailingZeros64(uint64(b))
}

// PopLSB clears and returns the index of the least significant set bit.
func (b *Bitboard) PopLSB() int {
	sq := b.LSB()
	*b &= *b - 1
	return sq
}

// SquareBB returns the single-bit mask for a square index.
func SquareBB(sq int) Bitboard { return Bitboard(1) << uint(sq) }

// direction identifies one of the 8 ray directions used by move generation
// and disc-flip computation, paired with the shift amount (positive = toward
// higher bit indices) and the opponent-disc mask that prevents horizontal
// wraparound across the board edge.
type direction struct {
	shift int
	mask  Bitboard
}

// The 8 ray directions: N, S, E, W, NE, NW, SE, SW. North/South never wrap
// (bits shifted past the top/bottom edge simply fall off the 64-bit word);
// the six directions with a horizontal component mask away the opponent
// discs on both edge files. A flippable run in such a direction always lies
// strictly between two squares of the same row, so it never includes an edge
// file, and no step that leaves a row can land on an accepted opponent disc.
var directions = [8]direction{
	{8, Full},     // N
	{-8, Full},    // S
	{1, notEdge},  // E
	{-1, notEdge}, // W
	{9, notEdge},  // NE
	{7, notEdge},  // NW
	{-7, notEdge}, // SE
	{-9, notEdge}, // SW
}

// shift moves every set bit of b by n positions (positive = left/toward
// higher index, negative = right). No masking is applied here; callers
// combine it with a direction's edge mask.
func shift(b Bitboard, n int) Bitboard {
	if n >= 0 {
		return b << uint(n)
	}
	return b >> uint(-n)
}

// FlipVertical mirrors the board across the horizontal midline (row i <-> row
// 7-i), implemented as a byte-order reversal since each row occupies one byte.
func FlipVertical(b Bitboard) Bitboard {
	return Bitboard(bits.ReverseBytes64(uint64(b)))
}

// FlipHorizontal mirrors the board across the vertical midline (column i <->
// column 7-i) by reversing the bit order within each row while leaving row
// order intact: a full bit-reversal reverses both rows and columns, so
// undoing the row reversal with a second byte-order swap leaves only the
// column mirror.
func FlipHorizontal(b Bitboard) Bitboard {
	full := bits.Reverse64(uint64(b))
	return Bitboard(bits.ReverseBytes64(full))
}

// Transpose reflects the board across its main diagonal (rank i, file j ->
// rank j, file i) using the standard three-round delta-swap bit-transpose.
func Transpose(b Bitboard) Bitboard {
	const k1 = Bitboard(0x5500550055005500)
	const k2 = Bitboard(0x3333000033330000)
	const k4 = Bitboard(0x0f0f0f0f00000000)

	t := k4 & (b ^ (b << 28))
	b ^= t ^ (t >> 28)
	t = k2 & (b ^ (b << 14))
	b ^= t ^ (t >> 14)
	t = k1 & (b ^ (b << 7))
	b ^= t ^ (t >> 7)
	return b
}

// symmetry is one of the 8 members of the dihedral group, generated by
// composing FlipHorizontal, FlipVertical and Transpose.
type symmetry func(Bitboard) Bitboard

func identity(b Bitboard) Bitboard { return b }

var symmetries = [8]symmetry{
	identity,
	FlipHorizontal,
	FlipVertical,
	func(b Bitboard) Bitboard { return FlipVertical(FlipHorizontal(b)) },
	Transpose,
	func(b Bitboard) Bitboard { return FlipHorizontal(Transpose(b)) },
	func(b Bitboard) Bitboard { return FlipVertical(Transpose(b)) },
	func(b Bitboard) Bitboard { return FlipVertical(FlipHorizontal(Transpose(b))) },
}

// Canonicalize returns the lexicographically smallest (player, opponent)
// pair among all 8 board symmetries. It is the TT key domain: symmetric
// positions collapse to the same canonical pair and therefore the same hash.
func Canonicalize(player, opponent Bitboard) (Bitboard, Bitboard) {
	bestP, bestO := player, opponent
	for i := 1; i < len(symmetries); i++ {
		p, o := symmetries[i](player), symmetries[i](opponent)
		if p < bestP || (p == bestP && o < bestO) {
			bestP, bestO = p, o
		}
	}
	return bestP, bestO
}
