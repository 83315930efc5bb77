package board

import "fmt"

// Move is a square index 0-63 identifying where a disc is placed. There is
// no encoding beyond the square: Othello moves carry no promotion, capture
// flag or castling rights to pack in.
type Move int8

// NoMove is the sentinel returned where no placing move applies.
const NoMove Move = -1

// PassMove represents passing turn back to the opponent, used when the side
// to move has no legal placing move but the game is not yet over.
const PassMove Move = -2

// String renders the move in algebraic form (a1-h8), or "pass"/"none".
func (m Move) String() string {
	switch m {
	case NoMove:
		return "none"
	case PassMove:
		return "pass"
	}
	file := byte('a' + int(m)%8)
	rank := byte('1' + int(m)/8)
	return string([]byte{file, rank})
}

// ParseMove parses an algebraic square name (a1-h8) into a Move.
func ParseMove(s string) (Move, error) {
	if s == "pass" {
		return PassMove, nil
	}
	if len(s) != 2 {
		return NoMove, fmt.Errorf("invalid move string: %q", s)
	}
	file := s[0]
	rank := s[1]
	if file < 'a' || file > 'h' || rank < '1' || rank > '8' {
		return NoMove, fmt.Errorf("invalid move string: %q", s)
	}
	return Move(int(rank-'1')*8 + int(file-'a')), nil
}

// MoveList is a fixed-size, allocation-free list of candidate moves used by
// move generation and ordering.
type MoveList struct {
	moves [64]Move
	count int
}

// ExtractMoves decodes a legal-move bitboard into a MoveList.
func ExtractMoves(moves Bitboard) *MoveList {
	ml := &MoveList{}
	for moves != 0 {
		sq := moves.PopLSB()
		ml.moves[ml.count] = Move(sq)
		ml.count++
	}
	return ml
}

func (ml *MoveList) Len() int          { return ml.count }
func (ml *MoveList) Get(i int) Move    { return ml.moves[i] }
func (ml *MoveList) Set(i int, m Move) { ml.moves[i] = m }
func (ml *MoveList) Swap(i, j int) {
	ml.moves[i], ml.moves[j] = ml.moves[j], ml.moves[i]
}
func (ml *MoveList) Slice() []Move { return ml.moves[:ml.count] }
