package board

import "fmt"

// Color identifies a disc color / side to move.
type Color uint8

const (
	Black Color = iota
	White
)

// Other returns the opposing color.
func (c Color) Other() Color {
	return c ^ 1
}

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

// Position is a complete Othello position: which squares hold a Black disc,
// which hold a White disc, and whose turn it is. Board state is always
// stored in absolute Black/White terms; Player/Opponent below project it
// into the side-to-move's perspective, which is what move generation and
// search operate on.
type Position struct {
	Black      Bitboard
	White      Bitboard
	SideToMove Color
	Hash       uint64
}

// NewPosition returns the standard Othello starting position, Black to move.
func NewPosition() *Position {
	p := &Position{
		Black:      StartBlack,
		White:      StartWhite,
		SideToMove: Black,
	}
	p.Hash = Hash(p.Player(), p.Opponent(), p.SideToMove)
	return p
}

// NewPositionFrom builds a position from explicit Black/White bitboards and
// side to move, used by the position-file loader.
func NewPositionFrom(black, white Bitboard, side Color) *Position {
	p := &Position{Black: black, White: white, SideToMove: side}
	p.Hash = Hash(p.Player(), p.Opponent(), p.SideToMove)
	return p
}

// Copy returns a value copy of the position.
func (p *Position) Copy() *Position {
	np := *p
	return &np
}

// Player returns the side-to-move's discs.
func (p *Position) Player() Bitboard {
	if p.SideToMove == Black {
		return p.Black
	}
	return p.White
}

// Opponent returns the waiting side's discs.
func (p *Position) Opponent() Bitboard {
	if p.SideToMove == Black {
		return p.White
	}
	return p.Black
}

// Occupied returns every occupied square.
func (p *Position) Occupied() Bitboard {
	return p.Black | p.White
}

// EmptyCount returns the number of empty squares remaining.
func (p *Position) EmptyCount() int {
	return 64 - p.Occupied().PopCount()
}

// LegalMoves returns the side to move's legal moves.
func (p *Position) LegalMoves() Bitboard {
	return LegalMoves(p.Player(), p.Opponent())
}

// HasLegalMove reports whether the side to move has any legal move.
func (p *Position) HasLegalMove() bool {
	return HasLegalMove(p.Player(), p.Opponent())
}

// GameOver reports whether neither side has a legal move, which ends the
// game under Othello rules (the board need not be full).
func (p *Position) GameOver() bool {
	if p.HasLegalMove() {
		return false
	}
	passed := p.Copy()
	passed.SideToMove = p.SideToMove.Other()
	return !passed.HasLegalMove()
}

// ApplyMove returns the position after the side to move plays m. m must be
// PassMove when the side to move has no legal move, or a square returned by
// LegalMoves otherwise; ApplyMove does not validate legality itself.
func (p *Position) ApplyMove(m Move) *Position {
	np := &Position{SideToMove: p.SideToMove.Other()}
	if m == PassMove {
		np.Black, np.White = p.Black, p.White
	} else if p.SideToMove == Black {
		np.Black, np.White = ApplyMove(p.Black, p.White, int(m))
	} else {
		np.White, np.Black = ApplyMove(p.White, p.Black, int(m))
	}
	np.Hash = Hash(np.Player(), np.Opponent(), np.SideToMove)
	return np
}

// DiscDiff returns Black disc count minus White disc count.
func (p *Position) DiscDiff() int {
	return p.Black.PopCount() - p.White.PopCount()
}

// Winner returns the color with more discs once the game is over, or
// Black/true for a drawn final position; callers must check GameOver first.
func (p *Position) Winner() (winner Color, draw bool) {
	diff := p.DiscDiff()
	switch {
	case diff > 0:
		return Black, false
	case diff < 0:
		return White, false
	default:
		return Black, true
	}
}

func (p *Position) String() string {
	s := "\n"
	for rank := 7; rank >= 0; rank-- {
		s += fmt.Sprintf("%d  ", rank+1)
		for file := 0; file < 8; file++ {
			sq := rank*8 + file
			bit := SquareBB(sq)
			switch {
			case p.Black&bit != 0:
				s += "X "
			case p.White&bit != 0:
				s += "O "
			default:
				s += ". "
			}
		}
		s += "\n"
	}
	s += "\n   a b c d e f g h\n"
	s += fmt.Sprintf("Side to move: %s\n", p.SideToMove)
	s += fmt.Sprintf("Hash: %016x\n", p.Hash)
	return s
}
