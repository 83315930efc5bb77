// Package posfile parses the two-line ASCII position file format the CLI
// accepts: a 64-character board line followed by a side-to-move line.
package posfile

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/dfpnsolver/othello/internal/board"
)

// ParseError reports a malformed position file; the CLI surfaces its
// message and exits non-zero without entering the solver.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("posfile: line %d: %s", e.Line, e.Reason)
}

// Load reads and parses a position file from disk.
func Load(path string) (*board.Position, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("posfile: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads a position from r: line 1 is exactly 64 characters,
// left-to-right mapping to squares a1..h8 (bit 0 .. bit 63); 'X'/'x'/'*'
// marks a Black disc, 'O'/'o' a White disc, anything else an empty square.
// Line 2 must start with 'B'/'b' (Black to move) or 'W'/'w' (White to
// move).
func Parse(r io.Reader) (*board.Position, error) {
	sc := bufio.NewScanner(r)

	if !sc.Scan() {
		return nil, &ParseError{Line: 1, Reason: "missing board line"}
	}
	boardLine := sc.Text()
	if len(boardLine) != 64 {
		return nil, &ParseError{Line: 1, Reason: fmt.Sprintf("board line must be exactly 64 characters, got %d", len(boardLine))}
	}

	var black, white board.Bitboard
	for sq, ch := range boardLine {
		switch ch {
		case 'X', 'x', '*':
			black |= board.SquareBB(sq)
		case 'O', 'o':
			white |= board.SquareBB(sq)
		}
	}

	if !sc.Scan() {
		return nil, &ParseError{Line: 2, Reason: "missing side-to-move line"}
	}
	sideLine := sc.Text()
	if len(sideLine) == 0 {
		return nil, &ParseError{Line: 2, Reason: "empty side-to-move line"}
	}

	var side board.Color
	switch sideLine[0] {
	case 'B', 'b':
		side = board.Black
	case 'W', 'w':
		side = board.White
	default:
		return nil, &ParseError{Line: 2, Reason: fmt.Sprintf("side to move must start with B or W, got %q", sideLine[0])}
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("posfile: %w", err)
	}

	return board.NewPositionFrom(black, white, side), nil
}
