package posfile

import (
	"strings"
	"testing"

	"github.com/dfpnsolver/othello/internal/board"
)

func startingPositionLines() string {
	line := make([]byte, 64)
	for i := range line {
		line[i] = '-'
	}
	set := func(file, rank int, ch byte) {
		line[rank*8+file] = ch
	}
	set(3, 3, 'O') // d4
	set(4, 4, 'O') // e5
	set(3, 4, 'X') // d5
	set(4, 3, 'X') // e4
	return string(line) + "\nB\n"
}

func TestParseStartingPosition(t *testing.T) {
	pos, err := Parse(strings.NewReader(startingPositionLines()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := board.NewPosition()
	if pos.Black != want.Black || pos.White != want.White || pos.SideToMove != want.SideToMove {
		t.Errorf("parsed position does not match the standard start:\ngot  %s\nwant %s", pos, want)
	}
}

func TestParseWhiteToMove(t *testing.T) {
	line := strings.Repeat("-", 64)
	pos, err := Parse(strings.NewReader(line + "\nwhite\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if pos.SideToMove != board.White {
		t.Errorf("expected White to move, got %s", pos.SideToMove)
	}
}

func TestParseRejectsShortBoardLine(t *testing.T) {
	_, err := Parse(strings.NewReader("XOXO\nB\n"))
	if err == nil {
		t.Fatal("expected an error for a board line shorter than 64 characters")
	}
}

func TestParseRejectsMissingSideLine(t *testing.T) {
	line := strings.Repeat("-", 64)
	_, err := Parse(strings.NewReader(line + "\n"))
	if err == nil {
		t.Fatal("expected an error for a missing side-to-move line")
	}
}

func TestParseRejectsInvalidSide(t *testing.T) {
	line := strings.Repeat("-", 64)
	_, err := Parse(strings.NewReader(line + "\nZ\n"))
	if err == nil {
		t.Fatal("expected an error for an invalid side-to-move character")
	}
}

func TestParseAcceptsAsteriskForBlack(t *testing.T) {
	line := make([]byte, 64)
	for i := range line {
		line[i] = '-'
	}
	line[0] = '*'
	pos, err := Parse(strings.NewReader(string(line) + "\nB\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if pos.Black&board.SquareBB(0) == 0 {
		t.Error("expected '*' to mark square 0 as a Black disc")
	}
}
