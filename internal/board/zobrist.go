package board

// Canonical hash keys, one entry per square for the side-to-move's discs and
// one per square for the opponent's discs, plus a side-to-move key. Keys are
// drawn from a fixed-seed PRNG so hashes are reproducible across runs and
// across machines, which regression fixtures and the TT snapshot cache rely
// on.
var (
	zobristPlayer    [64]uint64
	zobristOpponent  [64]uint64
	zobristSideBlack uint64
)

func init() {
	initZobrist()
}

// prng is a xorshift64* generator, used only to seed the fixed hash tables
// below; it is not used anywhere in the search itself.
type prng struct {
	state uint64
}

func newPRNG(seed uint64) *prng {
	return &prng{state: seed}
}

func (p *prng) next() uint64 {
	p.state ^= p.state >> 12
	p.state ^= p.state << 25
	p.state ^= p.state >> 27
	return p.state * 0x2545F4914F6CDD1D
}

func initZobrist() {
	rng := newPRNG(0x98F107A2BEEF1234)
	for sq := 0; sq < 64; sq++ {
		zobristPlayer[sq] = rng.next()
	}
	for sq := 0; sq < 64; sq++ {
		zobristOpponent[sq] = rng.next()
	}
	zobristSideBlack = rng.next()
}

// Hash computes the canonical position hash: the board is first reduced to
// its lexicographically smallest symmetry representative via Canonicalize,
// so that all 8 reflections/rotations of a position share one TT entry. The
// hash is therefore recomputed from scratch on every move rather than
// maintained incrementally, since canonicalization can pick a different
// symmetry after each move.
func Hash(player, opponent Bitboard, sideToMove Color) uint64 {
	cp, co := Canonicalize(player, opponent)
	var h uint64
	for cp != 0 {
		sq := cp.PopLSB()
		h ^= zobristPlayer[sq]
	}
	for co != 0 {
		sq := co.PopLSB()
		h ^= zobristOpponent[sq]
	}
	if sideToMove == Black {
		h ^= zobristSideBlack
	}
	return h
}
