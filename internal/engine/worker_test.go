package engine

import (
	"testing"

	"github.com/dfpnsolver/othello/internal/queue"
)

func TestClassifyTerminal(t *testing.T) {
	cases := []struct {
		diff              int32
		wantWin, wantLose bool
	}{
		{4, true, false},
		{-4, false, true},
		{0, false, false},
	}
	for _, c := range cases {
		win, lose := classifyTerminal(c.diff)
		if win != c.wantWin || lose != c.wantLose {
			t.Errorf("classifyTerminal(%d) = (%v,%v), want (%v,%v)", c.diff, win, lose, c.wantWin, c.wantLose)
		}
	}
}

func TestFlipKind(t *testing.T) {
	if flipKind(queue.OR) != queue.AND {
		t.Error("flipKind(OR) != AND")
	}
	if flipKind(queue.AND) != queue.OR {
		t.Error("flipKind(AND) != OR")
	}
}

func TestSaturatingAdd(t *testing.T) {
	if got := saturatingAdd(3, 4); got != 7 {
		t.Errorf("saturatingAdd(3,4) = %d, want 7", got)
	}
	if got := saturatingAdd(INF-1, 5); got != INF {
		t.Errorf("saturatingAdd(INF-1,5) = %d, want INF", got)
	}
	if got := saturatingAdd(INF, INF); got != INF {
		t.Errorf("saturatingAdd(INF,INF) = %d, want INF", got)
	}
	if got := saturatingAdd(0, INF); got != INF {
		t.Errorf("saturatingAdd(0,INF) = %d, want INF", got)
	}
}

func TestClampInt16(t *testing.T) {
	cases := []struct {
		in, want int32
	}{
		{100, 100},
		{40000, 32767},
		{-40000, -32768},
		{0, 0},
	}
	for _, c := range cases {
		if got := clampInt16(c.in); got != c.want {
			t.Errorf("clampInt16(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func leafChild(kind queue.NodeKind, pn, dn int32, proven bool, result Result) *Node {
	return &Node{Kind: kind, Pn: pn, Dn: dn, IsProven: proven, Result: result}
}

func TestUpdatePnDnORNodeAnyWinProves(t *testing.T) {
	node := &Node{Kind: queue.OR, Children: []*Node{
		leafChild(queue.AND, 5, 3, false, Unknown),
		leafChild(queue.AND, 0, INF, true, Win),
	}}
	updatePnDn(node)
	if !node.IsProven || node.Result != Win || node.Pn != 0 || node.Dn != INF {
		t.Errorf("got Pn=%d Dn=%d Result=%s IsProven=%v, want proven WIN 0/INF", node.Pn, node.Dn, node.Result, node.IsProven)
	}
}

func TestUpdatePnDnORNodeAllLoseProves(t *testing.T) {
	node := &Node{Kind: queue.OR, Children: []*Node{
		leafChild(queue.AND, INF, 0, true, Lose),
		leafChild(queue.AND, INF, 0, true, Lose),
	}}
	updatePnDn(node)
	if !node.IsProven || node.Result != Lose || node.Pn != INF || node.Dn != 0 {
		t.Errorf("got Pn=%d Dn=%d Result=%s IsProven=%v, want proven LOSE INF/0", node.Pn, node.Dn, node.Result, node.IsProven)
	}
}

func TestUpdatePnDnORNodeAllProvenDrawProves(t *testing.T) {
	node := &Node{Kind: queue.OR, Children: []*Node{
		leafChild(queue.AND, INF, INF, true, Draw),
		leafChild(queue.AND, INF, 0, true, Lose),
	}}
	updatePnDn(node)
	if !node.IsProven || node.Result != Draw || node.Pn != INF || node.Dn != INF {
		t.Errorf("got Pn=%d Dn=%d Result=%s IsProven=%v, want proven DRAW INF/INF", node.Pn, node.Dn, node.Result, node.IsProven)
	}
}

func TestUpdatePnDnORNodeUnresolvedTakesMinPnSumDn(t *testing.T) {
	node := &Node{Kind: queue.OR, Children: []*Node{
		leafChild(queue.AND, 5, 3, false, Unknown),
		leafChild(queue.AND, 2, 7, false, Unknown),
	}}
	updatePnDn(node)
	if node.IsProven {
		t.Fatal("node should not be proven with unresolved non-draw children")
	}
	if node.Pn != 2 {
		t.Errorf("Pn = %d, want min(5,2) = 2", node.Pn)
	}
	if node.Dn != 10 {
		t.Errorf("Dn = %d, want sum(3,7) = 10", node.Dn)
	}
}

func TestUpdatePnDnANDNodeAnyLoseProves(t *testing.T) {
	node := &Node{Kind: queue.AND, Children: []*Node{
		leafChild(queue.OR, 5, 3, false, Unknown),
		leafChild(queue.OR, INF, 0, true, Lose),
	}}
	updatePnDn(node)
	if !node.IsProven || node.Result != Lose || node.Pn != INF || node.Dn != 0 {
		t.Errorf("got Pn=%d Dn=%d Result=%s IsProven=%v, want proven LOSE INF/0", node.Pn, node.Dn, node.Result, node.IsProven)
	}
}

func TestUpdatePnDnANDNodeAllWinProves(t *testing.T) {
	node := &Node{Kind: queue.AND, Children: []*Node{
		leafChild(queue.OR, 0, INF, true, Win),
		leafChild(queue.OR, 0, INF, true, Win),
	}}
	updatePnDn(node)
	if !node.IsProven || node.Result != Win || node.Pn != 0 || node.Dn != INF {
		t.Errorf("got Pn=%d Dn=%d Result=%s IsProven=%v, want proven WIN 0/INF", node.Pn, node.Dn, node.Result, node.IsProven)
	}
}

func TestUpdatePnDnANDNodeAllProvenDrawProves(t *testing.T) {
	node := &Node{Kind: queue.AND, Children: []*Node{
		leafChild(queue.OR, INF, INF, true, Draw),
		leafChild(queue.OR, 0, INF, true, Win),
	}}
	updatePnDn(node)
	if !node.IsProven || node.Result != Draw {
		t.Errorf("got Result=%s IsProven=%v, want proven DRAW", node.Result, node.IsProven)
	}
}

func TestUpdatePnDnANDNodeUnresolvedTakesMinDnSumPn(t *testing.T) {
	node := &Node{Kind: queue.AND, Children: []*Node{
		leafChild(queue.OR, 5, 3, false, Unknown),
		leafChild(queue.OR, 2, 7, false, Unknown),
	}}
	updatePnDn(node)
	if node.IsProven {
		t.Fatal("node should not be proven with unresolved non-draw children")
	}
	if node.Dn != 3 {
		t.Errorf("Dn = %d, want min(3,7) = 3", node.Dn)
	}
	if node.Pn != 7 {
		t.Errorf("Pn = %d, want sum(5,2) = 7", node.Pn)
	}
}

func TestUpdatePnDnNoChildrenIsNoOp(t *testing.T) {
	node := &Node{Kind: queue.OR, Pn: 3, Dn: 4}
	updatePnDn(node)
	if node.Pn != 3 || node.Dn != 4 {
		t.Errorf("updatePnDn mutated a childless node: Pn=%d Dn=%d", node.Pn, node.Dn)
	}
}

func TestSelectBestChildSkipsProvenAndPicksMinDrivingNumber(t *testing.T) {
	node := &Node{Kind: queue.OR, Children: []*Node{
		leafChild(queue.AND, 1, 1, true, Lose), // proven, must be skipped
		leafChild(queue.AND, 9, 1, false, Unknown),
		leafChild(queue.AND, 4, 1, false, Unknown),
	}}
	best := selectBestChild(node)
	if best == nil || best.Pn != 4 {
		t.Fatalf("selectBestChild (OR) = %+v, want the unproven child with Pn=4", best)
	}

	andNode := &Node{Kind: queue.AND, Children: []*Node{
		leafChild(queue.OR, 1, 9, false, Unknown),
		leafChild(queue.OR, 1, 2, false, Unknown),
		leafChild(queue.OR, 1, 1, true, Win), // proven, must be skipped
	}}
	best = selectBestChild(andNode)
	if best == nil || best.Dn != 2 {
		t.Fatalf("selectBestChild (AND) = %+v, want the unproven child with Dn=2", best)
	}
}

func TestSelectBestChildAllProvenReturnsNil(t *testing.T) {
	node := &Node{Kind: queue.OR, Children: []*Node{
		leafChild(queue.AND, 0, INF, true, Win),
	}}
	if best := selectBestChild(node); best != nil {
		t.Errorf("selectBestChild with all children proven = %+v, want nil", best)
	}
}

func TestWidenThresholdsORNode(t *testing.T) {
	node := &Node{Kind: queue.OR, Dn: 10, Tpn: 50, Tdn: 100}
	child := &Node{Dn: 4}
	widenThresholds(node, child)
	if child.Tpn != 94 { // Tdn - Dn + child.Dn = 100 - 10 + 4
		t.Errorf("child.Tpn = %d, want 94", child.Tpn)
	}
	if child.Tdn != 50 { // node.Tpn
		t.Errorf("child.Tdn = %d, want 50", child.Tdn)
	}
}

func TestWidenThresholdsANDNode(t *testing.T) {
	node := &Node{Kind: queue.AND, Pn: 10, Tpn: 100, Tdn: 50}
	child := &Node{Pn: 4}
	widenThresholds(node, child)
	if child.Tdn != 94 { // Tpn - Pn + child.Pn = 100 - 10 + 4
		t.Errorf("child.Tdn = %d, want 94", child.Tdn)
	}
	if child.Tpn != 50 { // node.Tdn
		t.Errorf("child.Tpn = %d, want 50", child.Tpn)
	}
}

func TestWidenThresholdsClampsAtInfPlusOne(t *testing.T) {
	node := &Node{Kind: queue.OR, Dn: 0, Tpn: INF + 1, Tdn: INF + 1}
	child := &Node{Dn: INF}
	widenThresholds(node, child)
	if child.Tpn != INF+1 {
		t.Errorf("child.Tpn = %d, want clamped to INF+1 (%d)", child.Tpn, INF+1)
	}
}

func TestRelaxLocalBelowChunkAndSharedBelow70Tier(t *testing.T) {
	base := SpawnConfig{MaxGeneration: 1, MinDepthForSpawn: 10, SpawnLimit: 9999}
	out := relax(base, 0, true, true)
	if out.MaxGeneration != 21 {
		t.Errorf("MaxGeneration = %d, want 21 (base 1 + 20)", out.MaxGeneration)
	}
	if out.SpawnLimit != 50 {
		t.Errorf("SpawnLimit = %d, want 50", out.SpawnLimit)
	}
	if out.MinDepthForSpawn != 5 {
		t.Errorf("MinDepthForSpawn = %d, want 5 (10/2)", out.MinDepthForSpawn)
	}
}

func TestRelaxIdleFractionTiers(t *testing.T) {
	base := SpawnConfig{MaxGeneration: 1, MinDepthForSpawn: 10, SpawnLimit: 10}

	hi := relax(base, 0.95, false, false)
	if hi.MaxGeneration != 11 || hi.SpawnLimit != 50 || hi.MinDepthForSpawn != 5 {
		t.Errorf(">=0.9 tier got %+v", hi)
	}

	mid := relax(base, 0.75, false, false)
	if mid.MaxGeneration != 6 || mid.SpawnLimit != 30 || mid.MinDepthForSpawn != 6 { // 10*2/3
		t.Errorf(">=0.7 tier got %+v", mid)
	}

	lo := relax(base, 0.55, false, false)
	if lo.MaxGeneration != 3 || lo.SpawnLimit != 20 || lo.MinDepthForSpawn != 10 {
		t.Errorf(">=0.5 tier got %+v", lo)
	}

	none := relax(base, 0.1, false, false)
	if none != base {
		t.Errorf("below every tier, relax should be a no-op: got %+v, want %+v", none, base)
	}
}

func TestRelaxNeverProducesNegativeMinDepth(t *testing.T) {
	base := SpawnConfig{MaxGeneration: 1, MinDepthForSpawn: 1, SpawnLimit: 10}
	out := relax(base, 0.95, false, false)
	if out.MinDepthForSpawn < 0 {
		t.Errorf("MinDepthForSpawn = %d, want clamped to >= 0", out.MinDepthForSpawn)
	}
}

func TestDefaultSpawnConfigMatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultSpawnConfig()
	if cfg.MaxGeneration != 1 || cfg.MinDepthForSpawn != 5 || cfg.SpawnLimit != 9999 {
		t.Errorf("DefaultSpawnConfig() = %+v, want {1 5 9999}", cfg)
	}
}
