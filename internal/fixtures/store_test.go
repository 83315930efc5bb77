package fixtures

import (
	"os"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "othello-dfpn-fixtures-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTTSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)

	records := []TTRecord{
		{Key: 0x1234, Pn: 0, Dn: 100_000_000, Result: 1, Depth: 12},
		{Key: 0x5678, Pn: 100_000_000, Dn: 0, Result: 2, Depth: 8},
	}
	if err := s.SaveTTSnapshot("mid-game", records); err != nil {
		t.Fatalf("SaveTTSnapshot: %v", err)
	}

	got, err := s.LoadTTSnapshot("mid-game")
	if err != nil {
		t.Fatalf("LoadTTSnapshot: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("got %d records, want %d", len(got), len(records))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Errorf("record %d: got %+v, want %+v", i, got[i], records[i])
		}
	}
}

func TestLoadTTSnapshotMissing(t *testing.T) {
	s := openTestStore(t)

	got, err := s.LoadTTSnapshot("never-saved")
	if err != nil {
		t.Fatalf("LoadTTSnapshot: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records for an unsaved snapshot, got %d", len(got))
	}
}

func TestFixtureRoundTrip(t *testing.T) {
	s := openTestStore(t)

	f := Fixture{
		Name:             "corner-trap",
		BoardLine:        "---------------------------OX------XO---------------------------",
		SideToMoveLine:   "B",
		ExpectedResult:   "WIN",
		ExpectedBestMove: "c4",
		TimeLimitSec:     30,
	}
	if err := s.SaveFixture(f); err != nil {
		t.Fatalf("SaveFixture: %v", err)
	}

	got, err := s.LoadFixture("corner-trap")
	if err != nil {
		t.Fatalf("LoadFixture: %v", err)
	}
	if *got != f {
		t.Errorf("got %+v, want %+v", *got, f)
	}

	names, err := s.ListFixtures()
	if err != nil {
		t.Fatalf("ListFixtures: %v", err)
	}
	if len(names) != 1 || names[0] != "corner-trap" {
		t.Errorf("ListFixtures = %v, want [corner-trap]", names)
	}
}

func TestLoadFixtureMissing(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.LoadFixture("nonexistent"); err == nil {
		t.Error("expected an error loading a fixture that was never saved")
	}
}
