package snapshot

import (
	"path/filepath"
	"testing"
)

func TestWriteReadSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots", "42.snap.zst")
	in := SceneV1{
		Header:  Header{SceneID: "grasslands", Session: "s-1", Tick: 42},
		Name:    "Grasslands",
		Terrain: TerrainV1{Width: 8, Height: 4, WrapX: true, Palette: []string{"AIR", "DIRT"}, Cells: "AQgAGA=="},
		Players: []PlayerV1{{Active: true, Team: 0, Budget: 250, Brain: &ObjectV1{Kind: "actor", Preset: "Brain Case"}}},
		Areas:   []AreaV1{{Name: "LZ", Boxes: []BoxV1{{X: 1, Y: 2, W: 3, H: 4}}}},
		Blueprint: []ObjectV1{{
			Kind: "deployment", Preset: "Squad", Team: 0, PlacedByPlayer: 0,
			Deployment: &DeploymentV1{ID: 77, SpawnRadius: 40, WalkRadius: 250},
		}},
		OnLoad: []ObjectV1{{Kind: "actor", Preset: "Soldier", Inventory: []ObjectV1{{Kind: "item", Preset: "Rifle"}}}},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	h, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.Version != Version || h.Tick != 42 || h.SceneID != "grasslands" {
		t.Fatalf("header=%+v", h)
	}

	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if out.Players[0].Brain == nil || out.Players[0].Brain.Preset != "Brain Case" {
		t.Fatalf("brain lost: %+v", out.Players[0])
	}
	if d := out.Blueprint[0].Deployment; d == nil || d.ID != 77 {
		t.Fatalf("deployment lost: %+v", out.Blueprint[0])
	}
	if len(out.OnLoad[0].Inventory) != 1 || out.Terrain.Cells != in.Terrain.Cells {
		t.Fatalf("object or terrain mismatch")
	}
}

func TestDigestSurvivesDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "7.snap.zst")
	in := SceneV1{
		Header:  Header{SceneID: "S1", Session: "first", Tick: 7},
		Players: []PlayerV1{{Active: true, Budget: 10}},
		Areas:   []AreaV1{{Name: "LZ", Boxes: []BoxV1{}}},
		OnLoad:  []ObjectV1{},
	}
	if err := WriteSnapshot(path, in); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	out, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	out.Header.Session = "second"
	if Digest(in) != Digest(out) {
		t.Fatalf("digest changed across disk round trip")
	}
	out.Players[0].Budget = 11
	if Digest(in) == Digest(out) {
		t.Fatalf("digest ignored a budget change")
	}
}

func TestReadSnapshotMissing(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "nope.snap.zst")); err == nil {
		t.Fatalf("expected error")
	}
}
