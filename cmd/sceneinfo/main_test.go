package main

import (
	"path/filepath"
	"testing"

	scenelog "scenecraft.ai/internal/persistence/log"
	"scenecraft.ai/internal/persistence/snapshot"
)

func TestFindDigest(t *testing.T) {
	dir := t.TempDir()
	l := scenelog.NewTickLogger(dir)
	for tick := uint64(1); tick <= 4; tick++ {
		e := scenelog.TickLogEntry{SceneID: "S1", Tick: tick}
		if tick == 3 {
			e.Digest = "d3"
		}
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := listTickFiles(filepath.Join(dir, "ticks"))
	if err != nil || len(files) != 1 {
		t.Fatalf("files=%v err=%v", files, err)
	}
	d, ok, err := findDigest(files, 3)
	if err != nil || !ok || d != "d3" {
		t.Fatalf("tick 3: d=%q ok=%v err=%v", d, ok, err)
	}
	if _, ok, _ := findDigest(files, 2); ok {
		t.Fatalf("tick 2 has no digest")
	}
}

func TestSummarize(t *testing.T) {
	snap := snapshot.SceneV1{
		Header:  snapshot.Header{Version: snapshot.Version, SceneID: "S1", Tick: 9},
		Players: []snapshot.PlayerV1{{Active: true}, {}, {Active: true}},
		AIPlan:  []snapshot.ObjectV1{{Kind: "actor", Preset: "Soldier"}},
	}
	s := summarize(snap)
	if s.ActivePlayers != 2 || s.AIPlan != 1 || s.Tick != 9 {
		t.Fatalf("summary=%+v", s)
	}
	if s.Digest != snapshot.Digest(snap) {
		t.Fatalf("digest differs")
	}
}
