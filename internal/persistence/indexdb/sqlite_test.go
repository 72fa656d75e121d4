package indexdb

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	scenelog "scenecraft.ai/internal/persistence/log"
	"scenecraft.ai/internal/persistence/snapshot"
	"scenecraft.ai/internal/sim/scene"
	"scenecraft.ai/internal/sim/scene/scenetest"
	"scenecraft.ai/internal/sim/tuning"
)

func TestSQLiteIndexRecordsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := idx.UpsertCatalogs(scenetest.Catalogs(t), tuning.Defaults()); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}

	rep := scene.StepReport{Tick: 7, BuildRound: true, FullRecompute: true}
	rep.CellsCleaned[0] = 3
	rep.CellsCleaned[2] = 4
	_ = idx.WriteTick(scenelog.TickLogEntry{SceneID: "S1", Tick: 7, Report: rep})
	idx.RecordBuildRound(scenelog.AuditEntry{SceneID: "S1", Tick: 7, Player: 1, Team: 0, Spent: 120, Placed: 2, Budget: 80})
	idx.RecordRecompute("S1", 7, true, 0, 0)
	idx.RecordRecompute("S1", 7, false, 12, 3)
	idx.RecordSnapshot("/data/S1/7.snap.zst", snapshot.SceneV1{
		Header:    snapshot.Header{Version: snapshot.Version, SceneID: "S1", Session: "sess", Tick: 7},
		Seed:      42,
		Areas:     []snapshot.AreaV1{{Name: "LZ"}},
		Blueprint: []snapshot.ObjectV1{{Kind: "item"}, {Kind: "actor"}},
	})
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var cleaned, full int
	if err := db.QueryRow(`SELECT cells_cleaned, full_recompute FROM ticks WHERE scene_id='S1' AND tick=7`).Scan(&cleaned, &full); err != nil {
		t.Fatalf("ticks: %v", err)
	}
	if cleaned != 7 || full != 1 {
		t.Fatalf("tick row cleaned=%d full=%d", cleaned, full)
	}

	var spent, budget float64
	var placed int
	if err := db.QueryRow(`SELECT spent, placed, budget_after FROM build_rounds WHERE player=1`).Scan(&spent, &placed, &budget); err != nil {
		t.Fatalf("build_rounds: %v", err)
	}
	if spent != 120 || placed != 2 || budget != 80 {
		t.Fatalf("round row spent=%v placed=%d budget=%v", spent, placed, budget)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM recomputes WHERE scene_id='S1'`).Scan(&n); err != nil || n != 2 {
		t.Fatalf("recomputes=%d err=%v", n, err)
	}

	var session string
	var seed int64
	var blueprint int
	if err := db.QueryRow(`SELECT session, seed, blueprint FROM snapshots WHERE tick=7`).Scan(&session, &seed, &blueprint); err != nil {
		t.Fatalf("snapshots: %v", err)
	}
	if session != "sess" || seed != 42 || blueprint != 2 {
		t.Fatalf("snapshot row session=%q seed=%d blueprint=%d", session, seed, blueprint)
	}

	if err := db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&n); err != nil || n != 5 {
		t.Fatalf("catalog rows=%d err=%v", n, err)
	}
}

func TestSQLiteIndexQueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick}

	_ = s.WriteTick(scenelog.TickLogEntry{Tick: 2})
	s.RecordBuildRound(scenelog.AuditEntry{Tick: 2})
	s.RecordRecompute("S1", 2, false, 0, 0)
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SceneV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropRoundTotal != 1 || st.DropRecomputeTotal != 1 || st.DropSnapshotTotal != 1 {
		t.Fatalf("stats=%+v", st)
	}

	var nilIndex *SQLiteIndex
	nilIndex.RecordRecompute("S1", 1, true, 0, 0)
	if nilIndex.Stats() != (Stats{}) {
		t.Fatalf("nil index should report zero stats")
	}
}
