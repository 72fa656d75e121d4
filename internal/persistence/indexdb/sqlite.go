// Package indexdb keeps a queryable SQLite index next to the JSONL logs
// and snapshots. Writes are queued to a single writer goroutine and
// dropped when it falls behind; the logs stay the source of truth.
package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	scenelog "scenecraft.ai/internal/persistence/log"
	"scenecraft.ai/internal/persistence/snapshot"
	"scenecraft.ai/internal/sim/catalogs"
	"scenecraft.ai/internal/sim/tuning"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick      atomic.Uint64
	dropRound     atomic.Uint64
	dropRecompute atomic.Uint64
	dropSnapshot  atomic.Uint64
}

// Stats counts requests dropped on a full queue.
type Stats struct {
	DropTickTotal      uint64 `json:"drop_tick_total"`
	DropRoundTotal     uint64 `json:"drop_round_total"`
	DropRecomputeTotal uint64 `json:"drop_recompute_total"`
	DropSnapshotTotal  uint64 `json:"drop_snapshot_total"`
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqRound
	reqRecompute
	reqSnapshot
)

type req struct {
	kind reqKind

	tick      scenelog.TickLogEntry
	round     scenelog.AuditEntry
	recompute recomputeRow
	snapshot  snapshotRow
}

type recomputeRow struct {
	SceneID string
	Tick    uint64
	Full    bool
	Changed int
	Backlog int
}

type snapshotRow struct {
	SceneID     string
	Session     string
	Tick        uint64
	Path        string
	Seed        uint64
	Areas       int
	OnLoad      int
	Blueprint   int
	AIPlan      int
	Deployments int
	Investment  float64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, queue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			scene_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			unix_ms INTEGER NOT NULL,
			build_round INTEGER NOT NULL,
			cells_cleaned INTEGER NOT NULL,
			full_recompute INTEGER NOT NULL,
			partial_recompute INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (scene_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS build_rounds (
			scene_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			player INTEGER NOT NULL,
			team INTEGER NOT NULL,
			spent REAL NOT NULL,
			placed INTEGER NOT NULL,
			ai_plan_moved INTEGER NOT NULL,
			budget_after REAL NOT NULL,
			PRIMARY KEY (scene_id, tick, player)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_build_rounds_player ON build_rounds(scene_id, player, tick);`,
		`CREATE TABLE IF NOT EXISTS recomputes (
			scene_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			kind TEXT NOT NULL,
			changed INTEGER NOT NULL,
			backlog INTEGER NOT NULL,
			PRIMARY KEY (scene_id, tick, kind)
		);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			scene_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			session TEXT NOT NULL,
			path TEXT NOT NULL,
			seed INTEGER NOT NULL,
			areas INTEGER NOT NULL,
			on_load INTEGER NOT NULL,
			blueprint INTEGER NOT NULL,
			ai_plan INTEGER NOT NULL,
			deployments INTEGER NOT NULL,
			investment REAL NOT NULL,
			PRIMARY KEY (scene_id, tick)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		DropTickTotal:      s.dropTick.Load(),
		DropRoundTotal:     s.dropRound.Load(),
		DropRecomputeTotal: s.dropRecompute.Load(),
		DropSnapshotTotal:  s.dropSnapshot.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) WriteTick(e scenelog.TickLogEntry) error {
	if s == nil {
		return nil
	}
	s.enqueue(req{kind: reqTick, tick: e}, &s.dropTick)
	return nil
}

func (s *SQLiteIndex) RecordBuildRound(e scenelog.AuditEntry) {
	if s == nil {
		return
	}
	s.enqueue(req{kind: reqRound, round: e}, &s.dropRound)
}

func (s *SQLiteIndex) RecordRecompute(sceneID string, tick uint64, full bool, changed, backlog int) {
	if s == nil {
		return
	}
	r := recomputeRow{SceneID: sceneID, Tick: tick, Full: full, Changed: changed, Backlog: backlog}
	s.enqueue(req{kind: reqRecompute, recompute: r}, &s.dropRecompute)
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SceneV1) {
	if s == nil {
		return
	}
	r := snapshotRow{
		SceneID:     snap.Header.SceneID,
		Session:     snap.Header.Session,
		Tick:        snap.Header.Tick,
		Path:        path,
		Seed:        snap.Seed,
		Areas:       len(snap.Areas),
		OnLoad:      len(snap.OnLoad),
		Blueprint:   len(snap.Blueprint),
		AIPlan:      len(snap.AIPlan),
		Deployments: len(snap.Deployments),
		Investment:  snap.TotalInvestment,
	}
	s.enqueue(req{kind: reqSnapshot, snapshot: r}, &s.dropSnapshot)
}

// UpsertCatalogs stores the content and tuning in effect, synchronously.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	add := func(name, digest string, v any) {
		b, err := json.Marshal(v)
		if err != nil || len(b) == 0 {
			return
		}
		if digest == "" {
			sum := sha256.Sum256(b)
			digest = hex.EncodeToString(sum[:])
		}
		rows = append(rows, kv{name: name, digest: digest, json: b})
	}
	add("materials", cats.Materials.DefsDigest, cats.Materials.Defs)
	add("materials_palette", cats.Materials.PaletteDigest, cats.Materials.Palette)
	add("presets", cats.Presets.Digest, cats.Presets.ByName)
	add("loadouts", cats.Loadouts.Digest, cats.Loadouts.ByName)
	add("tuning", "", tune)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(scene_id,tick,unix_ms,build_round,cells_cleaned,full_recompute,partial_recompute,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertRound, _ := s.db.Prepare(`INSERT OR REPLACE INTO build_rounds(scene_id,tick,player,team,spent,placed,ai_plan_moved,budget_after) VALUES(?,?,?,?,?,?,?,?)`)
	insertRecompute, _ := s.db.Prepare(`INSERT OR REPLACE INTO recomputes(scene_id,tick,kind,changed,backlog) VALUES(?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(scene_id,tick,session,path,seed,areas,on_load,blueprint,ai_plan,deployments,investment) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertTick, insertRound, insertRecompute, insertSnapshot} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)
	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	end := func(ok bool) {
		if tx == nil {
			return
		}
		if ok {
			_ = tx.Commit()
		} else {
			_ = tx.Rollback()
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			end(false)
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			e := r.tick
			cleaned := 0
			for _, n := range e.Report.CellsCleaned {
				cleaned += n
			}
			raw, _ := json.Marshal(e)
			exec(insertTick, e.SceneID, int64(e.Tick), e.UnixMS, boolInt(e.Report.BuildRound), cleaned,
				boolInt(e.Report.FullRecompute), boolInt(e.Report.PartialRecompute), string(raw))

		case reqRound:
			a := r.round
			exec(insertRound, a.SceneID, int64(a.Tick), a.Player, a.Team, a.Spent, a.Placed, a.AIPlanMoved, a.Budget)

		case reqRecompute:
			rc := r.recompute
			kind := "partial"
			if rc.Full {
				kind = "full"
			}
			exec(insertRecompute, rc.SceneID, int64(rc.Tick), kind, rc.Changed, rc.Backlog)

		case reqSnapshot:
			sn := r.snapshot
			exec(insertSnapshot, sn.SceneID, int64(sn.Tick), sn.Session, sn.Path, int64(sn.Seed),
				sn.Areas, sn.OnLoad, sn.Blueprint, sn.AIPlan, sn.Deployments, sn.Investment)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			end(true)
		}
	}
	end(true)
}
