package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	sceneID := fs.String("scene", "", "scene id (required unless -db)")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	player := fs.Int("player", -1, "player filter (rounds)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		if strings.TrimSpace(*sceneID) == "" {
			fmt.Fprintln(os.Stderr, "missing -scene or -db")
			os.Exit(2)
		}
		path = filepath.Join(*dataDir, "scenes", *sceneID, "index.db")
	}
	if *limit <= 0 {
		*limit = 20
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runQuery(db, q, *player, *limit); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-scene SCENE|-db PATH] [-limit N] snapshots|rounds|recomputes|ticks|catalogs")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func runQuery(db *sql.DB, q string, player, limit int) error {
	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT scene_id,tick,session,path,seed,areas,on_load,blueprint,ai_plan,deployments,investment FROM snapshots ORDER BY tick DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				SceneID     string  `json:"scene_id"`
				Tick        int64   `json:"tick"`
				Session     string  `json:"session"`
				Path        string  `json:"path"`
				Seed        int64   `json:"seed"`
				Areas       int     `json:"areas"`
				OnLoad      int     `json:"on_load"`
				Blueprint   int     `json:"blueprint"`
				AIPlan      int     `json:"ai_plan"`
				Deployments int     `json:"deployments"`
				Investment  float64 `json:"investment"`
			}
			if err := rows.Scan(&r.SceneID, &r.Tick, &r.Session, &r.Path, &r.Seed, &r.Areas, &r.OnLoad, &r.Blueprint, &r.AIPlan, &r.Deployments, &r.Investment); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(r)
		}
		return rows.Err()

	case "rounds":
		query := `SELECT scene_id,tick,player,team,spent,placed,ai_plan_moved,budget_after FROM build_rounds ORDER BY tick DESC, player LIMIT ?`
		qargs := []any{limit}
		if player >= 0 {
			query = `SELECT scene_id,tick,player,team,spent,placed,ai_plan_moved,budget_after FROM build_rounds WHERE player=? ORDER BY tick DESC LIMIT ?`
			qargs = []any{player, limit}
		}
		rows, err := db.Query(query, qargs...)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				SceneID     string  `json:"scene_id"`
				Tick        int64   `json:"tick"`
				Player      int     `json:"player"`
				Team        int     `json:"team"`
				Spent       float64 `json:"spent"`
				Placed      int     `json:"placed"`
				AIPlanMoved int     `json:"ai_plan_moved"`
				Budget      float64 `json:"budget_after"`
			}
			if err := rows.Scan(&r.SceneID, &r.Tick, &r.Player, &r.Team, &r.Spent, &r.Placed, &r.AIPlanMoved, &r.Budget); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(r)
		}
		return rows.Err()

	case "recomputes":
		rows, err := db.Query(`SELECT scene_id,tick,kind,changed,backlog FROM recomputes ORDER BY tick DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				SceneID string `json:"scene_id"`
				Tick    int64  `json:"tick"`
				Kind    string `json:"kind"`
				Changed int    `json:"changed"`
				Backlog int    `json:"backlog"`
			}
			if err := rows.Scan(&r.SceneID, &r.Tick, &r.Kind, &r.Changed, &r.Backlog); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(r)
		}
		return rows.Err()

	case "ticks":
		rows, err := db.Query(`SELECT scene_id,tick,unix_ms,build_round,cells_cleaned,full_recompute,partial_recompute FROM ticks ORDER BY tick DESC LIMIT ?`, limit)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				SceneID          string `json:"scene_id"`
				Tick             int64  `json:"tick"`
				UnixMS           int64  `json:"unix_ms"`
				BuildRound       bool   `json:"build_round"`
				CellsCleaned     int    `json:"cells_cleaned"`
				FullRecompute    bool   `json:"full_recompute"`
				PartialRecompute bool   `json:"partial_recompute"`
			}
			if err := rows.Scan(&r.SceneID, &r.Tick, &r.UnixMS, &r.BuildRound, &r.CellsCleaned, &r.FullRecompute, &r.PartialRecompute); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(r)
		}
		return rows.Err()

	case "catalogs":
		rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Name      string `json:"name"`
				Digest    string `json:"digest"`
				UpdatedAt string `json:"updated_at"`
			}
			if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			printJSON(r)
		}
		return rows.Err()
	}
	return fmt.Errorf("unknown query: %s", q)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
