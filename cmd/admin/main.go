package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	scenelog "scenecraft.ai/internal/persistence/log"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "audit":
			auditCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "snapshot":
			snapshotCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	sceneID := fs.String("scene", "", "scene id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "scenes")
	if *sceneID != "" {
		base = filepath.Join(base, *sceneID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

// playerTotals folds a player's build rounds between two ticks.
type playerTotals struct {
	Player      int     `json:"player"`
	Team        int     `json:"team"`
	Rounds      int     `json:"rounds"`
	Spent       float64 `json:"spent"`
	Placed      int     `json:"placed"`
	AIPlanMoved int     `json:"ai_plan_moved"`
	FirstTick   uint64  `json:"first_tick"`
	LastTick    uint64  `json:"last_tick"`
	Budget      float64 `json:"budget_after"`
}

func auditCmd(args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	sceneID := fs.String("scene", "", "scene id")
	sinceTick := fs.Uint64("since_tick", 0, "first tick (inclusive)")
	toTick := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	player := fs.Int("player", -1, "player filter (optional)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*sceneID) == "" {
		fmt.Fprintln(os.Stderr, "missing -scene")
		os.Exit(2)
	}
	entries, err := readAudit(filepath.Join(*dataDir, "scenes", *sceneID), *sinceTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read audit:", err)
		os.Exit(1)
	}
	for _, t := range foldAudit(entries, *player) {
		printJSON(t)
	}
}

func readAudit(sceneDir string, sinceTick, toTick uint64) ([]scenelog.AuditEntry, error) {
	dir := filepath.Join(sceneDir, "audit")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]scenelog.AuditEntry, 0, 1024)
	for _, name := range names {
		recs, err := readAuditFile(filepath.Join(dir, name), sinceTick, toTick)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

func readAuditFile(path string, sinceTick, toTick uint64) ([]scenelog.AuditEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []scenelog.AuditEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var e scenelog.AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if e.Tick < sinceTick || (toTick != 0 && e.Tick > toTick) {
			continue
		}
		out = append(out, e)
	}
	return out, sc.Err()
}

func foldAudit(entries []scenelog.AuditEntry, player int) []playerTotals {
	by := map[int]*playerTotals{}
	for _, e := range entries {
		if player >= 0 && e.Player != player {
			continue
		}
		t := by[e.Player]
		if t == nil {
			t = &playerTotals{Player: e.Player, Team: e.Team, FirstTick: e.Tick}
			by[e.Player] = t
		}
		t.Rounds++
		t.Spent += e.Spent
		t.Placed += e.Placed
		t.AIPlanMoved += e.AIPlanMoved
		if e.Tick < t.FirstTick {
			t.FirstTick = e.Tick
		}
		if e.Tick >= t.LastTick {
			t.LastTick = e.Tick
			t.Budget = e.Budget
		}
	}
	out := make([]playerTotals, 0, len(by))
	for _, t := range by {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Player < out[j].Player })
	return out
}
