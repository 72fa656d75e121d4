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
	"scenecraft.ai/internal/persistence/snapshot"
)

type summary struct {
	Version         int     `json:"version"`
	SceneID         string  `json:"scene_id"`
	Session         string  `json:"session"`
	Tick            uint64  `json:"tick"`
	Name            string  `json:"name,omitempty"`
	Seed            uint64  `json:"seed"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	ActivePlayers   int     `json:"active_players"`
	Areas           int     `json:"areas"`
	Visibility      int     `json:"visibility_layers"`
	OnLoad          int     `json:"on_load"`
	Blueprint       int     `json:"blueprint"`
	AIPlan          int     `json:"ai_plan"`
	Deployments     int     `json:"deployments"`
	TotalInvestment float64 `json:"total_investment"`
	Digest          string  `json:"digest"`
}

func main() {
	var (
		snapPath = flag.String("snapshot", "", "path to .snap.zst")
		ticksDir = flag.String("ticks", "", "dir containing ticks-*.jsonl.zst; verifies the snapshot digest against the tick log (optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	sum := summarize(snap)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(sum)

	if *ticksDir == "" {
		return
	}
	files, err := listTickFiles(*ticksDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	want, found, err := findDigest(files, snap.Header.Tick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "scan ticks:", err)
		os.Exit(1)
	}
	if !found {
		fmt.Fprintf(os.Stderr, "no digest logged for tick %d\n", snap.Header.Tick)
		os.Exit(1)
	}
	if want != sum.Digest {
		fmt.Fprintf(os.Stderr, "digest mismatch at tick %d: snapshot=%s log=%s\n", snap.Header.Tick, sum.Digest, want)
		os.Exit(1)
	}
	fmt.Printf("digest ok: tick=%d\n", snap.Header.Tick)
}

func summarize(snap snapshot.SceneV1) summary {
	s := summary{
		Version:         snap.Header.Version,
		SceneID:         snap.Header.SceneID,
		Session:         snap.Header.Session,
		Tick:            snap.Header.Tick,
		Name:            snap.Name,
		Seed:            snap.Seed,
		Width:           snap.Terrain.Width,
		Height:          snap.Terrain.Height,
		Areas:           len(snap.Areas),
		Visibility:      len(snap.Visibility),
		OnLoad:          len(snap.OnLoad),
		Blueprint:       len(snap.Blueprint),
		AIPlan:          len(snap.AIPlan),
		Deployments:     len(snap.Deployments),
		TotalInvestment: snap.TotalInvestment,
		Digest:          snapshot.Digest(snap),
	}
	for _, p := range snap.Players {
		if p.Active {
			s.ActivePlayers++
		}
	}
	return s
}

func listTickFiles(dir string) ([]string, error) {
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
		if strings.HasPrefix(name, "ticks-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// findDigest returns the digest logged at tick. Only snapshot ticks carry
// one.
func findDigest(files []string, tick uint64) (string, bool, error) {
	for _, path := range files {
		d, ok, err := scanFile(path, tick)
		if err != nil || ok {
			return d, ok, err
		}
	}
	return "", false, nil
}

func scanFile(path string, tick uint64) (string, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return "", false, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	for sc.Scan() {
		var entry scenelog.TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return "", false, fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if entry.Tick == tick && entry.Digest != "" {
			return entry.Digest, true, nil
		}
	}
	return "", false, sc.Err()
}
