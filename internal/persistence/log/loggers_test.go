package log

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"scenecraft.ai/internal/sim/scene"
)

func readLines(t *testing.T, path string) []TickLogEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd: %v", err)
	}
	defer dec.Close()
	var out []TickLogEntry
	sc := bufio.NewScanner(dec)
	for sc.Scan() {
		var e TickLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line: %v", err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}
	return out
}

func TestTickLoggerRotatesHourly(t *testing.T) {
	dir := t.TempDir()
	l := NewTickLogger(dir)
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	l.w.now = func() time.Time { return clock }

	for tick := uint64(1); tick <= 3; tick++ {
		if tick == 3 {
			clock = clock.Add(2 * time.Minute)
		}
		e := TickLogEntry{SceneID: "S1", Tick: tick, Report: scene.StepReport{Tick: tick, ChangedNodes: int(tick)}}
		if err := l.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	first := readLines(t, l.w.Path("2026-03-01-10"))
	second := readLines(t, l.w.Path("2026-03-01-11"))
	if len(first) != 2 || len(second) != 1 {
		t.Fatalf("lines=%d/%d, want 2/1", len(first), len(second))
	}
	if second[0].Tick != 3 || second[0].Report.ChangedNodes != 3 {
		t.Fatalf("entry=%+v", second[0])
	}
}
