package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"scenecraft.ai/internal/persistence/indexdb"
	persistlog "scenecraft.ai/internal/persistence/log"
	"scenecraft.ai/internal/persistence/snapshot"
	"scenecraft.ai/internal/sim/world"
	"scenecraft.ai/internal/transport/observer"
)

func newMux(w *world.World, hub *observer.Hub, idx *indexdb.SQLiteIndex) *http.ServeMux {
	sceneID := w.Scene().ID()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, sceneID, w.Metrics(), hub, idx)
	})

	// Local-only admin endpoints.
	mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		resp := struct {
			SceneID string        `json:"scene_id"`
			Tick    uint64        `json:"tick"`
			Metrics world.Metrics `json:"metrics"`
		}{
			SceneID: sceneID,
			Tick:    w.CurrentTick(),
			Metrics: w.Metrics(),
		}
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !observer.IsLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		tick, err := w.RequestSnapshot(ctx)
		rw.Header().Set("Content-Type", "application/json")
		if err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "tick": tick})
	})

	if hub != nil {
		obs := observer.NewServer(hub)
		mux.HandleFunc("/observer/bootstrap", obs.BootstrapHandler())
		mux.HandleFunc("/observer/ws", obs.WSHandler())
	}
	return mux
}

// writeMetrics renders the minimal Prometheus exposition format.
func writeMetrics(rw http.ResponseWriter, sceneID string, m world.Metrics, hub *observer.Hub, idx *indexdb.SQLiteIndex) {
	fmt.Fprintf(rw, "# HELP scenecraft_scene_tick Current scene tick.\n")
	fmt.Fprintf(rw, "# TYPE scenecraft_scene_tick gauge\n")
	fmt.Fprintf(rw, "scenecraft_scene_tick{scene=%q} %d\n", sceneID, m.Tick)

	fmt.Fprintf(rw, "# HELP scenecraft_scene_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE scenecraft_scene_step_ms gauge\n")
	fmt.Fprintf(rw, "scenecraft_scene_step_ms{scene=%q} %.3f\n", sceneID, m.StepMS)

	fmt.Fprintf(rw, "# HELP scenecraft_path_backlog Dirty regions waiting for a partial recompute.\n")
	fmt.Fprintf(rw, "# TYPE scenecraft_path_backlog gauge\n")
	fmt.Fprintf(rw, "scenecraft_path_backlog{scene=%q} %d\n", sceneID, m.PathBacklog)

	fmt.Fprintf(rw, "# HELP scenecraft_total_investment Funds spent on placements so far.\n")
	fmt.Fprintf(rw, "# TYPE scenecraft_total_investment gauge\n")
	fmt.Fprintf(rw, "scenecraft_total_investment{scene=%q} %.3f\n", sceneID, m.TotalInvestment)

	fmt.Fprintf(rw, "# HELP scenecraft_units Objects handed off to the world.\n")
	fmt.Fprintf(rw, "# TYPE scenecraft_units gauge\n")
	fmt.Fprintf(rw, "scenecraft_units{scene=%q,kind=%q} %d\n", sceneID, "actor", m.Units.Actors)
	fmt.Fprintf(rw, "scenecraft_units{scene=%q,kind=%q} %d\n", sceneID, "brain", m.Units.Brains)
	fmt.Fprintf(rw, "scenecraft_units{scene=%q,kind=%q} %d\n", sceneID, "item", m.Units.Items)
	fmt.Fprintf(rw, "scenecraft_units{scene=%q,kind=%q} %d\n", sceneID, "particle", m.Units.Particles)

	fmt.Fprintf(rw, "# HELP scenecraft_player_budget Player build budget.\n")
	fmt.Fprintf(rw, "# TYPE scenecraft_player_budget gauge\n")
	for _, p := range m.Players {
		fmt.Fprintf(rw, "scenecraft_player_budget{scene=%q,player=\"%d\",team=\"%d\"} %.3f\n", sceneID, p.Player, p.Team, p.Budget)
	}

	if hub != nil {
		fmt.Fprintf(rw, "# HELP scenecraft_observer_sessions Connected observer sessions.\n")
		fmt.Fprintf(rw, "# TYPE scenecraft_observer_sessions gauge\n")
		fmt.Fprintf(rw, "scenecraft_observer_sessions %d\n", hub.Sessions())
		fmt.Fprintf(rw, "# HELP scenecraft_observer_dropped_total Tick messages dropped on full session queues.\n")
		fmt.Fprintf(rw, "# TYPE scenecraft_observer_dropped_total counter\n")
		fmt.Fprintf(rw, "scenecraft_observer_dropped_total %d\n", hub.Dropped())
	}
	if idx != nil {
		st := idx.Stats()
		fmt.Fprintf(rw, "# HELP scenecraft_index_dropped_total Index writes dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE scenecraft_index_dropped_total counter\n")
		fmt.Fprintf(rw, "scenecraft_index_dropped_total{kind=%q} %d\n", "tick", st.DropTickTotal)
		fmt.Fprintf(rw, "scenecraft_index_dropped_total{kind=%q} %d\n", "build_round", st.DropRoundTotal)
		fmt.Fprintf(rw, "scenecraft_index_dropped_total{kind=%q} %d\n", "recompute", st.DropRecomputeTotal)
		fmt.Fprintf(rw, "scenecraft_index_dropped_total{kind=%q} %d\n", "snapshot", st.DropSnapshotTotal)
	}
}

type snapshotWriter struct {
	dir string
	idx *indexdb.SQLiteIndex
	log zerolog.Logger
}

func newSnapshotWriter(sceneDir string, idx *indexdb.SQLiteIndex, log zerolog.Logger) *snapshotWriter {
	return &snapshotWriter{dir: filepath.Join(sceneDir, "snapshots"), idx: idx, log: log}
}

func (sw *snapshotWriter) write(snap snapshot.SceneV1) {
	path := filepath.Join(sw.dir, fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		sw.log.Error().Err(err).Uint64("tick", snap.Header.Tick).Msg("snapshot write")
		return
	}
	sw.idx.RecordSnapshot(path, snap)
	sw.log.Debug().Str("path", path).Msg("snapshot written")
}

func latestSnapshot(sceneDir string) string {
	dir := filepath.Join(sceneDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

type multiTickLogger struct {
	a world.TickLogger
	b *indexdb.SQLiteIndex
}

func (m multiTickLogger) WriteTick(entry persistlog.TickLogEntry) error {
	var err error
	if m.a != nil {
		err = m.a.WriteTick(entry)
	}
	_ = m.b.WriteTick(entry)
	return err
}

type multiAuditLogger struct {
	a world.AuditLogger
	b *indexdb.SQLiteIndex
}

func (m multiAuditLogger) WriteAudit(entry persistlog.AuditEntry) error {
	var err error
	if m.a != nil {
		err = m.a.WriteAudit(entry)
	}
	m.b.RecordBuildRound(entry)
	return err
}
