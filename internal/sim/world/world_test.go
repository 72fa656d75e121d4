package world

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	scenelog "scenecraft.ai/internal/persistence/log"
	"scenecraft.ai/internal/persistence/snapshot"
	"scenecraft.ai/internal/sim/scene"
	"scenecraft.ai/internal/sim/scene/geom"
	"scenecraft.ai/internal/sim/scene/roster"
	"scenecraft.ai/internal/sim/scene/scenetest"
	"scenecraft.ai/internal/sim/scene/terrain"
)

type recorder struct {
	ticks      []scenelog.TickLogEntry
	audits     []scenelog.AuditEntry
	recomputes int
}

func (r *recorder) WriteTick(e scenelog.TickLogEntry) error {
	r.ticks = append(r.ticks, e)
	return nil
}

func (r *recorder) WriteAudit(e scenelog.AuditEntry) error {
	r.audits = append(r.audits, e)
	return nil
}

func (r *recorder) RecordRecompute(string, uint64, bool, int, int) { r.recomputes++ }

func loadedScene(t *testing.T) *scenetest.Harness {
	t.Helper()
	h := scenetest.NewHarness(t, scene.Config{ID: "S1", UnseenCellSize: [roster.MaxTeams]int{10}}, terrain.Spec{Width: 100, Height: 100})
	h.S.SetupPlayer(0, scene.PlayerSetup{Team: 0, Budget: 100})
	h.S.SetupPlayer(1, scene.PlayerSetup{Team: 1, Budget: 100})
	h.Load(scene.LoadOptions{})
	h.S.AddPlaced(scene.PlacedBlueprint, h.Object("Grenade", 10, 10, 0, 0), -1)
	return h
}

func TestStepOnceFansOut(t *testing.T) {
	h := loadedScene(t)
	w, err := New(Config{TickRateHz: 20, BuildRoundEveryTicks: 2, SnapshotEveryTicks: 3, TickLogEvery: 100}, h.S, NewUnits(), zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rec := &recorder{}
	sink := make(chan snapshot.SceneV1, 4)
	var observed []uint64
	w.SetTickLogger(rec)
	w.SetAuditLogger(rec)
	w.SetRecomputeRecorder(rec)
	w.SetSnapshotSink(sink)
	w.SetTickObserver(func(s *scene.Scene, rep scene.StepReport) { observed = append(observed, rep.Tick) })

	for i := 0; i < 3; i++ {
		w.StepOnce(50 * time.Millisecond)
	}

	if len(observed) != 3 || observed[2] != 3 {
		t.Fatalf("observed=%v", observed)
	}
	if len(rec.ticks) != 2 || rec.ticks[0].Tick != 2 || rec.ticks[1].Tick != 3 {
		t.Fatalf("tick log entries=%+v", rec.ticks)
	}
	if !rec.ticks[0].Report.BuildRound || rec.ticks[0].Digest != "" {
		t.Fatalf("build round entry=%+v", rec.ticks[0])
	}
	if rec.ticks[1].Digest == "" {
		t.Fatalf("snapshot tick should carry a digest")
	}
	if len(rec.audits) != 2 {
		t.Fatalf("audits=%+v", rec.audits)
	}
	a := rec.audits[0]
	if a.Player != 0 || a.Spent != 10 || a.Placed != 1 || a.Budget != 90 {
		t.Fatalf("player 0 audit=%+v", a)
	}
	if rec.recomputes != 0 {
		t.Fatalf("no pathfinding, got %d recomputes", rec.recomputes)
	}
	select {
	case snap := <-sink:
		if snap.Header.Tick != 3 || snap.Header.SceneID != "S1" {
			t.Fatalf("snapshot header=%+v", snap.Header)
		}
	default:
		t.Fatalf("expected a snapshot at tick 3")
	}

	m := w.Metrics()
	if m.Tick != 3 || len(m.Players) != 2 || m.Players[0].Budget != 90 {
		t.Fatalf("metrics=%+v", m)
	}
	if w.CurrentTick() != 3 {
		t.Fatalf("tick=%d", w.CurrentTick())
	}
}

func TestNewRejectsUnloadedScene(t *testing.T) {
	h := scenetest.NewHarness(t, scene.Config{ID: "S1"}, terrain.Spec{Width: 100, Height: 100})
	if _, err := New(Config{TickRateHz: 20}, h.S, nil, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unloaded scene")
	}
	h.Load(scene.LoadOptions{})
	if _, err := New(Config{}, h.S, nil, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for zero tick rate")
	}
}

func TestRunServesSnapshotRequests(t *testing.T) {
	h := loadedScene(t)
	w, err := New(Config{TickRateHz: 200}, h.S, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sink := make(chan snapshot.SceneV1, 1)
	w.SetSnapshotSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	reqCtx, reqCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer reqCancel()
	tick, err := w.RequestSnapshot(reqCtx)
	if err != nil {
		t.Fatalf("RequestSnapshot: %v", err)
	}
	if tick == 0 {
		t.Fatalf("snapshot taken before any tick")
	}
	cancel()
	if err := <-done; err != context.Canceled {
		t.Fatalf("Run returned %v", err)
	}
	snap := <-sink
	if snap.Header.Tick != tick {
		t.Fatalf("snapshot tick=%d want %d", snap.Header.Tick, tick)
	}
}

func TestUnitsTakeBrain(t *testing.T) {
	h := scenetest.NewHarness(t, scene.Config{ID: "S1"}, terrain.Spec{Width: 100, Height: 100})
	u := NewUnits()
	u.AddActor(h.Object("Soldier", 1, 1, 0, 0))
	u.AddActor(h.Object("Brain Unit", 2, 2, 1, 1))
	u.AddActor(h.Object("Brain Unit", 3, 3, 0, 0))
	u.AddItem(h.Object("Grenade", 4, 4, 0, 0))
	u.AddParticle(h.Object("Smoke", 5, 5, 0, 0))

	if c := u.Counts(); c != (UnitCounts{Actors: 3, Brains: 2, Items: 1, Particles: 1}) {
		t.Fatalf("counts=%+v", c)
	}
	b, ok := u.TakeBrain(0)
	if !ok || b.Pos != (geom.Vec{X: 3, Y: 3}) {
		t.Fatalf("TakeBrain(0)=%v,%v", b, ok)
	}
	if _, ok := u.TakeBrain(0); ok {
		t.Fatalf("team 0 has no brain left")
	}
	if c := u.Counts(); c.Actors != 2 || c.Brains != 1 {
		t.Fatalf("counts after take=%+v", c)
	}
}
