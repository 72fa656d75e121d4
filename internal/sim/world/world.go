// Package world runs one scene on a fixed-rate tick loop and feeds its
// step reports to the logs, the index and observers.
package world

import (
	"errors"
	"sync/atomic"

	"github.com/rs/zerolog"

	scenelog "scenecraft.ai/internal/persistence/log"
	"scenecraft.ai/internal/persistence/snapshot"
	"scenecraft.ai/internal/sim/scene"
	"scenecraft.ai/internal/sim/tuning"
)

type Config struct {
	TickRateHz           int
	BuildRoundEveryTicks int
	SnapshotEveryTicks   int
	// TickLogEvery writes one tick entry per TickLogEvery ticks. Build
	// rounds and recomputes are always written.
	TickLogEvery int
}

// ConfigFromTuning copies the loop settings out of t.
func ConfigFromTuning(t tuning.Tuning, tickLogEvery int) Config {
	return Config{
		TickRateHz:           t.TickRateHz,
		BuildRoundEveryTicks: t.BuildRoundEveryTicks,
		SnapshotEveryTicks:   t.SnapshotEveryTicks,
		TickLogEvery:         tickLogEvery,
	}
}

type TickLogger interface {
	WriteTick(scenelog.TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(scenelog.AuditEntry) error
}

type RecomputeRecorder interface {
	RecordRecompute(sceneID string, tick uint64, full bool, changed, backlog int)
}

// TickObserver is called on the loop goroutine after every step, so it
// may read the scene.
type TickObserver func(s *scene.Scene, rep scene.StepReport)

type World struct {
	cfg   Config
	scene *scene.Scene
	units *Units
	log   zerolog.Logger

	tickLogger   TickLogger
	auditLogger  AuditLogger
	recomputes   RecomputeRecorder
	observer     TickObserver
	snapshotSink chan<- snapshot.SceneV1

	admin chan snapshotReq
	stop  chan struct{}

	tick    atomic.Uint64
	metrics atomic.Value
}

func New(cfg Config, s *scene.Scene, units *Units, log zerolog.Logger) (*World, error) {
	if s == nil {
		return nil, errors.New("world: nil scene")
	}
	if !s.Loaded() {
		return nil, errors.New("world: scene not loaded")
	}
	if cfg.TickRateHz <= 0 {
		return nil, errors.New("world: tick rate must be positive")
	}
	if cfg.TickLogEvery < 1 {
		cfg.TickLogEvery = 1
	}
	if units == nil {
		units = NewUnits()
	}
	w := &World{
		cfg:   cfg,
		scene: s,
		units: units,
		log:   log.With().Str("component", "world").Logger(),
		admin: make(chan snapshotReq, 16),
		stop:  make(chan struct{}),
	}
	w.tick.Store(s.Tick())
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)               { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)             { w.auditLogger = l }
func (w *World) SetRecomputeRecorder(r RecomputeRecorder) { w.recomputes = r }
func (w *World) SetTickObserver(f TickObserver)           { w.observer = f }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SceneV1) {
	w.snapshotSink = ch
}

// Scene returns the driven scene. Only touch it from a TickObserver or
// after Run has returned.
func (w *World) Scene() *scene.Scene { return w.scene }
func (w *World) Units() *Units       { return w.units }
func (w *World) Config() Config      { return w.cfg }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// Stop ends Run without cancelling its context.
func (w *World) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
}
