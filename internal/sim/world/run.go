package world

import (
	"context"
	"errors"
	"time"

	scenelog "scenecraft.ai/internal/persistence/log"
	"scenecraft.ai/internal/sim/scene"
)

type snapshotReq struct {
	Resp chan snapshotResp
}

type snapshotResp struct {
	Tick uint64
	Err  string
}

// Metrics is published once per tick for readers off the loop goroutine.
type Metrics struct {
	Tick            uint64          `json:"tick"`
	StepMS          float64         `json:"step_ms"`
	PathBacklog     int             `json:"path_backlog"`
	TotalInvestment float64         `json:"total_investment"`
	Units           UnitCounts      `json:"units"`
	Players         []PlayerMetrics `json:"players"`
}

type PlayerMetrics struct {
	Player int     `json:"player"`
	Team   int     `json:"team"`
	Budget float64 `json:"budget"`
	Ratio  float64 `json:"ratio"`
}

func (w *World) Metrics() Metrics {
	if w == nil {
		return Metrics{}
	}
	m, ok := w.metrics.Load().(Metrics)
	if !ok {
		return Metrics{}
	}
	return m
}

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingAdmin []snapshotReq
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case <-ticker.C:
			w.StepOnce(interval)
			w.handleSnapshotRequests(pendingAdmin)
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

// StepOnce advances the scene by one tick of simDelta and fans the
// report out. Run calls it; tests may call it directly instead of Run.
func (w *World) StepOnce(simDelta time.Duration) scene.StepReport {
	s := w.scene
	next := s.Tick() + 1
	buildRound := w.cfg.BuildRoundEveryTicks > 0 && next%uint64(w.cfg.BuildRoundEveryTicks) == 0

	start := time.Now()
	rep := s.Step(scene.StepInput{SimDelta: simDelta, BuildRound: buildRound})
	stepMS := float64(time.Since(start).Microseconds()) / 1000
	w.tick.Store(rep.Tick)

	snapDue := w.cfg.SnapshotEveryTicks > 0 && rep.Tick%uint64(w.cfg.SnapshotEveryTicks) == 0
	if snapDue {
		w.emitSnapshot()
	}

	if w.tickLogger != nil && (rep.BuildRound || rep.FullRecompute || rep.PartialRecompute || snapDue || rep.Tick%uint64(w.cfg.TickLogEvery) == 0) {
		e := scenelog.TickLogEntry{
			SceneID: s.ID(),
			Tick:    rep.Tick,
			UnixMS:  time.Now().UnixMilli(),
			Report:  rep,
		}
		if snapDue {
			e.Digest = s.Digest()
		}
		if err := w.tickLogger.WriteTick(e); err != nil {
			w.log.Warn().Err(err).Uint64("tick", rep.Tick).Msg("tick log write")
		}
	}
	if rep.BuildRound && w.auditLogger != nil {
		for p := range rep.Spent {
			if !s.PlayerActive(p) {
				continue
			}
			e := scenelog.AuditEntry{
				SceneID:     s.ID(),
				Tick:        rep.Tick,
				Player:      p,
				Team:        s.TeamOfPlayer(p),
				Spent:       rep.Spent[p],
				Placed:      rep.Placed[p],
				AIPlanMoved: rep.AIPlanMoved[p],
				Budget:      s.BuildBudget(p),
			}
			if err := w.auditLogger.WriteAudit(e); err != nil {
				w.log.Warn().Err(err).Int("player", p).Msg("audit write")
			}
		}
	}
	if w.recomputes != nil {
		if rep.FullRecompute {
			w.recomputes.RecordRecompute(s.ID(), rep.Tick, true, 0, rep.PathBacklog)
		}
		if rep.PartialRecompute {
			w.recomputes.RecordRecompute(s.ID(), rep.Tick, false, rep.ChangedNodes, rep.PathBacklog)
		}
	}
	if w.observer != nil {
		w.observer(s, rep)
	}
	w.publishMetrics(rep, stepMS)
	return rep
}

func (w *World) publishMetrics(rep scene.StepReport, stepMS float64) {
	s := w.scene
	m := Metrics{
		Tick:            rep.Tick,
		StepMS:          stepMS,
		PathBacklog:     rep.PathBacklog,
		TotalInvestment: s.TotalInvestment(),
		Units:           w.units.Counts(),
	}
	for p := range rep.Spent {
		if !s.PlayerActive(p) {
			continue
		}
		m.Players = append(m.Players, PlayerMetrics{
			Player: p,
			Team:   s.TeamOfPlayer(p),
			Budget: s.BuildBudget(p),
			Ratio:  s.BuildBudgetRatio(p),
		})
	}
	w.metrics.Store(m)
}

func (w *World) emitSnapshot() bool {
	if w.snapshotSink == nil {
		return false
	}
	snap := w.scene.ExportSnapshot()
	select {
	case w.snapshotSink <- snap:
		return true
	default:
		w.log.Warn().Uint64("tick", snap.Header.Tick).Msg("snapshot sink full; skipped")
		return false
	}
}

// RequestSnapshot asks the loop to export a snapshot after its next tick.
func (w *World) RequestSnapshot(ctx context.Context) (tick uint64, err error) {
	if w == nil {
		return 0, errors.New("snapshot not available")
	}
	resp := make(chan snapshotResp, 1)
	select {
	case w.admin <- snapshotReq{Resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-resp:
		if r.Err != "" {
			return r.Tick, errors.New(r.Err)
		}
		return r.Tick, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (w *World) handleSnapshotRequests(reqs []snapshotReq) {
	if len(reqs) == 0 {
		return
	}
	r := snapshotResp{Tick: w.scene.Tick()}
	switch {
	case w.snapshotSink == nil:
		r.Err = "no snapshot sink"
	case !w.emitSnapshot():
		r.Err = "snapshot sink full"
	}
	for _, req := range reqs {
		select {
		case req.Resp <- r:
		default:
		}
	}
}
