package scene

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// sceneMetrics is written from the tick goroutine only. The backlog gauge
// is read by the exporter, so it goes through an atomic.
type sceneMetrics struct {
	scene attribute.KeyValue
	attrs metric.MeasurementOption

	fullRecomputes    metric.Int64Counter
	partialRecomputes metric.Int64Counter
	changedNodes      metric.Int64Counter
	pathQueries       metric.Int64Counter
	cellsCleanedTotal metric.Int64Counter
	itemsPlaced       metric.Int64Counter
	fundsSpent        metric.Float64Counter
	pathBacklog       metric.Int64ObservableGauge
	backlogReg        metric.Registration

	backlog atomic.Int64
}

func newSceneMetrics(s *Scene, m metric.Meter) (*sceneMetrics, error) {
	if m == nil {
		m = meter()
	}
	sm := &sceneMetrics{scene: attribute.String("scene", s.cfg.ID)}
	sm.attrs = metric.WithAttributes(sm.scene)

	var err error
	sm.fullRecomputes, err = m.Int64Counter(
		"scene.pathing.full_recomputes",
		metric.WithDescription("Full cost graph recomputes"),
	)
	if err != nil {
		return nil, fmt.Errorf("create full recompute counter: %w", err)
	}
	sm.partialRecomputes, err = m.Int64Counter(
		"scene.pathing.partial_recomputes",
		metric.WithDescription("Partial cost graph recomputes"),
	)
	if err != nil {
		return nil, fmt.Errorf("create partial recompute counter: %w", err)
	}
	sm.changedNodes, err = m.Int64Counter(
		"scene.pathing.changed_nodes",
		metric.WithDescription("Graph nodes whose edges changed in a partial recompute"),
	)
	if err != nil {
		return nil, fmt.Errorf("create changed nodes counter: %w", err)
	}
	sm.pathQueries, err = m.Int64Counter(
		"scene.pathing.queries",
		metric.WithDescription("Path queries answered"),
	)
	if err != nil {
		return nil, fmt.Errorf("create path query counter: %w", err)
	}
	sm.cellsCleanedTotal, err = m.Int64Counter(
		"scene.visibility.cells_cleaned",
		metric.WithDescription("Unseen cells revealed by orphan erosion"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cells cleaned counter: %w", err)
	}
	sm.itemsPlaced, err = m.Int64Counter(
		"scene.economy.items_placed",
		metric.WithDescription("Blueprint items funded"),
	)
	if err != nil {
		return nil, fmt.Errorf("create items placed counter: %w", err)
	}
	sm.fundsSpent, err = m.Float64Counter(
		"scene.economy.funds_spent",
		metric.WithDescription("Build budget spent on blueprint items"),
	)
	if err != nil {
		return nil, fmt.Errorf("create funds spent counter: %w", err)
	}
	sm.pathBacklog, err = m.Int64ObservableGauge(
		"scene.pathing.backlog",
		metric.WithDescription("Dirty terrain regions waiting for a partial recompute"),
	)
	if err != nil {
		return nil, fmt.Errorf("create backlog gauge: %w", err)
	}
	sm.backlogReg, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			o.ObserveInt64(sm.pathBacklog, sm.backlog.Load(), sm.attrs)
			return nil
		},
		sm.pathBacklog,
	)
	if err != nil {
		return nil, fmt.Errorf("register backlog callback: %w", err)
	}
	return sm, nil
}

func (m *sceneMetrics) close() error {
	if m == nil || m.backlogReg == nil {
		return nil
	}
	err := m.backlogReg.Unregister()
	m.backlogReg = nil
	if err != nil {
		return fmt.Errorf("unregister backlog callback: %w", err)
	}
	return nil
}

func (m *sceneMetrics) fullRecompute() {
	m.fullRecomputes.Add(context.Background(), 1, m.attrs)
	m.backlog.Store(0)
}

func (m *sceneMetrics) partialRecompute(changed, backlog int) {
	ctx := context.Background()
	m.partialRecomputes.Add(ctx, 1, m.attrs)
	if changed > 0 {
		m.changedNodes.Add(ctx, int64(changed), m.attrs)
	}
	m.backlog.Store(int64(backlog))
}

func (m *sceneMetrics) pathQuery() {
	m.pathQueries.Add(context.Background(), 1, m.attrs)
}

func (m *sceneMetrics) cellsCleaned(team, n int) {
	if n == 0 {
		return
	}
	m.cellsCleanedTotal.Add(context.Background(), int64(n),
		metric.WithAttributes(m.scene, attribute.Int("team", team)))
}

func (m *sceneMetrics) buildRound(player int, spent float64, placed int) {
	ctx := context.Background()
	p := metric.WithAttributes(m.scene, attribute.Int("player", player))
	if placed > 0 {
		m.itemsPlaced.Add(ctx, int64(placed), p)
	}
	if spent > 0 {
		m.fundsSpent.Add(ctx, spent, p)
	}
}
