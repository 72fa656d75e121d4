package scene_test

import (
	"testing"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/embedded"
	"go.opentelemetry.io/otel/metric/noop"

	"scenecraft.ai/internal/sim/scene"
	"scenecraft.ai/internal/sim/scene/scenetest"
	"scenecraft.ai/internal/sim/scene/terrain"
)

type callbackMeter struct {
	noop.Meter
	registered   int
	unregistered int
}

func (m *callbackMeter) RegisterCallback(metric.Callback, ...metric.Observable) (metric.Registration, error) {
	m.registered++
	return &callbackReg{m: m}, nil
}

type callbackReg struct {
	embedded.Registration
	m *callbackMeter
}

func (r *callbackReg) Unregister() error {
	r.m.unregistered++
	return nil
}

func TestCloseUnregistersMetricCallback(t *testing.T) {
	cats := scenetest.Catalogs(t)
	m := &callbackMeter{}
	s, err := scene.New(testConfig(), scene.Deps{
		Terrain:   terrain.New(testSpec(), &cats.Materials),
		World:     &scenetest.World{},
		Random:    scenetest.NewRandom(1),
		Templates: cats,
		Log:       zerolog.Nop(),
		Meter:     m,
	})
	if err != nil {
		t.Fatalf("scene.New: %v", err)
	}
	if m.registered != 1 || m.unregistered != 0 {
		t.Fatalf("registered=%d unregistered=%d", m.registered, m.unregistered)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if m.unregistered != 1 {
		t.Fatalf("unregistered=%d, want 1", m.unregistered)
	}
}
