package scene

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "scenecraft.ai/internal/sim/scene"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
