package track

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/seagrayinc/overdrive/pkg/track"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
