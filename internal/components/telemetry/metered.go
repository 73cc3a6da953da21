package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("packwatch")
var countGauge, _ = meter.Int64Gauge(
	"packwatch.count",
	metric.WithDescription("point-in-time counts reported through telemetry.API"),
)

// MeteredAPI forwards everything to an inner API and additionally records
// ReportCount values on an OpenTelemetry gauge keyed by the report id.
type MeteredAPI struct {
	API
}

func NewMeteredAPI(inner API) MeteredAPI {
	return MeteredAPI{API: inner}
}

func (m MeteredAPI) ReportCount(id string, count int64) {
	countGauge.Record(
		context.Background(),
		count,
		metric.WithAttributes(attribute.String("id", id)),
	)
	m.API.ReportCount(id, count)
}
