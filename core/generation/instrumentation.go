package generation

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/jiroshimaya/fastvoicechat/core/generation"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)

	latencyHistogram, _ = meter.Float64Histogram("generation.latency",
		metric.WithDescription("Time from submission to the delivered result"),
		metric.WithUnit("s"),
	)
)
