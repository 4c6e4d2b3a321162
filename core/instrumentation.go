package orchestration

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/koscakluka/ema-rehearse/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	userTurnCounter, _         = meter.Int64Counter("ema_rehearse.user_turns", metric.WithDescription("Finished user turns handed to the response generator"))
	generatorFailureCounter, _ = meter.Int64Counter("ema_rehearse.generator_failures", metric.WithDescription("Failed or empty generator replies"))
	staleCompletionCounter, _  = meter.Int64Counter("ema_rehearse.stale_completions", metric.WithDescription("Completions discarded because the session moved on"))
)
