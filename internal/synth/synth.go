// Package synth implements the randomized and deterministic synthesizers
// that drive a time-expanded network forward until a collective's
// postcondition is satisfied, each trading off solve time against schedule
// quality differently.
package synth

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsonW0/bean-tacos"
	"github.com/jsonW0/bean-tacos/internal/telemetry"
)

// Synthesizer produces a schedule for a fixed topology/collective pair. Solve
// runs until the postcondition is satisfied, the context is cancelled, or no
// further progress is possible (tacos.ErrDeadlock).
type Synthesizer interface {
	Solve(ctx context.Context) error
	CurrentTime() tacos.Time
	EventHistory() []tacos.Event
}

// tracerName is the otel instrumentation scope every synthesizer's spans are
// reported under.
const tracerName = "github.com/jsonW0/bean-tacos/internal/synth"

func tracer() trace.Tracer { return otel.Tracer(tracerName) }

// traceSolve wraps a solve function with a telemetry.Operation span named
// after algorithm, logging the outcome at the end via slog.
func traceSolve(ctx context.Context, algorithm string, solve func(context.Context) error) error {
	op, err := telemetry.EmitPlan(ctx, tracer(), algorithm, telemetry.SynthesisPlan(algorithm))
	if err != nil {
		slog.Warn("synth: failed to start telemetry span", "algorithm", algorithm, "error", err)
		return solve(ctx)
	}
	runErr := op.RunStep(op.Context(), "solve", solve)
	op.End(runErr)
	if runErr != nil {
		slog.Error("synth: solve failed", "algorithm", algorithm, "error", runErr)
	} else {
		slog.Debug("synth: solve finished", "algorithm", algorithm)
	}
	return runErr
}
