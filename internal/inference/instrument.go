package inference

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/metalagman/entrybrain/internal/metrics"
)

var tracer = otel.Tracer("entrybrain.inference")

type instrumented struct {
	next     Completer
	provider string
	rec      *metrics.Recorder
}

// Instrument wraps c with a trace span, latency metrics and debug logging.
func Instrument(c Completer, provider string, rec *metrics.Recorder) Completer {
	return &instrumented{next: c, provider: provider, rec: rec}
}

func (i *instrumented) Complete(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	ctx, span := tracer.Start(ctx, "inference.Complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("inference.provider", i.provider),
		attribute.Int("inference.prompt_chars", len(prompt)),
		attribute.Int64("inference.timeout_ms", timeout.Milliseconds()),
	)

	start := time.Now()
	out, err := i.next.Complete(ctx, prompt, timeout)
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case err == nil:
	case IsUnavailable(err):
		outcome = "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		outcome = "timeout"
	default:
		outcome = "error"
	}
	i.rec.Inference(i.provider, outcome, elapsed)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Debug().Err(err).Str("provider", i.provider).Dur("elapsed", elapsed).Str("outcome", outcome).Msg("inference call failed")
		return "", err
	}
	span.SetAttributes(attribute.Int("inference.response_chars", len(out)))
	log.Debug().Str("provider", i.provider).Dur("elapsed", elapsed).Int("response_chars", len(out)).Msg("inference call completed")
	return out, nil
}
