// Package telemetry provides Sentry-based tracing utilities.
package telemetry

import (
	"context"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
)

const serviceName = "corpusd"

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init initializes Sentry with tracing enabled.
// Returns a shutdown function to flush pending events.
// If DSN is empty, returns a no-op shutdown function.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			// Health checks generate no useful traces
			if ctx.Span.Name == "GET /health" || ctx.Span.Op == "http.server GET /health" {
				return 0.0
			}
			var emptySpanID sentry.SpanID
			if ctx.Span.ParentSpanID != emptySpanID {
				if ctx.Span.Sampled.Bool() {
					return 1.0
				}
				return 0.0
			}
			return cfg.TracesSampleRate
		}),
	})
	if err != nil {
		log.Printf("sentry: failed to initialize (continuing without tracing): %v", err)
		return func() {}, nil
	}

	shutdown := func() {
		sentry.Flush(5 * time.Second)
	}

	log.Printf("sentry: tracing initialized (environment: %s, sample_rate: %.2f)", cfg.Environment, cfg.TracesSampleRate)
	return shutdown, nil
}

// CaptureError captures an error to Sentry with the current context.
func CaptureError(ctx context.Context, err error) {
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
	} else {
		sentry.CaptureException(err)
	}
}
