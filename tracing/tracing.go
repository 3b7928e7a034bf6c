// Package tracing wraps an operation in an OpenTelemetry span, a gocore stat and optionally
// a prometheus metric and a log line, all finished by one deferred call.
package tracing

import (
	"context"
	"fmt"
	"time"

	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/ulogger"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/marabu-network/marabu"

type Options func(s *TraceOptions)

type TraceOptions struct {
	ParentStat *gocore.Stat
	Histogram  prometheus.Histogram
	Counter    prometheus.Counter
	Logger     ulogger.Logger
	LogMessage string
	LogArgs    []interface{}
	Attributes []attribute.KeyValue
}

func WithParentStat(stat *gocore.Stat) Options {
	return func(s *TraceOptions) {
		s.ParentStat = stat
	}
}

// WithHistogram sets the prometheus histogram to be observed when the span is finished.
func WithHistogram(histogram prometheus.Histogram) Options {
	return func(s *TraceOptions) {
		s.Histogram = histogram
	}
}

// WithCounter sets the prometheus counter to be incremented when the span is finished.
func WithCounter(counter prometheus.Counter) Options {
	return func(s *TraceOptions) {
		s.Counter = counter
	}
}

// WithLogMessage sets the logger and log message to be used when starting the span and when the span is finished.
// The log message is formatted with fmt.Sprintf and all arguments are passed to the logger.
// The log message is logged at the DEBUG level.
func WithLogMessage(logger ulogger.Logger, format string, args ...interface{}) Options {
	return func(s *TraceOptions) {
		s.Logger = logger
		s.LogMessage = format
		s.LogArgs = args
	}
}

// WithTag adds a string attribute to the span.
func WithTag(key, value string) Options {
	return func(s *TraceOptions) {
		s.Attributes = append(s.Attributes, attribute.String(key, value))
	}
}

// StartTracing starts a new span with the given name and returns a context with the span and
// a function to finish it. An error passed to the finish function is recorded on the span
// together with its error kind.
func StartTracing(ctx context.Context, name string, setOptions ...Options) (context.Context, *gocore.Stat, func(...error)) {
	options := &TraceOptions{}
	for _, opt := range setOptions {
		opt(options)
	}

	spanCtx, span := otel.Tracer(tracerName).Start(ctx, name)
	if len(options.Attributes) > 0 {
		span.SetAttributes(options.Attributes...)
	}

	start := gocore.CurrentTime()

	var stat *gocore.Stat
	if options.ParentStat != nil {
		stat = options.ParentStat.NewStat(name)
	} else {
		stat = gocore.NewStat(name)
	}

	if options.Logger != nil && options.LogMessage != "" {
		options.Logger.Debugf(options.LogMessage, options.LogArgs...)
	}

	return spanCtx, stat, func(errs ...error) {
		for _, err := range errs {
			if err == nil {
				continue
			}

			span.RecordError(err)
			span.SetAttributes(attribute.String("error.kind", errors.Name(err)))
			span.SetStatus(codes.Error, errors.Description(err))
		}

		span.End()
		stat.AddTime(start)

		if options.Histogram != nil {
			options.Histogram.Observe(time.Since(start).Seconds())
		}

		if options.Counter != nil {
			options.Counter.Inc()
		}

		if options.Logger != nil && options.LogMessage != "" {
			done := fmt.Sprintf(" DONE in %s", time.Since(start))
			options.Logger.Debugf(options.LogMessage+done, options.LogArgs...)
		}
	}
}
