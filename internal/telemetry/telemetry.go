// Package telemetry provides OpenTelemetry metrics for the moderation
// store.
//
// Telemetry is disabled by default and has zero runtime overhead when off.
//
//	MODSTORE_OTEL_ENABLED=true   enable metrics
//	MODSTORE_OTEL_STDOUT=true    write metrics to stdout (dev mode)
package telemetry

import (
	"context"
	"os"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var (
	mu       sync.Mutex
	enabled  bool
	provider *sdkmetric.MeterProvider
)

// Enabled reports whether telemetry was switched on by the environment.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

// Init wires the meter provider when MODSTORE_OTEL_ENABLED is set. Safe to
// call more than once; later calls are no-ops.
func Init(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if provider != nil || !envBool("MODSTORE_OTEL_ENABLED") {
		return nil
	}
	opts := []sdkmetric.Option{
		sdkmetric.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("modstore"),
		)),
	}
	if envBool("MODSTORE_OTEL_STDOUT") {
		exp, err := stdoutmetric.New()
		if err != nil {
			return err
		}
		opts = append(opts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second))))
	}
	provider = sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)
	enabled = true
	return nil
}

// Shutdown flushes and stops the meter provider.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return nil
	}
	err := provider.Shutdown(ctx)
	provider = nil
	enabled = false
	return err
}

// Meter returns a meter in the given scope.
func Meter(scope string) metric.Meter {
	return otel.GetMeterProvider().Meter(scope)
}
