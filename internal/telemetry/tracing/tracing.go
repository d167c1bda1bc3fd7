package tracing

import (
	"github.com/honeycombio/otel-config-go/otelconfig"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

var GlobalTracer = otel.Tracer("inkpost-backend")

// HoneycombSetup configures the OpenTelemetry SDK via the honeycomb distro.
// Exporter endpoint, api key and service name come from OTEL_* / HONEYCOMB_*
// env vars. Returns a shutdown func to be called on server teardown.
func HoneycombSetup(tracingEnabled bool, serviceName string) (func(), error) {
	if !tracingEnabled {
		log.Debugln("tracing disabled, otel sdk not configured")
		return func() {}, nil
	}

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithServiceName(serviceName),
	)
	if err != nil {
		return nil, err
	}

	log.Debugf("otel sdk configured for service: %s", serviceName)

	return otelShutdown, nil
}
