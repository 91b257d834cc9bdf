package eventing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var tracer = otel.Tracer("@agentuity/go-apiclient/eventing")

var propagator = propagation.TraceContext{}
