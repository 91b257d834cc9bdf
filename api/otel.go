package api

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var tracer = otel.Tracer("@agentuity/go-apiclient/api")

var propagator = propagation.TraceContext{}
