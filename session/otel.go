package session

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("@agentuity/go-apiclient/session")
