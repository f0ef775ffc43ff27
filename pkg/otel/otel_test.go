package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInitInstallsProviders(t *testing.T) {
	shutdown, err := Init(t.Context(), Config{ServiceName: "metadata-test"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	counter, err := otel.Meter("test").Int64Counter("init_check")
	if err != nil {
		t.Fatal(err)
	}
	counter.Add(t.Context(), 1)

	_, span := otel.Tracer("test").Start(t.Context(), "init_check")
	if !span.SpanContext().IsValid() {
		t.Fatal("expected a recording tracer provider")
	}
	span.End()
}
