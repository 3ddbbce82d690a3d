package observability

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tbourn/go-proofed-catalog/internal/config"
)

// withGlobals restores the OTel globals after the test.
func withGlobals(t *testing.T) {
	t.Helper()
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
}

func enabledConfig(ratio float64) config.OTELConfig {
	return config.OTELConfig{
		Enabled:     true,
		Insecure:    true,
		Endpoint:    "localhost:4317",
		ServiceName: "go-proofed-catalog",
		SampleRatio: ratio,
	}
}

func setup(t *testing.T, cfg config.OTELConfig) {
	t.Helper()
	shutdown, err := SetupOTel(context.Background(), cfg, "v1.0.0")
	if err != nil {
		t.Fatalf("SetupOTel: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
		defer cancel()
		_ = shutdown(ctx)
	})
}

func TestSetupOTel_DisabledLeavesGlobals(t *testing.T) {
	withGlobals(t)
	prevTP := otel.GetTracerProvider()

	shutdown, err := SetupOTel(context.Background(), config.OTELConfig{Enabled: false, Endpoint: "ignored:4317"}, "dev")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("no-op shutdown returned %v", err)
	}
	if otel.GetTracerProvider() != prevTP {
		t.Fatalf("disabled tracing must not replace the tracer provider")
	}
}

func TestSetupOTel_ResourceCarriesServiceAndVersion(t *testing.T) {
	withGlobals(t)

	orig := newServiceResourceFn
	t.Cleanup(func() { newServiceResourceFn = orig })
	var gotName, gotVersion string
	newServiceResourceFn = func(ctx context.Context, serviceName, version string) (*resource.Resource, error) {
		gotName, gotVersion = serviceName, version
		return orig(ctx, serviceName, version)
	}

	setup(t, enabledConfig(1))

	if gotName != "go-proofed-catalog" || gotVersion != "v1.0.0" {
		t.Fatalf("resource built with (%q, %q)", gotName, gotVersion)
	}
	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("expected *sdktrace.TracerProvider, got %T", otel.GetTracerProvider())
	}
}

func TestSetupOTel_SamplingFollowsRatio(t *testing.T) {
	cases := map[string]struct {
		ratio   float64
		sampled bool
	}{
		"always": {1, true},
		"never":  {0, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			withGlobals(t)
			setup(t, enabledConfig(tc.ratio))

			_, span := otel.Tracer("services/ProductService").Start(context.Background(), "Search")
			defer span.End()
			if got := span.SpanContext().IsSampled(); got != tc.sampled {
				t.Fatalf("IsSampled=%v; want %v", got, tc.sampled)
			}
		})
	}
}

func TestSetupOTel_PropagatesTraceContextAndBaggage(t *testing.T) {
	withGlobals(t)
	setup(t, enabledConfig(1))

	member, err := baggage.NewMember("client", "catalogctl")
	if err != nil {
		t.Fatalf("baggage member: %v", err)
	}
	bag, err := baggage.New(member)
	if err != nil {
		t.Fatalf("baggage: %v", err)
	}
	ctx := baggage.ContextWithBaggage(context.Background(), bag)
	ctx, span := otel.Tracer("test").Start(ctx, "GET /products/search")
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	tp := carrier.Get("traceparent")
	if !strings.Contains(tp, span.SpanContext().TraceID().String()) {
		t.Fatalf("traceparent %q does not carry trace id", tp)
	}
	if got := carrier.Get("baggage"); got != "client=catalogctl" {
		t.Fatalf("baggage header = %q", got)
	}
}

func TestSetupOTel_FailuresLeaveGlobals(t *testing.T) {
	cases := map[string]func(){
		"exporter": func() {
			newOTLPExporterFn = func(context.Context, otlptrace.Client) (*otlptrace.Exporter, error) {
				return nil, errors.New("exporter refused")
			}
		},
		"resource": func() {
			newServiceResourceFn = func(context.Context, string, string) (*resource.Resource, error) {
				return nil, errors.New("bad resource")
			}
		},
	}
	for name, breakIt := range cases {
		t.Run(name, func(t *testing.T) {
			withGlobals(t)
			origExp, origRes := newOTLPExporterFn, newServiceResourceFn
			t.Cleanup(func() { newOTLPExporterFn, newServiceResourceFn = origExp, origRes })
			breakIt()

			prevTP := otel.GetTracerProvider()

			shutdown, err := SetupOTel(context.Background(), enabledConfig(1), "v0")
			if err == nil {
				t.Fatalf("expected error")
			}
			if shutdown != nil {
				t.Fatalf("no shutdown func expected on failure")
			}
			if otel.GetTracerProvider() != prevTP {
				t.Fatalf("tracer provider changed on failure")
			}
		})
	}
}

func TestSetupOTel_TLSBranch(t *testing.T) {
	withGlobals(t)
	cfg := enabledConfig(0.5)
	cfg.Insecure = false
	setup(t, cfg)

	if _, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider); !ok {
		t.Fatalf("expected *sdktrace.TracerProvider")
	}
}

func TestSampler_Endpoints(t *testing.T) {
	cases := []struct {
		ratio float64
		want  string
	}{
		{1, "ParentBased{root:AlwaysOnSampler"},
		{2, "ParentBased{root:AlwaysOnSampler"},
		{0, "ParentBased{root:AlwaysOffSampler"},
		{-1, "ParentBased{root:AlwaysOffSampler"},
		{0.25, "ParentBased{root:TraceIDRatioBased{0.25}"},
	}
	for _, tc := range cases {
		got := Sampler(tc.ratio).Description()
		if !strings.HasPrefix(got, tc.want) {
			t.Fatalf("Sampler(%v) = %q; want prefix %q", tc.ratio, got, tc.want)
		}
	}
}
