package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(Config{ServiceName: DefaultServiceName})
	if err != nil {
		t.Fatalf("expected no error for disabled tracing, got %v", err)
	}
	if provider.IsEnabled() {
		t.Error("expected tracing to be disabled")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() on disabled provider: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"disabled ignores fields", Config{SamplingRate: 7}, nil},
		{"missing service name", Config{Enabled: true, SamplingRate: 0.1}, ErrMissingServiceName},
		{"negative rate", Config{Enabled: true, ServiceName: "s", SamplingRate: -0.1}, ErrInvalidSamplingRate},
		{"rate above one", Config{Enabled: true, ServiceName: "s", SamplingRate: 1.5}, ErrInvalidSamplingRate},
		{"unsupported exporter", Config{Enabled: true, ServiceName: "s", ExporterType: "zipkin"}, ErrUnsupportedExporter},
		{"grpc", Config{Enabled: true, ServiceName: "s", ExporterType: ExporterOTLPGRPC, SamplingRate: 1}, nil},
		{"default exporter", Config{Enabled: true, ServiceName: "s"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewProvider_RejectsInvalidConfig(t *testing.T) {
	if _, err := NewProvider(Config{Enabled: true, SamplingRate: 0.1}); err == nil {
		t.Fatal("expected error for missing service name")
	}
}

func TestNewProvider_ValidConfig(t *testing.T) {
	tests := []struct {
		name         string
		exporterType string
		samplingRate float64
		endpoint     string
		insecure     bool
	}{
		{"otlp-http with 10% sampling", ExporterOTLPHTTP, 0.1, "localhost:4318", true},
		{"otlp-grpc with 100% sampling", ExporterOTLPGRPC, 1.0, "localhost:4317", true},
		{"default exporter with 0% sampling", "", 0.0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := NewProvider(Config{
				ServiceName:  DefaultServiceName,
				Enabled:      true,
				Environment:  "test",
				ExporterType: tt.exporterType,
				OTLPEndpoint: tt.endpoint,
				SamplingRate: tt.samplingRate,
				InsecureMode: tt.insecure,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !provider.IsEnabled() {
				t.Error("expected tracing to be enabled")
			}

			tracer := provider.Tracer("test-tracer")
			_, span := tracer.Start(context.Background(), "test-span")
			span.End()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(ctx); err != nil {
				t.Errorf("unexpected shutdown error: %v", err)
			}
		})
	}
}

func TestNewSampler_FollowsParent(t *testing.T) {
	traceID := trace.TraceID{1}
	sampledParent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     trace.SpanID{1},
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	})
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), sampledParent)

	result := newSampler(0).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: ctx,
		TraceID:       traceID,
		Name:          "child",
	})
	if result.Decision != sdktrace.RecordAndSample {
		t.Errorf("child of sampled parent decision = %v, want RecordAndSample", result.Decision)
	}

	root := newSampler(0).ShouldSample(sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		TraceID:       traceID,
		Name:          "root",
	})
	if root.Decision != sdktrace.Drop {
		t.Errorf("root decision at rate 0 = %v, want Drop", root.Decision)
	}
}

func TestProvider_Shutdown_Nil(t *testing.T) {
	provider := &Provider{}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("unexpected error on shutdown with nil tp: %v", err)
	}
}
