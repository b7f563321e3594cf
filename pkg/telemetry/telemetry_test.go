package telemetry

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(c *Config) {}},
		{
			name:    "missing service name",
			mutate:  func(c *Config) { c.ServiceName = "" },
			wantErr: true,
		},
		{
			name: "bad exporter",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "jaeger"
			},
			wantErr: true,
		},
		{
			name: "sampling rate out of range",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.Exporter = "stdout"
				c.Tracing.SamplingRate = 1.5
			},
			wantErr: true,
		},
		{
			name: "metrics without address",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.ListenAddress = ""
			},
			wantErr: true,
		},
		{
			name: "disabled exporter not validated",
			mutate: func(c *Config) {
				c.Tracing.Enabled = false
				c.Tracing.Exporter = "jaeger"
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestDisabledMetricsAreNoOps(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	// None of these should panic or register anything.
	m.ObserveInvocation("services", "succeeded", time.Second)
	m.CountRetry("packages")
	m.CountEscalationFailure("web-1")
	if m.Handler() != nil {
		t.Error("disabled metrics should have no handler")
	}
}

func TestEnabledMetricsExpose(t *testing.T) {
	cfg := DefaultConfig().Metrics
	cfg.Enabled = true
	m, err := NewMetrics(cfg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.ObserveInvocation("services", "succeeded", 120*time.Millisecond)
	m.ObserveInvocation("services", "failed", time.Second)
	m.CountRetry("packages")
	m.CountEscalationFailure("web-1")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	body := string(raw)

	for _, want := range []string{
		"hostwright_invocations_total",
		`status="succeeded"`,
		"hostwright_invocation_duration_seconds",
		"hostwright_retries_total",
		"hostwright_escalation_failures_total",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"trace": zerolog.TraceLevel,
		"debug": zerolog.DebugLevel,
		"info":  zerolog.InfoLevel,
		"warn":  zerolog.WarnLevel,
		"error": zerolog.ErrorLevel,
		"fatal": zerolog.FatalLevel,
		"bogus": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestNewLoggerWritesJSON(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(LoggingConfig{
		Level:  "debug",
		Format: "json",
		Output: dir + "/app.log",
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info().Str("target", "web-1").Msg("connected")
}

func TestDisabledTracerIsInert(t *testing.T) {
	tr, err := NewTracer(TracingConfig{Enabled: false}, "hostwright", "test", "dev")
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	ctx, end := tr.InvocationSpan(context.Background(), "web-1", "svc.restart")
	if ctx == nil {
		t.Fatal("span context is nil")
	}
	end(nil)
	if err := tr.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
