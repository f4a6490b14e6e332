package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aligner.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.Tag != "RPA" || cfg.Strategy != "random-walk" {
		t.Errorf("tag/strategy = %s/%s", cfg.Tag, cfg.Strategy)
	}
	if cfg.ForceAcceptPercent != 5 || cfg.OffsetMovePercent != 95 {
		t.Errorf("random walk defaults = %d/%d", cfg.ForceAcceptPercent, cfg.OffsetMovePercent)
	}
	if cfg.ForceApplyRate != 0.01 || cfg.MutationRate != 0.15 || cfg.StallThreshold != 100 {
		t.Errorf("annealed defaults = %v/%v/%d", cfg.ForceApplyRate, cfg.MutationRate, cfg.StallThreshold)
	}
	if cfg.TickInterval != 100*time.Millisecond {
		t.Errorf("tick interval = %s", cfg.TickInterval)
	}
}

func TestLoad_PartialFileKeepsOtherDefaults(t *testing.T) {
	path := writeFile(t, `
tag: RPX
strategy: annealed
stall_threshold: 7
tick_interval: 250ms
store:
  backend: memory
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	want.Tag = "RPX"
	want.Strategy = "annealed"
	want.StallThreshold = 7
	want.TickInterval = 250 * time.Millisecond
	want.Store.Backend = "memory"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "tag: FILE\nmutation_rate: 0.3\n")
	t.Setenv("ALIGNER_TAG", "ENV")
	t.Setenv("ALIGNER_MAX_STEPS", "42")
	t.Setenv("ALIGNER_MUTATION_RATE", "0.5")
	t.Setenv("ALIGNER_TICK_INTERVAL", "1s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Tag != "ENV" || cfg.MaxSteps != 42 || cfg.MutationRate != 0.5 || cfg.TickInterval != time.Second {
		t.Errorf("env not applied: %+v", cfg)
	}
	if p := cfg.Params(); p.MaxSteps != 42 || p.MutationRate != 0.5 {
		t.Errorf("params = %+v", p)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		want string
	}{
		{"malformed yaml", "tag: [unclosed", nil, "parse config"},
		{"bad env int", "", map[string]string{"ALIGNER_MAX_STEPS": "many"}, "ALIGNER_MAX_STEPS"},
		{"unknown strategy", "strategy: teleport\n", nil, "unknown strategy"},
		{"percent out of range", "force_accept_percent: 150\n", nil, "force_accept_percent"},
		{"rate out of range", "mutation_rate: -0.1\n", nil, "mutation_rate"},
		{"negative budget", "max_steps: -1\n", nil, "max_steps"},
		{"unknown backend", "store:\n  backend: floppy\n", nil, "floppy"},
		{"empty tag", "tag: \"\"\n", nil, "tag is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeFile(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}
