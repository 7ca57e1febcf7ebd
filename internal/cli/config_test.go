package cli

import (
	"strings"
	"testing"

	"github.com/matzehuels/flowlines/pkg/config"
	"github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/flow"
)

func TestConfigDefaultCommand(t *testing.T) {
	out, err := execute(t, newTestCLI(), "config", "default")
	if err != nil {
		t.Fatalf("config default error = %v", err)
	}
	cfg, err := config.Decode(strings.NewReader(out))
	if err != nil {
		t.Fatalf("decode printed config: %v", err)
	}
	if cfg.Tension != config.Default().Tension {
		t.Errorf("Tension = %v, want %v", cfg.Tension, config.Default().Tension)
	}
}

func TestConfigValidateCommand(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.toml", "tension = 0.3\n")
	bad := writeFile(t, dir, "bad.toml", "tension = -1\n")

	if _, err := execute(t, newTestCLI(), "config", "validate", good); err != nil {
		t.Errorf("validate good config error = %v", err)
	}
	if _, err := execute(t, newTestCLI(), "config", "validate", bad); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("validate bad config error = %v, want INVALID_CONFIG", err)
	}
}

func TestRouteOf(t *testing.T) {
	cfg := config.Default()
	tests := []struct {
		route flow.Route
		want  string
	}{
		{flow.Left, config.AnchorLeftSource},
		{flow.Right, config.AnchorRightSource},
		{flow.Spine, config.AnchorHub},
	}
	for _, tt := range tests {
		if got := routeOf(cfg, tt.route).Anchors[0]; got != tt.want {
			t.Errorf("routeOf(%v) starts at %q, want %q", tt.route, got, tt.want)
		}
	}
}
