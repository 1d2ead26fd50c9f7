package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Viewer.Width != 1280 || cfg.Viewer.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", cfg.Viewer.Width, cfg.Viewer.Height)
	}
	if cfg.Viewer.Camera != "perspective" {
		t.Errorf("expected perspective camera, got %s", cfg.Viewer.Camera)
	}
	if cfg.Server.ConnectTimeout != 10*time.Second {
		t.Errorf("expected timeout 10s, got %v", cfg.Server.ConnectTimeout)
	}
	if cfg.Background.TopColor != [3]uint8{135, 206, 250} {
		t.Errorf("unexpected top color %v", cfg.Background.TopColor)
	}
	if cfg.Background.BottomColor != [3]uint8{25, 25, 112} {
		t.Errorf("unexpected bottom color %v", cfg.Background.BottomColor)
	}
	if !cfg.Animation.Play || cfg.Animation.LoopMode != "repeat" || cfg.Animation.Repetitions != 1 || !cfg.Animation.ClampWhenFinished {
		t.Errorf("unexpected animation defaults %+v", cfg.Animation)
	}
	if cfg.NATS.Enabled {
		t.Error("expected NATS to be disabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
server:
  url: "ws://viz.local:7001"
  reconnect_delay: 5s

nats:
  enabled: true
  subject: "robot.viz"

viewer:
  width: 1920
  height: 1080
  camera: orthographic
  headless: true

background:
  top_color: [255, 255, 255]
  environment_map: "studio.hdr"

capture:
  format: jpg

logging:
  level: "debug"
  log_file: "viewer.log"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.URL != "ws://viz.local:7001" {
		t.Errorf("unexpected server url %s", cfg.Server.URL)
	}
	if cfg.Server.ReconnectDelay != 5*time.Second {
		t.Errorf("unexpected reconnect delay %v", cfg.Server.ReconnectDelay)
	}
	if !cfg.NATS.Enabled || cfg.NATS.Subject != "robot.viz" {
		t.Errorf("unexpected nats config %+v", cfg.NATS)
	}
	if cfg.Viewer.Width != 1920 || cfg.Viewer.Camera != "orthographic" || !cfg.Viewer.Headless {
		t.Errorf("unexpected viewer config %+v", cfg.Viewer)
	}
	if cfg.Background.TopColor != [3]uint8{255, 255, 255} {
		t.Errorf("unexpected top color %v", cfg.Background.TopColor)
	}
	// Untouched keys keep their defaults.
	if cfg.Background.BottomColor != [3]uint8{25, 25, 112} {
		t.Errorf("bottom color should keep default, got %v", cfg.Background.BottomColor)
	}
	if cfg.Capture.Format != "jpg" {
		t.Errorf("unexpected capture format %s", cfg.Capture.Format)
	}
	if cfg.Logging.LogFile != "viewer.log" {
		t.Errorf("expected log file 'viewer.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	invalidYAML := `
viewer:
  width: not a number
  invalid syntax here
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if err := loadFromFile(Default(), configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if err := loadFromFile(Default(), "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"camera", func(c *Config) { c.Viewer.Camera = "fisheye" }},
		{"capture format", func(c *Config) { c.Capture.Format = "gif" }},
		{"loop mode", func(c *Config) { c.Animation.LoopMode = "forever" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		verify func(*testing.T, *Config)
	}{
		{
			name: "debug flag",
			args: []string{"--debug"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
		},
		{
			name: "server flag",
			args: []string{"--server", "ws://other:7002"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Server.URL != "ws://other:7002" {
					t.Errorf("unexpected server %s", cfg.Server.URL)
				}
			},
		},
		{
			name: "nats flag enables source",
			args: []string{"--nats", "nats://bus:4222"},
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.NATS.Enabled || cfg.NATS.URL != "nats://bus:4222" {
					t.Errorf("unexpected nats config %+v", cfg.NATS)
				}
			},
		},
		{
			name: "size and camera",
			args: []string{"--width", "2560", "--height", "1440", "--camera", "orthographic"},
			verify: func(t *testing.T, cfg *Config) {
				if cfg.Viewer.Width != 2560 || cfg.Viewer.Height != 1440 {
					t.Errorf("unexpected size %dx%d", cfg.Viewer.Width, cfg.Viewer.Height)
				}
				if cfg.Viewer.Camera != "orthographic" {
					t.Errorf("unexpected camera %s", cfg.Viewer.Camera)
				}
			},
		},
		{
			name: "metrics flag",
			args: []string{"--metrics", ":9999"},
			verify: func(t *testing.T, cfg *Config) {
				if !cfg.Metrics.Enabled || cfg.Metrics.Listen != ":9999" {
					t.Errorf("unexpected metrics config %+v", cfg.Metrics)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
			flags := RegisterFlags(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatalf("parse: %v", err)
			}

			cfg := Default()
			flags.apply(cfg)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
viewer:
  width: 1600
  height: 900
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := RegisterFlags(fs)
	if err := fs.Parse([]string{"--config", configPath, "--width", "1920"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg, err := Load(flags)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Viewer.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Viewer.Width)
	}
	if cfg.Viewer.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Viewer.Height)
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Viewer.Camera = "orthographic"
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Viewer.Camera != "orthographic" {
		t.Errorf("expected orthographic after round trip, got %s", loaded.Viewer.Camera)
	}
}
