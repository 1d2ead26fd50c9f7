// Package config handles viewer configuration loading and management.
package config

import "time"

// Config holds all viewer settings.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	NATS       NATSConfig       `yaml:"nats"`
	Viewer     ViewerConfig     `yaml:"viewer"`
	Background BackgroundConfig `yaml:"background"`
	Animation  AnimationConfig  `yaml:"animation"`
	Capture    CaptureConfig    `yaml:"capture"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds the websocket command server connection settings.
type ServerConfig struct {
	URL            string        `yaml:"url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

// NATSConfig holds the optional NATS command subscription.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// ViewerConfig holds display and render loop settings.
type ViewerConfig struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Fullscreen bool   `yaml:"fullscreen"`
	VSync      bool   `yaml:"vsync"`
	FPSLimit   int    `yaml:"fps_limit"`
	Camera     string `yaml:"camera"` // "perspective" or "orthographic"
	Headless   bool   `yaml:"headless"`
}

// BackgroundConfig holds the initial background state.
type BackgroundConfig struct {
	TopColor             [3]uint8 `yaml:"top_color"`
	BottomColor          [3]uint8 `yaml:"bottom_color"`
	EnvironmentMap       string   `yaml:"environment_map"`
	RenderEnvironmentMap bool     `yaml:"render_environment_map"`
	Visible              bool     `yaml:"visible"`
	WatchEnvironmentMap  bool     `yaml:"watch_environment_map"` // reload local map files on change
}

// AnimationConfig holds defaults for set_animation options the sender omits.
type AnimationConfig struct {
	Play              bool   `yaml:"play"`
	LoopMode          string `yaml:"loop_mode"` // "once", "repeat", "pingpong"
	Repetitions       int    `yaml:"repetitions"`
	ClampWhenFinished bool   `yaml:"clamp_when_finished"`
}

// CaptureConfig holds screenshot and recording output settings.
type CaptureConfig struct {
	OutputDir string `yaml:"output_dir"`
	Format    string `yaml:"format"` // "png" or "jpg"
	Prefix    string `yaml:"prefix"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL:            "ws://127.0.0.1:7000",
			ConnectTimeout: 10 * time.Second,
			ReconnectDelay: 2 * time.Second,
		},
		NATS: NATSConfig{
			Enabled: false,
			URL:     "nats://127.0.0.1:4222",
			Subject: "meshview.commands",
		},
		Viewer: ViewerConfig{
			Width:    1280,
			Height:   720,
			VSync:    true,
			FPSLimit: 60,
			Camera:   "perspective",
		},
		Background: BackgroundConfig{
			TopColor:             [3]uint8{135, 206, 250}, // lightskyblue
			BottomColor:          [3]uint8{25, 25, 112},   // midnightblue
			RenderEnvironmentMap: true,
			Visible:              true,
		},
		Animation: AnimationConfig{
			Play:              true,
			LoopMode:          "repeat",
			Repetitions:       1,
			ClampWhenFinished: true,
		},
		Capture: CaptureConfig{
			OutputDir: "captures",
			Format:    "png",
			Prefix:    "meshview",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9464",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
