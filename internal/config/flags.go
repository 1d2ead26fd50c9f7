package config

import "github.com/spf13/pflag"

// Flags holds CLI overrides. Zero values mean "not set".
type Flags struct {
	Config   string
	Debug    bool
	Server   string
	NATS     string
	Windowed bool
	Headless bool
	Width    int
	Height   int
	Camera   string
	Metrics  string
}

// RegisterFlags binds the override flags onto fs and returns their storage.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVarP(&f.Config, "config", "c", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.Server, "server", "", "Websocket command server URL")
	fs.StringVar(&f.NATS, "nats", "", "NATS URL; enables the NATS command source")
	fs.BoolVar(&f.Windowed, "windowed", false, "Run in windowed mode")
	fs.BoolVar(&f.Headless, "headless", false, "Run without a window")
	fs.IntVar(&f.Width, "width", 0, "Window width")
	fs.IntVar(&f.Height, "height", 0, "Window height")
	fs.StringVar(&f.Camera, "camera", "", "Initial camera kind (perspective, orthographic)")
	fs.StringVar(&f.Metrics, "metrics", "", "Prometheus listen address; enables /metrics")
	return f
}

// ConfigPath returns the explicit config path if provided via --config.
func (f *Flags) ConfigPath() string {
	if f == nil {
		return ""
	}
	return f.Config
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Server != "" {
		cfg.Server.URL = f.Server
	}
	if f.NATS != "" {
		cfg.NATS.URL = f.NATS
		cfg.NATS.Enabled = true
	}
	if f.Windowed {
		cfg.Viewer.Fullscreen = false
	}
	if f.Headless {
		cfg.Viewer.Headless = true
	}
	if f.Width > 0 {
		cfg.Viewer.Width = f.Width
	}
	if f.Height > 0 {
		cfg.Viewer.Height = f.Height
	}
	if f.Camera != "" {
		cfg.Viewer.Camera = f.Camera
	}
	if f.Metrics != "" {
		cfg.Metrics.Listen = f.Metrics
		cfg.Metrics.Enabled = true
	}
}
