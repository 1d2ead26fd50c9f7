package main

import (
	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/config"
	"github.com/Faultbox/meshview/internal/engine/input"
	"github.com/Faultbox/meshview/internal/engine/renderer"
	"github.com/Faultbox/meshview/internal/engine/window"
	"github.com/Faultbox/meshview/internal/viewer"
)

// host is the SDL window, its GL renderer and input.
type host struct {
	window   *window.Window
	renderer *renderer.GL
	input    *input.Input
}

func newHost(cfg *config.Config, log *zap.Logger) (*host, error) {
	w, err := window.New(window.Config{
		Title:      appName,
		Width:      cfg.Viewer.Width,
		Height:     cfg.Viewer.Height,
		Fullscreen: cfg.Viewer.Fullscreen,
		VSync:      cfg.Viewer.VSync,
	}, log)
	if err != nil {
		return nil, err
	}

	// The renderer needs the GL context the window just created.
	width, height := w.Size()
	r, err := renderer.NewGL(renderer.Config{Width: width, Height: height}, log)
	if err != nil {
		w.Close()
		return nil, err
	}
	return &host{window: w, renderer: r, input: input.New()}, nil
}

// poll routes pending input to v. It reports whether the window closed.
func (h *host) poll(v *viewer.Viewer) bool {
	quit := h.input.Update()
	for _, ev := range h.input.Events() {
		switch ev.Type {
		case input.EventWindowResize:
			v.Resize(ev.Width, ev.Height)
		case input.EventKeyDown:
			v.HandleKey(ev.Key)
		case input.EventDrag:
			v.Orbit(ev.DX, ev.DY)
		case input.EventScroll:
			v.Zoom(ev.Scroll)
		}
	}
	return quit
}

func (h *host) Close() {
	h.renderer.Close()
	h.window.Close()
}
