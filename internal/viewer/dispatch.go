package viewer

import (
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/animation"
	"github.com/Faultbox/meshview/internal/controls"
	"github.com/Faultbox/meshview/internal/engine/capture"
	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/internal/scene"
)

var loopModes = map[string]animation.LoopMode{
	"once":     animation.LoopOnce,
	"repeat":   animation.LoopRepeat,
	"pingpong": animation.LoopPingPong,
}

// HandleMessage decodes one message and applies it. Nothing is mutated
// unless the whole message decodes.
func (v *Viewer) HandleMessage(data []byte) error {
	cmd, err := protocol.Decode(data)
	if err != nil {
		v.metrics.Failed("decode")
		v.log.Warn("dropping message that failed to decode", zap.Error(err))
		return err
	}
	return v.Apply(cmd)
}

// Apply runs one decoded command and marks the render loop dirty. Errors
// are returned for the caller's bookkeeping; the viewer keeps accepting
// commands either way.
func (v *Viewer) Apply(cmd protocol.Command) error {
	start := time.Now()
	err := v.apply(cmd)
	v.metrics.Observe(cmd.Kind().String(), time.Since(start), err)
	v.MarkDirty()
	return err
}

func (v *Viewer) apply(cmd protocol.Command) error {
	switch c := cmd.(type) {
	case protocol.SetTransform:
		v.tree.SetTransform(c.Path, c.Matrix)
		return nil

	case protocol.Delete:
		return v.tree.Delete(c.Path)

	case protocol.SetObject:
		return v.setObject(c)

	case protocol.SetProperty:
		return v.tree.SetProperty(propertyTarget(c), c.Property, c.Value)

	case protocol.SetAnimation:
		if err := v.animator.Load(c.Animations, v.animationOptions(c.Options)); err != nil {
			v.log.Error("failed to load animation", zap.String("path", c.Path.String()), zap.Error(err))
			return err
		}
		return nil

	case protocol.SetTarget:
		v.camera.SetTarget(c.Value)
		return nil

	case protocol.CaptureImage:
		url, err := v.captureDataURL(c.XRes, c.YRes)
		if err != nil {
			v.log.Error("capture_image failed", zap.Error(err))
			return err
		}
		v.send(protocol.ImageEvent(url))
		return nil

	case protocol.SaveImage:
		frame, err := v.capture(c.XRes, c.YRes)
		if err == nil {
			var name string
			name, err = v.shots.Save(frame)
			if err == nil {
				v.log.Info("screenshot saved", zap.String("file", name))
			}
		}
		if err != nil {
			v.log.Error("save_image failed", zap.Error(err))
		}
		return err

	case protocol.SetControl:
		v.controls.Apply(c)
		v.countControls()
		return nil

	case protocol.SetControlValue:
		if err := v.controls.SetValue(c); err != nil {
			v.log.Warn("set_control_value failed", zap.String("name", c.Name), zap.Error(err))
			return err
		}
		return nil

	case protocol.DeleteControl:
		if !v.controls.Delete(c.Name) {
			return fmt.Errorf("%w: %q", controls.ErrUnknownControl, c.Name)
		}
		v.countControls()
		return nil
	}
	return fmt.Errorf("%w: %s", protocol.ErrUnknownCommand, cmd.Kind())
}

// propertyTarget redirects writes on the Background group to the
// background object itself. Visibility stays on the group.
func propertyTarget(c protocol.SetProperty) protocol.Path {
	if c.Path.Equal(scene.BackgroundPath) && c.Property != "visible" {
		return c.Path.Child(scene.ObjectName)
	}
	return c.Path
}

// setObject installs the parsed object before the next command runs, so
// later commands on the path see it. Embedded images fill their textures
// when decoded; a texture released by then stays released.
func (v *Viewer) setObject(c protocol.SetObject) error {
	obj, loads, err := v.ingester.Ingest(v.ctx, c.Object)
	v.metrics.Load("object", err)
	if err != nil {
		// Unsupported formats are already reported by the ingester.
		v.log.Debug("set_object produced no object", zap.String("path", c.Path.String()), zap.Error(err))
		return err
	}
	v.tree.SetObject(c.Path, obj)
	if c.Path.Equal(scene.BackgroundPath) {
		v.updateBackground()
	}

	for _, l := range loads {
		v.pending++
		l.Image.Then(v.post, func(img image.Image, err error) {
			v.pending--
			v.metrics.Load("image", err)
			if err != nil {
				v.log.Warn("failed to decode image", zap.String("path", c.Path.String()), zap.Error(err))
				return
			}
			if l.Texture.SetImage(img) {
				v.MarkDirty()
			}
		})
	}
	return nil
}

// animationOptions fills options the sender left unset from config.
func (v *Viewer) animationOptions(o protocol.AnimationOptions) protocol.AnimationOptions {
	def := v.cfg.Animation
	if o.Play == nil {
		o.Play = &def.Play
	}
	if o.LoopMode == nil {
		if mode, ok := loopModes[def.LoopMode]; ok {
			m := int(mode)
			o.LoopMode = &m
		}
	}
	if o.Repetitions == nil && def.Repetitions > 0 {
		o.Repetitions = &def.Repetitions
	}
	if o.ClampWhenFinished == nil {
		o.ClampWhenFinished = &def.ClampWhenFinished
	}
	return o
}

// capture renders one frame at xres by yres, or at the current size when
// either is zero, and restores the render size afterwards.
func (v *Viewer) capture(xres, yres int) (image.Image, error) {
	w, h := v.renderer.Size()
	resized := xres > 0 && yres > 0 && (xres != w || yres != h)
	if resized {
		v.renderer.Resize(xres, yres)
		defer v.renderer.Resize(w, h)
	}
	if err := v.render(); err != nil {
		return nil, err
	}
	return v.renderer.Capture()
}

func (v *Viewer) captureDataURL(xres, yres int) (string, error) {
	frame, err := v.capture(xres, yres)
	if err != nil {
		return "", err
	}
	return capture.DataURL(frame)
}

func (v *Viewer) countControls() {
	if v.metrics != nil {
		v.metrics.ControlsCount.Set(float64(len(v.controls.Names())))
	}
}
