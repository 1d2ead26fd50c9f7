package scene

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeLoader struct {
	fail map[string]bool
}

func (l *fakeLoader) Load(_ context.Context, name string) (*Texture, error) {
	if l.fail[name] {
		return nil, errors.New("not found")
	}
	t := NewDataTexture([]uint8{1, 2, 3, 255}, 1, 1, MappingUV)
	t.Name = name
	return t, nil
}

type queue chan func()

func (q queue) post(fn func()) { q <- fn }

func (q queue) drain(t *testing.T) {
	t.Helper()
	select {
	case fn := <-q:
		fn()
	case <-time.After(2 * time.Second):
		t.Fatal("load completion was never posted")
	}
}

func newTestBackground(t *testing.T, opts ...BackgroundOption) (*Background, queue) {
	t.Helper()
	q := make(queue, 8)
	loader := &fakeLoader{fail: map[string]bool{"missing.png": true}}
	opts = append([]BackgroundOption{WithEnvMapLoader(context.Background(), loader, q.post)}, opts...)
	return NewBackground(NewBackgroundObject().Background, opts...), q
}

func TestGradientTexture(t *testing.T) {
	top := [3]uint8{10, 20, 30}
	bottom := [3]uint8{40, 50, 60}

	round := GradientTexture(top, bottom, true)
	assert.Equal(t, GradientWidth, round.Width)
	assert.Equal(t, 2, round.Height)
	assert.Equal(t, MappingEquirectangularReflection, round.Mapping)
	assert.Equal(t, [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}, round.Matrix)
	require.Len(t, round.Pixels, 4*GradientWidth*2)
	for c := 0; c < GradientWidth; c++ {
		assert.Equal(t, []uint8{40, 50, 60, 255}, round.Pixels[4*c:4*c+4], "row 0 is bottom")
		j := 4 * (GradientWidth + c)
		assert.Equal(t, []uint8{10, 20, 30, 255}, round.Pixels[j:j+4], "row 1 is top")
	}

	flat := GradientTexture(top, bottom, false)
	assert.Equal(t, MappingUV, flat.Mapping)
	assert.Equal(t, [9]float32{0.5, 0, 0.25, 0, 0.5, 0.25, 0, 0, 1}, flat.Matrix)
}

func TestBackgroundStateTable(t *testing.T) {
	type want int
	const (
		white want = iota
		gradient
		envMap
		transparent
	)
	tests := []struct {
		name                                  string
		visible, renderMap, hasMap, persp, ar bool
		background, environment               want
	}{
		{"hidden", false, true, true, true, false, white, white},
		{"hidden ortho", false, false, false, false, false, white, white},
		{"env map", true, true, true, true, false, envMap, envMap},
		{"ortho keeps map for lighting", true, true, true, false, false, gradient, envMap},
		{"map not rendered", true, false, true, true, false, gradient, envMap},
		{"no map", true, true, false, true, false, gradient, gradient},
		{"no map ortho", true, false, false, false, false, gradient, gradient},
		{"ar", true, true, true, true, true, transparent, envMap},
		{"ar hidden", false, true, false, true, true, transparent, white},
		{"ar no map", true, true, false, false, true, transparent, gradient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, q := newTestBackground(t)
			if tt.hasMap {
				b.Props().EnvironmentMap = "sky.png"
				b.Update(true, true)
				q.drain(t)
				require.NotNil(t, b.EnvMap())
			}
			b.Props().RenderEnvironmentMap = tt.renderMap
			b.Props().UseARBackground = tt.ar
			b.Update(tt.visible, tt.persp)

			resolve := func(w want, forBackground bool) *Texture {
				switch w {
				case white:
					if forBackground {
						return b.White(tt.persp)
					}
					return b.White(true)
				case gradient:
					if forBackground {
						return b.Gradient(tt.persp)
					}
					return b.Gradient(true)
				case envMap:
					return b.EnvMap()
				}
				return nil
			}
			bgTex, envTex := b.Output()
			assert.Same(t, resolve(tt.background, true), bgTex)
			assert.Same(t, resolve(tt.environment, false), envTex)
		})
	}
}

func TestBackgroundGradientRegeneration(t *testing.T) {
	b, q := newTestBackground(t)
	b.Update(true, true)
	g := b.Gradient(true)

	b.Update(true, true)
	assert.Same(t, g, b.Gradient(true), "unchanged colors keep the texture")

	b.Props().TopColor = [3]uint8{255, 0, 0}
	b.Update(true, true)
	assert.NotSame(t, g, b.Gradient(true))
	assert.True(t, g.Disposed())
	assert.Equal(t, uint8(255), b.Gradient(true).Pixels[4*GradientWidth])

	// An env map supplying both outputs defers gradient work.
	b.Props().EnvironmentMap = "sky.png"
	b.Update(true, true)
	q.drain(t)
	g = b.Gradient(true)
	b.Props().TopColor = [3]uint8{0, 255, 0}
	b.Update(true, true)
	assert.Same(t, g, b.Gradient(true))

	// Switching to an orthographic camera puts the gradient back in use.
	b.Update(true, false)
	assert.NotSame(t, g, b.Gradient(true))
	assert.Equal(t, uint8(255), b.Gradient(false).Pixels[4*GradientWidth+1])

	// Hidden backgrounds never regenerate.
	g = b.Gradient(false)
	b.Props().TopColor = [3]uint8{1, 1, 1}
	b.Update(false, false)
	assert.Same(t, g, b.Gradient(false))
}

func TestBackgroundEnvMapFailureReverts(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	changes := 0
	b, q := newTestBackground(t,
		WithBackgroundLogger(zap.New(core)),
		WithChangeHook(func() { changes++ }),
	)
	b.Props().EnvironmentMap = "missing.png"
	b.Update(true, true)
	assert.Equal(t, 1, b.Pending())

	q.drain(t)
	assert.Zero(t, b.Pending())
	assert.Empty(t, b.Props().EnvironmentMap)
	assert.Nil(t, b.EnvMap())
	bg, env := b.Output()
	assert.Same(t, b.Gradient(true), bg)
	assert.Same(t, b.Gradient(true), env)
	assert.Equal(t, 1, changes)

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "missing.png", logs.All()[0].ContextMap()["map"])
}

func TestBackgroundSupersededLoadIgnored(t *testing.T) {
	b, q := newTestBackground(t)
	b.Props().EnvironmentMap = "first.png"
	b.Update(true, true)
	b.Props().EnvironmentMap = "second.png"
	b.Update(true, true)

	q.drain(t)
	q.drain(t)
	require.NotNil(t, b.EnvMap())
	assert.Equal(t, "second.png", b.EnvMap().Name)
	assert.Zero(t, b.Pending())
}

func TestBackgroundClearEnvMap(t *testing.T) {
	b, q := newTestBackground(t)
	b.Props().EnvironmentMap = "sky.png"
	b.Update(true, true)
	q.drain(t)
	sky := b.EnvMap()
	require.NotNil(t, sky)

	b.Props().EnvironmentMap = ""
	b.Update(true, true)
	assert.Nil(t, b.EnvMap())
	assert.True(t, sky.Disposed())
	_, env := b.Output()
	assert.Same(t, b.Gradient(true), env)
}

func TestBackgroundWithoutLoader(t *testing.T) {
	b := NewBackground(NewBackgroundObject().Background)
	b.Props().EnvironmentMap = "sky.png"
	b.Update(true, true)
	assert.Empty(t, b.Props().EnvironmentMap)
	assert.Nil(t, b.EnvMap())
}

func TestBackgroundReload(t *testing.T) {
	b, q := newTestBackground(t)
	assert.False(t, b.Reload("sky.png"), "not the requested map")

	b.Props().EnvironmentMap = "sky.png"
	b.Update(true, true)
	q.drain(t)
	old := b.EnvMap()
	require.NotNil(t, old)

	assert.False(t, b.Reload("other.png"))
	require.True(t, b.Reload("sky.png"))
	assert.True(t, old.Disposed())
	assert.Equal(t, 1, b.Pending())

	q.drain(t)
	require.NotNil(t, b.EnvMap())
	assert.NotSame(t, old, b.EnvMap())
	bg, _ := b.Output()
	assert.Same(t, b.EnvMap(), bg)
}
