package scene

import (
	"context"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/async"
)

// Default gradient colors.
var (
	DefaultTopColor    = [3]uint8{135, 206, 250}
	DefaultBottomColor = [3]uint8{25, 25, 112}
)

// GradientWidth is the column count of generated gradient textures.
// Narrower maps break reflection sampling on metallic surfaces.
const GradientWidth = 64

// EnvMapLoader fetches and decodes a named environment map.
type EnvMapLoader interface {
	Load(ctx context.Context, name string) (*Texture, error)
}

// NewBackgroundObject returns the object installed at /Background.
func NewBackgroundObject() *Object {
	o := NewObject(TypeBackground, ObjectName)
	o.Background = &BackgroundProps{
		TopColor:             DefaultTopColor,
		BottomColor:          DefaultBottomColor,
		RenderEnvironmentMap: true,
	}
	return o
}

// GradientTexture builds the 2-row gradient: row 0 bottom, row 1 top.
// The flat variant uses UV mapping with a transform that stretches the
// gradient over the whole viewport.
func GradientTexture(top, bottom [3]uint8, perspective bool) *Texture {
	pixels := make([]uint8, 4*GradientWidth*2)
	for c := 0; c < GradientWidth; c++ {
		i := 4 * c
		j := 4 * (GradientWidth + c)
		copy(pixels[i:i+3], bottom[:])
		copy(pixels[j:j+3], top[:])
		pixels[i+3] = 255
		pixels[j+3] = 255
	}
	if perspective {
		return NewDataTexture(pixels, GradientWidth, 2, MappingEquirectangularReflection)
	}
	t := NewDataTexture(pixels, GradientWidth, 2, MappingUV)
	t.Matrix = [9]float32{
		0.5, 0, 0.25,
		0, 0.5, 0.25,
		0, 0, 1,
	}
	return t
}

type gradientSet struct {
	gradient *Texture
	white    *Texture
}

// appliedState is what produced the current outputs.
type appliedState struct {
	topColor       *[3]uint8
	bottomColor    *[3]uint8
	environmentMap string
	renderMap      bool
	visible        bool
}

// Background computes the scene background and environment from the
// Background object's properties, the group visibility and the camera kind.
type Background struct {
	props  *BackgroundProps
	log    *zap.Logger
	loader EnvMapLoader
	post   func(func())
	ctx    context.Context

	envMap *Texture
	round  gradientSet
	flat   gradientSet
	state  appliedState

	lastVisible     bool
	lastPerspective bool

	background  *Texture
	environment *Texture

	onChange func()
	loads    int
}

// BackgroundOption configures a Background.
type BackgroundOption func(*Background)

// WithEnvMapLoader sets the loader and the function used to hand load
// completions back to the owning goroutine.
func WithEnvMapLoader(ctx context.Context, loader EnvMapLoader, post func(func())) BackgroundOption {
	return func(b *Background) {
		b.ctx = ctx
		b.loader = loader
		b.post = post
	}
}

// WithBackgroundLogger sets the logger.
func WithBackgroundLogger(log *zap.Logger) BackgroundOption {
	return func(b *Background) { b.log = log }
}

// WithChangeHook is called whenever a finished load changes the outputs.
func WithChangeHook(fn func()) BackgroundOption {
	return func(b *Background) { b.onChange = fn }
}

// NewBackground binds a controller to the props of a Background object.
func NewBackground(props *BackgroundProps, opts ...BackgroundOption) *Background {
	white := [3]uint8{255, 255, 255}
	b := &Background{
		props: props,
		log:   zap.NewNop(),
		ctx:   context.Background(),
		round: gradientSet{
			gradient: GradientTexture(props.TopColor, props.BottomColor, true),
			white:    GradientTexture(white, white, true),
		},
		flat: gradientSet{
			gradient: GradientTexture(props.TopColor, props.BottomColor, false),
			white:    GradientTexture(white, white, false),
		},
		state:           appliedState{visible: true},
		lastVisible:     true,
		lastPerspective: true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Props returns the requested inputs.
func (b *Background) Props() *BackgroundProps { return b.props }

// Rebind points the controller at a replacement Background object.
func (b *Background) Rebind(props *BackgroundProps) {
	b.props = props
	b.state.topColor = nil
	b.state.bottomColor = nil
	b.state.environmentMap = ""
	b.setEnvMap(nil)
}

// Update recomputes the background and environment outputs.
func (b *Background) Update(visible, perspective bool) {
	b.lastVisible, b.lastPerspective = visible, perspective
	b.state.visible = visible
	b.state.renderMap = b.props.RenderEnvironmentMap

	if b.props.EnvironmentMap != b.state.environmentMap {
		b.setEnvMap(nil)
		b.state.environmentMap = b.props.EnvironmentMap
		if b.props.EnvironmentMap != "" {
			b.startLoad(b.props.EnvironmentMap)
		}
	}

	usingGradient := !perspective || !b.props.RenderEnvironmentMap || b.envMap == nil
	if visible && usingGradient && b.colorsChanged() {
		top, bottom := b.props.TopColor, b.props.BottomColor
		b.state.topColor, b.state.bottomColor = &top, &bottom
		b.round.gradient.Dispose()
		b.flat.gradient.Dispose()
		b.round.gradient = GradientTexture(top, bottom, true)
		b.flat.gradient = GradientTexture(top, bottom, false)
	}

	cams := b.round
	if !perspective {
		cams = b.flat
	}
	switch {
	case b.props.UseARBackground:
		b.background = nil
	case !visible:
		b.background = cams.white
	case b.props.RenderEnvironmentMap && b.envMap != nil && perspective:
		b.background = b.envMap
	default:
		b.background = cams.gradient
	}

	switch {
	case !visible:
		b.environment = b.round.white
	case b.envMap != nil:
		b.environment = b.envMap
	default:
		b.environment = b.round.gradient
	}
}

func (b *Background) colorsChanged() bool {
	return b.state.topColor == nil || b.state.bottomColor == nil ||
		*b.state.topColor != b.props.TopColor || *b.state.bottomColor != b.props.BottomColor
}

func (b *Background) setEnvMap(t *Texture) {
	if b.envMap != nil && b.envMap != t {
		b.envMap.Dispose()
	}
	b.envMap = t
}

func (b *Background) startLoad(name string) {
	if b.loader == nil {
		b.log.Warn("no environment map loader configured; reverting to none", zap.String("map", name))
		b.props.EnvironmentMap = ""
		b.state.environmentMap = ""
		return
	}
	b.loads++
	ctx := b.ctx
	future := async.Go(ctx, func(ctx context.Context) (*Texture, error) {
		return b.loader.Load(ctx, name)
	})
	future.Then(b.post, func(tex *Texture, err error) {
		b.finishLoad(name, tex, err)
	})
}

// finishLoad runs on the owning goroutine once a load completes. A result
// for a map that is no longer requested is dropped.
func (b *Background) finishLoad(name string, tex *Texture, err error) {
	b.loads--
	if b.state.environmentMap != name || b.props.EnvironmentMap != name {
		tex.Dispose()
		return
	}
	if err != nil {
		b.log.Warn("failed to load the requested environment map; reverting to none",
			zap.String("map", name), zap.Error(err))
		b.props.EnvironmentMap = ""
		b.state.environmentMap = ""
		b.setEnvMap(nil)
	} else {
		tex.Mapping = MappingEquirectangularReflection
		tex.SRGB = true
		b.setEnvMap(tex)
	}
	b.Update(b.lastVisible, b.lastPerspective)
	if b.onChange != nil {
		b.onChange()
	}
}

// Reload fetches the environment map again if name is still the
// requested map. It reports whether a load started.
func (b *Background) Reload(name string) bool {
	if name == "" || b.props.EnvironmentMap != name {
		return false
	}
	b.state.environmentMap = ""
	b.Update(b.lastVisible, b.lastPerspective)
	return b.state.environmentMap == name
}

// Pending reports how many environment map loads are in flight.
func (b *Background) Pending() int { return b.loads }

// Output returns the current background (nil when transparent) and
// environment textures.
func (b *Background) Output() (background, environment *Texture) {
	return b.background, b.environment
}

// EnvMap returns the loaded environment map, if any.
func (b *Background) EnvMap() *Texture { return b.envMap }

// Gradient returns the gradient texture for a camera kind.
func (b *Background) Gradient(perspective bool) *Texture {
	if perspective {
		return b.round.gradient
	}
	return b.flat.gradient
}

// White returns the neutral texture for a camera kind.
func (b *Background) White(perspective bool) *Texture {
	if perspective {
		return b.round.white
	}
	return b.flat.white
}
