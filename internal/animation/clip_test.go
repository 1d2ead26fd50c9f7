package animation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClipKeys(t *testing.T) {
	clip, err := ParseClip(map[string]any{
		"name": "default",
		"fps":  30,
		"tracks": []any{
			map[string]any{
				"name": ".position",
				"type": "vector",
				"keys": []any{
					map[string]any{"time": 0, "value": []any{0, 0, 0}},
					map[string]any{"time": 60, "value": []any{3, 0, 0}},
				},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "default", clip.Name)
	assert.NotEmpty(t, clip.UUID)
	assert.InDelta(t, 2.0, clip.Duration, 1e-6)

	tr := clip.Tracks[0]
	assert.Equal(t, "", tr.Node)
	assert.Equal(t, "position", tr.Property)
	assert.Equal(t, 3, tr.Stride())
	assert.Equal(t, InterpolateLinear, tr.Interpolation)
	assert.InDeltaSlice(t, []float32{1.5, 0, 0}, tr.Sample(1), 1e-5)
}

func TestParseClipArrays(t *testing.T) {
	clip, err := ParseClip(map[string]any{
		"duration": 5,
		"tracks": []any{
			map[string]any{
				"name": "arm.material.opacity", "type": "number",
				"times": []any{0, 1}, "values": []float64{1, 0},
				"interpolation": 2300,
			},
			map[string]any{
				"name": ".visible", "type": "bool",
				"times": []any{0, 1}, "values": []any{true, false},
			},
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, clip.Duration, 1e-6)

	opacity := clip.Tracks[0]
	assert.Equal(t, "arm", opacity.Node)
	assert.Equal(t, "material.opacity", opacity.Property)
	assert.Equal(t, []float32{1}, opacity.Sample(0.9))
	assert.Equal(t, []float32{0}, opacity.Sample(1))

	visible := clip.Tracks[1]
	assert.Equal(t, InterpolateDiscrete, visible.Interpolation)
	assert.Equal(t, []float32{1}, visible.Sample(0.5))
}

func TestFreshClipUUIDs(t *testing.T) {
	raw := map[string]any{"tracks": []any{}}
	a, err := ParseClip(raw)
	require.NoError(t, err)
	b, err := ParseClip(raw)
	require.NoError(t, err)
	assert.NotEqual(t, a.UUID, b.UUID)
	assert.Zero(t, a.Duration)
}

func TestParseClipErrors(t *testing.T) {
	for name, track := range map[string]map[string]any{
		"unknown type":    {"name": ".x", "type": "matrix", "times": []any{0}, "values": []any{1}},
		"bad name":        {"name": "position", "type": "number", "times": []any{0}, "values": []any{1}},
		"no keyframes":    {"name": ".x", "type": "number", "times": []any{}, "values": []any{}},
		"unsorted":        {"name": ".x", "type": "number", "times": []any{1, 0}, "values": []any{1, 2}},
		"ragged values":   {"name": ".x", "type": "vector", "times": []any{0, 1}, "values": []any{1, 2, 3}},
		"quaternion size": {"name": ".quaternion", "type": "quaternion", "times": []any{0}, "values": []any{0, 0, 1}},
		"interpolation":   {"name": ".x", "type": "number", "times": []any{0}, "values": []any{1}, "interpolation": 9},
		"string values":   {"name": ".name", "type": "string", "keys": []any{map[string]any{"time": 0, "value": 3}}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseClip(map[string]any{"tracks": []any{track}})
			assert.ErrorIs(t, err, ErrBadClip)
		})
	}
}

func TestSampleInterpolation(t *testing.T) {
	smooth := &Track{
		Type: TypeNumber, Interpolation: InterpolateSmooth,
		Times: []float32{0, 2}, Values: []float32{0, 10},
	}
	assert.InDelta(t, 5, smooth.Sample(1)[0], 1e-4)
	assert.Less(t, smooth.Sample(0.5)[0], float32(2.5))
	assert.Equal(t, []float32{0}, smooth.Sample(-1))
	assert.Equal(t, []float32{10}, smooth.Sample(3))

	quat := &Track{
		Type: TypeQuaternion, Interpolation: InterpolateLinear,
		Times: []float32{0, 1}, Values: []float32{0, 0, 0, 1, 0, 0, 1, 0},
	}
	half := quat.Sample(0.5)
	assert.InDelta(t, 0.7071, half[2], 1e-3)
	assert.InDelta(t, 0.7071, half[3], 1e-3)

	names := &Track{Type: TypeString, Interpolation: InterpolateDiscrete, Times: []float32{0, 1}, Strings: []string{"a", "b"}}
	assert.Equal(t, "a", names.SampleString(0.99))
	assert.Equal(t, "b", names.SampleString(1))
	assert.Nil(t, names.Sample(0))
}
