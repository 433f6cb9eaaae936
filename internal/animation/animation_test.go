package animation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/compositor/internal/geom"
	"github.com/ivlev/compositor/internal/timebase"
)

func ms(n int64) timebase.Time { return timebase.Millis(n) }

func linear0to100(t *testing.T) *Animation[float64] {
	t.Helper()
	a, err := New(nil,
		Keyframe[float64]{Time: ms(0), Value: 0},
		Keyframe[float64]{Time: ms(1000), Value: 100},
	)
	require.NoError(t, err)
	return a
}

func TestSampleLinear(t *testing.T) {
	a := linear0to100(t)

	assert.InDelta(t, 50, a.Sample(ms(500)), 1e-9)
	assert.InDelta(t, 25, a.Sample(ms(250)), 1e-9)
	assert.Equal(t, 100.0, a.Sample(ms(2000)))
	assert.Equal(t, 0.0, a.Sample(ms(-300)))
	assert.Equal(t, 0.0, a.Sample(ms(0)))
	assert.Equal(t, 100.0, a.Sample(ms(1000)))
}

func TestSampleIsPure(t *testing.T) {
	a := linear0to100(t)
	first := a.Sample(ms(730))
	for range 10 {
		_ = a.Sample(ms(120))
		assert.Equal(t, first, a.Sample(ms(730)))
	}
}

func TestSampleUnorderedKeysAndEasing(t *testing.T) {
	a, err := New(nil,
		Keyframe[float64]{Time: ms(2000), Value: 0, Easing: "in-quad"},
		Keyframe[float64]{Time: ms(0), Value: 0},
		Keyframe[float64]{Time: ms(1000), Value: 10},
	)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Len())
	assert.InDelta(t, 5, a.Sample(ms(500)), 1e-9)

	// in-quad at p=0.5 covers a quarter of the way down
	assert.InDelta(t, 7.5, a.Sample(ms(1500)), 1e-3)
	assert.Equal(t, ms(2000), a.Duration())
}

func TestSampleHoldAndCoincidentKeys(t *testing.T) {
	a, err := New(nil,
		Keyframe[float64]{Time: ms(0), Value: 1},
		Keyframe[float64]{Time: ms(1000), Value: 2, Easing: "hold"},
		Keyframe[float64]{Time: ms(1000), Value: 5},
		Keyframe[float64]{Time: ms(2000), Value: 7},
	)
	require.NoError(t, err)
	assert.Equal(t, 1.0, a.Sample(ms(999)))
	assert.InDelta(t, 6, a.Sample(ms(1500)), 1e-9)
	assert.Equal(t, 5.0, a.Sample(ms(1000)))
}

func TestSampleCoincidentFirstKeys(t *testing.T) {
	a := MustNew(nil,
		Keyframe[float64]{Time: ms(500), Value: 1},
		Keyframe[float64]{Time: ms(500), Value: 4},
		Keyframe[float64]{Time: ms(1500), Value: 8},
	)
	assert.Equal(t, 1.0, a.Sample(ms(499)))
	assert.Equal(t, 4.0, a.Sample(ms(500)))
	assert.InDelta(t, 6, a.Sample(ms(1000)), 1e-9)
}

func TestSampleDegenerate(t *testing.T) {
	empty, err := New[float64](nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.Sample(ms(100)))

	single := MustNew(nil, Keyframe[float64]{Time: ms(400), Value: 3})
	assert.Equal(t, 3.0, single.Sample(ms(0)))
	assert.Equal(t, 3.0, single.Sample(ms(9000)))

	var nilAnim *Animation[float64]
	assert.Equal(t, 0.0, Sample(nilAnim, ms(10)))
}

func TestNewRejectsBadKeys(t *testing.T) {
	_, err := New(nil, Keyframe[float64]{Time: ms(-1), Value: 0})
	assert.ErrorIs(t, err, ErrNegativeTime)

	_, err = New(nil,
		Keyframe[float64]{Time: ms(0), Value: 0},
		Keyframe[float64]{Time: ms(10), Value: 1, Easing: "wobble"},
	)
	assert.ErrorContains(t, err, "wobble")
}

func TestDiscreteSwitchesAtHalf(t *testing.T) {
	a := MustNew(nil,
		Keyframe[string]{Time: ms(0), Value: "center"},
		Keyframe[string]{Time: ms(1000), Value: "top-left"},
	)
	assert.Equal(t, "center", a.Sample(ms(499)))
	assert.Equal(t, "top-left", a.Sample(ms(500)))

	b := MustNew(nil,
		Keyframe[bool]{Time: ms(0), Value: false},
		Keyframe[bool]{Time: ms(100), Value: true},
	)
	assert.False(t, b.Sample(ms(10)))
	assert.True(t, b.Sample(ms(60)))
}

func TestComponentWiseLerp(t *testing.T) {
	v := MustNew(nil,
		Keyframe[geom.Vec2]{Time: ms(0), Value: geom.Vec2{X: 0, Y: 10}},
		Keyframe[geom.Vec2]{Time: ms(1000), Value: geom.Vec2{X: 10, Y: 0}},
	)
	assert.Equal(t, geom.Vec2{X: 5, Y: 5}, v.Sample(ms(500)))

	c := MustNew(nil,
		Keyframe[geom.Color]{Time: ms(0), Value: geom.Black},
		Keyframe[geom.Color]{Time: ms(1000), Value: geom.White},
	)
	mid := c.Sample(ms(500))
	assert.InDelta(t, 0.5, mid.R, 1e-9)
	assert.InDelta(t, 1, mid.A, 1e-9)

	n := MustNew(nil,
		Keyframe[int]{Time: ms(0), Value: 3},
		Keyframe[int]{Time: ms(1000), Value: 6},
	)
	assert.Equal(t, 5, n.Sample(ms(600)))
}

func TestEasingEndpoints(t *testing.T) {
	for _, name := range EasingNames() {
		fn, err := EasingByName(name)
		require.NoError(t, err, name)
		assert.InDelta(t, 0, fn(0), 1e-6, name)
		assert.InDelta(t, 1, fn(1), 1e-6, name)
	}
}

func TestPropertyYAML(t *testing.T) {
	var doc struct {
		Opacity Property[float64]   `yaml:"opacity"`
		Pos     Property[geom.Vec2] `yaml:"pos"`
		Mode    Property[string]    `yaml:"mode"`
	}
	src := `
opacity:
  keyframes:
    - {time: 0, value: 0}
    - {time: 2s, value: 1}
pos: {x: 3, y: 4}
mode: center
`
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))

	assert.True(t, doc.Opacity.IsAnimated())
	assert.InDelta(t, 0.5, doc.Opacity.At(ms(1000)), 1e-9)
	assert.False(t, doc.Pos.IsAnimated())
	assert.Equal(t, geom.Vec2{X: 3, Y: 4}, doc.Pos.At(ms(1000)))
	assert.Equal(t, "center", doc.Mode.At(ms(0)))

	out, err := yaml.Marshal(doc.Opacity)
	require.NoError(t, err)
	var back Property[float64]
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.InDelta(t, 0.25, back.At(ms(500)), 1e-9)
}

func TestPropertyEmptyKeyframesUsesValue(t *testing.T) {
	var p Property[float64]
	require.NoError(t, yaml.Unmarshal([]byte("{value: 7, keyframes: []}"), &p))
	assert.False(t, p.IsAnimated())
	assert.Equal(t, 7.0, p.At(ms(100)))
}
