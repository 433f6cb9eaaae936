package timebase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestFrameStepDoesNotDrift(t *testing.T) {
	rate := Rate{Num: 30000, Den: 1001}
	cur := Zero
	for i := 0; i < 30000; i++ {
		cur = cur.Add(rate.Period())
	}
	assert.True(t, cur.Equal(Seconds(1001)), "got %s", cur)
	assert.Equal(t, int64(30000), cur.Frame(rate))
	assert.True(t, FromFrame(30000, rate).Equal(cur))
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Time
	}{
		{"1.5", New(3, 2)},
		{"3/2", New(3, 2)},
		{"2s", Seconds(2)},
		{"1500ms", Millis(1500)},
		{"1m30s", Seconds(90)},
		{"-0.25", New(-1, 4)},
		{"0", Zero},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %s want %s", got, tt.want)
		})
	}

	_, err := Parse("soon")
	assert.ErrorIs(t, err, ErrInvalidTime)
	_, err = Parse("1/0")
	assert.ErrorIs(t, err, ErrInvalidTime)
}

func TestCmpAcrossDenominators(t *testing.T) {
	assert.Equal(t, -1, New(1, 3).Cmp(New(1, 2)))
	assert.Equal(t, 0, New(2, 4).Cmp(New(1, 2)))
	assert.Equal(t, 1, Seconds(1).Cmp(New(999, 1000)))
	assert.Equal(t, 1500*time.Millisecond, New(3, 2).Duration())
	assert.InDelta(t, 0.5, Seconds(1).Ratio(Seconds(2)), 1e-12)
}

func TestFrameFloorsNegativeTimes(t *testing.T) {
	assert.Equal(t, int64(-1), New(-1, 60).Frame(FPS(30)))
	assert.Equal(t, int64(0), New(1, 60).Frame(FPS(30)))
}

func TestRangeContainsIsHalfOpen(t *testing.T) {
	r := Range{Start: Seconds(1), Length: Seconds(2)}
	assert.False(t, r.Contains(New(999, 1000)))
	assert.True(t, r.Contains(Seconds(1)))
	assert.True(t, r.Contains(New(2999, 1000)))
	assert.False(t, r.Contains(Seconds(3)))

	assert.False(t, Range{Start: Zero, Length: Zero}.Contains(Zero))
	assert.False(t, Range{Start: Zero, Length: Seconds(-1)}.Contains(New(-1, 2)))
}

func TestTimeYAML(t *testing.T) {
	var doc struct {
		A Time `yaml:"a"`
		B Time `yaml:"b"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("a: 2.5\nb: 1001/30000\n"), &doc))
	assert.True(t, doc.A.Equal(New(5, 2)))
	assert.True(t, doc.B.Equal(New(1001, 30000)))

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), "a: 5/2")
}

func TestParseRate(t *testing.T) {
	r, err := ParseRate("30000/1001")
	require.NoError(t, err)
	assert.InDelta(t, 29.97, r.Float(), 0.01)

	_, err = ParseRate("0")
	assert.Error(t, err)
}
