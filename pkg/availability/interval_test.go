package availability

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseClock(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestIntervalBackToBack(t *testing.T) {
	first, err := NewInterval("18:00", 120)
	require.NoError(t, err)
	second, err := NewInterval("20:00", 120)
	require.NoError(t, err)

	assert.False(t, first.Overlaps(second))
	assert.False(t, second.Overlaps(first))
}

func TestIntervalContained(t *testing.T) {
	outer, err := NewInterval("18:00", 240)
	require.NoError(t, err)
	inner, err := NewInterval("19:00", 60)
	require.NoError(t, err)

	assert.True(t, outer.Overlaps(inner))
	assert.True(t, inner.Overlaps(outer))
}

func TestIntervalRejectsNonPositiveDuration(t *testing.T) {
	_, err := NewInterval("18:00", 0)
	assert.Error(t, err)
	_, err = NewInterval("18:00", -30)
	assert.Error(t, err)
}

// Overlap must be symmetric and must agree with the brute-force minute-set
// intersection for random intervals.
func TestIntervalOverlapProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 2000; i++ {
		a := Interval{Start: rng.Intn(1380), End: 0}
		a.End = a.Start + 1 + rng.Intn(240)
		b := Interval{Start: rng.Intn(1380), End: 0}
		b.End = b.Start + 1 + rng.Intn(240)

		want := false
		for m := a.Start; m < a.End; m++ {
			if m >= b.Start && m < b.End {
				want = true
				break
			}
		}

		assert.Equal(t, want, a.Overlaps(b), "a=%+v b=%+v", a, b)
		assert.Equal(t, a.Overlaps(b), b.Overlaps(a), "a=%+v b=%+v", a, b)
	}
}
