package id

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextIsMonotonic(t *testing.T) {
	t.Parallel()

	g := NewGenerator(7)
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	prev := g.At(ts)
	for i := 0; i < 1000; i++ {
		next := g.At(ts)
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestAtStampsTime(t *testing.T) {
	t.Parallel()

	g := NewGenerator(1)
	tests := []struct {
		name string
		ts   time.Time
		want time.Time
	}{
		{"bar time", time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"truncated to ms", time.Date(2021, 6, 1, 0, 0, 0, 1_500_000, time.UTC), time.Date(2021, 6, 1, 0, 0, 0, 1_000_000, time.UTC)},
		{"pre epoch clamps", time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC), time.UnixMilli(0).UTC()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Time(g.At(tt.ts))
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestLaterBarsSortLater(t *testing.T) {
	t.Parallel()

	g := NewGenerator(3)
	t0 := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	a := g.At(t0)
	b := g.At(t0.Add(time.Minute))
	assert.Less(t, a, b)
}

func TestPackageLevel(t *testing.T) {
	t.Parallel()

	_, err := ulid.Parse(New())
	assert.NoError(t, err)

	got, err := Time(New())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), got, time.Minute)

	_, err = Time("not a ulid")
	assert.Error(t, err)
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	a := NewSession()
	b := NewSession()
	assert.NotEqual(t, a, b)

	_, err := uuid.Parse(a)
	assert.NoError(t, err)
}
