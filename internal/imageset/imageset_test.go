package imageset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func plane(fill float64) *mat.Dense {
	img := mat.NewDense(2, 2, nil)
	img.Set(0, 0, fill)
	return img
}

func TestZLevelsUnionAcrossChannels(t *testing.T) {
	s := New()
	s.Set("DAPI", 2, plane(1))
	s.Set("DAPI", 0, plane(2))
	s.Set("PolyT", 5, plane(3))

	assert.Equal(t, []int{0, 2, 5}, s.ZLevels())
	assert.Equal(t, []string{"DAPI", "PolyT"}, s.Channels())
}

func TestAsListAscendingZOrder(t *testing.T) {
	s := New()
	a, b, c := plane(1), plane(2), plane(3)
	s.Set("DAPI", 7, c)
	s.Set("DAPI", 1, b)
	s.Set("DAPI", 0, a)

	got := s.AsList("DAPI")
	require.Len(t, got, 3)
	assert.Same(t, a, got[0])
	assert.Same(t, b, got[1])
	assert.Same(t, c, got[2])

	assert.Empty(t, s.AsList("missing"))
}

func TestSetOverwrites(t *testing.T) {
	s := New()
	s.Set("DAPI", 0, plane(1))
	replacement := plane(9)
	s.Set("DAPI", 0, replacement)

	got, ok := s.At("DAPI", 0)
	require.True(t, ok)
	assert.Same(t, replacement, got)
}

func TestAsStackOrdersChannels(t *testing.T) {
	s := New()
	d0, d1 := plane(1), plane(2)
	p0, p1 := plane(3), plane(4)
	s.Set("DAPI", 0, d0)
	s.Set("DAPI", 1, d1)
	s.Set("PolyT", 0, p0)
	s.Set("PolyT", 1, p1)

	stack, err := s.AsStack([]string{"PolyT", "DAPI"})
	require.NoError(t, err)
	require.Len(t, stack, 2)
	assert.Same(t, p0, stack[0][0])
	assert.Same(t, d0, stack[0][1])
	assert.Same(t, p1, stack[1][0])
	assert.Same(t, d1, stack[1][1])
}

func TestAsStackDefaultsToSortedChannels(t *testing.T) {
	s := New()
	s.Set("PolyT", 0, plane(1))
	s.Set("DAPI", 0, plane(2))

	stack, err := s.AsStack(nil)
	require.NoError(t, err)
	require.Len(t, stack, 1)
	require.Len(t, stack[0], 2)

	want, _ := s.At("DAPI", 0)
	assert.Same(t, want, stack[0][0])
}

func TestAsStackFailsOnMissingPlane(t *testing.T) {
	s := New()
	s.Set("DAPI", 0, plane(1))
	s.Set("PolyT", 1, plane(2))

	_, err := s.AsStack(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "z-layer")
}
