package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noiseImage is a procedurally generated image that costs no memory, so
// huge sources can be tested cheaply.
type noiseImage struct{ w, h int }

func (n noiseImage) ColorModel() color.Model { return color.RGBAModel }
func (n noiseImage) Bounds() image.Rectangle { return image.Rect(0, 0, n.w, n.h) }
func (n noiseImage) At(x, y int) color.Color {
	v := uint32(x)*73856093 ^ uint32(y)*19349663
	v ^= v >> 13
	v *= 0x5bd1e995
	v ^= v >> 15
	return color.RGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: 255}
}

func flatImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 90, B: 60, A: 255})
		}
	}
	return img
}

func TestFit(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want image.Point
	}{
		{"small untouched", 640, 480, image.Pt(640, 480)},
		{"wide", 1600, 1200, image.Pt(800, 600)},
		{"tall", 900, 1800, image.Pt(400, 800)},
		{"huge", 10000, 10000, image.Pt(800, 800)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit(noiseImage{tt.w, tt.h}, 800).Bounds().Size()
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShrinkToBudgetWithinBudgetNeedsNoRounds(t *testing.T) {
	enc, err := ShrinkToBudget(flatImage(200, 100), ShrinkOptions{Budget: 42000})
	require.NoError(t, err)
	assert.True(t, enc.WithinBudget)
	assert.Equal(t, 0, enc.Iterations)
	assert.Equal(t, 82, enc.Quality)
	assert.LessOrEqual(t, enc.DataURILen(), 42000)
}

func TestShrinkToBudgetLowersQualityThenSize(t *testing.T) {
	enc, err := ShrinkToBudget(noiseImage{800, 600}, ShrinkOptions{Budget: 42000})
	require.NoError(t, err)
	assert.Greater(t, enc.Iterations, 0)
	assert.LessOrEqual(t, enc.Iterations, 30)
	assert.Equal(t, 50, enc.Quality, "quality is floored before pixels shrink")
	assert.Less(t, enc.Width, 800)
	assert.GreaterOrEqual(t, max(enc.Width, enc.Height), 240)
	if enc.WithinBudget {
		assert.LessOrEqual(t, enc.DataURILen(), 42000)
	}
}

func TestShrinkToBudgetTerminatesOnPathologicalInput(t *testing.T) {
	// A 10000x10000 pick is first bounded to 800px, then squeezed against an
	// unreachable budget: the loop must stop at its floors.
	enc, err := ShrinkToBudget(Fit(noiseImage{10000, 10000}, 800), ShrinkOptions{Budget: 10})
	require.NoError(t, err)
	assert.False(t, enc.WithinBudget)
	assert.LessOrEqual(t, enc.Iterations, 30)
	assert.Equal(t, 50, enc.Quality)
	assert.Equal(t, 240, max(enc.Width, enc.Height))
	assert.NotEmpty(t, enc.Data)
}

func TestShrinkToBudgetRespectsIterationCap(t *testing.T) {
	enc, err := ShrinkToBudget(noiseImage{800, 800}, ShrinkOptions{Budget: 10, MaxIterations: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, enc.Iterations)
	assert.Equal(t, 58, enc.Quality)
	assert.False(t, enc.WithinBudget)
}

func TestShrunkSize(t *testing.T) {
	w, h := shrunkSize(800, 400, 0.8, 240)
	assert.Equal(t, 640, w)
	assert.Equal(t, 320, h)

	w, h = shrunkSize(260, 130, 0.8, 240)
	assert.Equal(t, 240, w)
	assert.Equal(t, 120, h)

	w, h = shrunkSize(240, 100, 0.8, 240)
	assert.Equal(t, 240, w)
	assert.Equal(t, 100, h)
}
