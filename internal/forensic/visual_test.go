package forensic

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer renders solid-color pages keyed by the document's first byte.
type fakeRenderer struct {
	pages  int
	colors map[byte]color.RGBA
	sizes  map[byte]image.Point
	err    error
}

func (f *fakeRenderer) PageCount(doc []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.pages, nil
}

func (f *fakeRenderer) Render(doc []byte, pageIndex, dpi int) (image.Image, error) {
	if f.err != nil {
		return nil, f.err
	}
	size := image.Pt(8, 8)
	if f.sizes != nil {
		if s, ok := f.sizes[doc[0]]; ok {
			size = s
		}
	}
	img := image.NewRGBA(image.Rect(0, 0, size.X, size.Y))
	c := f.colors[doc[0]]
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func TestVisuallyIdenticalSameOutput(t *testing.T) {
	r := &fakeRenderer{
		pages: 3,
		colors: map[byte]color.RGBA{
			'a': {10, 20, 30, 255},
			'b': {10, 20, 30, 255},
		},
	}
	same, err := VisuallyIdentical(r, []byte("a-doc"), []byte("b-doc"), 5, 72)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestVisuallyIdenticalDifferentPixels(t *testing.T) {
	r := &fakeRenderer{
		pages: 1,
		colors: map[byte]color.RGBA{
			'a': {10, 20, 30, 255},
			'b': {10, 20, 31, 255},
		},
	}
	same, err := VisuallyIdentical(r, []byte("a"), []byte("b"), 5, 72)
	require.NoError(t, err)
	assert.False(t, same)
}

func TestVisuallyIdenticalDimensionMismatch(t *testing.T) {
	r := &fakeRenderer{
		pages: 1,
		colors: map[byte]color.RGBA{
			'a': {0, 0, 0, 255},
			'b': {0, 0, 0, 255},
		},
		sizes: map[byte]image.Point{
			'a': image.Pt(8, 8),
			'b': image.Pt(8, 9),
		},
	}
	same, err := VisuallyIdentical(r, []byte("a"), []byte("b"), 5, 72)
	require.NoError(t, err)
	assert.False(t, same)
}

func TestVisuallyIdenticalAlphaIgnored(t *testing.T) {
	r := &fakeRenderer{
		pages: 1,
		colors: map[byte]color.RGBA{
			'a': {50, 60, 70, 255},
			'b': {50, 60, 70, 128},
		},
	}
	same, err := VisuallyIdentical(r, []byte("a"), []byte("b"), 1, 72)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestVisuallyIdenticalRendererError(t *testing.T) {
	r := &fakeRenderer{err: errors.New("render failed")}
	_, err := VisuallyIdentical(r, []byte("a"), []byte("b"), 1, 72)
	assert.Error(t, err)
}

func TestDiffLines(t *testing.T) {
	removed, added := diffLines("alpha\nbeta\ngamma", "alpha\ngamma\ndelta", 10)
	assert.Equal(t, []string{"beta"}, removed)
	assert.Equal(t, []string{"delta"}, added)
}
