package forensic

import (
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"
)

// PageRenderer rasterizes one page of a PDF held in memory. Rendering is an
// external collaborator; the analyzer only compares the bitmaps it returns.
type PageRenderer interface {
	Render(document []byte, pageIndex int, dpi int) (image.Image, error)
	PageCount(document []byte) (int, error)
}

// VisuallyIdentical renders the first min(maxPages, pageCount) pages of both
// byte slices at the given DPI and compares them pixel-for-pixel after
// normalizing to RGB8. Any dimension mismatch makes the pair non-identical.
func VisuallyIdentical(r PageRenderer, final, revision []byte, maxPages, dpi int) (bool, error) {
	finalPages, err := r.PageCount(final)
	if err != nil {
		return false, fmt.Errorf("page count of final: %w", err)
	}
	revPages, err := r.PageCount(revision)
	if err != nil {
		return false, fmt.Errorf("page count of revision: %w", err)
	}
	if finalPages != revPages {
		return false, nil
	}
	pages := finalPages
	if pages > maxPages {
		pages = maxPages
	}
	for i := 0; i < pages; i++ {
		a, err := r.Render(final, i, dpi)
		if err != nil {
			return false, fmt.Errorf("render final page %d: %w", i+1, err)
		}
		b, err := r.Render(revision, i, dpi)
		if err != nil {
			return false, fmt.Errorf("render revision page %d: %w", i+1, err)
		}
		if !samePixels(a, b) {
			return false, nil
		}
	}
	return true, nil
}

// samePixels compares two images as RGB8, ignoring alpha.
func samePixels(a, b image.Image) bool {
	if a.Bounds().Dx() != b.Bounds().Dx() || a.Bounds().Dy() != b.Bounds().Dy() {
		return false
	}
	ra := toRGBA(a)
	rb := toRGBA(b)
	for i := 0; i < len(ra.Pix); i += 4 {
		if ra.Pix[i] != rb.Pix[i] || ra.Pix[i+1] != rb.Pix[i+1] || ra.Pix[i+2] != rb.Pix[i+2] {
			return false
		}
	}
	return true
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	dst := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	xdraw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, xdraw.Src)
	return dst
}
