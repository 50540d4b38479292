package filters

import (
	"fmt"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/object"
)

// applyPredictor reverses the TIFF/PNG predictor declared in the decode
// parameters, as used by Flate and LZW streams (notably xref streams).
func applyPredictor(data []byte, parms *object.Dict) ([]byte, error) {
	if parms == nil {
		return data, nil
	}
	predictor := int(parms.Int("Predictor", 1))
	if predictor <= 1 {
		return data, nil
	}
	columns := int(parms.Int("Columns", 1))
	colors := int(parms.Int("Colors", 1))
	bpc := int(parms.Int("BitsPerComponent", 8))
	if columns < 1 {
		columns = 1
	}
	if colors < 1 {
		colors = 1
	}
	if bpc < 1 {
		bpc = 8
	}

	switch {
	case predictor == 2:
		return applyTIFFPredictor(data, columns, colors, bpc)
	case predictor >= 10 && predictor <= 15:
		return applyPNGPredictor(data, columns, colors, bpc)
	default:
		return data, nil
	}
}

func applyTIFFPredictor(data []byte, columns, colors, bpc int) ([]byte, error) {
	if bpc != 8 {
		return data, nil // sub-byte components are left untouched
	}
	bytesPerPixel := colors
	rowSize := columns * bytesPerPixel
	if rowSize == 0 || len(data)%rowSize != 0 {
		return data, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	for row := 0; row < len(data)/rowSize; row++ {
		base := row * rowSize
		for i := bytesPerPixel; i < rowSize; i++ {
			out[base+i] += out[base+i-bytesPerPixel]
		}
	}
	return out, nil
}

func applyPNGPredictor(data []byte, columns, colors, bpc int) ([]byte, error) {
	bytesPerPixel := (colors*bpc + 7) / 8
	if bytesPerPixel < 1 {
		bytesPerPixel = 1
	}
	rowSize := (columns*colors*bpc + 7) / 8
	stride := rowSize + 1 // leading predictor byte per row
	if stride <= 1 || len(data)%stride != 0 {
		return nil, fmt.Errorf("png predictor: data length %d not a multiple of row stride %d", len(data), stride)
	}
	rows := len(data) / stride
	out := make([]byte, rows*rowSize)
	var prev []byte
	for r := 0; r < rows; r++ {
		tag := data[r*stride]
		row := out[r*rowSize : (r+1)*rowSize]
		copy(row, data[r*stride+1:(r+1)*stride])
		switch tag {
		case 0: // none
		case 1: // sub
			for i := bytesPerPixel; i < rowSize; i++ {
				row[i] += row[i-bytesPerPixel]
			}
		case 2: // up
			for i := 0; i < rowSize && prev != nil; i++ {
				row[i] += prev[i]
			}
		case 3: // average
			for i := 0; i < rowSize; i++ {
				var left, up byte
				if i >= bytesPerPixel {
					left = row[i-bytesPerPixel]
				}
				if prev != nil {
					up = prev[i]
				}
				row[i] += byte((int(left) + int(up)) / 2)
			}
		case 4: // paeth
			for i := 0; i < rowSize; i++ {
				var left, up, upLeft byte
				if i >= bytesPerPixel {
					left = row[i-bytesPerPixel]
				}
				if prev != nil {
					up = prev[i]
					if i >= bytesPerPixel {
						upLeft = prev[i-bytesPerPixel]
					}
				}
				row[i] += paeth(left, up, upLeft)
			}
		default:
			return nil, fmt.Errorf("png predictor: unknown filter tag %d", tag)
		}
		prev = row
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa, pb, pc := abs(p-int(a)), abs(p-int(b)), abs(p-int(c))
	switch {
	case pa <= pb && pa <= pc:
		return a
	case pb <= pc:
		return b
	default:
		return c
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
