// Package filters decodes PDF stream filter chains. Decoding is bounded: a
// stream inflating past the caller's limit is rejected rather than buffered.
package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"encoding/ascii85"
	"errors"
	"fmt"
	"io"

	"github.com/hhrutter/lzw"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/object"
)

// ErrStreamTooLarge is returned when a decoded stream exceeds the size limit.
var ErrStreamTooLarge = errors.New("decoded stream exceeds size limit")

// Decoder decodes a single filter's output.
type Decoder interface {
	Name() string
	Decode(data []byte, parms *object.Dict, maxSize int64) ([]byte, error)
}

var registry = map[string]Decoder{
	"FlateDecode":     flateDecoder{},
	"Fl":              flateDecoder{},
	"ASCIIHexDecode":  asciiHexDecoder{},
	"AHx":             asciiHexDecoder{},
	"ASCII85Decode":   ascii85Decoder{},
	"A85":             ascii85Decoder{},
	"LZWDecode":       lzwDecoder{},
	"LZW":             lzwDecoder{},
	"RunLengthDecode": runLengthDecoder{},
	"RL":              runLengthDecoder{},
	"DCTDecode":       passthroughDecoder{name: "DCTDecode"},
	"DCT":             passthroughDecoder{name: "DCTDecode"},
	"JPXDecode":       passthroughDecoder{name: "JPXDecode"},
}

// Lookup returns the decoder registered under name, or nil.
func Lookup(name string) Decoder { return registry[name] }

// DecodeStream runs a stream's raw bytes through its declared filter chain.
// Image compression filters (DCT/JPX) pass their data through unchanged.
func DecodeStream(s *object.Stream, maxSize int64) ([]byte, error) {
	data := s.Raw
	for i, name := range s.Filters() {
		dec := Lookup(name)
		if dec == nil {
			return nil, fmt.Errorf("unsupported filter %q", name)
		}
		var err error
		data, err = dec.Decode(data, s.DecodeParms(i), maxSize)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return data, nil
}

// readBounded drains r into a buffer, failing once maxSize is exceeded.
func readBounded(r io.Reader, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		return io.ReadAll(r)
	}
	limited := io.LimitReader(r, maxSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, ErrStreamTooLarge
	}
	return data, nil
}

type flateDecoder struct{}

func (flateDecoder) Name() string { return "FlateDecode" }

func (flateDecoder) Decode(data []byte, parms *object.Dict, maxSize int64) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	var src io.ReadCloser
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		// some producers emit raw deflate data without the zlib wrapper
		src = flate.NewReader(bytes.NewReader(data))
	} else {
		src = zr
	}
	defer src.Close()
	decoded, err := readBounded(src, maxSize)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		// tolerate truncated deflate tails, common in real-world files
		if errors.Is(err, ErrStreamTooLarge) || len(decoded) == 0 {
			return nil, err
		}
	}
	return applyPredictor(decoded, parms)
}

type lzwDecoder struct{}

func (lzwDecoder) Name() string { return "LZWDecode" }

func (lzwDecoder) Decode(data []byte, parms *object.Dict, maxSize int64) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}
	earlyChange := true
	if parms != nil && parms.Int("EarlyChange", 1) == 0 {
		earlyChange = false
	}
	lr := lzw.NewReader(bytes.NewReader(data), earlyChange)
	defer lr.Close()
	decoded, err := readBounded(lr, maxSize)
	if err != nil {
		if errors.Is(err, ErrStreamTooLarge) || len(decoded) == 0 {
			return nil, err
		}
	}
	return applyPredictor(decoded, parms)
}

type asciiHexDecoder struct{}

func (asciiHexDecoder) Name() string { return "ASCIIHexDecode" }

func (asciiHexDecoder) Decode(data []byte, _ *object.Dict, maxSize int64) ([]byte, error) {
	var nibbles []byte
	for _, c := range data {
		if c == '>' {
			break
		}
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
			nibbles = append(nibbles, c)
		}
	}
	if len(nibbles)%2 == 1 {
		nibbles = append(nibbles, '0')
	}
	out := make([]byte, len(nibbles)/2)
	for i := range out {
		out[i] = hexVal(nibbles[2*i])<<4 | hexVal(nibbles[2*i+1])
	}
	if maxSize > 0 && int64(len(out)) > maxSize {
		return nil, ErrStreamTooLarge
	}
	return out, nil
}

func hexVal(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

type ascii85Decoder struct{}

func (ascii85Decoder) Name() string { return "ASCII85Decode" }

func (ascii85Decoder) Decode(data []byte, _ *object.Dict, maxSize int64) ([]byte, error) {
	// strip optional <~ prefix and ~> terminator plus whitespace
	trimmed := bytes.TrimSpace(data)
	trimmed = bytes.TrimPrefix(trimmed, []byte("<~"))
	if idx := bytes.Index(trimmed, []byte("~>")); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	dec := ascii85.NewDecoder(bytes.NewReader(trimmed))
	return readBounded(dec, maxSize)
}

type runLengthDecoder struct{}

func (runLengthDecoder) Name() string { return "RunLengthDecode" }

func (runLengthDecoder) Decode(data []byte, _ *object.Dict, maxSize int64) ([]byte, error) {
	var out []byte
	i := 0
	for i < len(data) {
		n := int(data[i])
		i++
		if n == 128 {
			break
		}
		if n < 128 {
			count := n + 1
			if i+count > len(data) {
				return nil, errors.New("truncated literal run")
			}
			out = append(out, data[i:i+count]...)
			i += count
		} else {
			if i >= len(data) {
				return nil, errors.New("truncated replicate run")
			}
			out = append(out, bytes.Repeat(data[i:i+1], 257-n)...)
			i++
		}
		if maxSize > 0 && int64(len(out)) > maxSize {
			return nil, ErrStreamTooLarge
		}
	}
	return out, nil
}

type passthroughDecoder struct{ name string }

func (d passthroughDecoder) Name() string { return d.name }

func (passthroughDecoder) Decode(data []byte, _ *object.Dict, _ int64) ([]byte, error) {
	return data, nil
}
