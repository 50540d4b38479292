package filters

import (
	"bytes"
	"compress/zlib"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/object"
)

func zlibCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestLookup(t *testing.T) {
	for _, name := range []string{
		"FlateDecode", "ASCIIHexDecode", "ASCII85Decode",
		"LZWDecode", "RunLengthDecode", "DCTDecode", "JPXDecode",
	} {
		assert.NotNil(t, Lookup(name), "filter %s should be registered", name)
	}
	assert.Nil(t, Lookup("NoSuchFilter"))
}

func TestFlateDecode(t *testing.T) {
	original := []byte("forensic analysis of portable documents")
	decoded, err := flateDecoder{}.Decode(zlibCompress(t, original), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestFlateDecodeSizeLimit(t *testing.T) {
	big := bytes.Repeat([]byte("A"), 4096)
	_, err := flateDecoder{}.Decode(zlibCompress(t, big), nil, 100)
	assert.ErrorIs(t, err, ErrStreamTooLarge)
}

func TestFlateDecodeEmpty(t *testing.T) {
	decoded, err := flateDecoder{}.Decode(nil, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestFlateDecodePNGPredictor(t *testing.T) {
	// two rows of 3 bytes with the Up predictor
	raw := []byte{
		0, 1, 2, 3, // row 0, filter none
		2, 1, 1, 1, // row 1, filter up
	}
	parms := object.NewDict()
	parms.Set("Predictor", object.Number{Int: 12, IsInt: true})
	parms.Set("Columns", object.Number{Int: 3, IsInt: true})

	decoded, err := flateDecoder{}.Decode(zlibCompress(t, raw), parms, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 2, 3, 4}, decoded)
}

func TestASCIIHexDecode(t *testing.T) {
	decoded, err := asciiHexDecoder{}.Decode([]byte("48 65 6C 6C 6F>"), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), decoded)

	// odd digit count pads with zero
	decoded, err = asciiHexDecoder{}.Decode([]byte("48F>"), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x48, 0xF0}, decoded)
}

func TestASCII85Decode(t *testing.T) {
	decoded, err := ascii85Decoder{}.Decode([]byte("87cURDZ~>"), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), decoded)
}

func TestRunLengthDecode(t *testing.T) {
	// literal run "ab", replicate 'c' x4, EOD
	data := []byte{1, 'a', 'b', 253, 'c', 128}
	decoded, err := runLengthDecoder{}.Decode(data, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcccc"), decoded)
}

func TestRunLengthTruncated(t *testing.T) {
	_, err := runLengthDecoder{}.Decode([]byte{5, 'a'}, nil, 0)
	assert.Error(t, err)
}

func TestDecodeStreamChain(t *testing.T) {
	payload := []byte("layered stream content")
	compressed := zlibCompress(t, payload)

	var hexed bytes.Buffer
	for _, b := range compressed {
		hexed.WriteString(string("0123456789ABCDEF"[b>>4]) + string("0123456789ABCDEF"[b&0xF]))
	}
	hexed.WriteByte('>')

	dict := object.NewDict()
	dict.Set("Filter", &object.Array{Elems: []object.Object{
		object.Name{Value: "ASCIIHexDecode"},
		object.Name{Value: "FlateDecode"},
	}})
	stream := &object.Stream{Dict: dict, Raw: hexed.Bytes()}

	decoded, err := DecodeStream(stream, 0)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestDecodeStreamUnsupportedFilter(t *testing.T) {
	dict := object.NewDict()
	dict.Set("Filter", object.Name{Value: "JBIG2Decode"})
	_, err := DecodeStream(&object.Stream{Dict: dict, Raw: []byte("x")}, 0)
	assert.Error(t, err)
}

func TestDCTPassthrough(t *testing.T) {
	jpeg := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	decoded, err := passthroughDecoder{name: "DCTDecode"}.Decode(jpeg, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, jpeg, decoded)
}
