package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanEmptyInput(t *testing.T) {
	res := Scan(nil)
	assert.Empty(t, res[MarkerEOF])
	assert.Empty(t, res[MarkerStartXref])
}

func TestScanFindsMarkers(t *testing.T) {
	data := []byte("%PDF-1.4\n1 0 obj\n<< /Linearized 1 >>\nendobj\nxref\ntrailer\nstartxref\n42\n%%EOF\n")
	res := Scan(data)

	assert.Len(t, res[MarkerHeader], 1)
	assert.Len(t, res[MarkerObj], 1)
	assert.Len(t, res[MarkerEndObj], 1)
	assert.Len(t, res[MarkerLinearized], 1)
	assert.Len(t, res[MarkerEOF], 1)

	// "xref" inside "startxref" must not be double counted
	assert.Len(t, res[MarkerXref], 1)
	assert.Len(t, res[MarkerStartXref], 1)
}

func TestScanObjNotMatchedInsideEndobj(t *testing.T) {
	data := []byte("1 0 obj\nnull\nendobj\n")
	res := Scan(data)
	assert.Len(t, res[MarkerObj], 1)
	assert.Len(t, res[MarkerEndObj], 1)
}

func TestScanNameBoundary(t *testing.T) {
	// /Previous must not match /Prev
	res := Scan([]byte("<< /Previous 3 /Prev 119 >>"))
	require.Len(t, res[MarkerPrev], 1)
	assert.Equal(t, int64(15), res[MarkerPrev][0])
}

func TestScanMixedLineEndings(t *testing.T) {
	data := []byte("%%EOF\r\nstartxref\r99\r\n%%EOF")
	res := Scan(data)
	assert.Len(t, res[MarkerEOF], 2)
	assert.Len(t, res[MarkerStartXref], 1)
}

func TestEOFEnds(t *testing.T) {
	data := []byte("x%%EOF\n")
	ends := Scan(data).EOFEnds()
	require.Len(t, ends, 1)
	assert.Equal(t, int64(6), ends[0])
}

func TestStartXrefs(t *testing.T) {
	data := []byte("startxref\n1234\n%%EOF\nstartxref\r\n987\r\n%%EOF")
	res := Scan(data)
	entries := StartXrefs(data, res)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1234), entries[0].XrefOffset)
	assert.Equal(t, int64(987), entries[1].XrefOffset)
}

func TestHeader(t *testing.T) {
	t.Run("Present", func(t *testing.T) {
		off, version, ok := Header([]byte("junk%PDF-1.7\nrest"))
		require.True(t, ok)
		assert.Equal(t, int64(4), off)
		assert.Equal(t, "1.7", version)
	})

	t.Run("Absent", func(t *testing.T) {
		_, _, ok := Header([]byte("not a pdf"))
		assert.False(t, ok)
	})
}

func TestScanOrderedOffsets(t *testing.T) {
	data := []byte("%%EOF junk %%EOF junk %%EOF")
	offs := Scan(data)[MarkerEOF]
	require.Len(t, offs, 3)
	assert.True(t, offs[0] < offs[1] && offs[1] < offs[2])
}
