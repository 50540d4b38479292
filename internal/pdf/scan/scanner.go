// Package scan locates the fixed PDF structure markers in a raw byte buffer.
//
// The scanner works on undecoded bytes and makes a single linear pass. It
// reports every occurrence of each marker; distinguishing structural tokens
// from lookalikes embedded in strings or stream data is the object parser's
// job, not the scanner's.
package scan

import (
	"bytes"
	"strconv"
)

// Marker identifies one of the literal tokens the scanner looks for.
type Marker string

const (
	MarkerHeader     Marker = "%PDF-"
	MarkerEOF        Marker = "%%EOF"
	MarkerStartXref  Marker = "startxref"
	MarkerXref       Marker = "xref"
	MarkerTrailer    Marker = "trailer"
	MarkerObj        Marker = "obj"
	MarkerEndObj     Marker = "endobj"
	MarkerStream     Marker = "stream"
	MarkerEndStream  Marker = "endstream"
	MarkerPrev       Marker = "/Prev"
	MarkerEncrypt    Marker = "/Encrypt"
	MarkerLinearized Marker = "/Linearized"
)

// Result maps each marker to the sorted byte offsets where it starts.
type Result map[Marker][]int64

// keywords require a token boundary on both sides so that e.g. the "xref"
// inside "startxref" or the "obj" inside "endobj" is not double-counted.
var keywords = []Marker{
	MarkerStartXref, MarkerEndStream, MarkerEndObj, MarkerTrailer,
	MarkerStream, MarkerXref, MarkerObj,
}

// names require a boundary only after the token ("/Prev" must not match
// "/Previous"); the leading solidus is itself a delimiter.
var names = []Marker{MarkerPrev, MarkerEncrypt, MarkerLinearized}

// comments ("%PDF-", "%%EOF") match anywhere a percent sign starts them.
var comments = []Marker{MarkerHeader, MarkerEOF}

// Scan makes one pass over data and records every marker occurrence.
// It never fails; empty or truncated input yields an empty result.
func Scan(data []byte) Result {
	res := make(Result)
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '%':
			for _, m := range comments {
				if hasToken(data, i, m) {
					res[m] = append(res[m], int64(i))
					i += len(m) - 1
					break
				}
			}
		case '/':
			for _, m := range names {
				if hasToken(data, i, m) && boundaryAfter(data, i+len(m)) {
					res[m] = append(res[m], int64(i))
					i += len(m) - 1
					break
				}
			}
		case 's', 'x', 't', 'o', 'e':
			if !boundaryBefore(data, i) {
				continue
			}
			for _, m := range keywords {
				if hasToken(data, i, m) && boundaryAfter(data, i+len(m)) {
					res[m] = append(res[m], int64(i))
					i += len(m) - 1
					break
				}
			}
		}
	}
	return res
}

func hasToken(data []byte, i int, m Marker) bool {
	return i+len(m) <= len(data) && string(data[i:i+len(m)]) == string(m)
}

func boundaryBefore(data []byte, i int) bool {
	return i == 0 || !isRegular(data[i-1])
}

func boundaryAfter(data []byte, end int) bool {
	return end >= len(data) || !isRegular(data[end])
}

// isRegular reports whether c is a PDF regular character, i.e. neither
// whitespace nor a delimiter.
func isRegular(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return false
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return false
	}
	return true
}

// EOFEnds returns the offsets just past each %%EOF marker, in file order.
func (r Result) EOFEnds() []int64 {
	offs := r[MarkerEOF]
	ends := make([]int64, len(offs))
	for i, o := range offs {
		ends[i] = o + int64(len(MarkerEOF))
	}
	return ends
}

// StartXrefEntry pairs a startxref marker with the xref offset it declares.
type StartXrefEntry struct {
	MarkerOffset int64
	XrefOffset   int64
}

// StartXrefs parses the integer following each startxref marker. Markers with
// no parseable integer are skipped.
func StartXrefs(data []byte, r Result) []StartXrefEntry {
	var entries []StartXrefEntry
	for _, off := range r[MarkerStartXref] {
		pos := off + int64(len(MarkerStartXref))
		if v, ok := readInt(data, pos); ok {
			entries = append(entries, StartXrefEntry{MarkerOffset: off, XrefOffset: v})
		}
	}
	return entries
}

func readInt(data []byte, pos int64) (int64, bool) {
	for pos < int64(len(data)) && !isRegular(data[pos]) {
		pos++
	}
	start := pos
	for pos < int64(len(data)) && data[pos] >= '0' && data[pos] <= '9' {
		pos++
	}
	if pos == start {
		return 0, false
	}
	v, err := strconv.ParseInt(string(data[start:pos]), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Header locates the %PDF- header and returns its offset and declared
// version. PDF readers accept a header within the first 1024 bytes;
// callers decide how to treat later or missing headers.
func Header(data []byte) (offset int64, version string, ok bool) {
	idx := bytes.Index(data, []byte(MarkerHeader))
	if idx < 0 {
		return 0, "", false
	}
	end := idx + len(MarkerHeader)
	for end < len(data) && (data[end] == '.' || (data[end] >= '0' && data[end] <= '9')) {
		end++
	}
	return int64(idx), string(data[idx+len(MarkerHeader) : end]), true
}
