// Package pdftest builds small synthetic PDF files with correct offsets for
// use in tests. The builder writes classic xref tables and supports
// incremental updates, which is exactly the revision structure the analyzer
// exists to detect.
package pdftest

import (
	"bytes"
	"fmt"
	"sort"
)

// Builder accumulates a PDF file revision by revision.
type Builder struct {
	buf          bytes.Buffer
	offsets      map[int]int64
	revisionObjs []int
	lastXref     int64
	finished     int
}

// NewBuilder starts a file with the given header version (e.g. "1.4").
func NewBuilder(version string) *Builder {
	b := &Builder{offsets: make(map[int]int64), lastXref: -1}
	fmt.Fprintf(&b.buf, "%%PDF-%s\n", version)
	b.buf.WriteString("%\xe2\xe3\xcf\xd3\n")
	return b
}

// AddObject writes "num 0 obj <body> endobj" and records its offset.
func (b *Builder) AddObject(num int, body string) *Builder {
	return b.AddObjectGen(num, 0, body)
}

// AddObjectGen writes an object with an explicit generation number.
func (b *Builder) AddObjectGen(num, gen int, body string) *Builder {
	b.offsets[num] = int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "%d %d obj\n%s\nendobj\n", num, gen, body)
	b.revisionObjs = append(b.revisionObjs, num)
	return b
}

// AddStreamObject writes a stream object with the given dictionary body
// (without /Length, which is added) and raw stream data.
func (b *Builder) AddStreamObject(num int, dict string, data []byte) *Builder {
	b.offsets[num] = int64(b.buf.Len())
	fmt.Fprintf(&b.buf, "%d 0 obj\n<< %s /Length %d >>\nstream\n", num, dict, len(data))
	b.buf.Write(data)
	b.buf.WriteString("\nendstream\nendobj\n")
	b.revisionObjs = append(b.revisionObjs, num)
	return b
}

// FinishRevision writes an xref table covering the objects added since the
// previous revision, a trailer (with /Prev chaining revisions), startxref
// and %%EOF. trailerExtra is appended inside the trailer dictionary.
func (b *Builder) FinishRevision(rootNum int, trailerExtra string) *Builder {
	xrefOff := int64(b.buf.Len())
	b.buf.WriteString("xref\n")

	nums := append([]int(nil), b.revisionObjs...)
	sort.Ints(nums)
	if b.finished == 0 {
		b.buf.WriteString("0 1\n0000000000 65535 f \n")
	}
	for _, n := range nums {
		fmt.Fprintf(&b.buf, "%d 1\n%010d %05d n \n", n, b.offsets[n], 0)
	}

	maxObj := 0
	for n := range b.offsets {
		if n > maxObj {
			maxObj = n
		}
	}
	b.buf.WriteString("trailer\n<< ")
	fmt.Fprintf(&b.buf, "/Size %d /Root %d 0 R", maxObj+1, rootNum)
	if b.lastXref >= 0 {
		fmt.Fprintf(&b.buf, " /Prev %d", b.lastXref)
	}
	if trailerExtra != "" {
		b.buf.WriteString(" " + trailerExtra)
	}
	b.buf.WriteString(" >>\n")
	fmt.Fprintf(&b.buf, "startxref\n%d\n%%%%EOF\n", xrefOff)

	b.lastXref = xrefOff
	b.revisionObjs = nil
	b.finished++
	return b
}

// Bytes returns the file built so far.
func (b *Builder) Bytes() []byte {
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	return out
}

// SimpleDoc returns a minimal clean one-revision PDF with a single page
// showing the text "Hello", and the given extra body objects appended before
// the xref.
func SimpleDoc(extra func(b *Builder)) []byte {
	b := NewBuilder("1.4")
	b.AddObject(1, "<< /Type /Catalog /Pages 2 0 R >>")
	b.AddObject(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	b.AddObject(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>")
	b.AddStreamObject(4, "", []byte("BT /F1 12 Tf 72 720 Td (Hello) Tj ET"))
	if extra != nil {
		extra(b)
	}
	b.FinishRevision(1, "")
	return b.Bytes()
}
