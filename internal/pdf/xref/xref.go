// Package xref reads PDF cross-reference information: classic xref tables,
// cross-reference streams, and the /Prev chain that links one revision's
// section to the next. The chain is what gives a file its revision structure.
package xref

import (
	"fmt"
	"strconv"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/filters"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/object"
)

// EntryType classifies a cross-reference entry.
type EntryType int

const (
	EntryFree EntryType = iota
	EntryInUse
	EntryCompressed
)

func (t EntryType) String() string {
	switch t {
	case EntryFree:
		return "free"
	case EntryInUse:
		return "in-use"
	case EntryCompressed:
		return "compressed"
	default:
		return "unknown"
	}
}

// Entry is one cross-reference record.
type Entry struct {
	Type      EntryType
	Offset    int64 // byte offset for in-use entries
	Gen       int
	StreamNum int // object stream number for compressed entries
	StreamIdx int // index within the object stream
}

// Section is one xref section (classic table or xref stream) with its
// trailer dictionary and the /Prev offset linking to the previous revision.
type Section struct {
	Offset   int64
	Entries  map[object.ID]Entry
	Trailer  *object.Dict
	Prev     int64 // -1 when the chain ends here
	IsStream bool
}

// Chain is the full /Prev-linked list of sections, newest first.
type Chain struct {
	Sections []Section
	Errors   []string
}

// Trailer returns the newest section's trailer, or nil.
func (c *Chain) Trailer() *object.Dict {
	if len(c.Sections) == 0 {
		return nil
	}
	return c.Sections[0].Trailer
}

// UsesXrefStreams reports whether any section in the chain is an xref stream.
func (c *Chain) UsesXrefStreams() bool {
	for _, s := range c.Sections {
		if s.IsStream {
			return true
		}
	}
	return false
}

// Lookup returns the newest entry for an object number, searching sections
// newest to oldest.
func (c *Chain) Lookup(id object.ID) (Entry, bool) {
	for _, s := range c.Sections {
		if e, ok := s.Entries[id]; ok {
			return e, true
		}
	}
	return Entry{}, false
}

// ReadChain follows the /Prev chain starting at the given offset. Cycles,
// out-of-range offsets and unparseable sections terminate the chain with an
// error instead of failing the whole read; whatever was parsed is returned.
func ReadChain(data []byte, start int64, maxStream int64) *Chain {
	chain := &Chain{}
	visited := make(map[int64]bool)
	offset := start
	for offset >= 0 {
		if offset >= int64(len(data)) {
			chain.Errors = append(chain.Errors, fmt.Sprintf("xref offset %d beyond end of file", offset))
			break
		}
		if visited[offset] {
			chain.Errors = append(chain.Errors, fmt.Sprintf("xref /Prev chain cycles back to offset %d", offset))
			break
		}
		visited[offset] = true

		section, err := ReadSection(data, offset, maxStream)
		if err != nil {
			chain.Errors = append(chain.Errors, fmt.Sprintf("xref section at %d: %v", offset, err))
			break
		}
		chain.Sections = append(chain.Sections, *section)
		offset = section.Prev
	}
	return chain
}

// ReadSection parses the xref section at offset, detecting whether it is a
// classic table or an xref stream.
func ReadSection(data []byte, offset int64, maxStream int64) (*Section, error) {
	lex := object.NewLexer(data, offset)
	tok := lex.NextToken()
	if tok.Type == object.TokenKeyword && tok.Value == "xref" {
		return readClassicTable(data, lex, offset)
	}
	return readXrefStream(data, offset, maxStream)
}

// readClassicTable parses "xref\n start count\n <entries>... trailer <<...>>".
// The lexer is positioned just past the xref keyword.
func readClassicTable(data []byte, lex *object.Lexer, offset int64) (*Section, error) {
	section := &Section{
		Offset:  offset,
		Entries: make(map[object.ID]Entry),
		Prev:    -1,
	}

	for {
		tok := lex.NextToken()
		switch {
		case tok.Type == object.TokenKeyword && tok.Value == "trailer":
			parser := object.NewParser(data)
			trailer, err := parser.ParseObjectAt(lex.Pos())
			if err != nil {
				return nil, fmt.Errorf("trailer: %w", err)
			}
			dict, ok := trailer.(*object.Dict)
			if !ok {
				return nil, fmt.Errorf("trailer is %s, not a dictionary", trailer.Type())
			}
			section.Trailer = dict
			section.Prev = prevOffset(dict)
			return section, nil

		case tok.Type == object.TokenNumber:
			startNum, err := strconv.Atoi(tok.Value)
			if err != nil {
				return nil, fmt.Errorf("bad subsection start %q", tok.Value)
			}
			countTok := lex.NextToken()
			if countTok.Type != object.TokenNumber {
				return nil, fmt.Errorf("bad subsection count %q", countTok.Value)
			}
			count, err := strconv.Atoi(countTok.Value)
			if err != nil || count < 0 {
				return nil, fmt.Errorf("bad subsection count %q", countTok.Value)
			}
			for i := 0; i < count; i++ {
				entry, gen, flag, err := readTableEntry(lex)
				if err != nil {
					// skip malformed entries, keep reading the subsection
					continue
				}
				id := object.ID{Num: startNum + i, Gen: gen}
				typ := EntryInUse
				if flag != "n" {
					typ = EntryFree
				}
				section.Entries[id] = Entry{Type: typ, Offset: entry, Gen: gen}
			}

		case tok.Type == object.TokenEOF:
			return nil, fmt.Errorf("unterminated xref table")

		default:
			return nil, fmt.Errorf("unexpected token %q in xref table", tok.Value)
		}
	}
}

func readTableEntry(lex *object.Lexer) (offset int64, gen int, flag string, err error) {
	offTok := lex.NextToken()
	genTok := lex.NextToken()
	flagTok := lex.NextToken()
	if offTok.Type != object.TokenNumber || genTok.Type != object.TokenNumber ||
		flagTok.Type != object.TokenKeyword {
		return 0, 0, "", fmt.Errorf("malformed xref entry")
	}
	offset, err = strconv.ParseInt(offTok.Value, 10, 64)
	if err != nil {
		return 0, 0, "", err
	}
	gen, err = strconv.Atoi(genTok.Value)
	if err != nil {
		return 0, 0, "", err
	}
	return offset, gen, flagTok.Value, nil
}

// readXrefStream parses a cross-reference stream object at offset: the
// stream is decoded through its filter chain and the /W column widths are
// applied to each row.
func readXrefStream(data []byte, offset int64, maxStream int64) (*Section, error) {
	start := offset
	parser := object.NewParser(data)
	ind, err := parser.ParseIndirectAt(start)
	if err != nil {
		return nil, fmt.Errorf("not an xref table and no indirect object: %w", err)
	}
	stream, ok := ind.Object.(*object.Stream)
	if !ok {
		return nil, fmt.Errorf("object %s at xref offset is %s, not a stream", ind.ID, ind.Object.Type())
	}
	if stream.Dict.Name("Type") != "XRef" {
		return nil, fmt.Errorf("stream object %s is not /Type /XRef", ind.ID)
	}

	decoded, err := filters.DecodeStream(stream, maxStream)
	if err != nil {
		return nil, fmt.Errorf("decode xref stream: %w", err)
	}

	widths, err := columnWidths(stream.Dict)
	if err != nil {
		return nil, err
	}
	rowLen := widths[0] + widths[1] + widths[2]
	if rowLen == 0 {
		return nil, fmt.Errorf("xref stream /W declares zero-width rows")
	}

	size := stream.Dict.Int("Size", 0)
	index := indexPairs(stream.Dict, size)

	section := &Section{
		Offset:   offset,
		Entries:  make(map[object.ID]Entry),
		Trailer:  stream.Dict,
		Prev:     prevOffset(stream.Dict),
		IsStream: true,
	}

	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		first, count := index[i], index[i+1]
		for n := int64(0); n < count; n++ {
			if pos+rowLen > len(decoded) {
				return section, nil // truncated stream: keep what was read
			}
			row := decoded[pos : pos+rowLen]
			pos += rowLen

			f1 := decodeField(row[:widths[0]], 1) // default type 1 when W[0]==0
			f2 := decodeField(row[widths[0]:widths[0]+widths[1]], 0)
			f3 := decodeField(row[widths[0]+widths[1]:], 0)

			id := object.ID{Num: int(first + n)}
			switch f1 {
			case 0:
				section.Entries[object.ID{Num: id.Num, Gen: int(f3)}] = Entry{Type: EntryFree, Gen: int(f3)}
			case 1:
				section.Entries[object.ID{Num: id.Num, Gen: int(f3)}] = Entry{Type: EntryInUse, Offset: f2, Gen: int(f3)}
			case 2:
				section.Entries[id] = Entry{Type: EntryCompressed, StreamNum: int(f2), StreamIdx: int(f3)}
			}
		}
	}
	return section, nil
}

func columnWidths(dict *object.Dict) ([3]int, error) {
	var widths [3]int
	w := dict.Array("W")
	if w.Len() < 3 {
		return widths, fmt.Errorf("xref stream missing /W array")
	}
	for i := 0; i < 3; i++ {
		n, ok := w.At(i).(object.Number)
		if !ok || !n.IsInt || n.Int < 0 || n.Int > 8 {
			return widths, fmt.Errorf("invalid /W array %s", w.String())
		}
		widths[i] = int(n.Int)
	}
	return widths, nil
}

func indexPairs(dict *object.Dict, size int64) []int64 {
	idx := dict.Array("Index")
	if idx.Len() == 0 || idx.Len()%2 != 0 {
		return []int64{0, size}
	}
	pairs := make([]int64, 0, idx.Len())
	for _, e := range idx.Elems {
		n, ok := e.(object.Number)
		if !ok || !n.IsInt {
			return []int64{0, size}
		}
		pairs = append(pairs, n.Int)
	}
	return pairs
}

// decodeField reads a big-endian integer from b; zero-width fields take the
// given default.
func decodeField(b []byte, def int64) int64 {
	if len(b) == 0 {
		return def
	}
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func prevOffset(dict *object.Dict) int64 {
	if !dict.Has("Prev") {
		return -1
	}
	prev := dict.Int("Prev", -1)
	if prev < 0 {
		return -1
	}
	return prev
}
