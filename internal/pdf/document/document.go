// Package document assembles one file's bytes into a Document: the
// marker offsets, the object graph, the cross-reference chain, pages and
// metadata. Parsing is tolerant end to end; problems are collected into
// Errors and the document carries whatever could be recognized.
package document

import (
	"fmt"
	"sort"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/filters"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/metadata"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/object"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/scan"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/xref"
)

// Options controls resource limits during parsing.
type Options struct {
	// MaxStreamSize bounds the decoded size of any single stream; streams
	// inflating past it are skipped with an error recorded.
	MaxStreamSize int64
}

// Record is one parsed indirect object and where it was found. Offset is -1
// for objects unpacked from an object stream.
type Record struct {
	ID     object.ID
	Object object.Object
	Offset int64
}

// Document is the parsed view of a single PDF file.
type Document struct {
	Source  []byte
	Version string

	Markers       scan.Result
	HeaderOffset  int64
	EOFOffsets    []int64 // offsets just past each %%EOF
	StartXrefs    []scan.StartXrefEntry
	Chain         *xref.Chain
	UsesObjStm    bool
	Linearized    bool
	Encrypted     bool

	Objects    map[object.ID]Record // newest definition wins
	AllObjects []Record             // every definition in file order

	DefinedIDs    map[object.ID]bool
	ReferencedIDs map[object.ID]bool
	MissingIDs    []object.ID

	Trailer *object.Dict
	Catalog *object.Dict
	Info    map[string]string

	XMP *metadata.XMP

	Pages []object.ID // page objects in tree order

	Errors []string

	opts Options
}

func (d *Document) recordError(format string, args ...interface{}) {
	d.Errors = append(d.Errors, fmt.Sprintf(format, args...))
}

// Parse builds a Document from raw file bytes. It does not fail: a file with
// nothing recognizable yields a Document whose Errors explain why.
func Parse(data []byte, opts Options) *Document {
	doc := &Document{
		Source:        data,
		Objects:       make(map[object.ID]Record),
		DefinedIDs:    make(map[object.ID]bool),
		ReferencedIDs: make(map[object.ID]bool),
		opts:          opts,
	}

	if off, version, ok := scan.Header(data); ok {
		doc.HeaderOffset = off
		doc.Version = version
	} else {
		doc.HeaderOffset = -1
		doc.recordError("no %%PDF header found")
	}

	doc.Markers = scan.Scan(data)
	doc.EOFOffsets = doc.Markers.EOFEnds()
	doc.StartXrefs = scan.StartXrefs(data, doc.Markers)

	if len(doc.StartXrefs) > 0 {
		last := doc.StartXrefs[len(doc.StartXrefs)-1]
		doc.Chain = xref.ReadChain(data, last.XrefOffset, opts.MaxStreamSize)
		doc.Errors = append(doc.Errors, doc.Chain.Errors...)
	} else {
		doc.Chain = &xref.Chain{}
		if len(doc.EOFOffsets) > 0 {
			doc.recordError("no startxref marker found")
		}
	}

	doc.parseObjects()
	doc.expandObjectStreams()
	doc.collectReferences()
	doc.loadTrailer()
	doc.loadCatalog()
	doc.loadPages()
	doc.loadMetadata()
	doc.detectLinearization()

	return doc
}

// parseObjects walks every obj keyword the scanner found and parses the
// indirect object that starts before it. Later definitions of the same id
// shadow earlier ones in Objects; AllObjects keeps every definition.
func (d *Document) parseObjects() {
	parser := object.NewParser(d.Source)
	for _, kwOff := range d.Markers[scan.MarkerObj] {
		start := object.StartOfIndirect(d.Source, kwOff)
		if start < 0 {
			continue
		}
		ind, err := parser.ParseIndirectAt(start)
		if err != nil {
			d.recordError("object at offset %d: %v", start, err)
			continue
		}
		rec := Record{ID: ind.ID, Object: ind.Object, Offset: start}
		d.AllObjects = append(d.AllObjects, rec)
		d.Objects[ind.ID] = rec
		d.DefinedIDs[ind.ID] = true
	}
	d.Errors = append(d.Errors, parser.Errors...)
}

// expandObjectStreams unpacks /Type /ObjStm containers so their objects join
// the graph. Compressed objects always have generation zero.
func (d *Document) expandObjectStreams() {
	// iterate over a snapshot: unpacking appends to AllObjects
	snapshot := make([]Record, len(d.AllObjects))
	copy(snapshot, d.AllObjects)
	for _, rec := range snapshot {
		stream, ok := rec.Object.(*object.Stream)
		if !ok || stream.Dict.Name("Type") != "ObjStm" {
			continue
		}
		d.UsesObjStm = true
		decoded, err := filters.DecodeStream(stream, d.opts.MaxStreamSize)
		if err != nil {
			d.recordError("object stream %s: %v", rec.ID, err)
			continue
		}
		n := int(stream.Dict.Int("N", 0))
		first := stream.Dict.Int("First", 0)
		if n <= 0 || first <= 0 || first > int64(len(decoded)) {
			d.recordError("object stream %s: invalid /N or /First", rec.ID)
			continue
		}

		// header: N pairs of (object number, relative offset)
		lex := object.NewLexer(decoded, 0)
		type pair struct {
			num int
			off int64
		}
		pairs := make([]pair, 0, n)
		for i := 0; i < n; i++ {
			numTok := lex.NextToken()
			offTok := lex.NextToken()
			if numTok.Type != object.TokenNumber || offTok.Type != object.TokenNumber {
				break
			}
			var p pair
			fmt.Sscanf(numTok.Value, "%d", &p.num)
			fmt.Sscanf(offTok.Value, "%d", &p.off)
			pairs = append(pairs, p)
		}

		inner := object.NewParser(decoded)
		for _, p := range pairs {
			pos := first + p.off
			if pos < 0 || pos >= int64(len(decoded)) {
				d.recordError("object stream %s: object %d offset out of range", rec.ID, p.num)
				continue
			}
			obj, err := inner.ParseObjectAt(pos)
			if err != nil {
				d.recordError("object stream %s: object %d: %v", rec.ID, p.num, err)
				continue
			}
			id := object.ID{Num: p.num}
			r := Record{ID: id, Object: obj, Offset: -1}
			d.AllObjects = append(d.AllObjects, r)
			d.Objects[id] = r
			d.DefinedIDs[id] = true
		}
	}
}

// collectReferences walks every definition plus the trailer dictionaries,
// building the referenced-id set and the missing-id list.
func (d *Document) collectReferences() {
	mark := func(id object.ID) { d.ReferencedIDs[id] = true }
	for _, rec := range d.AllObjects {
		object.WalkRefs(rec.Object, mark)
	}
	for _, sec := range d.Chain.Sections {
		if sec.Trailer != nil {
			object.WalkRefs(sec.Trailer, mark)
		}
	}

	var missing []object.ID
	for id := range d.ReferencedIDs {
		if !d.DefinedIDs[id] {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		if missing[i].Num != missing[j].Num {
			return missing[i].Num < missing[j].Num
		}
		return missing[i].Gen < missing[j].Gen
	})
	d.MissingIDs = missing
}

func (d *Document) loadTrailer() {
	d.Trailer = d.Chain.Trailer()
	if d.Trailer == nil {
		// fall back to the last trailer keyword in the file
		offs := d.Markers[scan.MarkerTrailer]
		if len(offs) > 0 {
			parser := object.NewParser(d.Source)
			pos := offs[len(offs)-1] + int64(len(scan.MarkerTrailer))
			if obj, err := parser.ParseObjectAt(pos); err == nil {
				if dict, ok := obj.(*object.Dict); ok {
					d.Trailer = dict
				}
			}
		}
	}
	if d.Trailer != nil && d.Trailer.Has("Encrypt") {
		d.Encrypted = true
	} else if len(d.Markers[scan.MarkerEncrypt]) > 0 {
		// name appears outside a parseable trailer; treat as declared
		d.Encrypted = true
	}
}

func (d *Document) loadCatalog() {
	if d.Trailer == nil {
		return
	}
	root := d.Resolve(d.Trailer.Get("Root"))
	if dict, ok := root.(*object.Dict); ok {
		d.Catalog = dict
		return
	}
	// tolerate a missing trailer Root: search for a catalog object
	for _, rec := range d.AllObjects {
		if dict, ok := rec.Object.(*object.Dict); ok && dict.Name("Type") == "Catalog" {
			d.Catalog = dict
			return
		}
	}
}

func (d *Document) loadMetadata() {
	if d.Trailer != nil {
		if info, ok := d.Resolve(d.Trailer.Get("Info")).(*object.Dict); ok {
			d.Info = metadata.InfoDict(info)
		}
	}

	var packet []byte
	if d.Catalog != nil {
		if stream, ok := d.Resolve(d.Catalog.Get("Metadata")).(*object.Stream); ok {
			decoded, err := filters.DecodeStream(stream, d.opts.MaxStreamSize)
			if err != nil {
				d.recordError("metadata stream: %v", err)
			} else {
				packet = decoded
			}
		}
	}
	if packet == nil {
		packet = metadata.FindPacket(d.Source)
	}
	if packet == nil {
		return
	}
	xmp, err := metadata.Parse(packet)
	if err != nil {
		d.recordError("%v", err)
	}
	d.XMP = xmp
}

// detectLinearization checks whether the first object in the file carries a
// /Linearized dictionary.
func (d *Document) detectLinearization() {
	var first *Record
	for i := range d.AllObjects {
		rec := &d.AllObjects[i]
		if rec.Offset < 0 {
			continue
		}
		if first == nil || rec.Offset < first.Offset {
			first = rec
		}
	}
	if first == nil {
		return
	}
	if dict, ok := first.Object.(*object.Dict); ok && dict.Has("Linearized") {
		d.Linearized = true
	}
}

// Resolve dereferences obj when it is an indirect reference, following
// chains of references with a visited guard. Unresolvable references yield
// Null.
func (d *Document) Resolve(obj object.Object) object.Object {
	visited := make(map[object.ID]bool)
	for {
		ref, ok := obj.(object.Ref)
		if !ok {
			return obj
		}
		if visited[ref.ID] {
			return object.Null{}
		}
		visited[ref.ID] = true
		rec, ok := d.Objects[ref.ID]
		if !ok {
			// generation mismatches are common in damaged files; retry with
			// generation zero before giving up
			rec, ok = d.Objects[object.ID{Num: ref.ID.Num}]
			if !ok {
				return object.Null{}
			}
		}
		obj = rec.Object
	}
}

// ResolveDict resolves obj and returns it as a dictionary (the dictionary of
// a stream included), or nil.
func (d *Document) ResolveDict(obj object.Object) *object.Dict {
	switch v := d.Resolve(obj).(type) {
	case *object.Dict:
		return v
	case *object.Stream:
		return v.Dict
	}
	return nil
}

// DecodeStream decodes a stream through its filter chain under the
// document's size limit.
func (d *Document) DecodeStream(s *object.Stream) ([]byte, error) {
	return filters.DecodeStream(s, d.opts.MaxStreamSize)
}

// MaxObjectNumber returns the highest defined object number.
func (d *Document) MaxObjectNumber() int {
	max := 0
	for id := range d.DefinedIDs {
		if id.Num > max {
			max = id.Num
		}
	}
	return max
}
