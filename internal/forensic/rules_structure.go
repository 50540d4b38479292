package forensic

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/object"
)

func evalHasRevisions(ctx *Context) []Finding {
	n := len(ctx.Doc.EOFOffsets)
	if n < 2 {
		return nil
	}
	evidence := []Detail{detail("eof_count", strconv.Itoa(n))}
	for i, off := range ctx.Doc.EOFOffsets {
		evidence = append(evidence, detail(fmt.Sprintf("eof_%d_end", i+1), strconv.FormatInt(off, 10)))
	}
	return []Finding{finding(KindHasRevisions, SeverityHigh,
		fmt.Sprintf("file contains %d %%%%EOF markers: %d prior revision(s) are recoverable", n, n-1),
		evidence...)}
}

func evalMultipleStartxref(ctx *Context) []Finding {
	n := len(ctx.Doc.StartXrefs)
	if n < 2 {
		return nil
	}
	return []Finding{finding(KindMultipleStartxref, SeverityMedium,
		fmt.Sprintf("%d startxref entries indicate incremental updates", n),
		detail("count", strconv.Itoa(n)))}
}

func evalLinearizedAndUpdated(ctx *Context) []Finding {
	if !ctx.Doc.Linearized || len(ctx.Doc.EOFOffsets) < 2 {
		return nil
	}
	return []Finding{finding(KindLinearizedAndUpdated, SeverityMedium,
		"linearized file was modified after its optimized save",
		detail("eof_count", strconv.Itoa(len(ctx.Doc.EOFOffsets))))}
}

func evalMissingObjects(ctx *Context) []Finding {
	if len(ctx.Doc.MissingIDs) == 0 {
		return nil
	}
	evidence := make([]Detail, 0, len(ctx.Doc.MissingIDs)+1)
	evidence = append(evidence, detail("count", strconv.Itoa(len(ctx.Doc.MissingIDs))))
	for _, id := range ctx.Doc.MissingIDs {
		evidence = append(evidence, detail("missing", fmt.Sprintf("(%d,%d)", id.Num, id.Gen)))
	}
	return []Finding{finding(KindMissingObjects, SeverityHigh,
		fmt.Sprintf("%d referenced object(s) have no definition", len(ctx.Doc.MissingIDs)),
		evidence...)}
}

func evalObjectsWithGenGreaterZero(ctx *Context) []Finding {
	var hits []object.ID
	for id := range ctx.Doc.DefinedIDs {
		if id.Gen > 0 {
			hits = append(hits, id)
		}
	}
	if len(hits) == 0 {
		return nil
	}
	sortIDs(hits)
	evidence := []Detail{detail("count", strconv.Itoa(len(hits)))}
	for _, id := range hits {
		evidence = append(evidence, detail("object", fmt.Sprintf("(%d,%d)", id.Num, id.Gen)))
	}
	return []Finding{finding(KindObjectsWithGenGreaterZero, SeverityMedium,
		fmt.Sprintf("%d object(s) carry a non-zero generation, indicating reused object numbers", len(hits)),
		evidence...)}
}

func evalOrphanedObjects(ctx *Context) []Finding {
	var orphans []object.ID
	for id := range ctx.Doc.DefinedIDs {
		if !ctx.Doc.ReferencedIDs[id] {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) <= ctx.Cfg.OrphanObjectsThreshold {
		return nil
	}
	sortIDs(orphans)
	evidence := []Detail{detail("count", strconv.Itoa(len(orphans)))}
	limit := len(orphans)
	if limit > 20 {
		limit = 20
	}
	for _, id := range orphans[:limit] {
		evidence = append(evidence, detail("orphan", fmt.Sprintf("(%d,%d)", id.Num, id.Gen)))
	}
	return []Finding{finding(KindOrphanedObjects, SeverityMedium,
		fmt.Sprintf("%d object(s) are defined but never referenced", len(orphans)),
		evidence...)}
}

func evalLargeObjectNumberGaps(ctx *Context) []Finding {
	max := ctx.Doc.MaxObjectNumber()
	if max == 0 {
		return nil
	}
	defined := make(map[int]bool, len(ctx.Doc.DefinedIDs))
	for id := range ctx.Doc.DefinedIDs {
		defined[id.Num] = true
	}
	missing := 0
	for n := 1; n <= max; n++ {
		if !defined[n] {
			missing++
		}
	}
	frac := float64(missing) / float64(max)
	if frac <= ctx.Cfg.ObjectGapFraction {
		return nil
	}
	return []Finding{finding(KindLargeObjectNumberGaps, SeverityMedium,
		fmt.Sprintf("%.1f%% of object numbers up to %d are unused", frac*100, max),
		detail("gap_percentage", fmt.Sprintf("%.1f", frac*100)),
		detail("max_object", strconv.Itoa(max)),
		detail("defined_objects", strconv.Itoa(len(defined))))}
}

func evalHasPieceInfo(ctx *Context) []Finding {
	var holders []object.ID
	for _, rec := range ctx.Doc.AllObjects {
		found := false
		object.Walk(rec.Object, func(o object.Object) {
			if dict, ok := o.(*object.Dict); ok && dict.Has("PieceInfo") {
				found = true
			}
		})
		if found {
			holders = append(holders, rec.ID)
		}
	}
	if len(holders) == 0 {
		return nil
	}
	evidence := []Detail{detail("count", strconv.Itoa(len(holders)))}
	for _, id := range holders {
		evidence = append(evidence, detail("object", fmt.Sprintf("(%d,%d)", id.Num, id.Gen)))
	}
	return []Finding{finding(KindHasPieceInfo, SeverityMedium,
		"document carries application-private /PieceInfo data, typically left by editing tools",
		evidence...)}
}

func evalTouchUpTextEdit(ctx *Context) []Finding {
	for _, rec := range ctx.Doc.AllObjects {
		hit := false
		object.Walk(rec.Object, func(o object.Object) {
			dict, ok := o.(*object.Dict)
			if !ok {
				return
			}
			if b, ok := dict.Get("TouchUp_TextEdit").(object.Bool); ok && b.Value {
				hit = true
			}
		})
		if hit {
			return []Finding{finding(KindTouchUpTextEdit, SeverityHigh,
				"document records an Acrobat TouchUp text edit",
				detail("object", fmt.Sprintf("(%d,%d)", rec.ID.Num, rec.ID.Gen)))}
		}
	}
	return nil
}

func evalMoreLayersThanPages(ctx *Context) []Finding {
	if ctx.Doc.Catalog == nil {
		return nil
	}
	ocProps := ctx.Doc.ResolveDict(ctx.Doc.Catalog.Get("OCProperties"))
	if ocProps == nil {
		return nil
	}
	// distinct OCG object ids reachable from /OCProperties
	ocgs := make(map[object.ID]bool)
	collect := func(obj object.Object) {
		object.WalkRefs(obj, func(id object.ID) { ocgs[id] = true })
	}
	collect(ocProps.Get("OCGs"))
	if d := ctx.Doc.ResolveDict(ocProps.Get("D")); d != nil {
		collect(d.Get("Order"))
		collect(d.Get("ON"))
		collect(d.Get("OFF"))
	}
	pages := len(ctx.Doc.Pages)
	if pages == 0 || len(ocgs) <= pages {
		return nil
	}
	return []Finding{finding(KindMoreLayersThanPages, SeverityMedium,
		fmt.Sprintf("%d optional content groups exceed the %d page(s)", len(ocgs), pages),
		detail("layers", strconv.Itoa(len(ocgs))),
		detail("pages", strconv.Itoa(pages)))}
}

// permissionBits maps /P flag values to the restriction they lift when set;
// a cleared bit means the operation is restricted.
var permissionBits = []struct {
	bit  int64
	name string
}{
	{4, "printing"},
	{8, "modification"},
	{16, "copying"},
	{32, "annotations"},
}

func evalEncryptionPresent(ctx *Context) []Finding {
	if !ctx.Doc.Encrypted {
		return nil
	}
	summary := "document declares an encryption dictionary"
	var evidence []Detail

	enc := encryptDict(ctx)
	if enc != nil {
		if f := enc.Name("Filter"); f != "" {
			evidence = append(evidence, detail("filter", f))
		}
		if v := enc.Int("V", 0); v > 0 {
			evidence = append(evidence, detail("version", strconv.FormatInt(v, 10)))
		}
		if r := enc.Int("R", 0); r > 0 {
			evidence = append(evidence, detail("revision", strconv.FormatInt(r, 10)))
		}
		if enc.Has("P") {
			p := enc.Int("P", 0)
			evidence = append(evidence, detail("permissions", strconv.FormatInt(p, 10)))
			if p < 0 {
				var restricted []string
				for _, perm := range permissionBits {
					if p&perm.bit == 0 {
						restricted = append(restricted, perm.name)
					}
				}
				if len(restricted) > 0 {
					evidence = append(evidence, detail("restricted", strings.Join(restricted, ", ")))
					summary = "document is encrypted and restricts " + strings.Join(restricted, ", ")
				}
			}
		}
	}
	return []Finding{finding(KindEncryptionPresent, SeverityMedium, summary, evidence...)}
}

// encryptDict resolves the trailer's /Encrypt dictionary, falling back to
// any Standard security handler dictionary when the trailer is unreadable.
func encryptDict(ctx *Context) *object.Dict {
	if ctx.Doc.Trailer != nil {
		if dict := ctx.Doc.ResolveDict(ctx.Doc.Trailer.Get("Encrypt")); dict != nil {
			return dict
		}
	}
	for _, rec := range ctx.Doc.AllObjects {
		dict := dictOf(rec.Object)
		if dict != nil && dict.Name("Filter") == "Standard" && dict.Has("P") {
			return dict
		}
	}
	return nil
}

// containerSignatures maps well-known magic bytes to the format they open.
var containerSignatures = []struct {
	magic  []byte
	format string
}{
	{[]byte("PK\x03\x04"), "ZIP"},
	{[]byte("PK\x05\x06"), "ZIP (empty)"},
	{[]byte{0x1F, 0x8B, 0x08}, "GZIP"},
	{[]byte("Rar!"), "RAR"},
	{[]byte{0x89, 'P', 'N', 'G'}, "PNG"},
	{[]byte{0xFF, 0xD8, 0xFF}, "JPEG"},
	{[]byte("GIF8"), "GIF"},
}

func evalPolyglotFile(ctx *Context) []Finding {
	off := ctx.Doc.HeaderOffset
	if off <= 0 {
		return nil
	}
	evidence := []Detail{detail("header_offset", strconv.FormatInt(off, 10))}
	prefixFormat := ""
	for _, sig := range containerSignatures {
		if bytes.HasPrefix(ctx.Doc.Source, sig.magic) {
			prefixFormat = sig.format
			break
		}
	}
	summary := fmt.Sprintf("%%PDF header at byte %d instead of 0", off)
	if prefixFormat != "" {
		evidence = append(evidence, detail("prefix_format", prefixFormat))
		summary += ", preceded by " + prefixFormat + " data: possible polyglot file"
	}
	return []Finding{finding(KindPolyglotFile, SeverityMedium, summary, evidence...)}
}

// evalHasDigitalSignature records signature presence and whether the declared
// /ByteRange covers the file; it performs no cryptographic validation.
func evalHasDigitalSignature(ctx *Context) []Finding {
	var out []Finding
	for _, rec := range ctx.Doc.AllObjects {
		dict := dictOf(rec.Object)
		if dict == nil || dict.Name("Type") != "Sig" {
			continue
		}
		evidence := []Detail{detail("object", fmt.Sprintf("(%d,%d)", rec.ID.Num, rec.ID.Gen))}
		if f := dict.Text("Name"); f != "" {
			evidence = append(evidence, detail("name", f))
		}
		if m := dict.Text("M"); m != "" {
			evidence = append(evidence, detail("signed_at", m))
		}
		summary := "document contains a digital signature"
		if br, covered, ok := byteRangeCoverage(ctx, dict); ok {
			evidence = append(evidence, detail("byte_range", br))
			if !covered {
				evidence = append(evidence, detail("covers_file", "false"))
				summary = "digital signature does not cover the end of the file; content was added after signing"
			} else {
				evidence = append(evidence, detail("covers_file", "true"))
			}
		}
		out = append(out, finding(KindHasDigitalSignature, SeverityMedium, summary, evidence...))
	}
	return out
}

// byteRangeCoverage renders the signature's /ByteRange and checks whether its
// spans reach the end of the final revision.
func byteRangeCoverage(ctx *Context, sig *object.Dict) (rendered string, covered bool, ok bool) {
	arr, isArr := ctx.Doc.Resolve(sig.Get("ByteRange")).(*object.Array)
	if !isArr || arr.Len() < 4 || arr.Len()%2 != 0 {
		return "", false, false
	}
	var parts []string
	end := int64(0)
	for i := 0; i < arr.Len(); i += 2 {
		start, ok1 := arr.At(i).(object.Number)
		length, ok2 := arr.At(i + 1).(object.Number)
		if !ok1 || !ok2 {
			return "", false, false
		}
		parts = append(parts, start.String(), length.String())
		if s := start.Float(); s+length.Float() > float64(end) {
			end = int64(s + length.Float())
		}
	}
	fileEnd := int64(len(ctx.Doc.Source))
	if n := len(ctx.Doc.EOFOffsets); n > 0 {
		fileEnd = ctx.Doc.EOFOffsets[n-1]
	}
	// allow the EOL tail after the final %%EOF
	return "[" + strings.Join(parts, " ") + "]", end+4 >= fileEnd, true
}

func dictOf(obj object.Object) *object.Dict {
	switch v := obj.(type) {
	case *object.Dict:
		return v
	case *object.Stream:
		return v.Dict
	}
	return nil
}

func sortIDs(ids []object.ID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0; j-- {
			a, b := ids[j-1], ids[j]
			if a.Num < b.Num || (a.Num == b.Num && a.Gen <= b.Gen) {
				break
			}
			ids[j-1], ids[j] = b, a
		}
	}
}

// usesXrefStreams reports whether the document's xref chain includes stream
// sections; needed by the version-mismatch evaluator.
func usesXrefStreams(ctx *Context) bool {
	if ctx.Doc.Chain != nil && ctx.Doc.Chain.UsesXrefStreams() {
		return true
	}
	// a chain may be unreadable; fall back to object evidence
	for _, rec := range ctx.Doc.AllObjects {
		if s, ok := rec.Object.(*object.Stream); ok && s.Dict.Name("Type") == "XRef" {
			return true
		}
	}
	return false
}
