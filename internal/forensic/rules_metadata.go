package forensic

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/metadata"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/object"
)

func evalXmpHistory(ctx *Context) []Finding {
	xmp := ctx.Doc.XMP
	if xmp == nil || len(xmp.History) == 0 {
		return nil
	}
	evidence := []Detail{detail("entries", strconv.Itoa(len(xmp.History)))}
	for i, ev := range xmp.History {
		desc := ev.Action
		if ev.SoftwareAgent != "" {
			desc += " by " + ev.SoftwareAgent
		}
		if ev.When.Raw != "" {
			desc += " at " + ev.When.Raw
		}
		evidence = append(evidence, detail(fmt.Sprintf("event_%d", i+1), desc))
	}
	return []Finding{finding(KindXmpHistory, SeverityMedium,
		fmt.Sprintf("XMP records %d editing history event(s)", len(xmp.History)),
		evidence...)}
}

func evalMultipleCreatorsOrProducers(ctx *Context) []Finding {
	var out []Finding

	infoCreator := ctx.Doc.Info["Creator"]
	infoProducer := ctx.Doc.Info["Producer"]
	var xmpCreator, xmpProducer string
	if ctx.Doc.XMP != nil {
		xmpCreator = ctx.Doc.XMP.Get("xmp:CreatorTool")
		xmpProducer = ctx.Doc.XMP.Get("pdf:Producer")
	}

	mismatch := func(what, info, xmp string) {
		if info != "" && xmp != "" && !strings.EqualFold(strings.TrimSpace(info), strings.TrimSpace(xmp)) {
			out = append(out, finding(KindMultipleCreatorsOrProducers, SeverityMedium,
				fmt.Sprintf("Info %s %q disagrees with XMP %q", what, info, xmp),
				detail("field", what),
				detail("info", info),
				detail("xmp", xmp)))
		}
	}
	mismatch("Creator", infoCreator, xmpCreator)
	mismatch("Producer", infoProducer, xmpProducer)

	// distinct values across revisions: every Info-shaped dictionary in the
	// file contributes, including shadowed ones from earlier revisions
	distinct := func(key string) []string {
		seen := map[string]bool{}
		var values []string
		for _, rec := range ctx.Doc.AllObjects {
			dict := dictOf(rec.Object)
			if dict == nil {
				continue
			}
			if s, ok := dict.Get(key).(object.String); ok {
				v := s.Text()
				if v != "" && !seen[v] {
					seen[v] = true
					values = append(values, v)
				}
			}
		}
		return values
	}
	for _, field := range []string{"Creator", "Producer"} {
		if values := distinct(field); len(values) > 1 {
			evidence := []Detail{detail("field", field), detail("count", strconv.Itoa(len(values)))}
			for _, v := range values {
				evidence = append(evidence, detail("value", v))
			}
			out = append(out, finding(KindMultipleCreatorsOrProducers, SeverityMedium,
				fmt.Sprintf("%d distinct /%s values across revisions", len(values), field),
				evidence...))
		}
	}
	return out
}

func evalMultipleDocumentIds(ctx *Context) []Finding {
	var out []Finding

	// first /ID element across xref sections
	var firstIDs []string
	seen := map[string]bool{}
	for _, sec := range ctx.Doc.Chain.Sections {
		if sec.Trailer == nil {
			continue
		}
		arr, ok := sec.Trailer.Get("ID").(*object.Array)
		if !ok || arr.Len() < 1 {
			continue
		}
		if s, ok := arr.At(0).(object.String); ok {
			h := strings.ToUpper(hex.EncodeToString(s.Value))
			if !seen[h] {
				seen[h] = true
				firstIDs = append(firstIDs, h)
			}
		}
	}
	if len(firstIDs) > 1 {
		evidence := []Detail{detail("source", "trailer")}
		for _, id := range firstIDs {
			evidence = append(evidence, detail("id", id))
		}
		out = append(out, finding(KindMultipleDocumentIds, SeverityMedium,
			"trailer /ID original identifier changed between revisions", evidence...))
	}

	if ctx.Doc.XMP != nil {
		orig := metadata.NormalizeDocumentID(ctx.Doc.XMP.Get("xmpMM:OriginalDocumentID"))
		cur := metadata.NormalizeDocumentID(ctx.Doc.XMP.Get("xmpMM:DocumentID"))
		if orig != "" && cur != "" && orig != cur {
			out = append(out, finding(KindMultipleDocumentIds, SeverityMedium,
				"XMP DocumentID differs from OriginalDocumentID",
				detail("source", "xmp"),
				detail("original", orig),
				detail("current", cur)))
		}
	}
	return out
}

func evalDateInconsistency(ctx *Context) []Finding {
	if ctx.Doc.XMP == nil {
		return nil
	}
	const tolerance = time.Second
	var out []Finding
	check := func(infoKey, xmpKey string) {
		infoRaw := ctx.Doc.Info[infoKey]
		xmpRaw := ctx.Doc.XMP.Get(xmpKey)
		if infoRaw == "" || xmpRaw == "" {
			return
		}
		infoTS := metadata.ParsePDFDate(infoRaw)
		xmpTS := metadata.ParseXMPDate(xmpRaw)
		if !infoTS.Valid || !xmpTS.Valid {
			return
		}
		if !infoTS.Equal(xmpTS, tolerance) {
			out = append(out, finding(KindDateInconsistency, SeverityMedium,
				fmt.Sprintf("Info %s and XMP %s disagree", infoKey, xmpKey),
				detail("info_"+infoKey, infoRaw),
				detail("xmp_"+xmpKey, xmpRaw)))
		}
	}
	check("CreationDate", "xmp:CreateDate")
	check("ModDate", "xmp:ModifyDate")
	return out
}

var oldProducerRE = regexp.MustCompile(`(?i)\b(PDF[ -]?1\.[0-4]|Acrobat(?: Distiller)? [1-4])\b`)

func evalMetadataVersionMismatch(ctx *Context) []Finding {
	var out []Finding
	headerVersion := parseVersion(ctx.Doc.Version)

	// features requiring PDF 1.5 in a file declaring less
	if headerVersion > 0 && headerVersion < 1.5 {
		if usesXrefStreams(ctx) {
			out = append(out, finding(KindMetadataVersionMismatch, SeverityMedium,
				fmt.Sprintf("header declares PDF %s but the file uses cross-reference streams (PDF 1.5 feature)", ctx.Doc.Version),
				detail("header_version", ctx.Doc.Version),
				detail("feature", "xref-stream")))
		} else if ctx.Doc.UsesObjStm {
			out = append(out, finding(KindMetadataVersionMismatch, SeverityMedium,
				fmt.Sprintf("header declares PDF %s but the file uses object streams (PDF 1.5 feature)", ctx.Doc.Version),
				detail("header_version", ctx.Doc.Version),
				detail("feature", "object-stream")))
		}
	}

	// producer claiming an old toolchain in a modern file
	if headerVersion >= 1.6 {
		claims := []string{ctx.Doc.Info["Producer"], ctx.Doc.Info["Creator"]}
		if ctx.Doc.XMP != nil {
			claims = append(claims, ctx.Doc.XMP.Get("pdf:Producer"), ctx.Doc.XMP.Get("xmp:CreatorTool"))
		}
		for _, claim := range claims {
			if claim == "" {
				continue
			}
			if m := oldProducerRE.FindString(claim); m != "" {
				out = append(out, finding(KindMetadataVersionMismatch, SeverityMedium,
					fmt.Sprintf("metadata claims %q but the header declares PDF %s", m, ctx.Doc.Version),
					detail("claimed", claim),
					detail("header_version", ctx.Doc.Version)))
				break
			}
		}
	}
	return out
}

func parseVersion(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0
	}
	return f
}

func evalFutureDatedTimestamps(ctx *Context) []Finding {
	now := time.Now()
	if ctx.Now != nil {
		now = ctx.Now()
	}
	horizon := now.Add(24 * time.Hour)

	type dated struct {
		source string
		ts     metadata.Timestamp
	}
	var all []dated
	for _, key := range sortedKeys(ctx.Doc.Info) {
		if strings.Contains(key, "Date") {
			all = append(all, dated{"Info:" + key, metadata.ParsePDFDate(ctx.Doc.Info[key])})
		}
	}
	if ctx.Doc.XMP != nil {
		for _, key := range []string{"xmp:CreateDate", "xmp:ModifyDate", "xmp:MetadataDate"} {
			if v := ctx.Doc.XMP.Get(key); v != "" {
				all = append(all, dated{key, metadata.ParseXMPDate(v)})
			}
		}
		for i, ev := range ctx.Doc.XMP.History {
			all = append(all, dated{fmt.Sprintf("xmpMM:History[%d]", i+1), ev.When})
		}
	}

	var evidence []Detail
	for _, d := range all {
		if d.ts.Valid && d.ts.Time.After(horizon) {
			evidence = append(evidence, detail(d.source, d.ts.Raw))
		}
	}
	if len(evidence) == 0 {
		return nil
	}
	return []Finding{finding(KindFutureDatedTimestamps, SeverityMedium,
		fmt.Sprintf("%d timestamp(s) lie in the future", len(evidence)),
		evidence...)}
}

func evalPDFACompliance(ctx *Context) []Finding {
	if ctx.Doc.XMP == nil {
		return nil
	}
	part := ctx.Doc.XMP.Get("pdfaid:part")
	if part == "" {
		return nil
	}
	conformance := ctx.Doc.XMP.Get("pdfaid:conformance")
	label := "PDF/A-" + part + conformance
	return []Finding{finding(KindPDFACompliance, SeverityMedium,
		fmt.Sprintf("document claims %s conformance; any later modification breaks the archival guarantee", label),
		detail("conformance", label))}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
