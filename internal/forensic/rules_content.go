package forensic

import (
	"fmt"
	"strconv"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/object"
)

func evalSuspiciousTextPositioning(ctx *Context) []Finding {
	var out []Finding
	for _, st := range ctx.Pages {
		if st.MaxPositionsPerBlock >= ctx.Cfg.TextPositioningThreshold {
			out = append(out, finding(KindSuspiciousTextPositioning, SeverityMedium,
				fmt.Sprintf("page %d repositions text %d times within a single text block", st.Page, st.MaxPositionsPerBlock),
				detail("page", strconv.Itoa(st.Page)),
				detail("positions_in_block", strconv.Itoa(st.MaxPositionsPerBlock))))
		}
	}
	return out
}

func evalWhiteRectangleOverlay(ctx *Context) []Finding {
	var out []Finding
	for _, st := range ctx.Pages {
		if st.WhiteFilledRects >= ctx.Cfg.WhiteRectThreshold {
			out = append(out, finding(KindWhiteRectangleOverlay, SeverityMedium,
				fmt.Sprintf("page %d paints %d white-filled rectangle(s), a common way to cover content", st.Page, st.WhiteFilledRects),
				detail("page", strconv.Itoa(st.Page)),
				detail("white_rects", strconv.Itoa(st.WhiteFilledRects))))
		}
	}
	return out
}

func evalExcessiveDrawingOperations(ctx *Context) []Finding {
	for _, st := range ctx.Pages {
		if st.DrawingOps > ctx.Cfg.DrawingOpsThreshold {
			return []Finding{finding(KindExcessiveDrawingOperations, SeverityMedium,
				fmt.Sprintf("page %d contains %d drawing operators", st.Page, st.DrawingOps),
				detail("page", strconv.Itoa(st.Page)),
				detail("count", strconv.Itoa(st.DrawingOps)))}
		}
	}
	return nil
}

func evalInvisibleText(ctx *Context) []Finding {
	var out []Finding
	for _, st := range ctx.Pages {
		if st.InvisibleRuns == 0 {
			continue
		}
		evidence := []Detail{
			detail("page", strconv.Itoa(st.Page)),
			detail("runs", strconv.Itoa(st.InvisibleRuns)),
		}
		for i, text := range st.InvisibleText {
			if len(text) > 200 {
				text = text[:200] + "…"
			}
			if text != "" {
				evidence = append(evidence, detail(fmt.Sprintf("text_%d", i+1), text))
			}
		}
		out = append(out, finding(KindInvisibleText, SeverityMedium,
			fmt.Sprintf("page %d shows text in rendering mode 3 (invisible)", st.Page),
			evidence...))
	}
	return out
}

func evalHasAnnotations(ctx *Context) []Finding {
	for _, pageID := range ctx.Doc.Pages {
		page := ctx.Doc.PageDict(pageID)
		if page == nil {
			continue
		}
		annots, ok := ctx.Doc.Resolve(page.Get("Annots")).(*object.Array)
		if ok && annots.Len() > 0 {
			return []Finding{finding(KindHasAnnotations, SeverityMedium,
				fmt.Sprintf("page %d carries %d annotation(s)", ctx.Doc.PageIndex(pageID)+1, annots.Len()),
				detail("page", strconv.Itoa(ctx.Doc.PageIndex(pageID)+1)),
				detail("count", strconv.Itoa(annots.Len())))}
		}
	}
	return nil
}

func evalHasRedactions(ctx *Context) []Finding {
	for _, rec := range ctx.Doc.AllObjects {
		dict := dictOf(rec.Object)
		if dict != nil && dict.Name("Subtype") == "Redact" {
			return []Finding{finding(KindHasRedactions, SeverityMedium,
				"document contains redaction annotations",
				detail("object", fmt.Sprintf("(%d,%d)", rec.ID.Num, rec.ID.Gen)))}
		}
	}
	return nil
}

func evalAcroFormNeedAppearances(ctx *Context) []Finding {
	form := acroForm(ctx)
	if form == nil || !form.Bool("NeedAppearances") {
		return nil
	}
	return []Finding{finding(KindAcroFormNeedAppearances, SeverityMedium,
		"AcroForm sets /NeedAppearances, so field rendering is regenerated by each viewer")}
}

func evalExcessiveFormFields(ctx *Context) []Finding {
	form := acroForm(ctx)
	if form == nil {
		return nil
	}
	count := countFields(ctx, form.Get("Fields"), make(map[object.ID]bool))
	if count <= ctx.Cfg.FormFieldsThreshold {
		return nil
	}
	return []Finding{finding(KindExcessiveFormFields, SeverityMedium,
		fmt.Sprintf("form declares %d fields", count),
		detail("count", strconv.Itoa(count)))}
}

func acroForm(ctx *Context) *object.Dict {
	if ctx.Doc.Catalog == nil {
		return nil
	}
	return ctx.Doc.ResolveDict(ctx.Doc.Catalog.Get("AcroForm"))
}

// countFields counts terminal form fields, descending /Kids with a visited
// guard against cyclic field trees.
func countFields(ctx *Context, fields object.Object, visited map[object.ID]bool) int {
	arr, ok := ctx.Doc.Resolve(fields).(*object.Array)
	if !ok {
		return 0
	}
	count := 0
	for _, e := range arr.Elems {
		if ref, ok := e.(object.Ref); ok {
			if visited[ref.ID] {
				continue
			}
			visited[ref.ID] = true
		}
		field := ctx.Doc.ResolveDict(e)
		if field == nil {
			continue
		}
		if field.Has("Kids") {
			if n := countFields(ctx, field.Get("Kids"), visited); n > 0 {
				count += n
				continue
			}
		}
		count++
	}
	return count
}

func evalCropBoxMediaBoxMismatch(ctx *Context) []Finding {
	for _, pageID := range ctx.Doc.Pages {
		page := ctx.Doc.PageDict(pageID)
		if page == nil {
			continue
		}
		media, okM := ctx.Doc.InheritedBox(page, "MediaBox")
		crop, okC := ctx.Doc.InheritedBox(page, "CropBox")
		if !okM || !okC {
			continue
		}
		mbArea := boxArea(media)
		cbArea := boxArea(crop)
		if mbArea <= 0 || cbArea <= 0 {
			continue
		}
		ratio := cbArea / mbArea
		if ratio < 0.8 {
			pageNum := ctx.Doc.PageIndex(pageID) + 1
			return []Finding{finding(KindCropBoxMediaBoxMismatch, SeverityMedium,
				fmt.Sprintf("page %d crops to %.1f%% of its media box; content outside the crop stays in the file", pageNum, ratio*100),
				detail("page", strconv.Itoa(pageNum)),
				detail("visible_ratio", fmt.Sprintf("%.1f%%", ratio*100)))}
		}
	}
	return nil
}

func evalExcessiveWhiteColor(ctx *Context) []Finding {
	var out []Finding
	for _, st := range ctx.Pages {
		if st.WhiteColorOps > ctx.Cfg.WhiteColorThreshold {
			out = append(out, finding(KindExcessiveWhiteColor, SeverityMedium,
				fmt.Sprintf("page %d sets the color to white %d times; heavy white usage often hides content", st.Page, st.WhiteColorOps),
				detail("page", strconv.Itoa(st.Page)),
				detail("count", strconv.Itoa(st.WhiteColorOps))))
		}
	}
	return out
}

// mediaBoxSlack is how far outside the media box text may sit before it is
// considered deliberately hidden off-page.
const mediaBoxSlack = 100.0

func evalTextOutsideMediaBox(ctx *Context) []Finding {
	for _, st := range ctx.Pages {
		if !st.HasTextPos {
			continue
		}
		pageID := pageIDForStats(ctx, st.Page)
		page := ctx.Doc.PageDict(pageID)
		if page == nil {
			continue
		}
		mb, ok := ctx.Doc.InheritedBox(page, "MediaBox")
		if !ok {
			continue
		}
		if st.TextMinX < mb[0]-mediaBoxSlack || st.TextMinY < mb[1]-mediaBoxSlack ||
			st.TextMaxX > mb[2]+mediaBoxSlack || st.TextMaxY > mb[3]+mediaBoxSlack {
			return []Finding{finding(KindTextOutsideMediaBox, SeverityMedium,
				fmt.Sprintf("page %d positions text outside the visible page area", st.Page),
				detail("page", strconv.Itoa(st.Page)),
				detail("text_extent", fmt.Sprintf("[%.1f %.1f %.1f %.1f]",
					st.TextMinX, st.TextMinY, st.TextMaxX, st.TextMaxY)),
				detail("media_box", fmt.Sprintf("[%.1f %.1f %.1f %.1f]",
					mb[0], mb[1], mb[2], mb[3])))}
		}
	}
	return nil
}

// ocrPageLimit bounds the scan-plus-text heuristic to the document's front
// pages, where a scanned original always shows the pattern.
const ocrPageLimit = 5

// ocrCoverageRatio is the painted-image share of the page area above which a
// page counts as image-dominated.
const ocrCoverageRatio = 0.8

// evalOCRLayer flags documents that look like scans with a recognized text
// layer: several front pages dominated by painted images while still showing
// text. OCR layers are re-generated by editing tools, so their presence
// contextualizes the text-level indicators.
func evalOCRLayer(ctx *Context) []Finding {
	pagesWithPattern := 0
	for _, st := range ctx.Pages {
		if st.Page > ocrPageLimit {
			continue
		}
		if st.TextShowOps == 0 || st.ImagePaintedArea == 0 {
			continue
		}
		page := ctx.Doc.PageDict(pageIDForStats(ctx, st.Page))
		if page == nil {
			continue
		}
		mb, ok := ctx.Doc.InheritedBox(page, "MediaBox")
		if !ok {
			continue
		}
		area := boxArea(mb)
		if area > 0 && st.ImagePaintedArea/area > ocrCoverageRatio {
			pagesWithPattern++
		}
	}
	if pagesWithPattern < 2 {
		return nil
	}
	return []Finding{finding(KindOCRLayer, SeverityMedium,
		fmt.Sprintf("%d page(s) are image-dominated yet carry a text layer; document appears scanned with OCR text", pagesWithPattern),
		detail("pages_with_pattern", strconv.Itoa(pagesWithPattern)))}
}

// pageIDForStats maps a 1-based stats page number back to its page object.
func pageIDForStats(ctx *Context, page int) object.ID {
	if page < 1 || page > len(ctx.Doc.Pages) {
		return object.ID{}
	}
	return ctx.Doc.Pages[page-1]
}

func boxArea(b [4]float64) float64 {
	w := b[2] - b[0]
	h := b[3] - b[1]
	if w < 0 {
		w = -w
	}
	if h < 0 {
		h = -h
	}
	return w * h
}
