package forensic

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/object"
)

// evalJavaScriptAutoExecute flags JavaScript wired to run on document open:
// the catalog /OpenAction and any /AA additional-action dictionary.
func evalJavaScriptAutoExecute(ctx *Context) []Finding {
	ctx.jsAutoExec = make(map[string]bool)
	var out []Finding

	record := func(source string, holder object.Object, action *object.Dict) {
		if action == nil || action.Name("S") != "JavaScript" {
			return
		}
		key := actionKey(holder, action)
		ctx.jsAutoExec[key] = true
		out = append(out, finding(KindJavaScriptAutoExecute, SeverityHigh,
			"JavaScript executes automatically via "+source,
			detail("source", source)))
	}

	if cat := ctx.Doc.Catalog; cat != nil {
		openAction := cat.Get("OpenAction")
		record("/OpenAction", openAction, ctx.Doc.ResolveDict(openAction))
		if aa := ctx.Doc.ResolveDict(cat.Get("AA")); aa != nil {
			for _, key := range aa.Keys() {
				v := aa.Get(key)
				record("/AA /"+key, v, ctx.Doc.ResolveDict(v))
			}
		}
	}
	// page-level additional actions auto-execute as pages open
	for _, pageID := range ctx.Doc.Pages {
		page := ctx.Doc.PageDict(pageID)
		if page == nil {
			continue
		}
		if aa := ctx.Doc.ResolveDict(page.Get("AA")); aa != nil {
			for _, key := range aa.Keys() {
				v := aa.Get(key)
				record(fmt.Sprintf("page %d /AA /%s", ctx.Doc.PageIndex(pageID)+1, key), v, ctx.Doc.ResolveDict(v))
			}
		}
	}
	return out
}

// actionKey identifies an action for the auto-exec suppression set: by
// reference id when indirect, by identity of its rendered form otherwise.
func actionKey(holder object.Object, action *object.Dict) string {
	if ref, ok := holder.(object.Ref); ok {
		return ref.ID.String()
	}
	return action.String()
}

// evalContainsJavaScript reports JavaScript actions that did not already fire
// the auto-execute indicator.
func evalContainsJavaScript(ctx *Context) []Finding {
	count := 0
	var locations []Detail
	for _, rec := range ctx.Doc.AllObjects {
		object.Walk(rec.Object, func(o object.Object) {
			dict, ok := o.(*object.Dict)
			if !ok || dict.Name("S") != "JavaScript" {
				return
			}
			key := rec.ID.String()
			if ctx.jsAutoExec[key] || ctx.jsAutoExec[dict.String()] {
				return
			}
			count++
			if len(locations) < 10 {
				locations = append(locations, detail("object", fmt.Sprintf("(%d,%d)", rec.ID.Num, rec.ID.Gen)))
			}
		})
	}
	if count == 0 {
		return nil
	}
	evidence := append([]Detail{detail("count", strconv.Itoa(count))}, locations...)
	return []Finding{finding(KindContainsJavaScript, SeverityMedium,
		fmt.Sprintf("document contains %d JavaScript action(s)", count),
		evidence...)}
}

var subsetPrefixRE = regexp.MustCompile(`^[A-Z]{6}\+`)

// evalMultipleFontSubsets groups subset fonts (ABCDEF+Name) by their base
// name; several subsets of one base font suggest content assembled or edited
// with different tools.
func evalMultipleFontSubsets(ctx *Context) []Finding {
	groups := make(map[string]map[string]bool)
	for _, rec := range ctx.Doc.AllObjects {
		dict := dictOf(rec.Object)
		if dict == nil {
			continue
		}
		base := dict.Name("BaseFont")
		if base == "" || !subsetPrefixRE.MatchString(base) {
			continue
		}
		suffix := base[7:]
		normalized := suffix
		if dash := strings.IndexByte(suffix, '-'); dash > 0 {
			normalized = suffix[:dash]
		}
		if groups[normalized] == nil {
			groups[normalized] = make(map[string]bool)
		}
		groups[normalized][base] = true
	}

	var conflicted []string
	for base, subsets := range groups {
		if len(subsets) > 1 {
			conflicted = append(conflicted, base)
		}
	}
	if len(conflicted) == 0 {
		return nil
	}
	sort.Strings(conflicted)

	var out []Finding
	for _, base := range conflicted {
		var subsets []string
		for s := range groups[base] {
			subsets = append(subsets, s)
		}
		sort.Strings(subsets)
		evidence := []Detail{detail("base_font", base)}
		for _, s := range subsets {
			evidence = append(evidence, detail("subset", s))
		}
		out = append(out, finding(KindMultipleFontSubsets, SeverityMedium,
			fmt.Sprintf("font %q is embedded as %d different subsets", base, len(subsets)),
			evidence...))
	}
	return out
}

// evalDuplicateImages hashes every image XObject's raw stream; the same
// pixels stored under different object ids usually means a re-save.
func evalDuplicateImages(ctx *Context) []Finding {
	byHash := make(map[string][]object.ID)
	var order []string
	for _, rec := range ctx.Doc.AllObjects {
		stream, ok := rec.Object.(*object.Stream)
		if !ok || stream.Dict.Name("Subtype") != "Image" {
			continue
		}
		sum := sha256.Sum256(stream.Raw)
		h := hex.EncodeToString(sum[:])
		if _, seen := byHash[h]; !seen {
			order = append(order, h)
		}
		if !containsID(byHash[h], rec.ID) {
			byHash[h] = append(byHash[h], rec.ID)
		}
	}
	var out []Finding
	for _, h := range order {
		ids := byHash[h]
		if len(ids) < 2 {
			continue
		}
		evidence := []Detail{detail("sha256", h)}
		for _, id := range ids {
			evidence = append(evidence, detail("object", fmt.Sprintf("(%d,%d)", id.Num, id.Gen)))
		}
		out = append(out, finding(KindDuplicateImagesDifferentXrefs, SeverityMedium,
			fmt.Sprintf("identical image bytes stored under %d different objects", len(ids)),
			evidence...))
	}
	return out
}

func evalImagesWithExif(ctx *Context) []Finding {
	count := 0
	var first []Detail
	for _, rec := range ctx.Doc.AllObjects {
		stream, ok := rec.Object.(*object.Stream)
		if !ok || stream.Dict.Name("Subtype") != "Image" {
			continue
		}
		data := stream.Raw
		if decoded, err := ctx.Doc.DecodeStream(stream); err == nil {
			data = decoded
		}
		probe := data
		if len(probe) > 1000 {
			probe = probe[:1000]
		}
		if bytes.Contains(probe, []byte("Exif")) {
			count++
			if len(first) < 10 {
				first = append(first, detail("object", fmt.Sprintf("(%d,%d)", rec.ID.Num, rec.ID.Gen)))
			}
		}
	}
	if count == 0 {
		return nil
	}
	evidence := append([]Detail{detail("count", strconv.Itoa(count))}, first...)
	return []Finding{finding(KindImagesWithExif, SeverityMedium,
		fmt.Sprintf("%d embedded image(s) retain EXIF metadata", count),
		evidence...)}
}

func evalEmbeddedFiles(ctx *Context) []Finding {
	count := 0
	var names []string
	for _, rec := range ctx.Doc.AllObjects {
		dict := dictOf(rec.Object)
		if dict == nil {
			continue
		}
		if dict.Name("Type") == "EmbeddedFile" {
			count++
		}
		if dict.Name("Type") == "Filespec" || dict.Name("Subtype") == "FileAttachment" {
			if f := dict.Text("F"); f != "" && len(names) < 10 {
				names = append(names, f)
			}
			if dict.Name("Subtype") == "FileAttachment" {
				count++
			}
		}
	}
	if count == 0 {
		return nil
	}
	evidence := []Detail{detail("count", strconv.Itoa(count))}
	sort.Strings(names)
	for _, n := range names {
		evidence = append(evidence, detail("filename", n))
	}
	return []Finding{finding(KindEmbeddedFiles, SeverityMedium,
		fmt.Sprintf("document embeds %d file attachment(s)", count),
		evidence...)}
}

// outlineEntry is one bookmark with its resolved destination page index.
type outlineEntry struct {
	title     string
	pageIndex int // -1 when unresolved
	explicit  int // raw numeric destination when >= 0
}

func evalDuplicateBookmarks(ctx *Context) []Finding {
	entries := collectOutline(ctx)
	seen := make(map[string]int)
	var dups []string
	for _, e := range entries {
		seen[e.title]++
		if seen[e.title] == 2 {
			dups = append(dups, e.title)
		}
	}
	if len(dups) == 0 {
		return nil
	}
	sort.Strings(dups)
	evidence := []Detail{detail("count", strconv.Itoa(len(dups)))}
	for _, t := range dups {
		evidence = append(evidence, detail("title", t))
	}
	return []Finding{finding(KindDuplicateBookmarks, SeverityMedium,
		fmt.Sprintf("%d bookmark title(s) appear more than once", len(dups)),
		evidence...)}
}

func evalInvalidBookmarkDestinations(ctx *Context) []Finding {
	pageCount := len(ctx.Doc.Pages)
	if pageCount == 0 {
		return nil
	}
	for _, e := range collectOutline(ctx) {
		target := e.pageIndex
		if target < 0 && e.explicit >= 0 {
			target = e.explicit
		}
		if target >= pageCount {
			return []Finding{finding(KindInvalidBookmarkDestinations, SeverityMedium,
				fmt.Sprintf("bookmark %q points past the last page", e.title),
				detail("bookmark", e.title),
				detail("target_page", strconv.Itoa(target+1)),
				detail("page_count", strconv.Itoa(pageCount)))}
		}
	}
	return nil
}

// collectOutline walks the outline tree (First/Next sibling chains) with a
// visited set; outlines in tampered files can be cyclic.
func collectOutline(ctx *Context) []outlineEntry {
	if ctx.Doc.Catalog == nil {
		return nil
	}
	outlines := ctx.Doc.ResolveDict(ctx.Doc.Catalog.Get("Outlines"))
	if outlines == nil {
		return nil
	}
	var entries []outlineEntry
	visited := make(map[string]bool)

	var walk func(item object.Object)
	walk = func(item object.Object) {
		for {
			ref, isRef := item.(object.Ref)
			if isRef {
				if visited[ref.ID.String()] {
					return
				}
				visited[ref.ID.String()] = true
			}
			node := ctx.Doc.ResolveDict(item)
			if node == nil {
				return
			}
			if title := node.Text("Title"); title != "" || node.Has("Title") {
				entries = append(entries, outlineEntry{
					title:     title,
					pageIndex: destinationPage(ctx, node),
					explicit:  explicitPage(ctx, node),
				})
			}
			if first := node.Get("First"); first.Type() == object.TypeRef {
				walk(first)
			}
			next := node.Get("Next")
			if next.Type() != object.TypeRef {
				return
			}
			item = next
		}
	}
	walk(outlines.Get("First"))
	return entries
}

// destinationPage resolves an outline node's destination to a page index via
// /Dest or a /GoTo action, returning -1 when it cannot.
func destinationPage(ctx *Context, node *object.Dict) int {
	dest := node.Get("Dest")
	if dest.Type() == object.TypeNull {
		if action := ctx.Doc.ResolveDict(node.Get("A")); action != nil && action.Name("S") == "GoTo" {
			dest = action.Get("D")
		}
	}
	arr, ok := ctx.Doc.Resolve(dest).(*object.Array)
	if !ok || arr.Len() == 0 {
		return -1
	}
	if ref, ok := arr.At(0).(object.Ref); ok {
		return ctx.Doc.PageIndex(ref.ID)
	}
	return -1
}

// explicitPage returns a numeric first destination element (page index form
// used by remote destinations), or -1.
func explicitPage(ctx *Context, node *object.Dict) int {
	dest := node.Get("Dest")
	if dest.Type() == object.TypeNull {
		if action := ctx.Doc.ResolveDict(node.Get("A")); action != nil && action.Name("S") == "GoTo" {
			dest = action.Get("D")
		}
	}
	arr, ok := ctx.Doc.Resolve(dest).(*object.Array)
	if !ok || arr.Len() == 0 {
		return -1
	}
	if n, ok := arr.At(0).(object.Number); ok && n.IsInt && n.Int >= 0 {
		return int(n.Int)
	}
	return -1
}

func containsID(ids []object.ID, id object.ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
