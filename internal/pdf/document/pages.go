package document

import (
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/object"
)

// loadPages walks the page tree from the catalog. The tree can be cyclic in
// damaged files (Kids pointing back at ancestors), so the walk carries a
// visited set. When no catalog or tree exists, any /Type /Page objects are
// collected in file order as a fallback.
func (d *Document) loadPages() {
	if d.Catalog != nil {
		if rootRef, ok := d.Catalog.Ref("Pages"); ok {
			visited := make(map[object.ID]bool)
			d.walkPageTree(rootRef, visited)
		}
	}
	if len(d.Pages) > 0 {
		return
	}
	for _, rec := range d.AllObjects {
		if dict, ok := rec.Object.(*object.Dict); ok && dict.Name("Type") == "Page" {
			if !containsID(d.Pages, rec.ID) {
				d.Pages = append(d.Pages, rec.ID)
			}
		}
	}
}

func (d *Document) walkPageTree(id object.ID, visited map[object.ID]bool) {
	if visited[id] {
		return
	}
	visited[id] = true
	node := d.ResolveDict(object.Ref{ID: id})
	if node == nil {
		return
	}
	switch node.Name("Type") {
	case "Page":
		d.Pages = append(d.Pages, id)
	case "Pages", "":
		kids := node.Array("Kids")
		for _, kid := range kids.Elems {
			if ref, ok := kid.(object.Ref); ok {
				d.walkPageTree(ref.ID, visited)
			}
		}
	}
}

// PageDict returns the page dictionary for a page id, or nil.
func (d *Document) PageDict(id object.ID) *object.Dict {
	return d.ResolveDict(object.Ref{ID: id})
}

// PageIndex returns the zero-based index of a page object id, or -1.
func (d *Document) PageIndex(id object.ID) int {
	for i, p := range d.Pages {
		if p == id {
			return i
		}
	}
	return -1
}

// InheritedBox returns a page's box (MediaBox, CropBox), walking /Parent
// links when the page does not define it directly. The walk is cycle-safe.
func (d *Document) InheritedBox(page *object.Dict, key string) ([4]float64, bool) {
	visited := 0
	node := page
	for node != nil && visited < 64 {
		visited++
		if box, ok := rectFrom(d, node.Get(key)); ok {
			return box, true
		}
		parent, ok := node.Ref("Parent")
		if !ok {
			break
		}
		node = d.ResolveDict(object.Ref{ID: parent})
	}
	return [4]float64{}, false
}

func rectFrom(d *Document, obj object.Object) ([4]float64, bool) {
	arr, ok := d.Resolve(obj).(*object.Array)
	if !ok || arr.Len() < 4 {
		return [4]float64{}, false
	}
	var box [4]float64
	for i := 0; i < 4; i++ {
		n, ok := d.Resolve(arr.At(i)).(object.Number)
		if !ok {
			return [4]float64{}, false
		}
		box[i] = n.Float()
	}
	return box, true
}

// PageContent concatenates and decodes a page's /Contents streams. Failures
// on individual streams are reported but do not abort the concatenation.
func (d *Document) PageContent(id object.ID) ([]byte, []string) {
	page := d.PageDict(id)
	if page == nil {
		return nil, nil
	}
	var errs []string
	var out []byte
	appendStream := func(obj object.Object) {
		stream, ok := d.Resolve(obj).(*object.Stream)
		if !ok {
			return
		}
		decoded, err := d.DecodeStream(stream)
		if err != nil {
			errs = append(errs, "content stream: "+err.Error())
			return
		}
		out = append(out, decoded...)
		out = append(out, '\n')
	}

	switch contents := d.Resolve(page.Get("Contents")).(type) {
	case *object.Stream:
		decoded, err := d.DecodeStream(contents)
		if err != nil {
			errs = append(errs, "content stream: "+err.Error())
		} else {
			out = decoded
		}
	case *object.Array:
		for _, e := range contents.Elems {
			appendStream(e)
		}
	}
	return out, errs
}

func containsID(ids []object.ID, id object.ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
