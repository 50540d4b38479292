package forensic

import (
	"fmt"
	"sort"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/document"
	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/metadata"
)

// BuildTimeline merges every dated event the document carries - Info dates,
// XMP dates, XMP history entries, and signature timestamps - into one list,
// stable-sorted by time so equal timestamps keep insertion order.
func BuildTimeline(doc *document.Document) []TimelineEvent {
	var events []TimelineEvent

	add := func(ts metadata.Timestamp, source, label string) {
		if !ts.Valid {
			return
		}
		events = append(events, TimelineEvent{
			When:   ts.Time,
			Raw:    ts.Raw,
			Source: source,
			Label:  label,
		})
	}

	for _, key := range []string{"CreationDate", "ModDate"} {
		if raw, ok := doc.Info[key]; ok {
			add(metadata.ParsePDFDate(raw), "Info", key)
		}
	}

	if doc.XMP != nil {
		for _, key := range []string{"xmp:CreateDate", "xmp:ModifyDate", "xmp:MetadataDate"} {
			if raw := doc.XMP.Get(key); raw != "" {
				add(metadata.ParseXMPDate(raw), "XMP", key)
			}
		}
		for i, ev := range doc.XMP.History {
			label := ev.Action
			if label == "" {
				label = "event"
			}
			if ev.SoftwareAgent != "" {
				label += " (" + ev.SoftwareAgent + ")"
			}
			add(ev.When, fmt.Sprintf("XMP history %d", i+1), label)
		}
	}

	for _, rec := range doc.AllObjects {
		dict := dictOf(rec.Object)
		if dict == nil || dict.Name("Type") != "Sig" {
			continue
		}
		if m := dict.Text("M"); m != "" {
			add(metadata.ParsePDFDate(m), "Signature", fmt.Sprintf("signed (object %d %d)", rec.ID.Num, rec.ID.Gen))
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].When.Before(events[j].When)
	})
	return events
}
