// Package metadata extracts and normalizes PDF document metadata: the Info
// dictionary, the XMP packet, and the date formats both use.
package metadata

import (
	"regexp"
	"strings"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/object"
)

// InfoDict flattens a PDF Info dictionary into name → string form. Strings
// arrive already unescaped from the object parser; names are stored without
// their solidus, null entries are dropped, and other value kinds are rendered
// through their String form.
func InfoDict(dict *object.Dict) map[string]string {
	if dict == nil {
		return nil
	}
	out := make(map[string]string, dict.Len())
	for _, key := range dict.Keys() {
		switch v := dict.Get(key).(type) {
		case object.String:
			out[key] = decodeText(v.Value)
		case object.Name:
			out[key] = v.Value
		case object.Null:
		default:
			out[key] = v.String()
		}
	}
	return out
}

// decodeText converts PDF text-string bytes to UTF-8: UTF-16BE when the BOM
// is present, PDFDocEncoding treated as Latin-1 otherwise.
func decodeText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		var sb strings.Builder
		for i := 2; i+1 < len(b); i += 2 {
			sb.WriteRune(rune(b[i])<<8 | rune(b[i+1]))
		}
		return sb.String()
	}
	var sb strings.Builder
	for _, c := range b {
		sb.WriteRune(rune(c))
	}
	return sb.String()
}

var uuidPrefixRE = regexp.MustCompile(`(?i)^(urn:uuid:|uuid:|xmp\.iid:|xmp\.did:)`)

// NormalizeDocumentID strips the various uuid prefixes producers use so that
// identifiers from the trailer /ID and from XMP compare consistently.
func NormalizeDocumentID(id string) string {
	s := strings.ToUpper(strings.TrimSpace(id))
	s = uuidPrefixRE.ReplaceAllString(s, "")
	return strings.Trim(s, "<>")
}
