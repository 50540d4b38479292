package metadata

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// XMP is a parsed XMP metadata packet. Values maps qualified element paths
// (e.g. "xmpMM:History/rdf:Seq/rdf:li[1]/stEvt:when") to their text.
type XMP struct {
	RawPacket []byte
	Values    map[string]string
	History   []HistoryEvent
}

// HistoryEvent is one xmpMM:History list entry.
type HistoryEvent struct {
	When          Timestamp
	Action        string
	SoftwareAgent string
	Parameters    string
	Changed       string
}

// Get returns the first value whose path ends with the given suffix. XMP
// producers vary in nesting, so suffix matching is the practical lookup.
func (x *XMP) Get(suffix string) string {
	if x == nil {
		return ""
	}
	if v, ok := x.Values[suffix]; ok {
		return v
	}
	for _, path := range x.sortedPaths() {
		if strings.HasSuffix(path, suffix) {
			return x.Values[path]
		}
	}
	return ""
}

func (x *XMP) sortedPaths() []string {
	paths := make([]string, 0, len(x.Values))
	for p := range x.Values {
		paths = append(paths, p)
	}
	// insertion order is lost in the map; sort for determinism
	for i := 1; i < len(paths); i++ {
		for j := i; j > 0 && paths[j] < paths[j-1]; j-- {
			paths[j], paths[j-1] = paths[j-1], paths[j]
		}
	}
	return paths
}

var (
	xpacketBegin = []byte("<?xpacket begin")
	xpacketEnd   = []byte("<?xpacket end")
)

// FindPacket locates the raw XMP xpacket in a byte buffer, returning nil
// when absent.
func FindPacket(raw []byte) []byte {
	start := bytes.Index(raw, xpacketBegin)
	if start < 0 {
		return nil
	}
	end := bytes.Index(raw[start:], xpacketEnd)
	if end < 0 {
		return nil
	}
	end += start
	// include the closing processing instruction
	if close := bytes.IndexByte(raw[end:], '>'); close >= 0 {
		end += close + 1
	}
	return raw[start:end]
}

// namespace URI → conventional prefix, used to build stable qualified paths
// independent of the prefixes a given producer chose.
var nsPrefix = map[string]string{
	"adobe:ns:meta/":                                 "x",
	"http://www.w3.org/1999/02/22-rdf-syntax-ns#":    "rdf",
	"http://ns.adobe.com/xap/1.0/":                   "xmp",
	"http://ns.adobe.com/xap/1.0/mm/":                "xmpMM",
	"http://ns.adobe.com/xap/1.0/sType/ResourceEvent#": "stEvt",
	"http://ns.adobe.com/xap/1.0/sType/ResourceRef#": "stRef",
	"http://ns.adobe.com/pdf/1.3/":                   "pdf",
	"http://purl.org/dc/elements/1.1/":               "dc",
	"http://www.aiim.org/pdfa/ns/id/":                "pdfaid",
	"http://ns.adobe.com/photoshop/1.0/":             "photoshop",
}

func qualify(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	if p, ok := nsPrefix[n.Space]; ok {
		return p + ":" + n.Local
	}
	// unknown namespace: fall back to the raw space value, which for
	// undeclared prefixes is the prefix itself
	return n.Space + ":" + n.Local
}

// Parse decodes an XMP packet into qualified path/value pairs and extracts
// the xmpMM:History event list. The decoder is tolerant: malformed XML
// returns whatever was decoded before the error.
func Parse(packet []byte) (*XMP, error) {
	x := &XMP{RawPacket: packet, Values: make(map[string]string)}
	dec := xml.NewDecoder(bytes.NewReader(packet))
	dec.Strict = false

	type frame struct {
		name    string
		liCount int
	}
	var stack []frame
	var parseErr error

	path := func() string {
		parts := make([]string, len(stack))
		for i, f := range stack {
			parts[i] = f.name
		}
		return strings.Join(parts, "/")
	}

	for {
		tok, err := dec.Token()
		if err != nil {
			if err.Error() != "EOF" {
				parseErr = fmt.Errorf("xmp: %w", err)
			}
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := qualify(t.Name)
			if name == "rdf:li" && len(stack) > 0 {
				stack[len(stack)-1].liCount++
				name = fmt.Sprintf("rdf:li[%d]", stack[len(stack)-1].liCount)
			}
			stack = append(stack, frame{name: name})
			base := path()
			for _, attr := range t.Attr {
				if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
					continue
				}
				qn := qualify(attr.Name)
				if strings.HasPrefix(qn, "xmlns") {
					continue
				}
				x.Values[base+"/"+qn] = attr.Value
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" || len(stack) == 0 {
				continue
			}
			x.Values[path()] = text
		}
	}

	x.History = extractHistory(x.Values)
	return x, parseErr
}

// extractHistory collects xmpMM:History rdf:li entries into ordered events.
func extractHistory(values map[string]string) []HistoryEvent {
	events := make(map[int]*HistoryEvent)
	maxIdx := 0
	for path, value := range values {
		idx, field, ok := historyField(path)
		if !ok {
			continue
		}
		ev := events[idx]
		if ev == nil {
			ev = &HistoryEvent{}
			events[idx] = ev
		}
		if idx > maxIdx {
			maxIdx = idx
		}
		switch field {
		case "when":
			ev.When = ParseXMPDate(value)
		case "action":
			ev.Action = value
		case "softwareAgent":
			ev.SoftwareAgent = value
		case "parameters":
			ev.Parameters = value
		case "changed":
			ev.Changed = value
		}
	}
	out := make([]HistoryEvent, 0, len(events))
	for i := 1; i <= maxIdx; i++ {
		if ev := events[i]; ev != nil {
			out = append(out, *ev)
		}
	}
	return out
}

// historyField extracts the list index and stEvt field name from a path like
// ".../xmpMM:History/rdf:Seq/rdf:li[3]/stEvt:when".
func historyField(path string) (idx int, field string, ok bool) {
	pos := strings.Index(path, "xmpMM:History")
	if pos < 0 {
		return 0, "", false
	}
	liPos := strings.Index(path[pos:], "rdf:li[")
	if liPos < 0 {
		return 0, "", false
	}
	rest := path[pos+liPos+len("rdf:li["):]
	close := strings.IndexByte(rest, ']')
	if close < 0 {
		return 0, "", false
	}
	n := 0
	for _, c := range rest[:close] {
		if c < '0' || c > '9' {
			return 0, "", false
		}
		n = n*10 + int(c-'0')
	}
	stPos := strings.Index(rest, "stEvt:")
	if stPos < 0 {
		return 0, "", false
	}
	return n, rest[stPos+len("stEvt:"):], true
}
