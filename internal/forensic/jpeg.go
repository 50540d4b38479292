package forensic

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/object"
)

// Known quantization-table signatures (hex of the first 16 luminance table
// values). Cameras, scanners and editing software each leave a distinct
// fingerprint here; a Photoshop table inside a "scanned" document means the
// image passed through an editor.
var qtSignatures = map[string]string{
	// Adobe Photoshop
	"03020202020303020202030302030303": "Photoshop Quality 100 (Maximum)",
	"05030404030504040404050706050404": "Photoshop Quality 95-98",
	"08050505050705080809090a0a0a090a": "Photoshop Quality 90",
	"0c08080a080c0c0c0c0c0c0c0c0c0c0c": "Photoshop Quality 80",
	"1812121518181c181c1c1c1c1c1c1c1c": "Photoshop Quality 60 (Save for Web common)",

	// GIMP
	"03020203030203030303030304030403": "GIMP Quality 100",
	"06040406060604060606060708070606": "GIMP Quality 95",
	"09060609090609090909090a0b0a0909": "GIMP Quality 90",

	// Common scanners
	"02020202020202020202020202020202": "Generic Scanner (Very low compression)",
	"04030403040504040404050706050404": "HP Scanner (Standard quality)",
	"06040506050506060606070908070606": "Canon Scanner (Standard)",
	"08060608080608080808090b0a090808": "Epson Scanner (Standard)",

	"01010101010101010101010101010101": "Critical: QT=1 (Invalid - likely manipulated)",
}

// quantTable is the decoded first DQT segment of a JPEG image.
type quantTable struct {
	Signature string
	Match     string
	TableID   int
	Min       int
	Max       int
	Unique    int
	Warnings  []string
}

var jpegSOI = []byte{0xFF, 0xD8}

// extractQuantTable reads the first Define-Quantization-Table segment out of
// raw JPEG bytes and classifies it.
func extractQuantTable(jpeg []byte) (*quantTable, error) {
	if !bytes.HasPrefix(jpeg, jpegSOI) {
		return nil, errors.New("not a JPEG (missing SOI marker)")
	}
	dqt := bytes.Index(jpeg, []byte{0xFF, 0xDB})
	if dqt < 0 {
		return nil, errors.New("no quantization table found")
	}

	// DQT segment: FF DB <length:2> <precision|table id:1> <values:64|128>
	pos := dqt + 2
	if pos+3 > len(jpeg) {
		return nil, errors.New("truncated DQT segment")
	}
	precTable := jpeg[pos+2]
	precision := int(precTable >> 4)
	tableID := int(precTable & 0x0F)

	size := 64
	if precision != 0 {
		size = 128
	}
	start := pos + 3
	if start+size > len(jpeg) {
		return nil, errors.New("truncated quantization table")
	}
	values := jpeg[start : start+size]

	qt := &quantTable{
		Signature: hex.EncodeToString(values[:16]),
		TableID:   tableID,
		Min:       255,
	}
	qt.Match = qtSignatures[qt.Signature]

	unique := make(map[byte]bool)
	for _, v := range values {
		unique[v] = true
		if int(v) < qt.Min {
			qt.Min = int(v)
		}
		if int(v) > qt.Max {
			qt.Max = int(v)
		}
	}
	qt.Unique = len(unique)

	switch {
	case qt.Min == qt.Max:
		qt.Warnings = append(qt.Warnings, "all quantization values identical (likely forged)")
	case qt.Unique < 10:
		qt.Warnings = append(qt.Warnings, "very low quantization diversity, unusual for a real camera or scanner")
	case qt.Min < 2:
		qt.Warnings = append(qt.Warnings, "quantization values below 2 (unusual compression)")
	case qt.Max > 250:
		qt.Warnings = append(qt.Warnings, "very high quantization values (extreme compression)")
	}
	if qt.Match == "" {
		for _, pattern := range []string{"181818", "1c1c1c", "282828"} {
			if bytes.Contains([]byte(qt.Signature), []byte(pattern)) {
				qt.Warnings = append(qt.Warnings, "pattern matches Photoshop-style compression")
				break
			}
		}
	}
	return qt, nil
}

// evalJPEGQuantTables fingerprints every embedded JPEG's quantization table.
// A table matching editing software, or a degenerate table, inside a
// document that presents as a scan means the image was re-saved or forged.
func evalJPEGQuantTables(ctx *Context) []Finding {
	analyzed := 0
	suspiciousCount := 0
	var suspicious []Detail
	for _, rec := range ctx.Doc.AllObjects {
		stream, ok := rec.Object.(*object.Stream)
		if !ok || stream.Dict.Name("Subtype") != "Image" {
			continue
		}
		data := stream.Raw
		if !bytes.HasPrefix(data, jpegSOI) {
			if decoded, err := ctx.Doc.DecodeStream(stream); err == nil {
				data = decoded
			}
			if !bytes.HasPrefix(data, jpegSOI) {
				continue
			}
		}
		qt, err := extractQuantTable(data)
		if err != nil {
			continue
		}
		analyzed++
		if qt.Match == "" && len(qt.Warnings) == 0 {
			continue
		}
		suspiciousCount++
		if len(suspicious) >= 5 {
			continue
		}
		desc := fmt.Sprintf("object (%d,%d)", rec.ID.Num, rec.ID.Gen)
		if qt.Match != "" {
			desc += " - " + qt.Match
		}
		for _, w := range qt.Warnings {
			desc += " - " + w
		}
		suspicious = append(suspicious, detail("image", desc))
	}
	if suspiciousCount == 0 {
		return nil
	}
	evidence := []Detail{
		detail("total_jpegs", strconv.Itoa(analyzed)),
		detail("suspicious", strconv.Itoa(suspiciousCount)),
	}
	evidence = append(evidence, suspicious...)
	return []Finding{finding(KindSuspiciousJPEGQuantization, SeverityMedium,
		fmt.Sprintf("%d of %d embedded JPEG(s) carry quantization tables matching editing software or degenerate patterns", suspiciousCount, analyzed),
		evidence...)}
}
