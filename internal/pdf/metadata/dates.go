package metadata

import (
	"regexp"
	"strconv"
	"time"
)

// Timestamp is a parsed date that keeps its raw source text. Unparseable
// dates stay raw with Valid unset so reports can still show them.
type Timestamp struct {
	Raw   string
	Time  time.Time
	Valid bool
}

var pdfDateRE = regexp.MustCompile(
	`^D:(\d{4})(\d{2})?(\d{2})?(\d{2})?(\d{2})?(\d{2})?(?:([+\-Zz])(\d{2})?'?(\d{2})?'?)?`)

// ParsePDFDate parses a PDF date string of the form
// D:YYYYMMDDHHmmSS±HH'mm'. Missing trailing components take their PDF
// defaults; a missing timezone is treated as UTC.
func ParsePDFDate(raw string) Timestamp {
	ts := Timestamp{Raw: raw}
	m := pdfDateRE.FindStringSubmatch(raw)
	if m == nil {
		return ts
	}
	atoi := func(s string, def int) int {
		if s == "" {
			return def
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return def
		}
		return v
	}
	year := atoi(m[1], 0)
	month := atoi(m[2], 1)
	day := atoi(m[3], 1)
	hour := atoi(m[4], 0)
	minute := atoi(m[5], 0)
	sec := atoi(m[6], 0)
	if year < 1 || month < 1 || month > 12 || day < 1 || day > 31 {
		return ts
	}

	loc := time.UTC
	switch m[7] {
	case "+", "-":
		offset := atoi(m[8], 0)*3600 + atoi(m[9], 0)*60
		if m[7] == "-" {
			offset = -offset
		}
		loc = time.FixedZone("", offset)
	}
	ts.Time = time.Date(year, time.Month(month), day, hour, minute, sec, 0, loc)
	ts.Valid = true
	return ts
}

// ParseXMPDate parses an ISO-8601 / XMP date string.
func ParseXMPDate(raw string) Timestamp {
	ts := Timestamp{Raw: raw}
	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05.999999999Z07:00",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02",
		"2006-01",
		"2006",
	} {
		if t, err := time.Parse(layout, raw); err == nil {
			ts.Time = t
			ts.Valid = true
			return ts
		}
	}
	return ts
}

// ParseAnyDate tries the PDF form first, then ISO-8601.
func ParseAnyDate(raw string) Timestamp {
	if ts := ParsePDFDate(raw); ts.Valid {
		return ts
	}
	return ParseXMPDate(raw)
}

// Equal reports whether two timestamps agree within the given tolerance.
// Invalid timestamps never compare equal.
func (t Timestamp) Equal(other Timestamp, tolerance time.Duration) bool {
	if !t.Valid || !other.Valid {
		return false
	}
	d := t.Time.Sub(other.Time)
	if d < 0 {
		d = -d
	}
	return d <= tolerance
}
