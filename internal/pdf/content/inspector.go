// Package content inspects decoded page content streams for the operator
// patterns that matter forensically: dense text repositioning, invisible
// text (render mode 3), white-filled rectangles, and drawing-operator load.
package content

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/Rasmus-Riis/PDFRecon/internal/pdf/object"
)

// Stats holds the per-page counters the indicator evaluators consume.
type Stats struct {
	Page                 int // 1-based page number
	TextPositionOps      int // Tm, Td, TD, T* total
	MaxPositionsPerBlock int // highest Tm/Td/TD/T* count within one BT/ET
	TextShowOps          int
	InvisibleRuns        int
	InvisibleText        []string // captured text per invisible run
	WhiteFilledRects     int
	WhiteColorOps        int // raw "1 1 1 rg" / "1 1 1 RG" occurrences
	DrawingOps           int

	// ImagePaintedArea sums the CTM-scaled unit square of every Do, i.e. the
	// page area covered by painted XObjects in user-space units.
	ImagePaintedArea float64

	// Text cursor extremes across every text-show operator, for off-page
	// text detection.
	HasTextPos         bool
	TextMinX, TextMinY float64
	TextMaxX, TextMaxY float64
}

// graphics state tracked across q/Q nesting: the fill color and the CTM
// scale components.
type gstate struct {
	fillWhite bool
	sx, sy    float64
}

var drawingOps = map[string]bool{
	"re": true, "m": true, "l": true, "c": true, "v": true, "y": true,
	"h": true, "f": true, "F": true, "f*": true, "S": true, "s": true,
	"B": true, "b": true,
}

var positioningOps = map[string]bool{
	"Tm": true, "Td": true, "TD": true, "T*": true,
}

// Inspect tokenizes one page's concatenated, already-decoded content stream
// and returns its operator statistics. It never fails: unparseable regions
// contribute nothing.
func Inspect(stream []byte, page int) *Stats {
	st := &Stats{Page: page}
	lex := object.NewLexer(stream, 0)

	var operands []object.Token
	var arrayStrings []string // strings collected inside the current [...] operand
	inArray := false

	gs := gstate{sx: 1, sy: 1}
	var stack []gstate
	renderMode := 0
	inText := false
	blockPositions := 0
	pendingRects := 0
	var run strings.Builder
	runOpen := false

	var tx, ty float64
	posKnown := false
	markText := func() {
		if !posKnown {
			return
		}
		if !st.HasTextPos {
			st.TextMinX, st.TextMaxX = tx, tx
			st.TextMinY, st.TextMaxY = ty, ty
			st.HasTextPos = true
			return
		}
		if tx < st.TextMinX {
			st.TextMinX = tx
		}
		if tx > st.TextMaxX {
			st.TextMaxX = tx
		}
		if ty < st.TextMinY {
			st.TextMinY = ty
		}
		if ty > st.TextMaxY {
			st.TextMaxY = ty
		}
	}

	endRun := func() {
		if runOpen {
			st.InvisibleText = append(st.InvisibleText, run.String())
			run.Reset()
			runOpen = false
		}
	}

	for {
		tok := lex.NextToken()
		if tok.Type == object.TokenEOF {
			break
		}
		switch tok.Type {
		case object.TokenArrayStart:
			inArray = true
			arrayStrings = arrayStrings[:0]
			continue
		case object.TokenArrayEnd:
			inArray = false
			operands = append(operands, object.Token{
				Type:  object.TokenString,
				Value: strings.Join(arrayStrings, ""),
			})
			continue
		case object.TokenString, object.TokenHexString:
			if inArray {
				arrayStrings = append(arrayStrings, tok.Value)
				continue
			}
			operands = append(operands, tok)
			continue
		case object.TokenNumber, object.TokenName, object.TokenDictStart,
			object.TokenDictEnd, object.TokenDelimiter:
			if !inArray {
				operands = append(operands, tok)
			}
			continue
		}

		// keyword: a content operator
		op := tok.Value
		switch {
		case op == "BT":
			inText = true
			blockPositions = 0
			tx, ty = 0, 0
			posKnown = true
		case op == "ET":
			inText = false
			if blockPositions > st.MaxPositionsPerBlock {
				st.MaxPositionsPerBlock = blockPositions
			}
		case positioningOps[op]:
			st.TextPositionOps++
			if inText {
				blockPositions++
				if blockPositions > st.MaxPositionsPerBlock {
					st.MaxPositionsPerBlock = blockPositions
				}
			}
			switch op {
			case "Tm":
				if f := floatOperands(operands, 6); f != nil {
					tx, ty = f[4], f[5]
					posKnown = true
				}
			case "Td", "TD":
				if f := floatOperands(operands, 2); f != nil {
					tx += f[0]
					ty += f[1]
				}
			}
		case op == "Tr":
			mode := lastInt(operands, 0)
			if renderMode == 3 && mode != 3 {
				endRun()
			}
			renderMode = mode
		case op == "q":
			stack = append(stack, gs)
		case op == "Q":
			if len(stack) > 0 {
				gs = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
		case op == "rg":
			gs.fillWhite = allOnes(operands)
			if threeOnes(operands) {
				st.WhiteColorOps++
			}
		case op == "RG":
			if threeOnes(operands) {
				st.WhiteColorOps++
			}
		case op == "sc" || op == "scn":
			gs.fillWhite = allOnes(operands)
		case op == "g":
			gs.fillWhite = len(operands) >= 1 && isOne(operands[len(operands)-1])
		case op == "k":
			gs.fillWhite = allZeros(operands, 4)
		case op == "cs":
			// colorspace switch resets the tracked fill color
			gs.fillWhite = false
		case op == "cm":
			if f := floatOperands(operands, 6); f != nil {
				gs.sx *= abs64(f[0])
				gs.sy *= abs64(f[3])
			}
		case op == "Do":
			st.ImagePaintedArea += gs.sx * gs.sy
		case op == "re":
			pendingRects++
			st.DrawingOps++
		case op == "f" || op == "F" || op == "f*" || op == "B" || op == "b":
			if gs.fillWhite {
				st.WhiteFilledRects += pendingRects
			}
			pendingRects = 0
			st.DrawingOps++
		case op == "S" || op == "s":
			pendingRects = 0
			st.DrawingOps++
		case op == "n":
			pendingRects = 0
		case drawingOps[op]:
			st.DrawingOps++
		case op == "Tj" || op == "TJ" || op == "'" || op == "\"":
			st.TextShowOps++
			markText()
			if renderMode == 3 {
				if !runOpen {
					st.InvisibleRuns++
					runOpen = true
				}
				for _, o := range operands {
					if o.Type == object.TokenString || o.Type == object.TokenHexString {
						run.WriteString(o.Value)
					}
				}
			}
		case op == "ID":
			// inline image: skip binary data up to the EI delimiter
			skipInlineImage(lex, stream)
		}
		operands = operands[:0]
	}
	endRun()
	if inText && blockPositions > st.MaxPositionsPerBlock {
		st.MaxPositionsPerBlock = blockPositions
	}
	return st
}

// skipInlineImage advances the lexer past inline image data, looking for an
// EI keyword preceded by whitespace and followed by a delimiter.
func skipInlineImage(lex *object.Lexer, stream []byte) {
	pos := lex.Pos()
	for {
		idx := bytes.Index(stream[pos:], []byte("EI"))
		if idx < 0 {
			lex.SeekTo(int64(len(stream)))
			return
		}
		at := pos + int64(idx)
		prevOK := at == 0 || isContentWhitespace(stream[at-1])
		end := at + 2
		nextOK := end >= int64(len(stream)) || isContentWhitespace(stream[end]) || isContentDelimiter(stream[end])
		if prevOK && nextOK {
			lex.SeekTo(end)
			return
		}
		pos = at + 2
	}
}

func isContentWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isContentDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func lastInt(operands []object.Token, def int) int {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].Type == object.TokenNumber {
			n := 0
			neg := false
			for _, c := range operands[i].Value {
				if c == '-' {
					neg = true
				} else if c >= '0' && c <= '9' {
					n = n*10 + int(c-'0')
				} else {
					break
				}
			}
			if neg {
				n = -n
			}
			return n
		}
	}
	return def
}

func isOne(tok object.Token) bool {
	return tok.Type == object.TokenNumber && numEquals(tok.Value, 1)
}

// threeOnes reports whether the last three operands are the literal white
// triple "1 1 1".
func threeOnes(operands []object.Token) bool {
	if len(operands) < 3 {
		return false
	}
	for _, tok := range operands[len(operands)-3:] {
		if !isOne(tok) {
			return false
		}
	}
	return true
}

// floatOperands returns the trailing n numeric operands as floats, in
// order, or nil when fewer are present.
func floatOperands(operands []object.Token, n int) []float64 {
	if len(operands) < n {
		return nil
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		tok := operands[len(operands)-n+i]
		if tok.Type != object.TokenNumber {
			return nil
		}
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil
		}
		out[i] = v
	}
	return out
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// allOnes reports whether the trailing numeric operands are all 1 (white in
// RGB and in single-component spaces).
func allOnes(operands []object.Token) bool {
	seen := 0
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].Type != object.TokenNumber {
			break
		}
		if !numEquals(operands[i].Value, 1) {
			return false
		}
		seen++
	}
	return seen >= 1
}

// allZeros reports whether the last want numeric operands are all 0 (white
// in CMYK).
func allZeros(operands []object.Token, want int) bool {
	seen := 0
	for i := len(operands) - 1; i >= 0 && seen < want; i-- {
		if operands[i].Type != object.TokenNumber {
			return false
		}
		if !numEquals(operands[i].Value, 0) {
			return false
		}
		seen++
	}
	return seen == want
}

// numEquals compares a numeric token's text to an integer value, accepting
// "1", "1.0", "1.", "0.0" and similar spellings.
func numEquals(text string, v int) bool {
	intPart := text
	frac := ""
	if dot := strings.IndexByte(text, '.'); dot >= 0 {
		intPart, frac = text[:dot], text[dot+1:]
	}
	for _, c := range frac {
		if c != '0' {
			return false
		}
	}
	if intPart == "" {
		intPart = "0"
	}
	n := 0
	for _, c := range intPart {
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + int(c-'0')
	}
	return n == v
}
