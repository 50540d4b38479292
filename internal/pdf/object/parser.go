package object

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Parser parses PDF objects out of an in-memory buffer. It is deliberately
// tolerant: garbage between objects, a missing endobj, or a broken value
// resynchronizes the parser instead of aborting, and the problem is recorded
// in Errors.
type Parser struct {
	data   []byte
	lex    *Lexer
	Errors []string
}

// NewParser returns a parser over data.
func NewParser(data []byte) *Parser {
	return &Parser{data: data, lex: NewLexer(data, 0)}
}

func (p *Parser) recordError(msg string, pos int64) {
	p.Errors = append(p.Errors, fmt.Sprintf("offset %d: %s", pos, msg))
}

// ParseObjectAt parses a single object of any type at the given offset.
func (p *Parser) ParseObjectAt(offset int64) (Object, error) {
	p.lex.SeekTo(offset)
	return p.parseValue(p.lex.NextToken())
}

// ParseIndirectAt parses an "N G obj ... endobj" definition whose object
// number starts at offset. A missing endobj is tolerated and recorded.
func (p *Parser) ParseIndirectAt(offset int64) (*Indirect, error) {
	p.lex.SeekTo(offset)

	numTok := p.lex.NextToken()
	if numTok.Type != TokenNumber {
		return nil, newParseError("expected object number", numTok.Pos)
	}
	genTok := p.lex.NextToken()
	if genTok.Type != TokenNumber {
		return nil, newParseError("expected generation number", genTok.Pos)
	}
	objTok := p.lex.NextToken()
	if objTok.Type != TokenKeyword || objTok.Value != "obj" {
		return nil, newParseError("expected obj keyword", objTok.Pos)
	}

	num, err := strconv.Atoi(numTok.Value)
	if err != nil {
		return nil, newParseError("invalid object number", numTok.Pos)
	}
	gen, err := strconv.Atoi(genTok.Value)
	if err != nil {
		return nil, newParseError("invalid generation number", genTok.Pos)
	}
	id := ID{Num: num, Gen: gen}

	value, err := p.parseValue(p.lex.NextToken())
	if err != nil {
		p.recordError(fmt.Sprintf("object %s: %v", id, err), offset)
		p.resync()
		return &Indirect{ID: id, Object: Null{}, Offset: offset}, nil
	}

	// Dictionaries may be followed by stream data.
	if dict, ok := value.(*Dict); ok {
		if stream, ok := p.tryReadStream(dict); ok {
			value = stream
		}
	}

	end := p.lex.NextToken()
	if end.Type != TokenKeyword || end.Value != "endobj" {
		p.recordError(fmt.Sprintf("object %s: missing endobj", id), end.Pos)
		p.lex.SeekTo(end.Pos)
		p.resync()
	}
	return &Indirect{ID: id, Object: value, Offset: offset}, nil
}

// resync advances the lexer past the next endobj, or to the end of the data
// when there is none, so that parsing can continue after a malformed object.
func (p *Parser) resync() {
	rest := p.data[min64(p.lex.Pos(), int64(len(p.data))):]
	if idx := bytes.Index(rest, []byte("endobj")); idx >= 0 {
		p.lex.SeekTo(p.lex.Pos() + int64(idx+len("endobj")))
		return
	}
	p.lex.SeekTo(int64(len(p.data)))
}

// parseValue turns the token stream into an object, starting with tok.
func (p *Parser) parseValue(tok Token) (Object, error) {
	switch tok.Type {
	case TokenEOF:
		return nil, newParseError("unexpected end of data", tok.Pos)
	case TokenNumber:
		return p.parseNumberOrRef(tok)
	case TokenString:
		return String{Value: tok.Bytes}, nil
	case TokenHexString:
		return String{Value: tok.Bytes, IsHex: true}, nil
	case TokenName:
		return Name{Value: tok.Value}, nil
	case TokenArrayStart:
		return p.parseArray()
	case TokenDictStart:
		return p.parseDict()
	case TokenKeyword:
		switch tok.Value {
		case "null":
			return Null{}, nil
		case "true":
			return Bool{Value: true}, nil
		case "false":
			return Bool{Value: false}, nil
		default:
			return Operator{Value: tok.Value}, nil
		}
	default:
		return nil, newParseError(fmt.Sprintf("unexpected token %q", tok.Value), tok.Pos)
	}
}

func (p *Parser) parseNumber(tok Token) (Object, error) {
	if strings.ContainsAny(tok.Value, ".") {
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, newParseError("invalid real number", tok.Pos)
		}
		return Number{Real: v}, nil
	}
	v, err := strconv.ParseInt(tok.Value, 10, 64)
	if err != nil {
		// over-long integers fall back to float
		if f, ferr := strconv.ParseFloat(tok.Value, 64); ferr == nil {
			return Number{Real: f}, nil
		}
		return nil, newParseError("invalid number", tok.Pos)
	}
	return Number{Int: v, IsInt: true}, nil
}

// parseNumberOrRef disambiguates "N G R" references from plain numbers by
// lookahead with position restore.
func (p *Parser) parseNumberOrRef(tok Token) (Object, error) {
	num, err := p.parseNumber(tok)
	if err != nil {
		return nil, err
	}
	n, ok := num.(Number)
	if !ok || !n.IsInt || n.Int < 0 {
		return num, nil
	}

	save := p.lex.Pos()
	genTok := p.lex.NextToken()
	if genTok.Type == TokenNumber && !strings.Contains(genTok.Value, ".") {
		refTok := p.lex.NextToken()
		if refTok.Type == TokenKeyword && refTok.Value == "R" {
			gen, err := strconv.Atoi(genTok.Value)
			if err == nil {
				return Ref{ID: ID{Num: int(n.Int), Gen: gen}}, nil
			}
		}
	}
	p.lex.SeekTo(save)
	return num, nil
}

func (p *Parser) parseArray() (Object, error) {
	arr := &Array{}
	for {
		tok := p.lex.NextToken()
		switch tok.Type {
		case TokenArrayEnd:
			return arr, nil
		case TokenEOF:
			p.recordError("unterminated array", tok.Pos)
			return arr, nil
		case TokenDictEnd, TokenDelimiter:
			// stray delimiter inside array, skip it
			p.recordError(fmt.Sprintf("unexpected %q in array", tok.Value), tok.Pos)
			continue
		}
		elem, err := p.parseValue(tok)
		if err != nil {
			p.recordError(fmt.Sprintf("bad array element: %v", err), tok.Pos)
			continue
		}
		arr.Elems = append(arr.Elems, elem)
	}
}

func (p *Parser) parseDict() (Object, error) {
	dict := NewDict()
	for {
		tok := p.lex.NextToken()
		switch tok.Type {
		case TokenDictEnd:
			return dict, nil
		case TokenEOF:
			p.recordError("unterminated dictionary", tok.Pos)
			return dict, nil
		}
		if tok.Type != TokenName {
			// trailing garbage inside the dictionary; skip the token
			p.recordError(fmt.Sprintf("expected name key, got %q", tok.Value), tok.Pos)
			continue
		}
		key := tok.Value
		value, err := p.parseValue(p.lex.NextToken())
		if err != nil {
			p.recordError(fmt.Sprintf("bad value for key /%s: %v", key, err), tok.Pos)
			continue
		}
		dict.Set(key, value)
	}
}

// tryReadStream checks whether dict is followed by stream data and, if so,
// captures the raw bytes without decoding them. The declared /Length is used
// when it is a direct integer; otherwise the data is delimited by searching
// for the next endstream keyword.
func (p *Parser) tryReadStream(dict *Dict) (*Stream, bool) {
	save := p.lex.Pos()
	tok := p.lex.NextToken()
	if tok.Type != TokenKeyword || tok.Value != "stream" {
		p.lex.SeekTo(save)
		return nil, false
	}

	// Data begins after the EOL following the stream keyword.
	pos := tok.Pos + int64(len("stream"))
	if pos < int64(len(p.data)) && p.data[pos] == '\r' {
		pos++
	}
	if pos < int64(len(p.data)) && p.data[pos] == '\n' {
		pos++
	}

	length := dict.Int("Length", -1)
	if _, isRef := dict.Get("Length").(Ref); isRef {
		length = -1
	}

	var raw []byte
	var end int64
	if length >= 0 && pos+length <= int64(len(p.data)) {
		raw = p.data[pos : pos+length]
		end = pos + length
		// verify endstream follows; fall back to a search when it does not
		if !endstreamNear(p.data, end) {
			raw, end = scanToEndstream(p.data, pos)
			p.recordError("stream /Length does not match endstream position", tok.Pos)
		}
	} else {
		raw, end = scanToEndstream(p.data, pos)
		if length >= 0 {
			p.recordError("stream /Length exceeds file size", tok.Pos)
		}
	}

	// Skip past the endstream keyword.
	rest := p.data[min64(end, int64(len(p.data))):]
	if idx := bytes.Index(rest, []byte("endstream")); idx >= 0 {
		p.lex.SeekTo(end + int64(idx+len("endstream")))
	} else {
		p.lex.SeekTo(int64(len(p.data)))
	}
	return &Stream{Dict: dict, Raw: raw, Offset: pos}, true
}

// endstreamNear reports whether an endstream keyword follows offset after at
// most a short run of whitespace.
func endstreamNear(data []byte, offset int64) bool {
	i := offset
	for i < int64(len(data)) && i < offset+4 && isWhitespace(data[i]) {
		i++
	}
	return bytes.HasPrefix(data[min64(i, int64(len(data))):], []byte("endstream"))
}

// scanToEndstream delimits stream data by the next endstream keyword,
// trimming one trailing EOL. Returns the data and the offset past it.
func scanToEndstream(data []byte, start int64) ([]byte, int64) {
	if start >= int64(len(data)) {
		return nil, int64(len(data))
	}
	idx := bytes.Index(data[start:], []byte("endstream"))
	if idx < 0 {
		return data[start:], int64(len(data))
	}
	end := start + int64(idx)
	trimmed := end
	if trimmed > start && data[trimmed-1] == '\n' {
		trimmed--
	}
	if trimmed > start && data[trimmed-1] == '\r' {
		trimmed--
	}
	return data[start:trimmed], end
}

// StartOfIndirect walks backwards from the offset of an obj keyword to the
// offset of the object number that precedes it. It returns -1 when the bytes
// before the keyword do not look like "N G ".
func StartOfIndirect(data []byte, objKeywordOffset int64) int64 {
	i := objKeywordOffset - 1
	skipBack := func(pred func(byte) bool) bool {
		moved := false
		for i >= 0 && pred(data[i]) {
			i--
			moved = true
		}
		return moved
	}
	isDigit := func(c byte) bool { return c >= '0' && c <= '9' }
	if !skipBack(isWhitespace) {
		return -1
	}
	if !skipBack(isDigit) { // generation
		return -1
	}
	if !skipBack(isWhitespace) {
		return -1
	}
	if !skipBack(isDigit) { // object number
		return -1
	}
	return i + 1
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
