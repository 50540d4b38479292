// Package object implements a tolerant lexer and parser for PDF objects:
// dictionaries, arrays, names, strings, numbers, indirect references and
// streams. It favors partial results over strict validation; callers receive
// whatever could be recognized plus a record of what could not.
package object

import (
	"fmt"
	"strconv"
	"strings"
)

// Type enumerates the PDF object kinds the parser produces.
type Type int

const (
	TypeNull Type = iota
	TypeBool
	TypeNumber
	TypeString
	TypeName
	TypeArray
	TypeDict
	TypeStream
	TypeRef
	TypeOperator
)

func (t Type) String() string {
	switch t {
	case TypeNull:
		return "null"
	case TypeBool:
		return "bool"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeName:
		return "name"
	case TypeArray:
		return "array"
	case TypeDict:
		return "dictionary"
	case TypeStream:
		return "stream"
	case TypeRef:
		return "reference"
	case TypeOperator:
		return "operator"
	default:
		return "unknown"
	}
}

// Object is the interface implemented by every parsed PDF value.
type Object interface {
	Type() Type
	String() string
}

// ID identifies an indirect object by number and generation.
type ID struct {
	Num int
	Gen int
}

func (id ID) String() string { return fmt.Sprintf("%d %d", id.Num, id.Gen) }

// Null is the PDF null object.
type Null struct{}

func (Null) Type() Type     { return TypeNull }
func (Null) String() string { return "null" }

// Bool is a PDF boolean.
type Bool struct{ Value bool }

func (Bool) Type() Type { return TypeBool }
func (b Bool) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

// Number is a PDF integer or real. Integers keep full int64 precision.
type Number struct {
	Real  float64
	Int   int64
	IsInt bool
}

func (Number) Type() Type { return TypeNumber }
func (n Number) String() string {
	if n.IsInt {
		return strconv.FormatInt(n.Int, 10)
	}
	return strconv.FormatFloat(n.Real, 'f', -1, 64)
}

// Float returns the numeric value regardless of integer/real kind.
func (n Number) Float() float64 {
	if n.IsInt {
		return float64(n.Int)
	}
	return n.Real
}

// String is a PDF string with escapes and hex encoding already decoded.
type String struct {
	Value []byte
	IsHex bool
}

func (String) Type() Type       { return TypeString }
func (s String) String() string { return "(" + string(s.Value) + ")" }

// Text returns the decoded bytes as a Go string.
func (s String) Text() string { return string(s.Value) }

// Name is a PDF name with #xx escapes decoded; Value excludes the solidus.
type Name struct{ Value string }

func (Name) Type() Type       { return TypeName }
func (n Name) String() string { return "/" + n.Value }

// Array is an ordered sequence of objects.
type Array struct{ Elems []Object }

func (Array) Type() Type { return TypeArray }
func (a *Array) String() string {
	parts := make([]string, len(a.Elems))
	for i, e := range a.Elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.Elems) }

// At returns element i, or Null when out of range.
func (a *Array) At(i int) Object {
	if i < 0 || i >= len(a.Elems) {
		return Null{}
	}
	return a.Elems[i]
}

// Dict is a PDF dictionary preserving key insertion order.
type Dict struct {
	keys   []string
	values map[string]Object
}

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{values: make(map[string]Object)}
}

func (*Dict) Type() Type { return TypeDict }
func (d *Dict) String() string {
	var b strings.Builder
	b.WriteString("<<")
	for i, k := range d.keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString("/" + k + " " + d.values[k].String())
	}
	b.WriteString(">>")
	return b.String()
}

// Set stores value under key, keeping first-insertion order.
func (d *Dict) Set(key string, value Object) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value for key, or Null when absent.
func (d *Dict) Get(key string) Object {
	if v, ok := d.values[key]; ok {
		return v
	}
	return Null{}
}

// Has reports whether key is present.
func (d *Dict) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (d *Dict) Keys() []string { return d.keys }

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Name returns the value for key when it is a name, else "".
func (d *Dict) Name(key string) string {
	if n, ok := d.Get(key).(Name); ok {
		return n.Value
	}
	return ""
}

// Int returns the value for key when numeric, else def.
func (d *Dict) Int(key string, def int64) int64 {
	if n, ok := d.Get(key).(Number); ok {
		if n.IsInt {
			return n.Int
		}
		return int64(n.Real)
	}
	return def
}

// Bool returns the value for key when boolean, else false.
func (d *Dict) Bool(key string) bool {
	if b, ok := d.Get(key).(Bool); ok {
		return b.Value
	}
	return false
}

// Text returns the value for key when it is a string, else "".
func (d *Dict) Text(key string) string {
	if s, ok := d.Get(key).(String); ok {
		return s.Text()
	}
	return ""
}

// Array returns the value for key when it is an array, else an empty one.
func (d *Dict) Array(key string) *Array {
	if a, ok := d.Get(key).(*Array); ok {
		return a
	}
	return &Array{}
}

// Dict returns the value for key when it is a dictionary, else an empty one.
func (d *Dict) Dict(key string) *Dict {
	if sub, ok := d.Get(key).(*Dict); ok {
		return sub
	}
	return NewDict()
}

// Ref returns the value for key when it is an indirect reference.
func (d *Dict) Ref(key string) (ID, bool) {
	if r, ok := d.Get(key).(Ref); ok {
		return r.ID, true
	}
	return ID{}, false
}

// Stream is a dictionary followed by raw, still-encoded stream bytes.
type Stream struct {
	Dict   *Dict
	Raw    []byte
	Offset int64
}

func (*Stream) Type() Type { return TypeStream }
func (s *Stream) String() string {
	return fmt.Sprintf("%s stream[%d bytes]", s.Dict.String(), len(s.Raw))
}

// Filters returns the declared filter chain in application order.
func (s *Stream) Filters() []string {
	switch f := s.Dict.Get("Filter").(type) {
	case Name:
		return []string{f.Value}
	case *Array:
		var names []string
		for _, e := range f.Elems {
			if n, ok := e.(Name); ok {
				names = append(names, n.Value)
			}
		}
		return names
	}
	return nil
}

// DecodeParms returns the decode-parameter dictionary for filter index i.
func (s *Stream) DecodeParms(i int) *Dict {
	switch p := s.Dict.Get("DecodeParms").(type) {
	case *Dict:
		if i == 0 {
			return p
		}
	case *Array:
		if d, ok := p.At(i).(*Dict); ok {
			return d
		}
	}
	return nil
}

// Ref is an indirect object reference ("N G R").
type Ref struct{ ID ID }

func (Ref) Type() Type       { return TypeRef }
func (r Ref) String() string { return r.ID.String() + " R" }

// Operator is a bare keyword, as found in content streams.
type Operator struct{ Value string }

func (Operator) Type() Type       { return TypeOperator }
func (o Operator) String() string { return o.Value }

// Indirect is a fully parsed "N G obj ... endobj" definition.
type Indirect struct {
	ID     ID
	Object Object
	Offset int64
}

// Walk applies fn to obj and every object nested inside it. Values form a
// tree (references are leaves), so no cycle guard is needed.
func Walk(obj Object, fn func(Object)) {
	if obj == nil {
		return
	}
	fn(obj)
	switch v := obj.(type) {
	case *Array:
		for _, e := range v.Elems {
			Walk(e, fn)
		}
	case *Dict:
		for _, k := range v.keys {
			Walk(v.values[k], fn)
		}
	case *Stream:
		Walk(v.Dict, fn)
	}
}

// WalkRefs applies fn to every indirect reference nested inside obj.
func WalkRefs(obj Object, fn func(ID)) {
	Walk(obj, func(o Object) {
		if r, ok := o.(Ref); ok {
			fn(r.ID)
		}
	})
}

// ParseError describes a recoverable problem found while parsing.
type ParseError struct {
	Message  string
	Position int64
}

func (e *ParseError) Error() string {
	if e.Position >= 0 {
		return fmt.Sprintf("pdf parse error at offset %d: %s", e.Position, e.Message)
	}
	return "pdf parse error: " + e.Message
}

func newParseError(msg string, pos int64) *ParseError {
	return &ParseError{Message: msg, Position: pos}
}
