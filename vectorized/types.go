package vectorized

import (
	"fmt"
	"strings"
)

// DataType represents the physical family of a column
type DataType int

const (
	NULL DataType = iota // pseudo-type of an untyped NULL literal
	BOOLEAN
	INT64
	FLOAT64
	STRING
	STRUCT
	LIST
)

// String returns the string representation of a data type
func (dt DataType) String() string {
	switch dt {
	case NULL:
		return "NULL"
	case BOOLEAN:
		return "BOOLEAN"
	case INT64:
		return "INT64"
	case FLOAT64:
		return "FLOAT64"
	case STRING:
		return "STRING"
	case STRUCT:
		return "STRUCT"
	case LIST:
		return "LIST"
	default:
		return "UNKNOWN"
	}
}

// IsNumeric returns true if the data type is numeric
func (dt DataType) IsNumeric() bool {
	return dt == INT64 || dt == FLOAT64
}

// IsNested returns true for STRUCT and LIST
func (dt DataType) IsNested() bool {
	return dt == STRUCT || dt == LIST
}

// Type is a complete column type. Fields is set for STRUCT, Elem for LIST.
type Type struct {
	ID     DataType
	Fields []*Field
	Elem   *Type
}

// Field represents a named member of a struct type
type Field struct {
	Name string
	Type *Type
}

var (
	nullType    = &Type{ID: NULL}
	booleanType = &Type{ID: BOOLEAN}
	int64Type   = &Type{ID: INT64}
	float64Type = &Type{ID: FLOAT64}
	stringType  = &Type{ID: STRING}
)

// Null returns the pseudo-type of untyped NULL values
func Null() *Type { return nullType }

// Boolean returns the boolean type
func Boolean() *Type { return booleanType }

// Int64 returns the 64-bit integer type
func Int64() *Type { return int64Type }

// Float64 returns the 64-bit floating point type
func Float64() *Type { return float64Type }

// String returns the UTF-8 string type
func String() *Type { return stringType }

// ListOf returns a list type with the given element type
func ListOf(elem *Type) *Type {
	return &Type{ID: LIST, Elem: elem}
}

// StructOf returns a struct type with the given ordered fields
func StructOf(fields ...*Field) *Type {
	return &Type{ID: STRUCT, Fields: fields}
}

// NewField creates a struct field
func NewField(name string, t *Type) *Field {
	return &Field{Name: name, Type: t}
}

// FieldIndex returns the position of the named field, or -1
func (t *Type) FieldIndex(name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Equal reports whether two types are structurally identical
func (t *Type) Equal(o *Type) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || t.ID != o.ID {
		return false
	}
	switch t.ID {
	case LIST:
		return t.Elem.Equal(o.Elem)
	case STRUCT:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
				return false
			}
		}
	}
	return true
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.ID {
	case LIST:
		return "LIST<" + t.Elem.String() + ">"
	case STRUCT:
		var sb strings.Builder
		sb.WriteString("STRUCT<")
		for i, f := range t.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(f.Name)
			sb.WriteString(": ")
			sb.WriteString(f.Type.String())
		}
		sb.WriteString(">")
		return sb.String()
	default:
		return t.ID.String()
	}
}

var typeNames = map[string]*Type{
	"NULL":    nullType,
	"BOOLEAN": booleanType,
	"BOOL":    booleanType,
	"INT64":   int64Type,
	"BIGINT":  int64Type,
	"INTEGER": int64Type,
	"INT":     int64Type,
	"FLOAT64": float64Type,
	"DOUBLE":  float64Type,
	"FLOAT":   float64Type,
	"STRING":  stringType,
	"VARCHAR": stringType,
	"TEXT":    stringType,
}

// ParseType parses the form produced by Type.String, such as
// "LIST<STRUCT<a: INT64, b: STRING>>". Scalar names are case-insensitive
// and accept the common SQL aliases.
func ParseType(s string) (*Type, error) {
	p := &typeParser{input: s}
	t, err := p.parse()
	if err != nil {
		return nil, fmt.Errorf("invalid type %q: %w", s, err)
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, fmt.Errorf("invalid type %q: trailing input at offset %d", s, p.pos)
	}
	return t, nil
}

type typeParser struct {
	input string
	pos   int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeParser) word() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '<' || c == '>' || c == ',' || c == ':' || c == ' ' || c == '\t' {
			break
		}
		p.pos++
	}
	return p.input[start:p.pos]
}

func (p *typeParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.input) || p.input[p.pos] != c {
		return fmt.Errorf("expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *typeParser) peek(c byte) bool {
	p.skipSpace()
	return p.pos < len(p.input) && p.input[p.pos] == c
}

func (p *typeParser) parse() (*Type, error) {
	name := strings.ToUpper(p.word())
	switch name {
	case "":
		return nil, fmt.Errorf("missing type name at offset %d", p.pos)
	case "LIST":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		elem, err := p.parse()
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return ListOf(elem), nil
	case "STRUCT":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		var fields []*Field
		for !p.peek('>') {
			if len(fields) > 0 {
				if err := p.expect(','); err != nil {
					return nil, err
				}
			}
			field := p.word()
			if field == "" {
				return nil, fmt.Errorf("missing field name at offset %d", p.pos)
			}
			if err := p.expect(':'); err != nil {
				return nil, err
			}
			ft, err := p.parse()
			if err != nil {
				return nil, err
			}
			fields = append(fields, NewField(field, ft))
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return StructOf(fields...), nil
	}
	t, ok := typeNames[name]
	if !ok {
		return nil, fmt.Errorf("unknown type name %q", name)
	}
	return t, nil
}
