package expr

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"

	"github.com/cockroachdb/errors"

	"sqleval/vectorized"
)

// ErrMalformed marks an expression document that does not describe a node
var ErrMalformed = errors.New("malformed expression")

func malformedf(format string, args ...interface{}) error {
	return errors.Mark(errors.Newf(format, args...), ErrMalformed)
}

// MarshalNode encodes a tree as JSON in the document form read by DecodeNode
func MarshalNode(n Node) ([]byte, error) {
	doc, err := EncodeNode(n)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// UnmarshalNode decodes a tree produced by MarshalNode
func UnmarshalNode(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode expression"), ErrMalformed)
	}
	return DecodeNode(doc)
}

// EncodeNode converts a tree into plain maps, slices and scalars.
//
// Each node is an object keyed by its kind:
//
//	{col: name}
//	{lit: value, type: T}            {null: true}
//	{values: [...], type: T}
//	{unary: op, operand: n}
//	{op: op, left: n, right: n}
//	{between: n, low: n, high: n, not: bool}
//	{in: n, list: [n...], not: bool}
//	{case: [{when: n, then: n}...], operand: n, else: n}
//	{call: name, args: [n...]}
//	{field: n, name: f | ordinal: i, text: bool}
//	{path: n, steps: [f | i ...], text: bool}
//	{subscript: n, index: n}
//	{quantified: ALL|ANY, op: op, left: n, right: n}
func EncodeNode(n Node) (map[string]interface{}, error) {
	switch n := n.(type) {
	case *ColumnRef:
		return map[string]interface{}{"col": n.Name}, nil
	case *Literal:
		if n.Value.Type.ID == vectorized.NULL {
			return map[string]interface{}{"null": true}, nil
		}
		var value interface{}
		if !n.Value.Null {
			value = encodeValue(n.Value.Value)
		}
		return map[string]interface{}{"lit": value, "type": n.Value.Type.String()}, nil
	case *Values:
		if n.Column == nil {
			return nil, malformedf("VALUES without a column")
		}
		return map[string]interface{}{
			"values": encodeValue(n.Column.Values()),
			"type":   n.Column.Type.String(),
		}, nil
	case *UnaryOp:
		operand, err := EncodeNode(n.Operand)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"unary": n.Op.String(), "operand": operand}, nil
	case *BinaryOp:
		left, right, err := encodePair(n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"op": n.Op.String(), "left": left, "right": right}, nil
	case *Between:
		nodes, err := encodeNodes([]Node{n.Expr, n.Low, n.High})
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"between": nodes[0], "low": nodes[1], "high": nodes[2], "not": n.Negated}, nil
	case *InList:
		e, err := EncodeNode(n.Expr)
		if err != nil {
			return nil, err
		}
		list, err := encodeNodes(n.List)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"in": e, "list": list, "not": n.Negated}, nil
	case *Case:
		return encodeCase(n)
	case *FunctionCall:
		args, err := encodeNodes(n.Args)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"call": n.Name, "args": args}, nil
	case *StructAccess:
		e, err := EncodeNode(n.Expr)
		if err != nil {
			return nil, err
		}
		doc := map[string]interface{}{"field": e, "text": n.AsText}
		if n.Field != "" {
			doc["name"] = n.Field
		} else {
			doc["ordinal"] = n.Ordinal
		}
		return doc, nil
	case *PathAccess:
		e, err := EncodeNode(n.Expr)
		if err != nil {
			return nil, err
		}
		steps := make([]interface{}, len(n.Path))
		for i, s := range n.Path {
			if s.Field != "" {
				steps[i] = s.Field
			} else {
				steps[i] = s.Index
			}
		}
		return map[string]interface{}{"path": e, "steps": steps, "text": n.AsText}, nil
	case *ArraySubscript:
		e, index, err := encodePair(n.Expr, n.Index)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"subscript": e, "index": index}, nil
	case *Quantified:
		left, right, err := encodePair(n.Left, n.Right)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"quantified": n.Quantifier.String(),
			"op":         n.Op.String(),
			"left":       left,
			"right":      right,
		}, nil
	case nil:
		return nil, malformedf("nil node")
	}
	return nil, malformedf("cannot encode %T", n)
}

func encodePair(a, b Node) (map[string]interface{}, map[string]interface{}, error) {
	left, err := EncodeNode(a)
	if err != nil {
		return nil, nil, err
	}
	right, err := EncodeNode(b)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func encodeNodes(nodes []Node) ([]interface{}, error) {
	out := make([]interface{}, len(nodes))
	for i, n := range nodes {
		doc, err := EncodeNode(n)
		if err != nil {
			return nil, err
		}
		out[i] = doc
	}
	return out, nil
}

func encodeCase(n *Case) (map[string]interface{}, error) {
	whens := make([]interface{}, len(n.Whens))
	for i, w := range n.Whens {
		cond, result, err := encodePair(w.Cond, w.Result)
		if err != nil {
			return nil, err
		}
		whens[i] = map[string]interface{}{"when": cond, "then": result}
	}
	doc := map[string]interface{}{"case": whens}
	if n.Operand != nil {
		operand, err := EncodeNode(n.Operand)
		if err != nil {
			return nil, err
		}
		doc["operand"] = operand
	}
	if n.Else != nil {
		e, err := EncodeNode(n.Else)
		if err != nil {
			return nil, err
		}
		doc["else"] = e
	}
	return doc, nil
}

// encodeValue spells non-finite floats as strings so the document stays
// valid JSON
func encodeValue(v interface{}) interface{} {
	switch v := v.(type) {
	case float64:
		switch {
		case math.IsNaN(v):
			return "NaN"
		case math.IsInf(v, 1):
			return "Infinity"
		case math.IsInf(v, -1):
			return "-Infinity"
		}
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, e := range v {
			out[i] = encodeValue(e)
		}
		return out
	}
	return v
}

// DecodeNode builds a tree from the document form described on EncodeNode,
// as produced by encoding/json or a YAML decoder. A bare scalar is a
// literal of the matching type and a bare null is the untyped NULL.
func DecodeNode(doc interface{}) (Node, error) {
	switch v := doc.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(v), nil
	case string:
		return Str(v), nil
	case int, int64, float64, json.Number:
		return decodeNumber(v)
	}
	m, ok := asMap(doc)
	if !ok {
		return nil, malformedf("expected an expression object, got %T", doc)
	}

	switch {
	case has(m, "col"):
		name, ok := m["col"].(string)
		if !ok {
			return nil, malformedf("col must be a string")
		}
		return Col(name), nil
	case has(m, "null"):
		return Null(), nil
	case has(m, "lit"):
		return decodeLiteral(m)
	case has(m, "values"):
		return decodeValues(m)
	case has(m, "unary"):
		op, ok := LookupUnaryOperator(stringOf(m["unary"]))
		if !ok {
			return nil, errors.Mark(malformedf("unknown unary operator %v", m["unary"]), ErrUnsupportedOp)
		}
		operand, err := decodeChild(m, "operand")
		if err != nil {
			return nil, err
		}
		return Unary(op, operand), nil
	case has(m, "quantified"):
		return decodeQuantified(m)
	case has(m, "op"):
		op, ok := LookupBinaryOperator(stringOf(m["op"]))
		if !ok {
			return nil, errors.Mark(malformedf("unknown operator %v", m["op"]), ErrUnsupportedOp)
		}
		left, err := decodeChild(m, "left")
		if err != nil {
			return nil, err
		}
		right, err := decodeChild(m, "right")
		if err != nil {
			return nil, err
		}
		return Binary(op, left, right), nil
	case has(m, "between"):
		e, err := decodeChild(m, "between")
		if err != nil {
			return nil, err
		}
		low, err := decodeChild(m, "low")
		if err != nil {
			return nil, err
		}
		high, err := decodeChild(m, "high")
		if err != nil {
			return nil, err
		}
		return &Between{Expr: e, Low: low, High: high, Negated: boolOf(m["not"])}, nil
	case has(m, "in"):
		e, err := decodeChild(m, "in")
		if err != nil {
			return nil, err
		}
		list, err := decodeList(m, "list")
		if err != nil {
			return nil, err
		}
		return &InList{Expr: e, List: list, Negated: boolOf(m["not"])}, nil
	case has(m, "case"):
		return decodeCase(m)
	case has(m, "call"):
		name, ok := m["call"].(string)
		if !ok {
			return nil, malformedf("call must name a function")
		}
		args, err := decodeList(m, "args")
		if err != nil {
			return nil, err
		}
		return Call(name, args...), nil
	case has(m, "field"):
		return decodeStructAccess(m)
	case has(m, "path"):
		return decodePathAccess(m)
	case has(m, "subscript"):
		e, err := decodeChild(m, "subscript")
		if err != nil {
			return nil, err
		}
		index, err := decodeChild(m, "index")
		if err != nil {
			return nil, err
		}
		return &ArraySubscript{Expr: e, Index: index}, nil
	}
	return nil, malformedf("unrecognized expression object with keys %v", keys(m))
}

func decodeNumber(v interface{}) (Node, error) {
	switch n := v.(type) {
	case int:
		return Int(int64(n)), nil
	case int64:
		return Int(n), nil
	case float64:
		return Float(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := n.Float64()
		if err != nil {
			return nil, malformedf("bad number %s", n)
		}
		return Float(f), nil
	}
	return nil, malformedf("bad number %v", v)
}

func decodeLiteral(m map[string]interface{}) (Node, error) {
	raw := m["lit"]
	if !has(m, "type") {
		if _, nested := raw.([]interface{}); nested {
			return nil, malformedf("nested literal needs a type")
		}
		if _, nested := asMap(raw); nested {
			return nil, malformedf("nested literal needs a type")
		}
		return DecodeNode(raw)
	}
	t, err := vectorized.ParseType(stringOf(m["type"]))
	if err != nil {
		return nil, errors.Mark(err, ErrMalformed)
	}
	value, err := normalizeValue(t, raw)
	if err != nil {
		return nil, err
	}
	if _, err := vectorized.FromValues(t, []interface{}{value}); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "literal of type %s", t), ErrMalformed)
	}
	return Lit(t, value), nil
}

func decodeValues(m map[string]interface{}) (Node, error) {
	items, ok := m["values"].([]interface{})
	if !ok && m["values"] != nil {
		return nil, malformedf("values must be a list")
	}
	t, err := vectorized.ParseType(stringOf(m["type"]))
	if err != nil {
		return nil, errors.Mark(err, ErrMalformed)
	}
	normalized := make([]interface{}, len(items))
	for i, item := range items {
		if normalized[i], err = normalizeValue(t, item); err != nil {
			return nil, err
		}
	}
	column, err := vectorized.FromValues(t, normalized)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "values"), ErrMalformed)
	}
	return &Values{Column: column}, nil
}

func decodeQuantified(m map[string]interface{}) (Node, error) {
	q, ok := LookupQuantifier(stringOf(m["quantified"]))
	if !ok {
		return nil, malformedf("unknown quantifier %v", m["quantified"])
	}
	op, ok := LookupBinaryOperator(stringOf(m["op"]))
	if !ok {
		return nil, errors.Mark(malformedf("unknown operator %v", m["op"]), ErrUnsupportedOp)
	}
	left, err := decodeChild(m, "left")
	if err != nil {
		return nil, err
	}
	right, err := decodeChild(m, "right")
	if err != nil {
		return nil, err
	}
	return &Quantified{Quantifier: q, Op: op, Left: left, Right: right}, nil
}

func decodeCase(m map[string]interface{}) (Node, error) {
	arms, ok := m["case"].([]interface{})
	if !ok {
		return nil, malformedf("case must be a list of when/then arms")
	}
	n := &Case{Whens: make([]When, len(arms))}
	for i, arm := range arms {
		am, ok := asMap(arm)
		if !ok {
			return nil, malformedf("case arm %d is not an object", i)
		}
		cond, err := decodeChild(am, "when")
		if err != nil {
			return nil, err
		}
		result, err := decodeChild(am, "then")
		if err != nil {
			return nil, err
		}
		n.Whens[i] = When{Cond: cond, Result: result}
	}
	var err error
	if has(m, "operand") {
		if n.Operand, err = decodeChild(m, "operand"); err != nil {
			return nil, err
		}
	}
	if has(m, "else") {
		if n.Else, err = decodeChild(m, "else"); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func decodeStructAccess(m map[string]interface{}) (Node, error) {
	e, err := decodeChild(m, "field")
	if err != nil {
		return nil, err
	}
	n := &StructAccess{Expr: e, AsText: boolOf(m["text"])}
	switch {
	case has(m, "name"):
		n.Field = stringOf(m["name"])
	case has(m, "ordinal"):
		ordinal, ok := intOf(m["ordinal"])
		if !ok {
			return nil, malformedf("ordinal must be an integer")
		}
		n.Ordinal = ordinal
	default:
		return nil, malformedf("field access needs a name or an ordinal")
	}
	return n, nil
}

func decodePathAccess(m map[string]interface{}) (Node, error) {
	e, err := decodeChild(m, "path")
	if err != nil {
		return nil, err
	}
	steps, ok := m["steps"].([]interface{})
	if !ok {
		return nil, malformedf("path steps must be a list")
	}
	n := &PathAccess{Expr: e, Path: make([]PathStep, len(steps)), AsText: boolOf(m["text"])}
	for i, step := range steps {
		if name, ok := step.(string); ok {
			n.Path[i] = PathStep{Field: name}
			continue
		}
		index, ok := intOf(step)
		if !ok {
			return nil, malformedf("path step %d must be a name or an integer", i)
		}
		n.Path[i] = PathStep{Index: index}
	}
	return n, nil
}

func decodeChild(m map[string]interface{}, key string) (Node, error) {
	if !has(m, key) {
		return nil, malformedf("missing %q", key)
	}
	n, err := DecodeNode(m[key])
	if err != nil {
		return nil, errors.Wrapf(err, "%s", key)
	}
	return n, nil
}

func decodeList(m map[string]interface{}, key string) ([]Node, error) {
	raw, ok := m[key].([]interface{})
	if !ok && m[key] != nil {
		return nil, malformedf("%q must be a list", key)
	}
	nodes := make([]Node, len(raw))
	for i, item := range raw {
		n, err := DecodeNode(item)
		if err != nil {
			return nil, errors.Wrapf(err, "%s[%d]", key, i)
		}
		nodes[i] = n
	}
	return nodes, nil
}

// normalizeValue converts decoded document values into the Go forms
// vectorized.FromValues accepts for t
func normalizeValue(t *vectorized.Type, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t.ID {
	case vectorized.INT64:
		switch n := v.(type) {
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, malformedf("%s is not an INT64", n)
			}
			return i, nil
		case float64:
			if n != math.Trunc(n) || math.Abs(n) > 1<<63 {
				return nil, malformedf("%v is not an INT64", n)
			}
			return int64(n), nil
		}
	case vectorized.FLOAT64:
		switch n := v.(type) {
		case json.Number:
			f, err := n.Float64()
			if err != nil {
				return nil, malformedf("%s is not a FLOAT64", n)
			}
			return f, nil
		case string:
			switch n {
			case "NaN":
				return math.NaN(), nil
			case "Infinity":
				return math.Inf(1), nil
			case "-Infinity":
				return math.Inf(-1), nil
			}
		}
	case vectorized.LIST:
		items, ok := v.([]interface{})
		if !ok {
			return v, nil
		}
		out := make([]interface{}, len(items))
		for i, item := range items {
			var err error
			if out[i], err = normalizeValue(t.Elem, item); err != nil {
				return nil, err
			}
		}
		return out, nil
	case vectorized.STRUCT:
		if items, ok := v.([]interface{}); ok {
			if len(items) != len(t.Fields) {
				return nil, malformedf("%d values for %s", len(items), t)
			}
			out := make([]interface{}, len(items))
			for i, item := range items {
				var err error
				if out[i], err = normalizeValue(t.Fields[i].Type, item); err != nil {
					return nil, err
				}
			}
			return out, nil
		}
		if fields, ok := asMap(v); ok {
			out := make(map[string]interface{}, len(fields))
			for name, item := range fields {
				ft := vectorized.Null()
				if i := t.FieldIndex(name); i >= 0 {
					ft = t.Fields[i].Type
				}
				var err error
				if out[name], err = normalizeValue(ft, item); err != nil {
					return nil, err
				}
			}
			return out, nil
		}
	}
	return v, nil
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, e := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = e
		}
		return out, true
	}
	return nil, false
}

func has(m map[string]interface{}, key string) bool {
	_, ok := m[key]
	return ok
}

func stringOf(v interface{}) string {
	s, _ := v.(string)
	return s
}

func boolOf(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func intOf(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), n == math.Trunc(n)
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
