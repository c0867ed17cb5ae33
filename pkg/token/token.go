package token

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the payload variants a Token can carry.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Token is the unit of data travelling along a connection.
// Tokens are treated as immutable: the fabric copies them on fan-out and
// actors must not retain references into list/map payloads they emit.
type Token struct {
	kind Kind
	b    bool
	n    float64
	s    string
	list []Token
	m    map[string]Token
}

// Null returns the null token.
func Null() Token { return Token{kind: KindNull} }

// Bool wraps a boolean value.
func Bool(v bool) Token { return Token{kind: KindBool, b: v} }

// Number wraps a numeric value.
func Number(v float64) Token { return Token{kind: KindNumber, n: v} }

// String wraps a string value.
func String(v string) Token { return Token{kind: KindString, s: v} }

// List wraps an ordered sequence of tokens.
func List(items ...Token) Token {
	return Token{kind: KindList, list: items}
}

// Map wraps a string-keyed mapping of tokens.
func Map(fields map[string]Token) Token {
	if fields == nil {
		fields = map[string]Token{}
	}
	return Token{kind: KindMap, m: fields}
}

// Kind reports the payload variant.
func (t Token) Kind() Kind { return t.kind }

// IsNull reports whether the token is the null token.
func (t Token) IsNull() bool { return t.kind == KindNull }

// AsBool returns the boolean payload. Returns false if the kind differs.
func (t Token) AsBool() (bool, bool) { return t.b, t.kind == KindBool }

// AsNumber returns the numeric payload. Returns false if the kind differs.
func (t Token) AsNumber() (float64, bool) { return t.n, t.kind == KindNumber }

// AsString returns the string payload. Returns false if the kind differs.
func (t Token) AsString() (string, bool) { return t.s, t.kind == KindString }

// AsList returns the list payload. Returns false if the kind differs.
func (t Token) AsList() ([]Token, bool) { return t.list, t.kind == KindList }

// AsMap returns the map payload. Returns false if the kind differs.
func (t Token) AsMap() (map[string]Token, bool) { return t.m, t.kind == KindMap }

// Copy returns a deep copy of the token. Scalar kinds share no mutable
// state, so only list and map payloads allocate.
func (t Token) Copy() Token {
	switch t.kind {
	case KindList:
		items := make([]Token, len(t.list))
		for i, item := range t.list {
			items[i] = item.Copy()
		}
		return Token{kind: KindList, list: items}
	case KindMap:
		fields := make(map[string]Token, len(t.m))
		for k, v := range t.m {
			fields[k] = v.Copy()
		}
		return Token{kind: KindMap, m: fields}
	default:
		return t
	}
}

// Equal reports deep structural equality.
func (t Token) Equal(other Token) bool {
	if t.kind != other.kind {
		return false
	}
	switch t.kind {
	case KindNull:
		return true
	case KindBool:
		return t.b == other.b
	case KindNumber:
		return t.n == other.n
	case KindString:
		return t.s == other.s
	case KindList:
		if len(t.list) != len(other.list) {
			return false
		}
		for i := range t.list {
			if !t.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(t.m) != len(other.m) {
			return false
		}
		for k, v := range t.m {
			ov, ok := other.m[k]
			if !ok || !v.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// FromAny converts a dynamically-typed value (as produced by yaml.v3 or
// encoding/json decoding) into a Token.
func FromAny(v any) (Token, error) {
	switch val := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(val), nil
	case int:
		return Number(float64(val)), nil
	case int64:
		return Number(float64(val)), nil
	case uint64:
		return Number(float64(val)), nil
	case float64:
		return Number(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Null(), fmt.Errorf("invalid number %q: %w", val.String(), err)
		}
		return Number(f), nil
	case string:
		return String(val), nil
	case []any:
		items := make([]Token, len(val))
		for i, item := range val {
			tok, err := FromAny(item)
			if err != nil {
				return Null(), fmt.Errorf("list element %d: %w", i, err)
			}
			items[i] = tok
		}
		return List(items...), nil
	case map[string]any:
		fields := make(map[string]Token, len(val))
		for k, item := range val {
			tok, err := FromAny(item)
			if err != nil {
				return Null(), fmt.Errorf("map key %q: %w", k, err)
			}
			fields[k] = tok
		}
		return Map(fields), nil
	case Token:
		return val, nil
	default:
		return Null(), fmt.Errorf("unsupported value type %T", v)
	}
}

// ToAny converts the token back into plain Go values, the inverse of FromAny.
func (t Token) ToAny() any {
	switch t.kind {
	case KindNull:
		return nil
	case KindBool:
		return t.b
	case KindNumber:
		return t.n
	case KindString:
		return t.s
	case KindList:
		items := make([]any, len(t.list))
		for i, item := range t.list {
			items[i] = item.ToAny()
		}
		return items
	case KindMap:
		fields := make(map[string]any, len(t.m))
		for k, v := range t.m {
			fields[k] = v.ToAny()
		}
		return fields
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Token) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.ToAny())
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Token) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	tok, err := FromAny(v)
	if err != nil {
		return err
	}
	*t = tok
	return nil
}

// String renders the token in literal syntax, suitable for diagnostics.
func (t Token) String() string {
	switch t.kind {
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(t.b)
	case KindNumber:
		if t.n == math.Trunc(t.n) && math.Abs(t.n) < 1e15 {
			return strconv.FormatInt(int64(t.n), 10)
		}
		return strconv.FormatFloat(t.n, 'g', -1, 64)
	case KindString:
		return strconv.Quote(t.s)
	case KindList:
		parts := make([]string, len(t.list))
		for i, item := range t.list {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindMap:
		keys := make([]string, 0, len(t.m))
		for k := range t.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s: %s", k, t.m[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return "<invalid>"
}
