// Package core holds the explorer's data model: the tagged Value union used for
// observation data and Context, the Observation/State/Transition graph
// primitives, the Action/Invariant contracts, and the shared error taxonomy.
package core

import (
	"fmt"
	"math"
	"sort"
)

// ValueKind tags the concrete type held by a Value.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
)

// Value is a tagged union over the JSON-serializable types an Observation or
// Context entry may hold. It is deliberately closed (no interface{} escape
// hatch) so state-identity hashing and Context snapshot/restore never have to
// reflect over arbitrary Go types.
type Value struct {
	kind ValueKind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

func Null() Value                    { return Value{kind: KindNull} }
func Bool(b bool) Value              { return Value{kind: KindBool, b: b} }
func Int(i int64) Value              { return Value{kind: KindInt, i: i} }
func String(s string) Value          { return Value{kind: KindString, s: s} }
func List(vs ...Value) Value         { return Value{kind: KindList, list: append([]Value(nil), vs...)} }
func Map(m map[string]Value) Value   { return Value{kind: KindMap, m: m} }

// Float rounds to 6 decimal places per the observation-identity rule. NaN and
// Inf are rejected since they have no stable canonical JSON representation.
func Float(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: float value is NaN or Inf", ErrConfiguration)
	}
	rounded := math.Round(f*1e6) / 1e6
	return Value{kind: KindFloat, f: rounded}, nil
}

func (v Value) Kind() ValueKind { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool)   { return v.b, v.kind == KindBool }
func (v Value) AsInt() (int64, bool)   { return v.i, v.kind == KindInt }
func (v Value) AsFloat() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }
func (v Value) AsList() ([]Value, bool)  { return v.list, v.kind == KindList }
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }

// Equal performs value equality, used by Context.Restore's coherence check.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	case KindString:
		return v.s == other.s
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(v.m) != len(other.m) {
			return false
		}
		for k, mv := range v.m {
			ov, ok := other.m[k]
			if !ok || !mv.Equal(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// DeepCopy returns an independent copy; lists and maps are recursively copied.
// Used by Context.Snapshot and every adapter's in-memory checkpoint.
func (v Value) DeepCopy() Value {
	switch v.kind {
	case KindList:
		out := make([]Value, len(v.list))
		for i, e := range v.list {
			out[i] = e.DeepCopy()
		}
		return Value{kind: KindList, list: out}
	case KindMap:
		out := make(map[string]Value, len(v.m))
		for k, e := range v.m {
			out[k] = e.DeepCopy()
		}
		return Value{kind: KindMap, m: out}
	default:
		return v
	}
}

// Canonical renders the value as a deterministic string for hashing: sorted map
// keys, stable list order, type-tagged scalars so that e.g. the int 1 and the
// string "1" never collide.
func (v Value) Canonical() string {
	switch v.kind {
	case KindNull:
		return "n"
	case KindBool:
		if v.b {
			return "b:1"
		}
		return "b:0"
	case KindInt:
		return fmt.Sprintf("i:%d", v.i)
	case KindFloat:
		return fmt.Sprintf("f:%.6f", v.f)
	case KindString:
		return fmt.Sprintf("s:%q", v.s)
	case KindList:
		out := "l:["
		for i, e := range v.list {
			if i > 0 {
				out += ","
			}
			out += e.Canonical()
		}
		return out + "]"
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := "m:{"
		for i, k := range keys {
			if i > 0 {
				out += ","
			}
			out += fmt.Sprintf("%q:%s", k, v.m[k].Canonical())
		}
		return out + "}"
	}
	return ""
}

// FromGo converts a restricted set of Go primitives into a Value. It exists so
// Action/Invariant authors (and adapters) can build Observations without
// hand-constructing the tagged union for every field; it rejects anything that
// is not one of the identity-safe kinds.
func FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case float64:
		return Float(x)
	case float32:
		return Float(float64(x))
	case string:
		return String(x), nil
	case []any:
		out := make([]Value, len(x))
		for i, e := range x {
			cv, err := FromGo(e)
			if err != nil {
				return Value{}, err
			}
			out[i] = cv
		}
		return List(out...), nil
	case map[string]any:
		out := make(map[string]Value, len(x))
		for k, e := range x {
			cv, err := FromGo(e)
			if err != nil {
				return Value{}, err
			}
			out[k] = cv
		}
		return Map(out), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported value type %T for identity data", ErrConfiguration, v)
	}
}
