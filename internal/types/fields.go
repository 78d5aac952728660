package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FieldKind tags a custom field value with one of the primitive kinds the
// system supports.
type FieldKind string

const (
	FieldText FieldKind = "text"
	FieldInt  FieldKind = "int"
	FieldDate FieldKind = "date"
	FieldBool FieldKind = "bool"
	FieldList FieldKind = "list"
	FieldEnum FieldKind = "enum"
	// FieldNull marks an explicit JSON null: present but unpopulated.
	FieldNull FieldKind = "null"
)

// ValidFieldKind reports whether k names a declarable schema kind.
// FieldNull is a wire state, not a declarable kind.
func ValidFieldKind(k FieldKind) bool {
	switch k {
	case FieldText, FieldInt, FieldDate, FieldBool, FieldList, FieldEnum:
		return true
	}
	return false
}

// DateFormat is the canonical serialization for date fields.
const DateFormat = "2006-01-02"

// FieldValue is a tagged variant holding one custom field value.
//
// On the wire a value is plain JSON (string, integer, boolean, array of
// strings, or null); the JSON type picks the preliminary kind and the
// field's declared schema kind refines string values into text, date, or
// enum. Strings are the only overloaded representation.
type FieldValue struct {
	Kind FieldKind
	Text string
	Int  int64
	Bool bool
	List []string
}

// NewText returns a text field value.
func NewText(s string) FieldValue { return FieldValue{Kind: FieldText, Text: s} }

// NewInt returns an integer field value.
func NewInt(n int64) FieldValue { return FieldValue{Kind: FieldInt, Int: n} }

// NewBool returns a boolean field value.
func NewBool(b bool) FieldValue { return FieldValue{Kind: FieldBool, Bool: b} }

// NewList returns an ordered-text-sequence field value.
func NewList(items ...string) FieldValue {
	return FieldValue{Kind: FieldList, List: items}
}

// NewEnum returns an enum symbol field value.
func NewEnum(sym string) FieldValue { return FieldValue{Kind: FieldEnum, Text: sym} }

// NewDate returns a date field value.
func NewDate(t time.Time) FieldValue {
	return FieldValue{Kind: FieldDate, Text: t.Format(DateFormat)}
}

// NewNull returns an explicit null.
func NewNull() FieldValue { return FieldValue{Kind: FieldNull} }

// Date parses the value as a date. Valid only for FieldDate.
func (v FieldValue) Date() (time.Time, error) {
	return time.Parse(DateFormat, v.Text)
}

// Unpopulated implements the enforcement rule for required fields: a value
// is unpopulated iff it is null or a string whose trimmed value is empty.
// Zero, false, and the empty list all count as populated. Absence is
// handled by the caller (the key is not in the map at all).
func (v FieldValue) Unpopulated() bool {
	switch v.Kind {
	case FieldNull:
		return true
	case FieldText, FieldEnum, FieldDate:
		return strings.TrimSpace(v.Text) == ""
	default:
		return false
	}
}

// Equal compares two values structurally.
func (v FieldValue) Equal(o FieldValue) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case FieldText, FieldEnum, FieldDate:
		return v.Text == o.Text
	case FieldInt:
		return v.Int == o.Int
	case FieldBool:
		return v.Bool == o.Bool
	case FieldList:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if v.List[i] != o.List[i] {
				return false
			}
		}
		return true
	case FieldNull:
		return true
	}
	return false
}

// String renders the value for human-readable output.
func (v FieldValue) String() string {
	switch v.Kind {
	case FieldText, FieldEnum, FieldDate:
		return v.Text
	case FieldInt:
		return fmt.Sprintf("%d", v.Int)
	case FieldBool:
		return fmt.Sprintf("%t", v.Bool)
	case FieldList:
		return strings.Join(v.List, ", ")
	case FieldNull:
		return ""
	}
	return ""
}

// MarshalJSON emits the natural JSON representation.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case FieldText, FieldEnum, FieldDate:
		return json.Marshal(v.Text)
	case FieldInt:
		return json.Marshal(v.Int)
	case FieldBool:
		return json.Marshal(v.Bool)
	case FieldList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case FieldNull:
		return []byte("null"), nil
	}
	return nil, fmt.Errorf("field value has unknown kind %q", v.Kind)
}

// UnmarshalJSON picks the preliminary kind from the JSON type. Strings land
// as text; schema validation may refine them to date or enum.
func (v *FieldValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = NewNull()
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = NewText(s)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = NewBool(b)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		i, err := n.Int64()
		if err != nil {
			return fmt.Errorf("field value %s: only integer numbers are supported", n)
		}
		*v = NewInt(i)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*v = NewList(list...)
		return nil
	}
	return fmt.Errorf("field value %s: expected string, integer, boolean, string array, or null", trimmed)
}

// FieldMap maps field names to values.
type FieldMap map[string]FieldValue

// Clone returns a deep copy.
func (m FieldMap) Clone() FieldMap {
	if m == nil {
		return nil
	}
	out := make(FieldMap, len(m))
	for k, v := range m {
		if v.Kind == FieldList {
			v.List = append([]string(nil), v.List...)
		}
		out[k] = v
	}
	return out
}

// Merge returns a copy of m overlaid with updates. Neither input is
// modified. Used to validate transitions against the post-update view
// before anything is written.
func (m FieldMap) Merge(updates FieldMap) FieldMap {
	out := m.Clone()
	if out == nil {
		out = make(FieldMap, len(updates))
	}
	for k, v := range updates {
		out[k] = v
	}
	return out
}

// Populated reports whether name is present and populated.
func (m FieldMap) Populated(name string) bool {
	v, ok := m[name]
	return ok && !v.Unpopulated()
}

// marshalFieldMap serializes a field map for storage. encoding/json sorts
// map keys, so equal maps always serialize to identical bytes.
func marshalFieldMap(m FieldMap) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func unmarshalFieldMap(data []byte) (FieldMap, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var m FieldMap
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// MarshalFields serializes a field map to its canonical storage form.
func MarshalFields(m FieldMap) (string, error) {
	b, err := marshalFieldMap(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalFields parses the canonical storage form. Empty input yields nil.
func UnmarshalFields(s string) (FieldMap, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	return unmarshalFieldMap([]byte(s))
}
