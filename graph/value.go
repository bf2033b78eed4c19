package graph

import (
	"encoding/json"
	"fmt"
)

// ValueType discriminates the string payload of a Value.
type ValueType string

const (
	ValueText     ValueType = "TEXT"
	ValueURL      ValueType = "URL"
	ValueTime     ValueType = "TIME"
	ValueNumber   ValueType = "NUMBER"
	ValueCheckbox ValueType = "CHECKBOX"
	ValueEntity   ValueType = "ENTITY"
)

// IsValid reports whether vt is one of the defined value types.
func (vt ValueType) IsValid() bool {
	switch vt {
	case ValueText, ValueURL, ValueTime, ValueNumber, ValueCheckbox, ValueEntity:
		return true
	}
	return false
}

// UnmarshalJSON rejects unknown value types.
func (vt *ValueType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if !ValueType(s).IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidValueType, s)
	}
	*vt = ValueType(s)
	return nil
}

// Value is a typed fact payload. Every type is carried as a string: numbers
// and times keep the representation the author entered, ENTITY holds an
// entity id.
type Value struct {
	Type  ValueType `json:"type"`
	Value string    `json:"value"`
}

// Text returns a TEXT value.
func Text(s string) Value { return Value{Type: ValueText, Value: s} }

// EntityValue returns an ENTITY value referencing id.
func EntityValue(id string) Value { return Value{Type: ValueEntity, Value: id} }

// Placeholder is the payload stored in tombstones.
func Placeholder() Value { return Value{Type: ValueText, Value: ""} }
