package graph

import (
	"fmt"
)

// Triple is a single (space, entity, attribute) -> value fact.
//
// Names are denormalized labels carried for display; they are never part of
// the identity. Two triples with the same Space, EntityID and AttributeID are
// the same fact regardless of value or names.
type Triple struct {
	Space         string  `json:"space"`
	EntityID      string  `json:"entityId"`
	AttributeID   string  `json:"attributeId"`
	EntityName    *string `json:"entityName"`
	AttributeName *string `json:"attributeName"`
	Value         Value   `json:"value"`
}

// Key returns the composite identity key of the triple.
func (t Triple) Key() string {
	return TripleKey(t.Space, t.EntityID, t.AttributeID)
}

// Validate checks the identity fields and value type.
func (t Triple) Validate() error {
	if t.Space == "" || t.EntityID == "" || t.AttributeID == "" {
		return fmt.Errorf("%w: space, entityId and attributeId are required", ErrInvalidTriple)
	}
	if !t.Value.Type.IsValid() {
		return fmt.Errorf("%w: %w %q", ErrInvalidTriple, ErrInvalidValueType, t.Value.Type)
	}
	return nil
}

// IsType reports whether the triple assigns a type to its entity.
func (t Triple) IsType(typesAttribute string) bool {
	return t.AttributeID == typesAttribute && t.Value.Type == ValueEntity
}

// Ptr returns a pointer to s. Handy for the optional name fields.
func Ptr(s string) *string {
	return &s
}
