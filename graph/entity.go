package graph

import (
	"github.com/c360/graphsync/vocabulary"
)

// Entity is a read-only projection of the facts known about one id.
//
// NameTripleSpaces lists every space that contributed a NAME triple. When it
// holds more than one space the displayed Name is only one of the candidates
// and callers decide how to disambiguate.
type Entity struct {
	ID               string                           `json:"id"`
	Name             *string                          `json:"name"`
	Description      *string                          `json:"description"`
	NameTripleSpaces []string                         `json:"nameTripleSpaces"`
	Types            []EntityRef                      `json:"types"`
	Triples          []Triple                         `json:"triples"`
	RelationsOut     []Relation                       `json:"relationsOut"`
	Schema           []vocabulary.AttributeDescriptor `json:"schema,omitempty"`
}

// EmptyEntity is what an id with no known facts projects to.
func EmptyEntity(id string) Entity {
	return Entity{
		ID:               id,
		NameTripleSpaces: []string{},
		Types:            []EntityRef{},
		Triples:          []Triple{},
		RelationsOut:     []Relation{},
	}
}

// IsEmpty reports whether no fact contributed to the entity.
func (e Entity) IsEmpty() bool {
	return len(e.Triples) == 0 && len(e.RelationsOut) == 0
}

// HasType reports whether typeID is among the entity's types.
func (e Entity) HasType(typeID string) bool {
	for _, t := range e.Types {
		if t.ID == typeID {
			return true
		}
	}
	return false
}

// TypeIDs returns the ids of the entity's types in order.
func (e Entity) TypeIDs() []string {
	ids := make([]string, len(e.Types))
	for i, t := range e.Types {
		ids[i] = t.ID
	}
	return ids
}
