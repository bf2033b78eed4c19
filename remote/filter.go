package remote

import (
	"strings"

	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/vocabulary"
)

// Clause matches entities with an attribute value.
//
// ColumnID is an attribute id. Two ids are special: the Name attribute
// matches by case-insensitive substring of the entity name, and the Types
// attribute matches a type id. Any other attribute matches a triple with
// that attribute and exactly that value or, for ENTITY clauses, a relation
// of that type pointing at Value.
type Clause struct {
	ColumnID  string          `json:"columnId"`
	Value     string          `json:"value"`
	ValueType graph.ValueType `json:"valueType,omitempty"`
}

// Filter is a conjunction of clauses, optionally scoped to a space. The
// zero Filter matches every entity.
type Filter struct {
	Space   string   `json:"space,omitempty"`
	Clauses []Clause `json:"filters,omitempty"`
}

// IsEmpty reports whether the filter matches everything.
func (f Filter) IsEmpty() bool {
	return f.Space == "" && len(f.Clauses) == 0
}

// Match evaluates the filter against a projected entity.
func (f Filter) Match(e graph.Entity) bool {
	if f.Space != "" && !inSpace(e, f.Space) {
		return false
	}
	for _, c := range f.Clauses {
		if !c.match(e) {
			return false
		}
	}
	return true
}

func inSpace(e graph.Entity, space string) bool {
	for _, t := range e.Triples {
		if t.Space == space {
			return true
		}
	}
	for _, r := range e.RelationsOut {
		if r.Space == space {
			return true
		}
	}
	return false
}

func (c Clause) match(e graph.Entity) bool {
	switch c.ColumnID {
	case vocabulary.Name:
		return e.Name != nil && strings.Contains(strings.ToLower(*e.Name), strings.ToLower(c.Value))
	case vocabulary.Types:
		return e.HasType(c.Value)
	}

	for _, t := range e.Triples {
		if t.AttributeID != c.ColumnID || t.Value.Value != c.Value {
			continue
		}
		if c.ValueType == "" || c.ValueType == t.Value.Type {
			return true
		}
	}
	if c.ValueType == graph.ValueEntity || c.ValueType == "" {
		for _, r := range e.RelationsOut {
			if r.TypeOf.ID == c.ColumnID && r.ToEntity.ID == c.Value {
				return true
			}
		}
	}
	return false
}
