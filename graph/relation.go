package graph

import (
	"fmt"
	"sort"
)

// Renderable type hints carried on a relation's target.
const (
	RenderRelation = "RELATION"
	RenderImage    = "IMAGE"
	RenderData     = "DATA"
)

// EntityRef points at another entity with an optional display name.
type EntityRef struct {
	ID   string  `json:"id"`
	Name *string `json:"name"`
}

// ToEntityRef is the target of a relation. RenderableType and Value let a
// renderer show the target (an image URL, for example) without resolving it.
type ToEntityRef struct {
	ID             string  `json:"id"`
	Name           *string `json:"name"`
	RenderableType string  `json:"renderableType,omitempty"`
	Value          string  `json:"value,omitempty"`
}

// Relation is a directed, ordered, typed edge. ID is the relation's own
// entity id. Index is a fractional ordering key compared as a plain string.
type Relation struct {
	Space      string      `json:"space"`
	ID         string      `json:"id"`
	Index      string      `json:"index"`
	TypeOf     EntityRef   `json:"typeOf"`
	FromEntity EntityRef   `json:"fromEntity"`
	ToEntity   ToEntityRef `json:"toEntity"`
}

// Key returns the composite identity key of the relation.
func (r Relation) Key() string {
	return RelationKey(r.Space, r.ID)
}

// Validate checks the identity and endpoint fields.
func (r Relation) Validate() error {
	switch {
	case r.Space == "" || r.ID == "":
		return fmt.Errorf("%w: space and id are required", ErrInvalidRelation)
	case r.FromEntity.ID == "" || r.ToEntity.ID == "":
		return fmt.Errorf("%w: fromEntity and toEntity are required", ErrInvalidRelation)
	case r.TypeOf.ID == "":
		return fmt.Errorf("%w: typeOf is required", ErrInvalidRelation)
	}
	return nil
}

// SortByIndex orders relations by Index, falling back to ID for equal
// indices so the result is deterministic. The slice is sorted in place.
func SortByIndex(rs []Relation) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Index != rs[j].Index {
			return rs[i].Index < rs[j].Index
		}
		return rs[i].ID < rs[j].ID
	})
}
