package graph

import (
	"strconv"
	"strings"
	"time"
)

// RenderableKind names a Renderable variant.
type RenderableKind string

const (
	KindText     RenderableKind = "TEXT"
	KindNumber   RenderableKind = "NUMBER"
	KindCheckbox RenderableKind = "CHECKBOX"
	KindTime     RenderableKind = "TIME"
	KindURL      RenderableKind = "URL"
	KindImage    RenderableKind = "IMAGE"
	KindRelation RenderableKind = "RELATION"
)

// Renderable is one displayable property of an entity. The concrete type
// tells the renderer which fields exist; switch on it rather than on Kind
// when fields are needed.
type Renderable interface {
	Kind() RenderableKind
	Attribute() PropertyRef
}

// PropertyRef identifies where a renderable came from.
type PropertyRef struct {
	Space         string  `json:"space"`
	EntityID      string  `json:"entityId"`
	AttributeID   string  `json:"attributeId"`
	AttributeName *string `json:"attributeName"`
}

func (p PropertyRef) Attribute() PropertyRef { return p }

type TextRenderable struct {
	PropertyRef
	Value string `json:"value"`
}

type NumberRenderable struct {
	PropertyRef
	Raw   string  `json:"value"`
	Value float64 `json:"-"`
	Valid bool    `json:"-"`
}

type CheckboxRenderable struct {
	PropertyRef
	Checked bool `json:"value"`
}

type TimeRenderable struct {
	PropertyRef
	Raw   string    `json:"value"`
	Value time.Time `json:"-"`
}

type URLRenderable struct {
	PropertyRef
	URL string `json:"value"`
}

// ImageRenderable is a relation to an image entity.
type ImageRenderable struct {
	PropertyRef
	RelationID    string `json:"relationId"`
	ImageEntityID string `json:"imageEntityId"`
	URL           string `json:"value"`
}

// RelationRenderable points at another entity, either through a relation or
// through an ENTITY-valued triple (RelationID empty).
type RelationRenderable struct {
	PropertyRef
	RelationID string  `json:"relationId,omitempty"`
	Index      string  `json:"index,omitempty"`
	ToEntityID string  `json:"value"`
	ToName     *string `json:"valueName"`
}

func (TextRenderable) Kind() RenderableKind     { return KindText }
func (NumberRenderable) Kind() RenderableKind   { return KindNumber }
func (CheckboxRenderable) Kind() RenderableKind { return KindCheckbox }
func (TimeRenderable) Kind() RenderableKind     { return KindTime }
func (URLRenderable) Kind() RenderableKind      { return KindURL }
func (ImageRenderable) Kind() RenderableKind    { return KindImage }
func (RelationRenderable) Kind() RenderableKind { return KindRelation }

// TripleRenderable converts a triple into its renderable variant.
func TripleRenderable(t Triple) Renderable {
	ref := PropertyRef{Space: t.Space, EntityID: t.EntityID, AttributeID: t.AttributeID, AttributeName: t.AttributeName}
	v := t.Value.Value

	switch t.Value.Type {
	case ValueNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return NumberRenderable{PropertyRef: ref, Raw: v, Value: f, Valid: err == nil}
	case ValueCheckbox:
		checked := v == "1" || strings.EqualFold(v, "true")
		return CheckboxRenderable{PropertyRef: ref, Checked: checked}
	case ValueTime:
		ts, _ := time.Parse(time.RFC3339Nano, v)
		return TimeRenderable{PropertyRef: ref, Raw: v, Value: ts}
	case ValueURL:
		return URLRenderable{PropertyRef: ref, URL: v}
	case ValueEntity:
		return RelationRenderable{PropertyRef: ref, ToEntityID: v}
	default:
		return TextRenderable{PropertyRef: ref, Value: v}
	}
}

// RelationToRenderable converts a relation into its renderable variant.
func RelationToRenderable(r Relation) Renderable {
	ref := PropertyRef{Space: r.Space, EntityID: r.FromEntity.ID, AttributeID: r.TypeOf.ID, AttributeName: r.TypeOf.Name}
	if r.ToEntity.RenderableType == RenderImage {
		return ImageRenderable{PropertyRef: ref, RelationID: r.ID, ImageEntityID: r.ToEntity.ID, URL: r.ToEntity.Value}
	}
	return RelationRenderable{
		PropertyRef: ref,
		RelationID:  r.ID,
		Index:       r.Index,
		ToEntityID:  r.ToEntity.ID,
		ToName:      r.ToEntity.Name,
	}
}

// RenderablesFor converts merged facts into renderables: triples first in
// input order, then relations sorted by index.
func RenderablesFor(triples []Triple, relations []Relation) []Renderable {
	out := make([]Renderable, 0, len(triples)+len(relations))
	for _, t := range triples {
		out = append(out, TripleRenderable(t))
	}

	sorted := make([]Relation, len(relations))
	copy(sorted, relations)
	SortByIndex(sorted)
	for _, r := range sorted {
		out = append(out, RelationToRenderable(r))
	}
	return out
}
