package projection

import (
	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/vocabulary"
)

// Resolver supplies merged facts for entities other than the one being
// projected. Implementations must not block on the network.
type Resolver interface {
	Triples(entityID string) []graph.Triple
	Relations(entityID string) []graph.Relation
}

// Schema returns the attributes instances of typeIDs carry: the built-in
// Name, Description and Types descriptors, then each type's Attributes
// relations in type order, deduplicated by attribute id.
func Schema(typeIDs []string, r Resolver) []vocabulary.AttributeDescriptor {
	schema := vocabulary.BuiltinAttributes()
	seen := make(map[string]struct{}, len(schema))
	for _, d := range schema {
		seen[d.ID] = struct{}{}
	}

	for _, typeID := range typeIDs {
		rels := append([]graph.Relation(nil), r.Relations(typeID)...)
		graph.SortByIndex(rels)
		for _, rel := range rels {
			if rel.FromEntity.ID != typeID || rel.TypeOf.ID != vocabulary.Attributes {
				continue
			}
			attrID := rel.ToEntity.ID
			if _, dup := seen[attrID]; dup || attrID == "" {
				continue
			}
			seen[attrID] = struct{}{}
			schema = append(schema, describe(attrID, rel.ToEntity.Name, r))
		}
	}
	return schema
}

func describe(attrID string, name *string, r Resolver) vocabulary.AttributeDescriptor {
	d := vocabulary.AttributeDescriptor{ID: attrID}
	if known, ok := vocabulary.Lookup(attrID); ok {
		d = known
	}
	if name != nil {
		d.Name = *name
	}
	if d.Name == "" {
		for _, t := range r.Triples(attrID) {
			if t.AttributeID == vocabulary.Name {
				d.Name = t.Value.Value
				break
			}
		}
	}
	for _, rel := range r.Relations(attrID) {
		if rel.TypeOf.ID == vocabulary.ValueType {
			d.ValueType = rel.ToEntity.ID
			break
		}
	}
	return d
}
