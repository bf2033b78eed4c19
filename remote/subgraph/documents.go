package subgraph

const entityFields = `
fragment EntityFields on Entity {
  id
  name
  description
  types { id name }
}`

const tripleFields = `
fragment TripleFields on Triple {
  space entityId attributeId entityName attributeName
  value { type value }
}`

const relationFields = `
fragment RelationFields on Relation {
  space id index
  typeOf { id name }
  fromEntity { id name }
  toEntity { id name renderableType value }
}`

// documents holds every operation the client sends, keyed by operation name.
var documents = map[string]string{
	"Entity": `query Entity($id: String!) {
  entity(id: $id) { ...EntityFields }
}` + entityFields,

	"Triples": `query Triples($entityId: String!) {
  triples(entityId: $entityId) { ...TripleFields }
}` + tripleFields,

	"Relations": `query Relations($entityId: String!) {
  relations(entityId: $entityId) { ...RelationFields }
}` + relationFields,

	"IsDeleted": `query IsDeleted($id: String!) {
  isDeleted(id: $id)
}`,

	"Entities": `query Entities($filter: FilterInput, $offset: Int, $limit: Int) {
  entities(filter: $filter, offset: $offset, limit: $limit) {
    ...EntityFields
    triples { ...TripleFields }
    relationsOut { ...RelationFields }
  }
}` + entityFields + tripleFields + relationFields,

	"UpsertEntity": `mutation UpsertEntity($entity: EntityInput!) {
  upsertEntity(entity: $entity)
}`,

	"UpsertTriple": `mutation UpsertTriple($triple: TripleInput!) {
  upsertTriple(triple: $triple)
}`,

	"DeleteTriple": `mutation DeleteTriple($triple: TripleInput!) {
  deleteTriple(triple: $triple)
}`,

	"UpsertRelation": `mutation UpsertRelation($relation: RelationInput!) {
  upsertRelation(relation: $relation)
}`,

	"DeleteRelation": `mutation DeleteRelation($relation: RelationInput!) {
  deleteRelation(relation: $relation)
}`,

	"DeleteEntity": `mutation DeleteEntity($id: String!) {
  deleteEntity(id: $id)
}`,
}
