// Package vocabulary defines the system entity ids every space agrees on:
// the attributes that give an entity its name, description and types, the
// attribute that links a type to its schema, and the value types attributes
// may declare.
//
// These ids are what the projection looks for when it turns a flat stream of
// triples and relations into an Entity. A registry of built-in attribute
// descriptors is kept so a schema always includes Name, Description and
// Types even when a type entity declares nothing.
package vocabulary
