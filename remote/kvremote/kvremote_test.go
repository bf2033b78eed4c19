package kvremote

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/remote"
)

func TestKeys(t *testing.T) {
	tr := graph.Triple{Space: "space:1", EntityID: "e.1", AttributeID: "a b"}
	key := tripleKey(tr)
	assert.Equal(t, "t."+token("space:1")+"."+token("e.1")+"."+token("a b"), key)
	assert.NotContains(t, key[2:], " ")

	rel := graph.Relation{Space: "s", ID: "r", FromEntity: graph.EntityRef{ID: "from"}}
	assert.Equal(t, "r."+token("s")+"."+token("from")+"."+token("r"), relationKey(rel))
	assert.Equal(t, "e."+token("x"), headerKey("x"))
	assert.Equal(t, "x."+token("x"), deletedKey("x"))
}

func TestTokenRoundTrip(t *testing.T) {
	for _, id := range []string{"plain", "with.dots", "üñí", "a/b*c>"} {
		tok := token(id)
		assert.NotContains(t, tok, ".")
		assert.NotContains(t, tok, "*")
		got, ok := untoken(tok)
		assert.True(t, ok)
		assert.Equal(t, id, got)
	}
	_, ok := untoken("!!")
	assert.False(t, ok)
}

func TestMergeHeader(t *testing.T) {
	h := remote.EntityPayload{ID: "e", Name: graph.Ptr("Kept"), Types: []graph.EntityRef{{ID: "T"}}}
	mergeHeader(&h, remote.EntityPayload{ID: "e", Description: graph.Ptr("Added"),
		Triples: []graph.Triple{{EntityID: "e"}}})

	assert.Equal(t, "Kept", *h.Name)
	assert.Equal(t, "Added", *h.Description)
	assert.Equal(t, []graph.EntityRef{{ID: "T"}}, h.Types)
	assert.Nil(t, h.Triples, "facts are stored under their own keys")

	mergeHeader(&h, remote.EntityPayload{ID: "e", Name: graph.Ptr("Renamed"), Types: []graph.EntityRef{{ID: "U"}}})
	assert.Equal(t, "Renamed", *h.Name)
	assert.Equal(t, "U", h.Types[0].ID)
}
