//go:build integration

package kvremote

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/graphsync/graph"
	"github.com/c360/graphsync/natsclient"
	"github.com/c360/graphsync/remote"
	"github.com/c360/graphsync/vocabulary"
)

func TestRemote_Integration(t *testing.T) {
	tc := natsclient.NewTestClient(t, natsclient.WithJetStream())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	r, err := Open(ctx, tc.Client, "TEST_REMOTE")
	require.NoError(t, err)

	name := graph.Triple{Space: "s", EntityID: "e1", AttributeID: vocabulary.Name, Value: graph.Text("One")}
	rel := graph.Relation{Space: "s", ID: "r1", Index: "a",
		TypeOf:     graph.EntityRef{ID: vocabulary.Types},
		FromEntity: graph.EntityRef{ID: "e1"},
		ToEntity:   graph.ToEntityRef{ID: "Person"}}

	t.Run("push and fetch", func(t *testing.T) {
		require.NoError(t, r.PushTriple(ctx, remote.TripleChange{Triple: name}))
		require.NoError(t, r.PushRelation(ctx, remote.RelationChange{Relation: rel}))

		header, err := r.FetchEntity(ctx, "e1")
		require.NoError(t, err)
		require.NotNil(t, header)
		assert.Equal(t, "One", *header.Name)
		assert.Equal(t, "Person", header.Types[0].ID)

		triples, err := r.FetchTriples(ctx, "e1")
		require.NoError(t, err)
		assert.Equal(t, []graph.Triple{name}, triples)

		missing, err := r.FetchEntity(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("header merge", func(t *testing.T) {
		require.NoError(t, r.PushEntity(ctx, remote.EntityPayload{ID: "h1", Name: graph.Ptr("Named"),
			Types: []graph.EntityRef{{ID: "Person"}}}))

		var wg sync.WaitGroup
		for _, desc := range []string{"first", "second"} {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, r.PushEntity(ctx, remote.EntityPayload{ID: "h1", Description: graph.Ptr(desc)}))
			}()
		}
		wg.Wait()

		header, err := r.FetchEntity(ctx, "h1")
		require.NoError(t, err)
		require.NotNil(t, header)
		assert.Equal(t, "Named", *header.Name)
		require.NotNil(t, header.Description)
		assert.Contains(t, []string{"first", "second"}, *header.Description)
		assert.Equal(t, "Person", header.Types[0].ID)
	})

	t.Run("query", func(t *testing.T) {
		got, err := r.QueryEntities(ctx, remote.Filter{Clauses: []remote.Clause{
			{ColumnID: vocabulary.Types, Value: "Person"},
		}}, remote.Page{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "e1", got[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, r.PushDelete(ctx, "e1"))
		deleted, err := r.IsDeleted(ctx, "e1")
		require.NoError(t, err)
		assert.True(t, deleted)

		triples, err := r.FetchTriples(ctx, "e1")
		require.NoError(t, err)
		assert.Empty(t, triples)

		require.NoError(t, r.PushEntity(ctx, remote.EntityPayload{ID: "e1", Name: graph.Ptr("Back")}))
		deleted, err = r.IsDeleted(ctx, "e1")
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}
