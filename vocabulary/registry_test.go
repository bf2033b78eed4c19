package vocabulary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinAttributes(t *testing.T) {
	builtins := BuiltinAttributes()
	require.Len(t, builtins, 3)
	assert.Equal(t, Name, builtins[0].ID)
	assert.Equal(t, Description, builtins[1].ID)
	assert.Equal(t, Types, builtins[2].ID)

	builtins[0].Name = "mutated"
	assert.Equal(t, "Name", BuiltinAttributes()[0].Name)
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()
	r.Register(AttributeDescriptor{ID: Cover, Name: "Cover", ValueType: ImageValue}, false)

	d, ok := r.Lookup(Cover)
	require.True(t, ok)
	assert.Equal(t, ImageValue, d.ValueType)
	assert.Len(t, r.Builtins(), 3)

	r.Register(AttributeDescriptor{ID: Name, Name: "Title", ValueType: TextValue}, true)
	assert.Len(t, r.Builtins(), 3)
	assert.Equal(t, "Title", r.Builtins()[0].Name)

	_, ok = Lookup("nope")
	assert.False(t, ok)
}
