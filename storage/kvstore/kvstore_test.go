package kvstore

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKVKey(t *testing.T) {
	for _, key := range []string{"s:e:a", "space with spaces:e.1:a*b", "s:r"} {
		k := kvKey(key)
		assert.True(t, strings.HasPrefix(k, prefix))
		assert.NotContains(t, strings.TrimPrefix(k, prefix), ".")
		assert.NotContains(t, k, "*")

		raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(k, prefix))
		assert.NoError(t, err)
		assert.Equal(t, key, string(raw))
	}
}
