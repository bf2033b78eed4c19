package graph

import (
	"fmt"
	"strings"
)

const keySep = ':'

var keyEscaper = strings.NewReplacer(`\`, `\\`, ":", `\:`)

// escape makes a key component safe to join with ':'. Components without
// ':' or '\' are returned unchanged, so ordinary ids produce the plain
// "{space}:{entity}:{attribute}" form.
func escape(s string) string {
	if !strings.ContainsAny(s, `:\`) {
		return s
	}
	return keyEscaper.Replace(s)
}

// TripleKey derives the identity key of a triple.
func TripleKey(space, entityID, attributeID string) string {
	return escape(space) + string(keySep) + escape(entityID) + string(keySep) + escape(attributeID)
}

// RelationKey derives the identity key of a relation.
func RelationKey(space, relationID string) string {
	return escape(space) + string(keySep) + escape(relationID)
}

// SplitKey reverses TripleKey and RelationKey.
func SplitKey(key string) ([]string, error) {
	var (
		parts []string
		cur   strings.Builder
		esc   bool
	)
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case esc:
			cur.WriteByte(c)
			esc = false
		case c == '\\':
			esc = true
		case c == keySep:
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	if esc {
		return nil, fmt.Errorf("%w: dangling escape in %q", ErrInvalidKey, key)
	}
	return append(parts, cur.String()), nil
}

// ParseTripleKey splits a triple key into its components.
func ParseTripleKey(key string) (space, entityID, attributeID string, err error) {
	parts, err := SplitKey(key)
	if err != nil {
		return "", "", "", err
	}
	if len(parts) != 3 {
		return "", "", "", fmt.Errorf("%w: %q has %d components, want 3", ErrInvalidKey, key, len(parts))
	}
	return parts[0], parts[1], parts[2], nil
}
