// Package fracindex generates string ordering keys that sort between two
// neighbours under plain byte comparison, so inserting or moving an item
// never renumbers its siblings.
//
// Keys use the base-62 alphabet 0-9A-Za-z, which is already in ASCII order.
// Generated keys never end in '0', so there is always room for a key before
// any of them. Keys from other generators that do end in '0', such as "a0",
// are still accepted as bounds.
package fracindex

import (
	"errors"
	"fmt"
	"strings"
)

const digits = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var (
	// ErrInvalidKey is returned for keys with characters outside the alphabet.
	ErrInvalidKey = errors.New("fracindex: invalid key")
	// ErrOutOfOrder is returned when the lower bound is not below the upper bound.
	ErrOutOfOrder = errors.New("fracindex: lower bound must sort before upper bound")
	// ErrNoRoom is returned when no key fits between the bounds, as between
	// "a" and "a0".
	ErrNoRoom = errors.New("fracindex: no key between bounds")
)

// Validate reports whether key can be used as a bound.
func Validate(key string) error {
	for i := 0; i < len(key); i++ {
		if strings.IndexByte(digits, key[i]) < 0 {
			return fmt.Errorf("%w: %q has character %q", ErrInvalidKey, key, key[i])
		}
	}
	return nil
}

// KeyBetween returns a key strictly between a and b. An empty a means "before
// everything" and an empty b means "after everything".
func KeyBetween(a, b string) (string, error) {
	if err := Validate(a); err != nil {
		return "", err
	}
	if err := Validate(b); err != nil {
		return "", err
	}
	if a != "" && b != "" && a >= b {
		return "", fmt.Errorf("%w: %q >= %q", ErrOutOfOrder, a, b)
	}
	// Trailing zeros on b leave no key between a and b's trimmed form.
	if b != "" && a >= strings.TrimRight(b, "0") {
		return "", fmt.Errorf("%w: %q and %q", ErrNoRoom, a, b)
	}
	return midpoint(a, b), nil
}

// NKeysBetween returns n ascending keys between a and b.
func NKeysBetween(a, b string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	if n == 1 {
		k, err := KeyBetween(a, b)
		if err != nil {
			return nil, err
		}
		return []string{k}, nil
	}

	mid, err := KeyBetween(a, b)
	if err != nil {
		return nil, err
	}
	left, err := NKeysBetween(a, mid, n/2)
	if err != nil {
		return nil, err
	}
	right, err := NKeysBetween(mid, b, n-n/2-1)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, n)
	out = append(out, left...)
	out = append(out, mid)
	return append(out, right...), nil
}

// midpoint assumes a < b, or b == "" meaning no upper bound.
func midpoint(a, b string) string {
	if b != "" {
		// Skip the shared prefix, reading a as padded with '0'.
		n := 0
		for n < len(b) {
			ca := byte('0')
			if n < len(a) {
				ca = a[n]
			}
			if ca != b[n] {
				break
			}
			n++
		}
		if n > 0 {
			rest := ""
			if n < len(a) {
				rest = a[n:]
			}
			return b[:n] + midpoint(rest, b[n:])
		}
	}

	da := 0
	if a != "" {
		da = strings.IndexByte(digits, a[0])
	}
	db := len(digits)
	if b != "" {
		db = strings.IndexByte(digits, b[0])
	}

	if db-da > 1 {
		return string(digits[(da+db+1)/2])
	}

	// Adjacent first digits.
	if len(b) > 1 {
		return b[:1]
	}
	rest := ""
	if len(a) > 1 {
		rest = a[1:]
	}
	return string(digits[da]) + midpoint(rest, "")
}
