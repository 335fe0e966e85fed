// Package querycache is an in-process query cache with stale-while-revalidate
// semantics. Results are cached per Key (a family name plus ordered parts),
// consumers observe a key and keep showing the previous key's data while a
// new key loads, and invalidating a family makes every observer of that
// family refetch. An optional shared Store (Redis) lets several server
// instances reuse fetches and hear each other's invalidations.
package querycache

import "strings"

// partSep separates key parts in the string form. It cannot appear in
// user-typed filter text coming from an HTML input.
const partSep = "\x1f"

// Key identifies one cached query result. Two keys are equal when their
// family and every part are equal, so Key can be used as a map key.
type Key struct {
	family string
	parts  string
}

// NewKey builds a key from a family name and ordered parts, e.g.
// NewKey("get-tags", filter, "2").
func NewKey(family string, parts ...string) Key {
	return Key{family: family, parts: strings.Join(parts, partSep)}
}

// Family returns the key's family, the unit of invalidation.
func (k Key) Family() string { return k.family }

// Parts returns the key's ordered parts.
func (k Key) Parts() []string {
	if k.parts == "" {
		return nil
	}
	return strings.Split(k.parts, partSep)
}

// String returns a stable, unambiguous string form of the key.
func (k Key) String() string {
	if k.parts == "" {
		return k.family
	}
	return k.family + partSep + k.parts
}
