package shared

import "reflect"

// Key identifies a shared instance slot: a type identifier plus an optional
// disambiguating name. Named=false means no name was supplied, which is a
// different slot from an empty name.
type Key struct {
	Type  string
	Name  string
	Named bool
}

// NewKey builds a key from a type identifier and an optional name.
func NewKey(typ string, name *string) Key {
	if name == nil {
		return Key{Type: typ}
	}
	return Key{Type: typ, Name: *name, Named: true}
}

// KeyFor builds a key whose type identifier is the qualified name of T.
func KeyFor[T any](name *string) Key {
	return NewKey(TypeName(reflect.TypeFor[T]()), name)
}

// String renders the key as "Type:Name", with "null" standing in for an
// absent name.
func (k Key) String() string {
	if !k.Named {
		return k.Type + ":null"
	}
	return k.Type + ":" + k.Name
}

// TypeName returns a package-qualified name for t, e.g.
// "*github.com/acme/app/cart.Model".
func TypeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	if t.Kind() == reflect.Pointer {
		return "*" + TypeName(t.Elem())
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// Name returns a pointer to s, for use as a key disambiguator.
func Name(s string) *string {
	return &s
}
