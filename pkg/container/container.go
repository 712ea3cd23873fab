// Package container is a small dependency-injection container built around an
// ordered collection of service descriptors.
//
// A Collection is mutable and cheap to clone. Build snapshots it into a
// Provider, which resolves services with singleton, scoped or transient
// lifetimes. Override produces an independent collection in which selected
// service types are fully replaced, leaving the base collection untouched.
package container

import (
	"fmt"
	"reflect"

	"github.com/canonica-labs/zircon/internal/errors"
)

// Lifetime controls how long a resolved instance is reused.
type Lifetime int

const (
	// Singleton instances are created once per provider.
	Singleton Lifetime = iota
	// Scoped instances are created once per scope.
	Scoped
	// Transient instances are created on every resolution.
	Transient
)

func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "singleton"
	case Scoped:
		return "scoped"
	case Transient:
		return "transient"
	default:
		return fmt.Sprintf("lifetime(%d)", int(l))
	}
}

// Factory creates a service instance. The resolver it receives resolves
// dependencies within the same scope and resolution chain.
type Factory func(r Resolver) (any, error)

// Descriptor registers one implementation of a service type.
// Exactly one of Factory or Instance must be set. Instances are always
// treated as singletons and are never closed by the container.
type Descriptor struct {
	ServiceType reflect.Type
	Lifetime    Lifetime
	Factory     Factory
	Instance    any
}

// Resolver resolves services by type.
type Resolver interface {
	// Resolve returns the most recently registered implementation of t.
	Resolve(t reflect.Type) (any, error)

	// ResolveAll returns every implementation of t in registration order.
	// It returns an empty slice when t is not registered.
	ResolveAll(t reflect.Type) ([]any, error)

	// IsRegistered reports whether t has at least one registration.
	IsRegistered(t reflect.Type) bool
}

// TypeOf returns the reflect.Type used as the registration key for T.
// It works for interface types as well as concrete ones.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Describe builds a descriptor for T from a typed factory.
func Describe[T any](lifetime Lifetime, factory func(Resolver) (T, error)) Descriptor {
	return Descriptor{
		ServiceType: TypeOf[T](),
		Lifetime:    lifetime,
		Factory: func(r Resolver) (any, error) {
			return factory(r)
		},
	}
}

// DescribeInstance builds a descriptor for T backed by an existing value.
func DescribeInstance[T any](v T) Descriptor {
	return Descriptor{
		ServiceType: TypeOf[T](),
		Lifetime:    Singleton,
		Instance:    v,
	}
}

func (d Descriptor) validate() error {
	if d.ServiceType == nil {
		return errors.NewInvalidDescriptor("<nil>", "service type is nil")
	}
	name := d.ServiceType.String()
	if d.Factory == nil && d.Instance == nil {
		return errors.NewInvalidDescriptor(name, "neither factory nor instance is set")
	}
	if d.Factory != nil && d.Instance != nil {
		return errors.NewInvalidDescriptor(name, "both factory and instance are set")
	}
	if d.Instance != nil && !reflect.TypeOf(d.Instance).AssignableTo(d.ServiceType) {
		return errors.NewInvalidDescriptor(name,
			fmt.Sprintf("instance of type %T is not assignable to %s", d.Instance, name))
	}
	if d.Lifetime < Singleton || d.Lifetime > Transient {
		return errors.NewInvalidDescriptor(name, fmt.Sprintf("unknown %s", d.Lifetime))
	}
	return nil
}

// Collection is an ordered list of descriptors. It is not safe for
// concurrent mutation; build a Provider before sharing.
type Collection struct {
	descriptors []Descriptor
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{}
}

// Add appends descriptors. Later registrations of the same type win for Resolve.
func (c *Collection) Add(descriptors ...Descriptor) *Collection {
	c.descriptors = append(c.descriptors, descriptors...)
	return c
}

// AddSingleton registers a singleton factory for T.
func AddSingleton[T any](c *Collection, factory func(Resolver) (T, error)) *Collection {
	return c.Add(Describe(Singleton, factory))
}

// AddScoped registers a scoped factory for T.
func AddScoped[T any](c *Collection, factory func(Resolver) (T, error)) *Collection {
	return c.Add(Describe(Scoped, factory))
}

// AddTransient registers a transient factory for T.
func AddTransient[T any](c *Collection, factory func(Resolver) (T, error)) *Collection {
	return c.Add(Describe(Transient, factory))
}

// AddInstance registers an existing value for T.
func AddInstance[T any](c *Collection, v T) *Collection {
	return c.Add(DescribeInstance(v))
}

// Descriptors returns a copy of the registered descriptors.
func (c *Collection) Descriptors() []Descriptor {
	out := make([]Descriptor, len(c.descriptors))
	copy(out, c.descriptors)
	return out
}

// Len returns the number of descriptors.
func (c *Collection) Len() int {
	return len(c.descriptors)
}

// Contains reports whether t has at least one descriptor.
func (c *Collection) Contains(t reflect.Type) bool {
	for _, d := range c.descriptors {
		if d.ServiceType == t {
			return true
		}
	}
	return false
}

// RemoveAll drops every descriptor registered for t.
func (c *Collection) RemoveAll(t reflect.Type) *Collection {
	kept := c.descriptors[:0:0]
	for _, d := range c.descriptors {
		if d.ServiceType != t {
			kept = append(kept, d)
		}
	}
	c.descriptors = kept
	return c
}

// Clone returns an independent copy of the collection.
func (c *Collection) Clone() *Collection {
	return &Collection{descriptors: c.Descriptors()}
}

// Override returns a new collection derived from base in which every service
// type named by overrides has all of its base registrations removed and the
// overrides appended. Registrations of other types keep their order.
// base is not modified; a nil base is treated as empty.
func Override(base *Collection, overrides []Descriptor) *Collection {
	replaced := make(map[reflect.Type]bool, len(overrides))
	for _, d := range overrides {
		replaced[d.ServiceType] = true
	}

	out := NewCollection()
	if base != nil {
		for _, d := range base.descriptors {
			if !replaced[d.ServiceType] {
				out.descriptors = append(out.descriptors, d)
			}
		}
	}
	out.descriptors = append(out.descriptors, overrides...)
	return out
}

// BuildWithOverrides builds an isolated provider from base with overrides applied.
func BuildWithOverrides(base *Collection, overrides []Descriptor) (*Provider, error) {
	return Override(base, overrides).Build()
}
