package container

import (
	stderrors "errors"
	"fmt"
	"io"
	"reflect"
	"slices"
	"sync"

	"github.com/canonica-labs/zircon/internal/errors"
)

// errScopeClosed is returned when resolving from a closed scope.
var errScopeClosed = stderrors.New("container: scope is closed")

type lazy struct {
	once  sync.Once
	value any
	err   error
}

// Provider resolves services from a snapshot of a collection.
// It is safe for concurrent use. A failed singleton factory is not retried.
type Provider struct {
	descriptors []Descriptor
	index       map[reflect.Type][]int
	singletons  []*lazy
	root        *Scope
}

// Build validates the collection and snapshots it into a provider.
// Mutating the collection afterwards does not affect the provider.
func (c *Collection) Build() (*Provider, error) {
	p := &Provider{
		descriptors: c.Descriptors(),
		index:       make(map[reflect.Type][]int),
	}
	p.singletons = make([]*lazy, len(p.descriptors))

	for i, d := range p.descriptors {
		if err := d.validate(); err != nil {
			return nil, err
		}
		p.index[d.ServiceType] = append(p.index[d.ServiceType], i)
		if d.Lifetime == Singleton && d.Instance == nil {
			p.singletons[i] = &lazy{}
		}
	}

	p.root = p.CreateScope()
	return p, nil
}

// CreateScope starts a new scope. Scoped services resolved through it are
// shared within the scope and closed with it.
func (p *Provider) CreateScope() *Scope {
	return &Scope{
		provider: p,
		scoped:   make(map[int]*lazy),
	}
}

// Resolve resolves t from the root scope.
func (p *Provider) Resolve(t reflect.Type) (any, error) {
	return p.root.Resolve(t)
}

// ResolveAll resolves every registration of t from the root scope.
func (p *Provider) ResolveAll(t reflect.Type) ([]any, error) {
	return p.root.ResolveAll(t)
}

// IsRegistered reports whether t has at least one registration.
func (p *Provider) IsRegistered(t reflect.Type) bool {
	return len(p.index[t]) > 0
}

// Close closes singletons and root-scoped instances that implement io.Closer,
// in reverse creation order.
func (p *Provider) Close() error {
	return p.root.Close()
}

func (p *Provider) typeNames(chain []int) []string {
	names := make([]string, len(chain))
	for i, idx := range chain {
		names[i] = p.descriptors[idx].ServiceType.String()
	}
	return names
}

// Scope resolves services with scoped instances cached for its lifetime.
type Scope struct {
	provider *Provider

	mu      sync.Mutex
	scoped  map[int]*lazy
	created []io.Closer
	closed  bool
}

// Resolve returns the most recently registered implementation of t.
func (s *Scope) Resolve(t reflect.Type) (any, error) {
	return (&resolution{scope: s}).Resolve(t)
}

// ResolveAll returns every implementation of t in registration order.
func (s *Scope) ResolveAll(t reflect.Type) ([]any, error) {
	return (&resolution{scope: s}).ResolveAll(t)
}

// IsRegistered reports whether t has at least one registration.
func (s *Scope) IsRegistered(t reflect.Type) bool {
	return s.provider.IsRegistered(t)
}

// Close closes instances created in this scope that implement io.Closer,
// newest first. Further resolution of scoped services fails.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	created := s.created
	s.created = nil
	s.mu.Unlock()

	var errs []error
	for _, c := range slices.Backward(created) {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (s *Scope) track(v any) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	s.mu.Lock()
	s.created = append(s.created, c)
	s.mu.Unlock()
}

func (s *Scope) instance(idx int, chain []int) (any, error) {
	p := s.provider
	if slices.Contains(chain, idx) {
		return nil, errors.NewCircularDependency(p.typeNames(append(slices.Clone(chain), idx)))
	}

	d := p.descriptors[idx]
	if d.Instance != nil {
		return d.Instance, nil
	}

	next := append(slices.Clip(chain), idx)
	switch d.Lifetime {
	case Singleton:
		l := p.singletons[idx]
		l.once.Do(func() {
			l.value, l.err = p.root.create(d, next)
		})
		return l.value, l.err
	case Scoped:
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, errScopeClosed
		}
		l, ok := s.scoped[idx]
		if !ok {
			l = &lazy{}
			s.scoped[idx] = l
		}
		s.mu.Unlock()

		l.once.Do(func() {
			l.value, l.err = s.create(d, next)
		})
		return l.value, l.err
	default:
		return s.create(d, next)
	}
}

func (s *Scope) create(d Descriptor, chain []int) (any, error) {
	v, err := d.Factory(&resolution{scope: s, chain: chain})
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", d.ServiceType, err)
	}
	if v != nil && !reflect.TypeOf(v).AssignableTo(d.ServiceType) {
		return nil, errors.NewInvalidDescriptor(d.ServiceType.String(),
			fmt.Sprintf("factory returned %T", v))
	}
	s.track(v)
	return v, nil
}

// resolution is the Resolver handed to factories. It carries the chain of
// descriptors being constructed so cycles are reported instead of deadlocking.
type resolution struct {
	scope *Scope
	chain []int
}

func (r *resolution) Resolve(t reflect.Type) (any, error) {
	indexes := r.scope.provider.index[t]
	if len(indexes) == 0 {
		return nil, errors.NewServiceNotRegistered(typeName(t))
	}
	return r.scope.instance(indexes[len(indexes)-1], r.chain)
}

func (r *resolution) ResolveAll(t reflect.Type) ([]any, error) {
	indexes := r.scope.provider.index[t]
	out := make([]any, 0, len(indexes))
	for _, idx := range indexes {
		v, err := r.scope.instance(idx, r.chain)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *resolution) IsRegistered(t reflect.Type) bool {
	return r.scope.provider.IsRegistered(t)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
