// Package endpoints collects HTTP endpoint registrations and maps them onto
// a mux exactly once.
package endpoints

import (
	"net/http"
	"sync"

	"github.com/canonica-labs/zircon/pkg/container"
)

// Endpoint registers one or more routes on a mux.
type Endpoint interface {
	MapEndpoint(mux *http.ServeMux)
}

// EndpointFunc adapts a function to Endpoint.
type EndpointFunc func(mux *http.ServeMux)

// MapEndpoint calls f(mux).
func (f EndpointFunc) MapEndpoint(mux *http.ServeMux) { f(mux) }

// Registry holds endpoints until they are mapped.
type Registry struct {
	mu        sync.Mutex
	endpoints []Endpoint
	mapped    bool
}

// NewRegistry creates a registry holding endpoints.
func NewRegistry(endpoints ...Endpoint) *Registry {
	r := &Registry{}
	r.Add(endpoints...)
	return r
}

// Add appends endpoints. Endpoints added after mapping are ignored.
func (r *Registry) Add(endpoints ...Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints = append(r.endpoints, endpoints...)
}

// MapEndpoints maps every endpoint onto mux in registration order.
// Only the first call maps anything; later calls return false.
func (r *Registry) MapEndpoints(mux *http.ServeMux) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mapped {
		return false
	}
	for _, e := range r.endpoints {
		e.MapEndpoint(mux)
	}
	r.mapped = true
	return true
}

// Mapped reports whether MapEndpoints has run.
func (r *Registry) Mapped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mapped
}

// Discover builds a registry from every Endpoint registered in the container.
func Discover(resolver container.Resolver) (*Registry, error) {
	found, err := container.ResolveAll[Endpoint](resolver)
	if err != nil {
		return nil, err
	}
	return NewRegistry(found...), nil
}
