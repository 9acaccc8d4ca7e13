package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrServiceNotFound is returned by hosts when a named service is absent.
var ErrServiceNotFound = errors.New("service not found")

// Host is the side of the lifecycle contract the embedding application
// implements: a registry of named service handles plugins can request.
type Host interface {
	Service(name string) (interface{}, error)
}

// Teardown is returned by OnInit and invoked by the host at shutdown.
type Teardown func(ctx context.Context) error

// Plugin is the lifecycle contract a capability implements. RequiredServices
// names the host services the plugin cannot run without; registration is
// refused when any of them is missing, before OnInit runs.
type Plugin interface {
	RequiredServices() []string
	OnInit(ctx context.Context, host Host) (Teardown, error)
	OnReady(ctx context.Context) error
}

// ServiceMap is a trivial Host over a name→handle map.
type ServiceMap map[string]interface{}

func (s ServiceMap) Service(name string) (interface{}, error) {
	handle, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	return handle, nil
}

// Registry drives plugin lifecycles: register (with the required-service
// check), signal readiness, and tear down in reverse registration order.
type Registry struct {
	host Host

	mu        sync.Mutex
	plugins   []Plugin
	teardowns []Teardown
}

// NewRegistry creates a registry backed by the given host.
func NewRegistry(host Host) *Registry {
	return &Registry{host: host}
}

// Register verifies the plugin's required services exist, then initializes
// it. A plugin whose requirements cannot be met is never initialized.
func (r *Registry) Register(ctx context.Context, p Plugin) error {
	for _, name := range p.RequiredServices() {
		if _, err := r.host.Service(name); err != nil {
			return fmt.Errorf("cannot register plugin, required service %q unavailable: %w", name, err)
		}
	}

	teardown, err := p.OnInit(ctx, r.host)
	if err != nil {
		return fmt.Errorf("plugin init failed: %w", err)
	}

	r.mu.Lock()
	r.plugins = append(r.plugins, p)
	r.teardowns = append(r.teardowns, teardown)
	r.mu.Unlock()
	return nil
}

// Ready signals all registered plugins that the host is fully up.
func (r *Registry) Ready(ctx context.Context) error {
	r.mu.Lock()
	plugins := append([]Plugin(nil), r.plugins...)
	r.mu.Unlock()

	for _, p := range plugins {
		if err := p.OnReady(ctx); err != nil {
			return fmt.Errorf("plugin ready failed: %w", err)
		}
	}
	return nil
}

// Shutdown runs teardowns in reverse registration order, collecting errors.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	teardowns := append([]Teardown(nil), r.teardowns...)
	r.teardowns = nil
	r.plugins = nil
	r.mu.Unlock()

	var errs []error
	for i := len(teardowns) - 1; i >= 0; i-- {
		if teardowns[i] == nil {
			continue
		}
		if err := teardowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
