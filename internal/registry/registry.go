// Package registry provides a minimal service registry used at the
// process-wiring boundary (cmd packages and test setup). Core services
// receive their dependencies through constructors and never resolve
// anything from here at runtime.
package registry

import "fmt"

// ErrServiceNotFound is returned by Resolve when a name has neither a
// factory nor an instance registered.
type ErrServiceNotFound struct {
	Name string
}

func (e *ErrServiceNotFound) Error() string {
	return fmt.Sprintf("service not found: %s", e.Name)
}

// Factory constructs a service instance.
type Factory func() (any, error)

// Registry maps names to lazily-constructed singleton instances.
type Registry struct {
	parent    *Registry
	factories map[string]Factory
	instances map[string]any
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]any),
	}
}

// Register stores a factory invoked lazily, at most once per registry.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// RegisterInstance binds a name directly to an already-built value.
func (r *Registry) RegisterInstance(name string, instance any) {
	r.instances[name] = instance
}

// Resolve returns the memoized instance for name, constructing it via the
// registered factory on first access. Factories are inherited from parent
// registries; instances are not.
func (r *Registry) Resolve(name string) (any, error) {
	if instance, ok := r.instances[name]; ok {
		return instance, nil
	}

	factory, ok := r.lookupFactory(name)
	if !ok {
		return nil, &ErrServiceNotFound{Name: name}
	}

	instance, err := factory()
	if err != nil {
		return nil, fmt.Errorf("constructing %s: %w", name, err)
	}
	r.instances[name] = instance
	return instance, nil
}

// Child produces a registry that inherits registered factories by reference
// but starts with no memoized instances, so a test run gets fresh singletons
// without re-declaring wiring.
func (r *Registry) Child() *Registry {
	child := New()
	child.parent = r
	return child
}

func (r *Registry) lookupFactory(name string) (Factory, bool) {
	for reg := r; reg != nil; reg = reg.parent {
		if f, ok := reg.factories[name]; ok {
			return f, true
		}
	}
	return nil, false
}
