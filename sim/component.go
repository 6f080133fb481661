package sim

// Named objects report the dot-separated name they were built with.
type Named interface {
	Name() string
}

// A Component handles events and can be observed through hooks.
type Component interface {
	Named
	Handler
	Hookable
}

// ComponentBase holds the name and hooks shared by all components.
type ComponentBase struct {
	HookableBase

	name string
}

// NewComponentBase panics if the name is not a valid component name.
func NewComponentBase(name string) *ComponentBase {
	NameMustBeValid(name)

	return &ComponentBase{name: name}
}

// Name returns the component name.
func (c *ComponentBase) Name() string {
	return c.name
}
