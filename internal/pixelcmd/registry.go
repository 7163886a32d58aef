package pixelcmd

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Registry is an immutable name → command mapping. It is built once at
// startup and handed to the dispatcher; unknown names are a normal lookup
// miss, not a defect. Registration order is preserved so Names() output is
// stable for help listings.
type Registry struct {
	commands *orderedmap.OrderedMap[string, *Command]
}

// NewRegistry builds a registry from the given commands.
func NewRegistry(commands ...*Command) *Registry {
	m := orderedmap.New[string, *Command](len(commands))
	for _, c := range commands {
		m.Set(c.Name, c)
	}
	return &Registry{commands: m}
}

// DefaultRegistry returns the full pixel-display command set.
func DefaultRegistry() *Registry {
	return NewRegistry(
		newClear(),
		newSetBrightness(),
		newSetClockMode(),
		newSetFunMode(),
		newSetPixel(),
		newDeleteScreen(),
		newSendText(),
		newSetScreen(),
		newSetSpeed(),
		newSendAnimation(),
		newSetOrientation(),
	)
}

// Resolve looks a command up by name.
func (r *Registry) Resolve(name string) (*Command, bool) {
	return r.commands.Get(name)
}

// Names returns all command names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.commands.Len())
	for pair := r.commands.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Len returns the number of registered commands.
func (r *Registry) Len() int {
	return r.commands.Len()
}
