package triggers

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Bindings maps a handler name to the changes that fire it.
type Bindings map[string]EventSpec

type bindingsFile struct {
	Handlers map[string]EventSpec `yaml:"handlers"`
}

// LoadBindings starts from defaults and applies the overrides in the YAML
// file at path. An empty path returns a copy of defaults. Only handler names
// present in defaults may be bound.
func LoadBindings(path string, defaults Bindings) (Bindings, error) {
	out := maps.Clone(defaults)
	if out == nil {
		out = Bindings{}
	}
	if path == "" {
		return out, out.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trigger bindings %s: %w", path, err)
	}
	return parseBindings(data, out)
}

func parseBindings(data []byte, base Bindings) (Bindings, error) {
	var f bindingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing trigger bindings: %w", err)
	}

	for name, spec := range f.Handlers {
		current, ok := base[name]
		if !ok {
			return nil, fmt.Errorf("trigger bindings: unknown handler %q", name)
		}
		if spec.Collection != "" {
			current.Collection = strings.TrimSpace(spec.Collection)
		}
		if spec.Kind != "" {
			current.Kind = spec.Kind
		}
		base[name] = current
	}
	return base, base.Validate()
}

func (b Bindings) Validate() error {
	var errs []error
	for _, name := range b.Names() {
		spec := b[name]
		if spec.Collection == "" {
			errs = append(errs, fmt.Errorf("handler %q: collection is empty", name))
		}
		if !spec.Kind.Valid() {
			errs = append(errs, fmt.Errorf("handler %q: kind %q must be create or update", name, spec.Kind))
		}
	}
	return errors.Join(errs...)
}

// Names returns the bound handler names, sorted.
func (b Bindings) Names() []string {
	return slices.Sorted(maps.Keys(b))
}

// Unwritten returns the handlers bound to a collection outside written.
// Such a handler can never fire.
func (b Bindings) Unwritten(written []string) []string {
	var out []string
	for _, name := range b.Names() {
		if !slices.Contains(written, b[name].Collection) {
			out = append(out, name)
		}
	}
	return out
}
