package function

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	"github.com/hugr-lab/ogc-filter/filter"
)

// EnvOverride names an optional configuration file layered over the
// embedded base bindings by Default.
const EnvOverride = "OGCFILTER_FUNCTIONS"

//go:embed functions.yaml
var baseConfig []byte

// Base returns the embedded base configuration.
func Base() (Config, error) {
	return ParseConfig(baseConfig)
}

// NewRegistry binds each name to the implementation its locator selects.
// An unknown locator is an error.
func NewRegistry(bindings []Binding, impls map[string]filter.Factory) (*filter.Registry, error) {
	factories := make(map[string]filter.Factory, len(bindings))
	for _, b := range bindings {
		f, ok := impls[b.Impl]
		if !ok {
			return nil, fmt.Errorf("%w: function %q: unknown implementation %q", ErrInvalidConfig, b.Name, b.Impl)
		}
		factories[b.Name] = f
	}
	return filter.NewRegistry(factories), nil
}

// Load builds a registry from the base configuration, then each override
// file in order, binding builtin implementations.
func Load(overrides ...string) (*filter.Registry, error) {
	base, err := Base()
	if err != nil {
		return nil, err
	}
	configs := []Config{base}
	for _, path := range overrides {
		c, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return NewRegistry(Merge(configs...), Builtins())
}

var defaultRegistry = sync.OnceValues(func() (*filter.Registry, error) {
	var overrides []string
	if path := os.Getenv(EnvOverride); path != "" {
		overrides = append(overrides, path)
	}
	return Load(overrides...)
})

// Default returns the process-wide registry. It is built on first use from
// the embedded bindings and the file named by OGCFILTER_FUNCTIONS, if set,
// and is read-only afterwards.
func Default() (*filter.Registry, error) {
	return defaultRegistry()
}
