// Package function populates the filter function registry: builtin
// implementations, layered YAML configuration binding function names to
// implementations, and the process-wide default registry.
package function

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned for malformed function configuration.
var ErrInvalidConfig = errors.New("function: invalid configuration")

// Binding binds a function name to an implementation locator such as
// "strings.lower".
type Binding struct {
	Name string `yaml:"name"`
	Impl string `yaml:"impl"`
}

// Config is one configuration document.
type Config struct {
	Functions []Binding `yaml:"functions"`
}

// LoadConfig decodes a configuration document. Unknown fields are errors.
func LoadConfig(r io.Reader) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for i, b := range c.Functions {
		if b.Name == "" || b.Impl == "" {
			return Config{}, fmt.Errorf("%w: entry %d needs both name and impl", ErrInvalidConfig, i)
		}
	}
	return c, nil
}

// ParseConfig decodes a configuration document held in memory.
func ParseConfig(data []byte) (Config, error) {
	return LoadConfig(bytes.NewReader(data))
}

// LoadFile decodes the configuration document at path.
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	c, err := LoadConfig(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Merge layers configurations in order. A later binding for a name
// replaces the earlier one in place; new names are appended.
func Merge(configs ...Config) []Binding {
	var out []Binding
	index := make(map[string]int)
	for _, c := range configs {
		for _, b := range c.Functions {
			if i, ok := index[b.Name]; ok {
				out[i] = b
				continue
			}
			index[b.Name] = len(out)
			out = append(out, b)
		}
	}
	return out
}
