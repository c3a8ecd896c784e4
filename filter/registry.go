package filter

import (
	"fmt"
	"sort"

	"github.com/hugr-lab/ogc-filter/record"
)

// Function is a registered function implementation. It receives the raw
// argument expressions through the CallContext and decides itself whether
// to evaluate them, so both eager and lazy functions are possible.
type Function interface {
	Call(ctx *CallContext) (Value, error)
}

// FunctionFunc adapts a plain function to Function.
type FunctionFunc func(ctx *CallContext) (Value, error)

// Call implements Function.
func (f FunctionFunc) Call(ctx *CallContext) (Value, error) { return f(ctx) }

// Factory instantiates a function for a call site. It may reject the
// arguments (for example their count); that surfaces as a ConstructionError.
type Factory func(args []Expression) (Function, error)

// CallContext carries one function invocation.
type CallContext struct {
	Name   string
	Args   []Expression
	Record record.Record

	ev *Evaluator
}

// Arg evaluates argument i.
func (c *CallContext) Arg(i int) (Value, error) {
	if i < 0 || i >= len(c.Args) {
		return Value{}, fmt.Errorf("%s: argument %d out of range (%d arguments)", c.Name, i, len(c.Args))
	}
	return c.ev.Expression(c.Args[i], c.Record)
}

// Values evaluates every argument in order.
func (c *CallContext) Values() ([]Value, error) {
	out := make([]Value, len(c.Args))
	for i := range c.Args {
		v, err := c.Arg(i)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Registry maps function names to factories. It is built once and is
// read-only afterwards, so it is safe for concurrent use.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry from name bindings.
func NewRegistry(bindings map[string]Factory) *Registry {
	r := &Registry{factories: make(map[string]Factory, len(bindings))}
	for name, f := range bindings {
		r.factories[name] = f
	}
	return r
}

// Lookup returns the factory bound to name.
func (r *Registry) Lookup(name string) (Factory, bool) {
	if r == nil {
		return nil, false
	}
	f, ok := r.factories[name]
	return f, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewFunction binds a call to a registered implementation.
func (r *Registry) NewFunction(name string, args ...Expression) (*FunctionExpression, error) {
	factory, ok := r.Lookup(name)
	if !ok {
		return nil, constructionErr("Function", "unknown function %q", name)
	}
	fn, err := factory(args)
	if err != nil {
		return nil, wrapConstruction("Function", err, "instantiate %q", name)
	}
	if fn == nil {
		return nil, constructionErr("Function", "factory for %q returned no implementation", name)
	}
	return &FunctionExpression{Name: name, Args: args, Fn: fn}, nil
}
