package catalog

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

// Classification tags the risk level of a tool, derived from its name.
type Classification string

const (
	ClassSafe        Classification = "safe"
	ClassMutating    Classification = "mutating"
	ClassDestructive Classification = "destructive"
	ClassUnknown     Classification = "unknown"
)

// Dangerous reports whether the classification requires the dangerous switch.
func (c Classification) Dangerous() bool {
	return c == ClassMutating || c == ClassDestructive
}

// Param describes a single tool parameter derived from the callable's
// signature.
type Param struct {
	// Name is the JSON argument name. For struct-style callables it comes
	// from the field's json tag; for positional callables it is arg0..argN.
	Name string
	// Type is the JSON Schema type tag: string, integer, number, boolean,
	// array, object, or "" for untyped (any).
	Type string
	// Required is true when the parameter has no usable zero default.
	Required bool
	// GoType is the concrete Go type the argument is coerced into.
	GoType reflect.Type
	// Index is the positional index within the call frame, after the
	// receiver and any leading context argument.
	Index int
}

// Descriptor is an immutable description of one callable target inside a
// registered SDK handle. Descriptors are created once by the builder and
// owned by the Catalog.
type Descriptor struct {
	// Name is the dotted canonical name, unique within a catalog.
	Name string
	// Family is the first segment of the name (the SDK the tool came from).
	Family string
	// Description is a short human-readable summary, improvable by
	// enrichment.
	Description string
	// Class is the risk classification of the last name segment.
	Class Classification
	// Params lists the declared parameters in call order.
	Params []Param
	// AcceptsContext is true when the callable's first argument is a
	// context.Context; such callables are cancelled cooperatively.
	AcceptsContext bool
	// Variadic is true when the callable accepts trailing variable
	// arguments; unknown extra request arguments are then tolerated.
	Variadic bool
	// ArgStruct is the struct type the whole argument mapping decodes into,
	// or nil for positional-style callables.
	ArgStruct reflect.Type
	// argStructPtr is true when the callable takes *ArgStruct rather than
	// ArgStruct by value.
	argStructPtr bool

	fn reflect.Value
}

// Func returns the bound callable.
func (d *Descriptor) Func() reflect.Value { return d.fn }

// ArgStructByPointer reports whether the argument struct is passed by pointer.
func (d *Descriptor) ArgStructByPointer() bool { return d.argStructPtr }

// Param returns the parameter with the given name, if declared.
func (d *Descriptor) Param(name string) (Param, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

var nameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

// ValidName reports whether name is a well-formed dotted tool name.
func ValidName(name string) bool {
	return nameRe.MatchString(name)
}

// Diagnostic records a target that could not be introspected during a build.
type Diagnostic struct {
	Target string
	Reason string
}

// Catalog maps canonical names to descriptors. It is built once and read-only
// afterwards, so concurrent lookups need no locking.
type Catalog struct {
	tools map[string]*Descriptor
	order []string
	diags []Diagnostic
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{tools: make(map[string]*Descriptor)}
}

// Add registers a descriptor. Duplicate names are rejected.
func (c *Catalog) Add(d *Descriptor) error {
	if !ValidName(d.Name) {
		return fmt.Errorf("invalid tool name: %q", d.Name)
	}
	if _, ok := c.tools[d.Name]; ok {
		return fmt.Errorf("duplicate tool name: %q", d.Name)
	}
	c.tools[d.Name] = d
	c.order = append(c.order, d.Name)
	return nil
}

// Get looks up a descriptor by canonical name.
func (c *Catalog) Get(name string) (*Descriptor, bool) {
	d, ok := c.tools[name]
	return d, ok
}

// Len returns the number of descriptors.
func (c *Catalog) Len() int { return len(c.tools) }

// Names returns all canonical names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	sort.Strings(names)
	return names
}

// All returns descriptors in insertion order.
func (c *Catalog) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.tools[name])
	}
	return out
}

// Diagnostics returns the non-fatal problems recorded during the build.
func (c *Catalog) Diagnostics() []Diagnostic { return c.diags }

func (c *Catalog) addDiagnostic(target, reason string) {
	c.diags = append(c.diags, Diagnostic{Target: target, Reason: reason})
}

// Families returns the distinct SDK families present in the catalog.
func (c *Catalog) Families() []string {
	seen := map[string]bool{}
	var out []string
	for _, name := range c.order {
		fam := c.tools[name].Family
		if !seen[fam] {
			seen[fam] = true
			out = append(out, fam)
		}
	}
	sort.Strings(out)
	return out
}

func familyOf(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}
