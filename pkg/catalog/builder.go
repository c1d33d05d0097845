package catalog

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"
)

const defaultMaxDepth = 4

// Method name prefixes that are serialization or codegen plumbing, never
// remotely callable operations.
var skipMethodPrefixes = []string{
	"DeepCopy", "Marshal", "Unmarshal", "XXX_", "ProtoMessage", "Descriptor",
	"Reset", "String", "Error", "GoString", "Format",
}

// Zero-arg methods that manage lifecycle rather than construct sub-clients;
// invoking them during discovery could block or tear the handle down.
var lifecycleMethods = map[string]bool{
	"Close": true, "Shutdown": true, "Stop": true, "Start": true,
	"Run": true, "Wait": true, "Flush": true, "Sync": true,
}

var ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()

// BuildOption adjusts the catalog build.
type BuildOption func(*builder)

// WithMaxDepth bounds recursion into nested namespaces and sub-clients.
func WithMaxDepth(depth int) BuildOption {
	return func(b *builder) { b.maxDepth = depth }
}

type builder struct {
	catalog  *Catalog
	maxDepth int
	visited  map[visitKey]bool
}

// Build walks the exported callable surface of handle and appends the
// discovered descriptors to cat under the given family name. Introspection
// problems are recorded as diagnostics on the catalog, never returned as
// errors; only a nil or invalid handle is fatal.
func Build(cat *Catalog, family string, handle any, opts ...BuildOption) error {
	if handle == nil {
		return fmt.Errorf("catalog: nil handle for family %q", family)
	}
	v := reflect.ValueOf(handle)
	if !v.IsValid() {
		return fmt.Errorf("catalog: invalid handle for family %q", family)
	}

	b := &builder{
		catalog:  cat,
		maxDepth: defaultMaxDepth,
		visited:  make(map[visitKey]bool),
	}
	for _, opt := range opts {
		opt(b)
	}

	b.walk(family, v, 0)
	return nil
}

func (b *builder) walk(path string, v reflect.Value, depth int) {
	if depth > b.maxDepth {
		return
	}
	if !b.markVisited(path, v) {
		return
	}

	b.collectMethods(path, v, depth)
	b.collectFields(path, v, depth)
}

// visitKey identifies a walked value: by type and address when the value has
// one, by type and walk path otherwise. Distinct same-typed sub-clients stay
// distinct; only true re-visits of one object are skipped.
type visitKey struct {
	t    reflect.Type
	ptr  uintptr
	path string
}

// markVisited records object identity and reports whether this is the first
// visit, so self-referential object graphs terminate.
func (b *builder) markVisited(path string, v reflect.Value) bool {
	key := visitKey{t: v.Type()}
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if v.IsNil() {
			return false
		}
		key.ptr = v.Pointer()
	case reflect.Interface:
		if v.IsNil() {
			return false
		}
		return b.markVisited(path, v.Elem())
	default:
		if v.CanAddr() {
			key.ptr = v.Addr().Pointer()
		} else {
			key.path = path
		}
	}
	if b.visited[key] {
		return false
	}
	b.visited[key] = true
	return true
}

func (b *builder) collectMethods(path string, v reflect.Value, depth int) {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	t := v.Type()

	for i := 0; i < t.NumMethod(); i++ {
		m := t.Method(i)
		if !m.IsExported() || skipMethod(m.Name) {
			continue
		}
		name := path + "." + m.Name
		bound := v.Method(i)

		d, err := b.describe(name, bound)
		if err != nil {
			b.catalog.addDiagnostic(name, err.Error())
		} else if err := b.catalog.Add(d); err != nil {
			b.catalog.addDiagnostic(name, err.Error())
		}

		// Zero-arg methods returning a single client-like value act as
		// sub-client factories; instantiate and recurse.
		if depth < b.maxDepth && isAccessor(m.Name, bound.Type()) {
			b.recurseAccessor(name, bound, depth)
		}
	}
}

func (b *builder) recurseAccessor(name string, bound reflect.Value, depth int) {
	defer func() {
		if r := recover(); r != nil {
			b.catalog.addDiagnostic(name, fmt.Sprintf("accessor panicked during discovery: %v", r))
		}
	}()
	out := bound.Call(nil)
	if len(out) != 1 {
		return
	}
	b.walk(name, out[0], depth+1)
}

func (b *builder) collectFields(path string, v reflect.Value, depth int) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Ptr, reflect.Interface:
			if fv.IsNil() {
				continue
			}
		case reflect.Struct:
		default:
			continue
		}
		if !hasExportedMethods(fv) {
			continue
		}
		b.walk(path+"."+f.Name, fv, depth+1)
	}
}

// describe builds a descriptor from a bound method value.
func (b *builder) describe(name string, bound reflect.Value) (*Descriptor, error) {
	ft := bound.Type()

	d := &Descriptor{
		Name:     name,
		Family:   familyOf(name),
		Class:    Classify(name),
		Variadic: ft.IsVariadic(),
		fn:       bound,
	}

	start := 0
	if ft.NumIn() > 0 && ft.In(0) == ctxType {
		d.AcceptsContext = true
		start = 1
	}

	// A single struct (or pointer-to-struct) argument carries named fields;
	// the whole request argument mapping decodes into it.
	if ft.NumIn()-start == 1 && !ft.IsVariadic() {
		at := ft.In(start)
		st := at
		if st.Kind() == reflect.Ptr {
			st = st.Elem()
		}
		if st.Kind() == reflect.Struct && st != reflect.TypeOf(time.Time{}) {
			d.ArgStruct = st
			d.argStructPtr = at.Kind() == reflect.Ptr
			d.Params = structParams(st)
			d.Description = synthesizeDescription(d)
			return d, nil
		}
	}

	for i := start; i < ft.NumIn(); i++ {
		at := ft.In(i)
		idx := i - start
		p := Param{
			Name:     fmt.Sprintf("arg%d", idx),
			GoType:   at,
			Index:    idx,
			Required: true,
		}
		if ft.IsVariadic() && i == ft.NumIn()-1 {
			p.GoType = at // already a slice type
			p.Required = false
			p.Type = "array"
		} else {
			p.Type = jsonTypeOf(at)
		}
		if !supportedParamType(p.GoType) {
			return nil, fmt.Errorf("unsupported parameter type %s", at)
		}
		d.Params = append(d.Params, p)
	}

	d.Description = synthesizeDescription(d)
	return d, nil
}

// structParams flattens the exported fields of a struct argument into
// parameters, following encoding/json semantics for names, embedding and
// omitempty.
func structParams(st reflect.Type) []Param {
	var params []Param
	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Anonymous {
			et := f.Type
			if et.Kind() == reflect.Ptr {
				et = et.Elem()
			}
			if et.Kind() == reflect.Struct {
				params = append(params, structParams(et)...)
				continue
			}
		}

		name := f.Name
		omitempty := false
		if tag, ok := f.Tag.Lookup("json"); ok {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, p := range parts[1:] {
				if p == "omitempty" {
					omitempty = true
				}
			}
		}

		params = append(params, Param{
			Name:     name,
			Type:     jsonTypeOf(f.Type),
			Required: !omitempty && f.Type.Kind() != reflect.Ptr,
			GoType:   f.Type,
			Index:    len(params),
		})
	}
	return params
}

func synthesizeDescription(d *Descriptor) string {
	verb := "Call"
	switch d.Class {
	case ClassSafe:
		verb = "Read from"
	case ClassMutating:
		verb = "Modify state via"
	case ClassDestructive:
		verb = "Destructive operation"
	}
	return fmt.Sprintf("%s %s (%s SDK, %d parameters).", verb, d.Name, d.Family, len(d.Params))
}

func skipMethod(name string) bool {
	for _, prefix := range skipMethodPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func isAccessor(name string, ft reflect.Type) bool {
	if lifecycleMethods[name] {
		return false
	}
	if Classify(name).Dangerous() {
		return false
	}
	if ft.NumIn() != 0 || ft.NumOut() != 1 {
		return false
	}
	switch ft.Out(0).Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Struct:
		return true
	}
	return false
}

func hasExportedMethods(v reflect.Value) bool {
	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		if t.Method(i).IsExported() && !skipMethod(t.Method(i).Name) {
			return true
		}
	}
	return false
}

func supportedParamType(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return false
	}
	return true
}

// jsonTypeOf maps a Go type to its JSON Schema type tag. Unknown shapes
// degrade to "" (any) rather than failing the build.
func jsonTypeOf(t reflect.Type) string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == reflect.TypeOf(time.Time{}) || t == reflect.TypeOf(time.Duration(0)) {
		return "string"
	}
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return ""
	}
}
