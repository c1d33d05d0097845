package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/toolbridge/sdk-mcp/pkg/catalog"
	"github.com/toolbridge/sdk-mcp/pkg/result"
)

var durationType = reflect.TypeOf(time.Duration(0))

// coerceArgs turns a JSON argument mapping into the reflect call frame for the
// descriptor, excluding the leading context argument. Missing required
// parameters, unknown parameters and mistyped values all fail with
// invalid_argument before anything is invoked; variadic callables tolerate
// unknown extras instead.
func coerceArgs(d *catalog.Descriptor, args map[string]any) ([]reflect.Value, *result.Failure) {
	if d.ArgStruct != nil {
		return coerceStruct(d, args)
	}
	return coercePositional(d, args)
}

func coerceStruct(d *catalog.Descriptor, args map[string]any) ([]reflect.Value, *result.Failure) {
	for _, p := range d.Params {
		if !p.Required {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			return nil, missingParam(d, p.Name)
		}
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return nil, result.NewFailure(result.KindInvalidArgument, result.OriginExecution,
			"arguments for %s are not encodable: %v", d.Name, err)
	}

	target := reflect.New(d.ArgStruct)
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target.Interface()); err != nil {
		return nil, decodeFailure(d, err)
	}

	if d.ArgStructByPointer() {
		return []reflect.Value{target}, nil
	}
	return []reflect.Value{target.Elem()}, nil
}

func coercePositional(d *catalog.Descriptor, args map[string]any) ([]reflect.Value, *result.Failure) {
	// Variadic callables absorb variable argument lists, so unknown extras
	// are dropped rather than rejected.
	if !d.Variadic {
		if f := checkUnknown(d, args); f != nil {
			return nil, f
		}
	}

	var frame []reflect.Value
	for _, p := range d.Params {
		raw, present := args[p.Name]
		if !present {
			if p.Required {
				return nil, missingParam(d, p.Name)
			}
			if !(d.Variadic && p.Index == len(d.Params)-1) {
				frame = append(frame, reflect.Zero(p.GoType))
			}
			continue
		}

		if d.Variadic && p.Index == len(d.Params)-1 {
			items, ok := raw.([]any)
			if !ok {
				return nil, result.NewFailure(result.KindInvalidArgument, result.OriginExecution,
					"parameter %q of %s must be an array", p.Name, d.Name)
			}
			elem := p
			elem.GoType = p.GoType.Elem()
			for _, item := range items {
				v, f := coerceValue(d, elem, item)
				if f != nil {
					return nil, f
				}
				frame = append(frame, v)
			}
			continue
		}

		v, f := coerceValue(d, p, raw)
		if f != nil {
			return nil, f
		}
		frame = append(frame, v)
	}
	return frame, nil
}

// coerceValue converts one JSON value to the parameter's Go type via an
// encode/decode round trip, so the usual JSON conversion rules apply.
func coerceValue(d *catalog.Descriptor, p catalog.Param, raw any) (reflect.Value, *result.Failure) {
	if p.GoType.Kind() == reflect.Interface {
		if raw == nil {
			return reflect.Zero(p.GoType), nil
		}
		return reflect.ValueOf(raw), nil
	}

	if p.GoType == durationType {
		if s, ok := raw.(string); ok {
			dur, err := time.ParseDuration(s)
			if err != nil {
				return reflect.Value{}, result.NewFailure(result.KindInvalidArgument, result.OriginExecution,
					"parameter %q of %s: invalid duration %q", p.Name, d.Name, s)
			}
			return reflect.ValueOf(dur), nil
		}
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return reflect.Value{}, result.NewFailure(result.KindInvalidArgument, result.OriginExecution,
			"parameter %q of %s is not encodable: %v", p.Name, d.Name, err)
	}
	target := reflect.New(p.GoType)
	if err := json.Unmarshal(encoded, target.Interface()); err != nil {
		return reflect.Value{}, result.NewFailure(result.KindInvalidArgument, result.OriginExecution,
			"parameter %q of %s: cannot convert %s to %s", p.Name, d.Name, jsonTypeName(raw), p.GoType).
			WithHint(fmt.Sprintf("expected a JSON %s", p.Type))
	}
	return target.Elem(), nil
}

// coercedArgs renders the coerced call frame back into an argument mapping,
// so a dry run describes the call exactly as it would have been made.
func coercedArgs(d *catalog.Descriptor, frame []reflect.Value, args map[string]any) map[string]any {
	if d.ArgStruct != nil && len(frame) == 1 {
		v := frame[0]
		if v.Kind() == reflect.Ptr {
			v = v.Elem()
		}
		out := map[string]any{}
		if raw, err := json.Marshal(v.Interface()); err == nil {
			_ = json.Unmarshal(raw, &out)
		}
		return out
	}

	out := make(map[string]any, len(d.Params))
	i := 0
	for _, p := range d.Params {
		if d.Variadic && p.Index == len(d.Params)-1 {
			if _, present := args[p.Name]; !present {
				break
			}
			tail := make([]any, 0, len(frame)-i)
			for ; i < len(frame); i++ {
				tail = append(tail, frame[i].Interface())
			}
			out[p.Name] = tail
			break
		}
		if i < len(frame) {
			out[p.Name] = frame[i].Interface()
			i++
		}
	}
	return out
}

func checkUnknown(d *catalog.Descriptor, args map[string]any) *result.Failure {
	var unknown []string
	for name := range args {
		if _, ok := d.Param(name); !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return result.NewFailure(result.KindInvalidArgument, result.OriginExecution,
		"unknown parameters for %s: %s", d.Name, strings.Join(unknown, ", "))
}

func missingParam(d *catalog.Descriptor, name string) *result.Failure {
	return result.NewFailure(result.KindInvalidArgument, result.OriginExecution,
		"missing required parameter %q for %s", name, d.Name)
}

func decodeFailure(d *catalog.Descriptor, err error) *result.Failure {
	msg := err.Error()
	if strings.Contains(msg, "unknown field") {
		return result.NewFailure(result.KindInvalidArgument, result.OriginExecution,
			"%s: %s", d.Name, msg)
	}
	return result.NewFailure(result.KindInvalidArgument, result.OriginExecution,
		"arguments for %s do not match its signature: %v", d.Name, err)
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
