package query

import (
	"encoding/json"
	"fmt"
)

// Projection maps field names to a selection directive. In JSON each value is
// one of:
//
//	true               include the field as-is
//	false              exclude the field (a documented no-op on targets
//	                   without exclusion syntax)
//	"some.path"        alias: emit the field under this name, reading the
//	                   given path
//	{...}              nested projection for a sub-object
//	{"fn": ..., "args": [...]}   computed-function descriptor
//	{"expand": true, "projection": {...}}   reference-expansion descriptor
type Projection map[string]Field

// FieldKind identifies which variant of a projection Field is populated.
type FieldKind int

const (
	FieldInvalid FieldKind = iota
	FieldInclude
	FieldExclude
	FieldNested
	FieldAlias
	FieldFunc
	FieldExpand
)

// FuncExpr is a computed-field descriptor: a named backend function applied
// to literal arguments. Arguments pass through the target's value formatter
// and are parameterized like filter values.
type FuncExpr struct {
	Name string `json:"fn"`
	Args []any  `json:"args,omitempty"`
}

// ExpandSpec marks a reference field for resolution, optionally with a
// projection over the expanded document.
type ExpandSpec struct {
	Projection Projection `json:"projection,omitempty"`
}

// Field is one projection directive, a tagged variant dispatched by shape.
// Exactly one of the variants may be populated.
type Field struct {
	Include *bool
	Nested  Projection
	Alias   string
	Fn      *FuncExpr
	Expand  *ExpandSpec
}

// Kind reports which variant of the field is populated.
func (f *Field) Kind() (FieldKind, error) {
	populated := 0
	kind := FieldInvalid

	if f.Include != nil {
		populated++
		if *f.Include {
			kind = FieldInclude
		} else {
			kind = FieldExclude
		}
	}
	if f.Nested != nil {
		populated++
		kind = FieldNested
	}
	if f.Alias != "" {
		populated++
		kind = FieldAlias
	}
	if f.Fn != nil {
		populated++
		kind = FieldFunc
	}
	if f.Expand != nil {
		populated++
		kind = FieldExpand
	}

	switch populated {
	case 0:
		return FieldInvalid, &StructuralError{Reason: "projection field has no populated variant"}
	case 1:
		return kind, nil
	default:
		return FieldInvalid, &StructuralError{Reason: "projection field populates more than one variant"}
	}
}

// Include is a convenience constructor for a plain field inclusion.
func Include() Field { b := true; return Field{Include: &b} }

// Exclude is a convenience constructor for a field exclusion.
func Exclude() Field { b := false; return Field{Include: &b} }

// UnmarshalJSON dispatches the projection value by JSON shape.
func (f *Field) UnmarshalJSON(data []byte) error {
	*f = Field{}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		f.Include = &b
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			return fmt.Errorf("projection alias must not be empty")
		}
		f.Alias = s
		return nil
	}

	var shape map[string]json.RawMessage
	if err := json.Unmarshal(data, &shape); err != nil {
		return fmt.Errorf("projection value must be a boolean, string, or object")
	}

	if _, ok := shape["fn"]; ok {
		fn := &FuncExpr{}
		if err := json.Unmarshal(data, fn); err != nil {
			return err
		}
		if fn.Name == "" {
			return fmt.Errorf("computed field descriptor has an empty fn name")
		}
		f.Fn = fn
		return nil
	}

	if raw, ok := shape["expand"]; ok {
		var expand bool
		if err := json.Unmarshal(raw, &expand); err != nil || !expand {
			return fmt.Errorf("expand descriptor requires expand: true")
		}
		spec := &ExpandSpec{}
		if sub, ok := shape["projection"]; ok {
			if err := json.Unmarshal(sub, &spec.Projection); err != nil {
				return err
			}
		}
		f.Expand = spec
		return nil
	}

	nested := Projection{}
	if err := json.Unmarshal(data, &nested); err != nil {
		return err
	}
	f.Nested = nested
	return nil
}

// MarshalJSON emits the same shapes UnmarshalJSON accepts.
func (f Field) MarshalJSON() ([]byte, error) {
	kind, err := f.Kind()
	if err != nil {
		return nil, err
	}
	switch kind {
	case FieldInclude, FieldExclude:
		return json.Marshal(*f.Include)
	case FieldAlias:
		return json.Marshal(f.Alias)
	case FieldNested:
		return json.Marshal(f.Nested)
	case FieldFunc:
		return json.Marshal(f.Fn)
	case FieldExpand:
		out := map[string]any{"expand": true}
		if f.Expand.Projection != nil {
			out["projection"] = f.Expand.Projection
		}
		return json.Marshal(out)
	}
	return nil, &StructuralError{Reason: "unmarshalable projection field"}
}
