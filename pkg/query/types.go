// Package query defines the backend-agnostic content query model shared by
// all ContentBridge target compilers: the filter condition tree, the operator
// vocabulary, field projections, ordering and pagination, and the structured
// degrade notices that accompany every compilation result.
package query

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MaxTreeDepth caps the nesting depth of filter conditions and projections a
// compiler will walk. Deeper trees fail compilation with a structural error
// instead of risking stack exhaustion on attacker-supplied input.
const MaxTreeDepth = 64

// TypeList holds one or more document type names. It accepts either a single
// JSON string or a JSON array of strings.
type TypeList []string

// UnmarshalJSON implements json.Unmarshaler.
func (t *TypeList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*t = TypeList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("type must be a string or an array of strings")
	}
	*t = TypeList(many)
	return nil
}

// ResolveRefs controls reference-resolution depth. It accepts JSON true/false
// or an integer depth; true maps to depth 1.
type ResolveRefs int

// UnmarshalJSON implements json.Unmarshaler.
func (r *ResolveRefs) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*r = 1
		} else {
			*r = 0
		}
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil || n < 0 {
		return fmt.Errorf("resolveReferences must be a boolean or a non-negative integer")
	}
	*r = ResolveRefs(n)
	return nil
}

// Order is a single sort directive. Field order in Config.OrderBy is
// significant: the first entry is the primary sort key.
type Order struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending,omitempty"`
}

// Config is the sole input to every target compiler. It describes a content
// query without reference to any backend's native syntax.
type Config struct {
	// Types names the document type(s) to query. Targets that cannot express
	// multi-type queries compile only the first type and record a notice.
	Types TypeList `json:"type,omitempty"`

	// Filter is an ordered list of conditions, implicitly AND-ed together.
	// An empty list compiles to no filter clause at all.
	Filter []Condition `json:"filter,omitempty"`

	// Projection selects which fields the result documents carry. Nil means
	// the backend's full document shape.
	Projection Projection `json:"projection,omitempty"`

	OrderBy []Order `json:"orderBy,omitempty"`

	// Limit and Offset define the half-open result range
	// [Offset, Offset+Limit). Limit 0 means "no explicit limit".
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// Cursor is an opaque pagination token. Targets without native cursor
	// support ignore it and record a notice; none may invent range semantics
	// from it.
	Cursor string `json:"cursor,omitempty"`

	Locale         string `json:"locale,omitempty"`
	FallbackLocale string `json:"fallbackLocale,omitempty"`

	// ResolveReferences requests reference expansion to the given depth.
	ResolveReferences ResolveRefs `json:"resolveReferences,omitempty"`

	// Params is passed through to the compiled output untouched. Compilers
	// never interpret it.
	Params map[string]any `json:"params,omitempty"`
}

// ConditionKind identifies which variant of a Condition is populated.
type ConditionKind int

const (
	KindInvalid ConditionKind = iota
	KindLeaf
	KindAnd
	KindOr
	KindNot
)

// Condition is one node of the filter tree: either a leaf comparison
// (Field/Operator/Value) or exactly one of the And/Or/Not combinators.
// Populating more than one variant, or none, is a structural error.
type Condition struct {
	Field    string   `json:"field,omitempty"`
	Operator Operator `json:"operator,omitempty"`
	Value    any      `json:"value,omitempty"`

	And []Condition `json:"and,omitempty"`
	Or  []Condition `json:"or,omitempty"`
	Not *Condition  `json:"not,omitempty"`
}

// Kind reports which variant of the condition is populated. It returns
// KindInvalid with a *StructuralError when zero or more than one variant is
// present.
//
// A leaf with an empty Field is valid only for the references operator, which
// may match references anywhere in a document.
func (c *Condition) Kind() (ConditionKind, error) {
	populated := 0
	kind := KindInvalid

	if c.Field != "" || c.Operator != "" {
		populated++
		kind = KindLeaf
	}
	if c.And != nil {
		populated++
		kind = KindAnd
	}
	if c.Or != nil {
		populated++
		kind = KindOr
	}
	if c.Not != nil {
		populated++
		kind = KindNot
	}

	switch populated {
	case 0:
		return KindInvalid, &StructuralError{Reason: "condition has no populated variant"}
	case 1:
	default:
		return KindInvalid, &StructuralError{Reason: "condition populates more than one variant"}
	}

	if kind == KindLeaf {
		if c.Operator == "" {
			return KindInvalid, &StructuralError{Field: c.Field, Reason: "leaf condition has no operator"}
		}
		if c.Field == "" && c.Operator != OpReferences {
			return KindInvalid, &StructuralError{Reason: fmt.Sprintf("leaf condition with operator %q has no field", c.Operator)}
		}
	}
	return kind, nil
}

// StructuralError reports a malformed query that cannot be compiled without
// guessing intent. Structural errors fail the whole compilation before any
// partial output is produced.
type StructuralError struct {
	Field  string
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid query: %s (field %q)", e.Reason, e.Field)
	}
	return "invalid query: " + e.Reason
}

// DegradeError is returned by compilers running in strict mode when a
// compilation would otherwise succeed with degrade notices.
type DegradeError struct {
	Notices []Notice
}

func (e *DegradeError) Error() string {
	if len(e.Notices) == 1 {
		return "query degraded in strict mode: " + e.Notices[0].Reason
	}
	return fmt.Sprintf("query degraded in strict mode: %d constructs could not be compiled natively", len(e.Notices))
}
