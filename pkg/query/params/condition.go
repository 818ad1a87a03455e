package params

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ncklrs/contentbridge-sub000/pkg/query"
)

// operatorSuffix is the fixed operator-to-key-suffix table. Operators absent
// here degrade the single leaf they appear on.
var operatorSuffix = map[query.Operator]string{
	query.OpEqual:          "",
	query.OpNotEqual:       "[ne]",
	query.OpGreaterThan:    "[gt]",
	query.OpGreaterOrEqual: "[gte]",
	query.OpLessThan:       "[lt]",
	query.OpLessOrEqual:    "[lte]",
	query.OpIn:             "[in]",
	query.OpNotIn:          "[nin]",
	query.OpContains:       "[in]",
	query.OpContainsAny:    "[in]",
	query.OpContainsAll:    "[all]",
	query.OpMatch:          "[match]",
}

// compileCondition writes one condition node into the flat map. Nested AND
// groups merge into the same map; OR and NOT carry the degrade policies
// described on each branch below.
func (c *Compiler) compileCondition(cond *query.Condition, st *state, depth int) error {
	if depth > query.MaxTreeDepth {
		return &query.StructuralError{Reason: fmt.Sprintf("filter nesting exceeds %d levels", query.MaxTreeDepth)}
	}

	kind, err := cond.Kind()
	if err != nil {
		return err
	}

	switch kind {
	case query.KindLeaf:
		c.compileLeaf(cond, st)
		return nil

	case query.KindAnd:
		// Flat keys AND naturally; child pairs merge into the same map.
		for i := range cond.And {
			if err := c.compileCondition(&cond.And[i], st, depth+1); err != nil {
				return err
			}
		}
		return nil

	case query.KindOr:
		return c.compileOr(cond.Or, st, depth)

	case query.KindNot:
		return c.compileNot(cond.Not, st, depth)
	}
	return &query.StructuralError{Reason: "unreachable condition kind"}
}

// compileOr handles the target's biggest gap: a flat map cannot express a
// union across different fields. An all-equality OR over one field collapses
// to that field's native [in] form; anything else compiles only the first
// branch and records exactly one narrowed-or notice.
func (c *Compiler) compileOr(branches []query.Condition, st *state, depth int) error {
	if len(branches) == 0 {
		st.notice(query.NoticeEmptyOr, "", "", "empty or group dropped; it constrains nothing")
		return nil
	}

	if field, values, ok := sameFieldEqualities(branches); ok {
		formatted, err := formatValues(values)
		if err != nil {
			st.notice(query.NoticeInvalidValue, field, query.OpIn, err.Error())
			return nil
		}
		st.set(fieldKey(field)+"[in]", formatted)
		return nil
	}

	if err := c.compileCondition(&branches[0], st, depth+1); err != nil {
		return err
	}
	st.notice(query.NoticeNarrowedOr, "", "",
		fmt.Sprintf("or across independent conditions has no flat-map form; compiled the first branch and dropped %d more, so results may be a subset of the intended set", len(branches)-1))
	return nil
}

// compileNot negates cleanly only for a simple equality leaf, which rewrites
// to [ne]. Any richer inner condition degrades.
func (c *Compiler) compileNot(inner *query.Condition, st *state, depth int) error {
	if depth+1 > query.MaxTreeDepth {
		return &query.StructuralError{Reason: fmt.Sprintf("filter nesting exceeds %d levels", query.MaxTreeDepth)}
	}
	kind, err := inner.Kind()
	if err != nil {
		return err
	}
	if kind == query.KindLeaf && inner.Operator == query.OpEqual && query.ValidFieldPath(inner.Field) {
		if formatted, err := formatValue(inner.Value); err == nil {
			st.set(fieldKey(inner.Field)+"[ne]", formatted)
			return nil
		}
	}
	st.notice(query.NoticeUnsupportedNot, "", "",
		"not compiles natively only over a simple equality; the negation was dropped and may require client-side filtering")
	return nil
}

func (c *Compiler) compileLeaf(cond *query.Condition, st *state) {
	if cond.Field != "" && !query.ValidFieldPath(cond.Field) {
		st.notice(query.NoticeInvalidValue, cond.Field, cond.Operator, "field name is not a valid field path")
		return
	}

	switch cond.Operator {
	case query.OpDefined:
		st.set(fieldKey(cond.Field)+"[exists]", "true")
		return
	case query.OpUndefined:
		st.set(fieldKey(cond.Field)+"[exists]", "false")
		return
	case query.OpReferences:
		id, err := formatValue(cond.Value)
		if err != nil {
			st.notice(query.NoticeInvalidValue, cond.Field, cond.Operator, err.Error())
			return
		}
		st.set("links_to_entry", id)
		if cond.Field != "" {
			st.notice(query.NoticeUnscopedReference, cond.Field, cond.Operator,
				"the parameter-map target matches links anywhere in the document; the field scope was dropped")
		}
		return
	}

	suffix, ok := operatorSuffix[cond.Operator]
	if !ok {
		st.notice(query.NoticeUnknownOperator, cond.Field, cond.Operator,
			fmt.Sprintf("operator %q has no parameter-map syntax; the condition was dropped", cond.Operator))
		return
	}

	var formatted string
	var err error
	switch cond.Operator {
	case query.OpIn, query.OpNotIn, query.OpContainsAny, query.OpContainsAll:
		formatted, err = formatValues(query.List(cond.Value))
	default:
		formatted, err = formatValue(cond.Value)
	}
	if err != nil {
		st.notice(query.NoticeInvalidValue, cond.Field, cond.Operator, err.Error())
		return
	}
	st.set(fieldKey(cond.Field)+suffix, formatted)
}

// sameFieldEqualities reports whether every branch is an equality leaf on the
// same field, returning that field and the branch values.
func sameFieldEqualities(branches []query.Condition) (string, []any, bool) {
	field := ""
	values := make([]any, 0, len(branches))
	for i := range branches {
		b := &branches[i]
		kind, err := b.Kind()
		if err != nil || kind != query.KindLeaf || b.Operator != query.OpEqual {
			return "", nil, false
		}
		if field == "" {
			field = b.Field
		} else if b.Field != field {
			return "", nil, false
		}
		values = append(values, b.Value)
	}
	return field, values, field != "" && query.ValidFieldPath(field)
}

// formatValue renders a scalar literal as a parameter string.
func formatValue(v any) (string, error) {
	switch vv := v.(type) {
	case string:
		return vv, nil
	case bool:
		return strconv.FormatBool(vv), nil
	case int:
		return strconv.Itoa(vv), nil
	case int32:
		return strconv.FormatInt(int64(vv), 10), nil
	case int64:
		return strconv.FormatInt(vv, 10), nil
	case float32:
		return strconv.FormatFloat(float64(vv), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64), nil
	case time.Time:
		return vv.UTC().Format(time.RFC3339), nil
	case fmt.Stringer:
		return vv.String(), nil
	case nil:
		return "", fmt.Errorf("null is not representable as a parameter value; use defined/undefined")
	}
	return "", fmt.Errorf("value of type %T is not representable as a parameter value", v)
}

// formatValues renders a list literal as the comma-joined form the [in]/[nin]
// /[all] suffixes expect.
func formatValues(values []any) (string, error) {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		s, err := formatValue(v)
		if err != nil {
			return "", err
		}
		if strings.Contains(s, ",") {
			return "", fmt.Errorf("list element %q contains a comma and cannot join a comma-separated parameter", s)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ","), nil
}
