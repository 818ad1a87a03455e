package wheretree

import (
	"fmt"

	"github.com/ncklrs/contentbridge-sub000/pkg/query"
)

// operatorName is the fixed operator table for the where-tree client.
// Operators absent here degrade the single leaf they appear on.
var operatorName = map[query.Operator]string{
	query.OpEqual:          "equals",
	query.OpNotEqual:       "not_equals",
	query.OpGreaterThan:    "greater_than",
	query.OpGreaterOrEqual: "greater_than_equal",
	query.OpLessThan:       "less_than",
	query.OpLessOrEqual:    "less_than_equal",
	query.OpIn:             "in",
	query.OpNotIn:          "not_in",
	query.OpContains:       "contains",
	query.OpContainsAll:    "all",
	query.OpMatch:          "like",
}

// negatedOperator maps an operator to its boolean complement on this client.
// NOT over a leaf rewrites through this table; anything missing degrades.
var negatedOperator = map[query.Operator]string{
	query.OpEqual:          "not_equals",
	query.OpNotEqual:       "equals",
	query.OpGreaterThan:    "less_than_equal",
	query.OpGreaterOrEqual: "less_than",
	query.OpLessThan:       "greater_than_equal",
	query.OpLessOrEqual:    "greater_than",
	query.OpIn:             "not_in",
	query.OpNotIn:          "in",
}

// compileConditions AND-joins the top-level condition list into one tree.
func (c *Compiler) compileConditions(conds []query.Condition, st *state, depth int) (map[string]any, error) {
	nodes := make([]map[string]any, 0, len(conds))
	for i := range conds {
		node, err := c.compileCondition(&conds[i], st, depth)
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, node)
		}
	}
	switch len(nodes) {
	case 0:
		return nil, nil
	case 1:
		return nodes[0], nil
	}
	return map[string]any{"and": toAnySlice(nodes)}, nil
}

// compileCondition renders one node, or nil when it degraded to nothing.
func (c *Compiler) compileCondition(cond *query.Condition, st *state, depth int) (map[string]any, error) {
	if depth > query.MaxTreeDepth {
		return nil, &query.StructuralError{Reason: fmt.Sprintf("filter nesting exceeds %d levels", query.MaxTreeDepth)}
	}

	kind, err := cond.Kind()
	if err != nil {
		return nil, err
	}

	switch kind {
	case query.KindLeaf:
		return c.compileLeaf(cond, st), nil

	case query.KindAnd:
		// An empty AND group is vacuously true and compiles to nothing.
		return c.compileGroup("and", cond.And, st, depth)

	case query.KindOr:
		if len(cond.Or) == 0 {
			st.notice(query.NoticeEmptyOr, "", "", "empty or group dropped; it constrains nothing")
			return nil, nil
		}
		nodes := make([]map[string]any, 0, len(cond.Or))
		for i := range cond.Or {
			node, err := c.compileCondition(&cond.Or[i], st, depth+1)
			if err != nil {
				return nil, err
			}
			if node != nil {
				nodes = append(nodes, node)
			}
		}
		// A dropped OR branch would narrow the union; drop the whole group.
		if len(nodes) != len(cond.Or) {
			st.notice(query.NoticeNarrowedOr, "", "",
				"an or branch could not be compiled; the whole or group was dropped")
			return nil, nil
		}
		if len(nodes) == 1 {
			return nodes[0], nil
		}
		return map[string]any{"or": toAnySlice(nodes)}, nil

	case query.KindNot:
		return c.compileNot(cond.Not, st, depth)
	}
	return nil, &query.StructuralError{Reason: "unreachable condition kind"}
}

func (c *Compiler) compileGroup(op string, conds []query.Condition, st *state, depth int) (map[string]any, error) {
	nodes := make([]map[string]any, 0, len(conds))
	for i := range conds {
		node, err := c.compileCondition(&conds[i], st, depth+1)
		if err != nil {
			return nil, err
		}
		if node != nil {
			nodes = append(nodes, node)
		}
	}
	switch len(nodes) {
	case 0:
		return nil, nil
	case 1:
		return nodes[0], nil
	}
	return map[string]any{op: toAnySlice(nodes)}, nil
}

// compileNot rewrites a negated leaf through the complement table. The client
// has no not combinator, so richer inner conditions degrade.
func (c *Compiler) compileNot(inner *query.Condition, st *state, depth int) (map[string]any, error) {
	if depth+1 > query.MaxTreeDepth {
		return nil, &query.StructuralError{Reason: fmt.Sprintf("filter nesting exceeds %d levels", query.MaxTreeDepth)}
	}
	kind, err := inner.Kind()
	if err != nil {
		return nil, err
	}

	if kind == query.KindLeaf && query.ValidFieldPath(inner.Field) {
		switch inner.Operator {
		case query.OpDefined:
			return map[string]any{inner.Field: map[string]any{"exists": false}}, nil
		case query.OpUndefined:
			return map[string]any{inner.Field: map[string]any{"exists": true}}, nil
		}
		if name, ok := negatedOperator[inner.Operator]; ok {
			if err := query.CheckLiteral(inner.Value); err != nil {
				st.notice(query.NoticeInvalidValue, inner.Field, inner.Operator, err.Error())
				return nil, nil
			}
			value := inner.Value
			if inner.Operator == query.OpIn || inner.Operator == query.OpNotIn {
				value = query.List(value)
			}
			return map[string]any{inner.Field: map[string]any{name: value}}, nil
		}
	}

	st.notice(query.NoticeUnsupportedNot, "", "",
		"the where-tree target has no not combinator and the negated condition has no complement operator; the negation was dropped")
	return nil, nil
}

func (c *Compiler) compileLeaf(cond *query.Condition, st *state) map[string]any {
	if cond.Field != "" && !query.ValidFieldPath(cond.Field) {
		st.notice(query.NoticeInvalidValue, cond.Field, cond.Operator, "field name is not a valid field path")
		return nil
	}

	switch cond.Operator {
	case query.OpDefined:
		return map[string]any{cond.Field: map[string]any{"exists": true}}
	case query.OpUndefined:
		return map[string]any{cond.Field: map[string]any{"exists": false}}
	case query.OpReferences:
		if cond.Field == "" {
			st.notice(query.NoticeUnknownOperator, "", cond.Operator,
				"the where-tree target matches references only on a named relation field; the document-level reference search was dropped")
			return nil
		}
		if err := query.CheckLiteral(cond.Value); err != nil {
			st.notice(query.NoticeInvalidValue, cond.Field, cond.Operator, err.Error())
			return nil
		}
		// Relation fields store the referenced document ID.
		return map[string]any{cond.Field: map[string]any{"equals": cond.Value}}
	}

	name, ok := operatorName[cond.Operator]
	if !ok {
		st.notice(query.NoticeUnknownOperator, cond.Field, cond.Operator,
			fmt.Sprintf("operator %q has no where-tree syntax; the condition was dropped", cond.Operator))
		return nil
	}

	if err := query.CheckLiteral(cond.Value); err != nil {
		st.notice(query.NoticeInvalidValue, cond.Field, cond.Operator, err.Error())
		return nil
	}

	value := cond.Value
	switch cond.Operator {
	case query.OpIn, query.OpNotIn, query.OpContainsAll:
		value = query.List(value)
	}
	return map[string]any{cond.Field: map[string]any{name: value}}
}

func toAnySlice(nodes []map[string]any) []any {
	out := make([]any, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}
