package expr

import (
	"fmt"
	"strings"

	"github.com/ncklrs/contentbridge-sub000/pkg/query"
)

// compileCondition renders one condition node, or "" when the node degraded
// to nothing (the notice is already recorded). Structural problems are
// returned as errors and abort the whole compilation.
func (c *Compiler) compileCondition(cond *query.Condition, st *state, depth int) (string, error) {
	if depth > query.MaxTreeDepth {
		return "", &query.StructuralError{Reason: fmt.Sprintf("filter nesting exceeds %d levels", query.MaxTreeDepth)}
	}

	kind, err := cond.Kind()
	if err != nil {
		return "", err
	}

	switch kind {
	case query.KindLeaf:
		return c.compileLeaf(cond, st)

	case query.KindAnd:
		parts, err := c.compileGroup(cond.And, st, depth)
		if err != nil {
			return "", err
		}
		// An empty AND group is vacuously true and emits nothing.
		switch len(parts) {
		case 0:
			return "", nil
		case 1:
			return parts[0], nil
		}
		return "(" + strings.Join(parts, " && ") + ")", nil

	case query.KindOr:
		if len(cond.Or) == 0 {
			st.notice(query.NoticeEmptyOr, "", "", "empty or group dropped; it constrains nothing")
			return "", nil
		}
		parts, err := c.compileGroup(cond.Or, st, depth)
		if err != nil {
			return "", err
		}
		// Dropping a single OR branch would narrow the union incorrectly, so
		// an OR with any uncompilable branch is dropped whole.
		if len(parts) != len(cond.Or) {
			st.notice(query.NoticeNarrowedOr, "", "", "an or branch could not be compiled; the whole or group was dropped")
			return "", nil
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		return "(" + strings.Join(parts, " || ") + ")", nil

	case query.KindNot:
		inner, err := c.compileCondition(cond.Not, st, depth+1)
		if err != nil {
			return "", err
		}
		if inner == "" {
			st.notice(query.NoticeUnsupportedNot, "", "", "negated condition could not be compiled; the not group was dropped")
			return "", nil
		}
		return "!(" + inner + ")", nil
	}
	return "", &query.StructuralError{Reason: "unreachable condition kind"}
}

func (c *Compiler) compileGroup(conds []query.Condition, st *state, depth int) ([]string, error) {
	parts := make([]string, 0, len(conds))
	for i := range conds {
		frag, err := c.compileCondition(&conds[i], st, depth+1)
		if err != nil {
			return nil, err
		}
		if frag != "" {
			parts = append(parts, frag)
		}
	}
	return parts, nil
}

// compileLeaf renders a single comparison. Every literal is registered as a
// named placeholder; only field paths appear in the query text.
func (c *Compiler) compileLeaf(cond *query.Condition, st *state) (string, error) {
	if cond.Field != "" && !query.ValidFieldPath(cond.Field) {
		return "", &query.StructuralError{Field: cond.Field, Reason: "field name is not a valid field path"}
	}
	path := fieldPath(cond.Field)

	if !cond.Operator.Unary() {
		if err := query.CheckLiteral(cond.Value); err != nil {
			st.notice(query.NoticeInvalidValue, cond.Field, cond.Operator, err.Error())
			return "", nil
		}
	}

	switch cond.Operator {
	case query.OpEqual:
		return path + " == " + st.bind(cond.Value), nil
	case query.OpNotEqual:
		return path + " != " + st.bind(cond.Value), nil
	case query.OpGreaterThan:
		return path + " > " + st.bind(cond.Value), nil
	case query.OpGreaterOrEqual:
		return path + " >= " + st.bind(cond.Value), nil
	case query.OpLessThan:
		return path + " < " + st.bind(cond.Value), nil
	case query.OpLessOrEqual:
		return path + " <= " + st.bind(cond.Value), nil

	case query.OpIn:
		return path + " in " + st.bind(query.List(cond.Value)), nil
	case query.OpNotIn:
		return "!(" + path + " in " + st.bind(query.List(cond.Value)) + ")", nil

	case query.OpContains:
		return st.bind(cond.Value) + " in " + path, nil
	case query.OpContainsAny:
		return "count(" + path + "[@ in " + st.bind(query.List(cond.Value)) + "]) > 0", nil
	case query.OpContainsAll:
		p := st.bind(query.List(cond.Value))
		return "count(" + path + "[@ in " + p + "]) == count(" + p + ")", nil

	case query.OpMatch:
		return path + " match " + st.bind(cond.Value), nil
	case query.OpStartsWith:
		s, ok := cond.Value.(string)
		if !ok {
			st.notice(query.NoticeInvalidValue, cond.Field, cond.Operator, "startsWith requires a string value")
			return "", nil
		}
		return path + " match " + st.bind(s+"*"), nil
	case query.OpEndsWith:
		s, ok := cond.Value.(string)
		if !ok {
			st.notice(query.NoticeInvalidValue, cond.Field, cond.Operator, "endsWith requires a string value")
			return "", nil
		}
		return path + " match " + st.bind("*"+s), nil

	case query.OpDefined:
		return "defined(" + path + ")", nil
	case query.OpUndefined:
		return "!defined(" + path + ")", nil

	case query.OpReferences:
		if cond.Field == "" {
			return "references(" + st.bind(cond.Value) + ")", nil
		}
		return path + "._ref == " + st.bind(cond.Value), nil
	}

	st.notice(query.NoticeUnknownOperator, cond.Field, cond.Operator,
		fmt.Sprintf("operator %q has no expression-target syntax; the condition was dropped", cond.Operator))
	return "", nil
}
