package sqlstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncklrs/contentbridge-sub000/pkg/query"
)

// compileCondition renders one condition node, or "" when it degraded to
// nothing. The SQL target expresses the full boolean algebra natively, so
// degrades only come from unknown operators and unrepresentable values.
func (c *Compiler) compileCondition(cond *query.Condition, b *builder, depth int) (string, error) {
	if depth > query.MaxTreeDepth {
		return "", &query.StructuralError{Reason: fmt.Sprintf("filter nesting exceeds %d levels", query.MaxTreeDepth)}
	}

	kind, err := cond.Kind()
	if err != nil {
		return "", err
	}

	switch kind {
	case query.KindLeaf:
		return c.compileLeaf(cond, b)

	case query.KindAnd:
		parts, err := c.compileGroup(cond.And, b, depth)
		if err != nil {
			return "", err
		}
		switch len(parts) {
		case 0:
			return "", nil
		case 1:
			return parts[0], nil
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil

	case query.KindOr:
		if len(cond.Or) == 0 {
			b.notice(query.NoticeEmptyOr, "", "", "empty or group dropped; it constrains nothing")
			return "", nil
		}
		nargs, nidx := len(b.args), b.idx
		parts, err := c.compileGroup(cond.Or, b, depth)
		if err != nil {
			return "", err
		}
		// Dropping one OR branch would narrow the union; drop the group. The
		// arguments its surviving branches bound must go with it, or the
		// argument list would carry values no placeholder references.
		if len(parts) != len(cond.Or) {
			b.args = b.args[:nargs]
			b.idx = nidx
			b.notice(query.NoticeNarrowedOr, "", "",
				"an or branch could not be compiled; the whole or group was dropped")
			return "", nil
		}
		if len(parts) == 1 {
			return parts[0], nil
		}
		return "(" + strings.Join(parts, " OR ") + ")", nil

	case query.KindNot:
		inner, err := c.compileCondition(cond.Not, b, depth+1)
		if err != nil {
			return "", err
		}
		if inner == "" {
			b.notice(query.NoticeUnsupportedNot, "", "",
				"negated condition could not be compiled; the not group was dropped")
			return "", nil
		}
		return "NOT (" + inner + ")", nil
	}
	return "", &query.StructuralError{Reason: "unreachable condition kind"}
}

func (c *Compiler) compileGroup(conds []query.Condition, b *builder, depth int) ([]string, error) {
	parts := make([]string, 0, len(conds))
	for i := range conds {
		clause, err := c.compileCondition(&conds[i], b, depth+1)
		if err != nil {
			return nil, err
		}
		if clause != "" {
			parts = append(parts, clause)
		}
	}
	return parts, nil
}

func (c *Compiler) compileLeaf(cond *query.Condition, b *builder) (string, error) {
	if cond.Field != "" && !query.ValidFieldPath(cond.Field) {
		return "", &query.StructuralError{Field: cond.Field, Reason: "field name is not a valid field path"}
	}

	if !cond.Operator.Unary() {
		if err := query.CheckLiteral(cond.Value); err != nil {
			b.notice(query.NoticeInvalidValue, cond.Field, cond.Operator, err.Error())
			return "", nil
		}
	}

	switch cond.Operator {
	case query.OpEqual:
		if cond.Value == nil {
			return nullCheck(cond.Field, true), nil
		}
		return compareClause(cond.Field, "=", cond.Value, b), nil
	case query.OpNotEqual:
		if cond.Value == nil {
			return nullCheck(cond.Field, false), nil
		}
		return compareClause(cond.Field, "<>", cond.Value, b), nil
	case query.OpGreaterThan:
		return compareClause(cond.Field, ">", cond.Value, b), nil
	case query.OpGreaterOrEqual:
		return compareClause(cond.Field, ">=", cond.Value, b), nil
	case query.OpLessThan:
		return compareClause(cond.Field, "<", cond.Value, b), nil
	case query.OpLessOrEqual:
		return compareClause(cond.Field, "<=", cond.Value, b), nil

	case query.OpIn:
		return membershipClause(cond.Field, cond.Value, false, b), nil
	case query.OpNotIn:
		return membershipClause(cond.Field, cond.Value, true, b), nil

	case query.OpContains:
		s, ok := cond.Value.(string)
		if !ok {
			b.notice(query.NoticeInvalidValue, cond.Field, cond.Operator,
				"JSONB containment matches string elements only")
			return "", nil
		}
		return jsonExpr(cond.Field) + " ? " + b.bind(s), nil
	case query.OpContainsAny:
		return c.containmentList(cond, "?|", b)
	case query.OpContainsAll:
		return c.containmentList(cond, "?&", b)

	case query.OpMatch:
		return c.likeClause(cond, "%", "%", b)
	case query.OpStartsWith:
		return c.likeClause(cond, "", "%", b)
	case query.OpEndsWith:
		return c.likeClause(cond, "%", "", b)

	case query.OpDefined:
		return nullCheck(cond.Field, false), nil
	case query.OpUndefined:
		return nullCheck(cond.Field, true), nil

	case query.OpReferences:
		id, ok := cond.Value.(string)
		if !ok {
			b.notice(query.NoticeInvalidValue, cond.Field, cond.Operator, "references requires a string document ID")
			return "", nil
		}
		if cond.Field == "" {
			// refs carries every reference ID extracted from the body.
			return b.bind(id) + " = ANY(refs)", nil
		}
		return "data #>> '{" + strings.ReplaceAll(cond.Field, ".", ",") + ",_ref}' = " + b.bind(id), nil
	}

	b.notice(query.NoticeUnknownOperator, cond.Field, cond.Operator,
		fmt.Sprintf("operator %q has no document-store syntax; the condition was dropped", cond.Operator))
	return "", nil
}

func (c *Compiler) containmentList(cond *query.Condition, op string, b *builder) (string, error) {
	elems, ok := query.Strings(cond.Value)
	if !ok {
		b.notice(query.NoticeInvalidValue, cond.Field, cond.Operator,
			"JSONB containment matches string elements only")
		return "", nil
	}
	return jsonExpr(cond.Field) + " " + op + " " + b.bind(elems), nil
}

func (c *Compiler) likeClause(cond *query.Condition, prefix, suffix string, b *builder) (string, error) {
	s, ok := cond.Value.(string)
	if !ok {
		b.notice(query.NoticeInvalidValue, cond.Field, cond.Operator,
			fmt.Sprintf("%s requires a string value", cond.Operator))
		return "", nil
	}
	return textExpr(cond.Field) + " ILIKE " + b.bind(prefix+escapeLike(s)+suffix), nil
}

// compareClause renders a typed comparison. System fields compare on their
// columns; JSONB fields extract text and cast according to the literal's
// type so numeric and temporal ordering behave.
func compareClause(field, op string, value any, b *builder) string {
	if col, ok := systemColumns[field]; ok {
		return col + " " + op + " " + b.bind(value)
	}
	expr := textExpr(field)
	switch value.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		expr = "(" + expr + ")::numeric"
	case bool:
		expr = "(" + expr + ")::boolean"
	case time.Time:
		expr = "(" + expr + ")::timestamptz"
	}
	return expr + " " + op + " " + b.bind(value)
}

func membershipClause(field string, value any, negate bool, b *builder) string {
	list := query.List(value)
	var expr, arg string
	if col, ok := systemColumns[field]; ok {
		expr = col
		arg = b.bind(list)
	} else {
		// JSONB text extraction compares as text; format elements to their
		// canonical text form. nil has no text form, so null membership
		// cannot ride along in the list.
		op := query.OpIn
		if negate {
			op = query.OpNotIn
		}
		expr = textExpr(field)
		strs := make([]string, 0, len(list))
		for _, v := range list {
			if v == nil {
				b.notice(query.NoticeInvalidValue, field, op,
					"null in a membership list on a data field was dropped; test for null with defined/undefined instead")
				continue
			}
			strs = append(strs, fmt.Sprint(v))
		}
		arg = b.bind(strs)
	}
	if negate {
		return expr + " <> ALL(" + arg + ")"
	}
	return expr + " = ANY(" + arg + ")"
}

func nullCheck(field string, wantNull bool) string {
	var expr string
	if col, ok := systemColumns[field]; ok {
		expr = col
	} else {
		expr = jsonExpr(field)
	}
	if wantNull {
		return expr + " IS NULL"
	}
	return expr + " IS NOT NULL"
}

// escapeLike escapes the LIKE metacharacters in a user literal.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
