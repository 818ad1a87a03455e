package expr

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ncklrs/contentbridge-sub000/pkg/query"
)

// identityFields are always projected so downstream document reconstruction
// has the system envelope, regardless of what the caller selected.
var identityFields = []string{"_id", "_type", "_createdAt", "_updatedAt"}

// compileProjection renders a field-group: {_id, _type, ..., title, "hero":
// mainImage, author->{name}}. Output is deterministic: identity fields first,
// then caller fields in sorted order.
func (c *Compiler) compileProjection(p query.Projection, st *state, depth int) (string, error) {
	if depth > query.MaxTreeDepth {
		return "", &query.StructuralError{Reason: fmt.Sprintf("projection nesting exceeds %d levels", query.MaxTreeDepth)}
	}

	parts := make([]string, 0, len(p)+len(identityFields))
	if depth == 0 {
		parts = append(parts, identityFields...)
	}

	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !query.ValidFieldPath(name) {
			return "", &query.StructuralError{Field: name, Reason: "projection field name is not a valid field path"}
		}
		if depth == 0 && isIdentityField(name) {
			continue
		}

		field := p[name]
		kind, err := field.Kind()
		if err != nil {
			return "", err
		}

		switch kind {
		case query.FieldInclude:
			parts = append(parts, fieldPath(name))

		case query.FieldExclude:
			st.notice(query.NoticeUnsupportedExclusion, name, "",
				"the expression target has no field-exclusion syntax; the exclusion was ignored")

		case query.FieldNested:
			sub, err := c.compileProjection(field.Nested, st, depth+1)
			if err != nil {
				return "", err
			}
			parts = append(parts, fieldPath(name)+sub)

		case query.FieldAlias:
			if !query.ValidFieldPath(field.Alias) {
				return "", &query.StructuralError{Field: name, Reason: "projection alias path is not a valid field path"}
			}
			parts = append(parts, quoteString(name)+": "+fieldPath(field.Alias))

		case query.FieldFunc:
			frag, ok := c.compileFunc(name, field.Fn, st)
			if ok {
				parts = append(parts, frag)
			}

		case query.FieldExpand:
			if field.Expand.Projection == nil {
				parts = append(parts, fieldPath(name)+"->")
				continue
			}
			sub, err := c.compileProjection(field.Expand.Projection, st, depth+1)
			if err != nil {
				return "", err
			}
			parts = append(parts, fieldPath(name)+"->"+sub)
		}
	}

	return "{" + strings.Join(parts, ", ") + "}", nil
}

// compileFunc renders a computed-field entry, parameterizing every argument.
// An invalid argument drops the single entry, not the projection.
func (c *Compiler) compileFunc(name string, fn *query.FuncExpr, st *state) (string, bool) {
	if !query.ValidFieldPath(fn.Name) {
		st.notice(query.NoticeInvalidValue, name, "", "computed-function name is not a valid identifier")
		return "", false
	}
	args := make([]string, 0, len(fn.Args))
	for _, arg := range fn.Args {
		if err := query.CheckLiteral(arg); err != nil {
			st.notice(query.NoticeInvalidValue, name, "", "computed-function argument: "+err.Error())
			return "", false
		}
		args = append(args, st.bind(arg))
	}
	return quoteString(name) + ": " + fn.Name + "(" + strings.Join(args, ", ") + ")", true
}

func isIdentityField(name string) bool {
	switch fieldPath(name) {
	case "_id", "_type", "_createdAt", "_updatedAt":
		return true
	}
	return false
}
