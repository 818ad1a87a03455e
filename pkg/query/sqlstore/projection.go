package sqlstore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ncklrs/contentbridge-sub000/pkg/query"
)

// compileProjection builds the data-column expression of the SELECT list and
// works out the out-of-band resolve depth. Without a projection the full
// JSONB body is returned. An exclusion-only projection uses the native key
// removal operator; an inclusion projection rebuilds the object, which also
// covers aliases and nested sub-selections.
func (c *Compiler) compileProjection(cfg query.Config, b *builder) (string, int, error) {
	depth := int(cfg.ResolveReferences)
	if expandRequested(cfg.Projection) && depth < 1 {
		depth = 1
	}
	if depth > 0 {
		clamped, wasClamped := c.opts.ClampResolveDepth(query.ResolveRefs(depth))
		if wasClamped {
			b.notice(query.NoticeClampedDepth, "", "",
				fmt.Sprintf("requested resolve depth %d exceeds the configured maximum %d", depth, c.opts.MaxResolveDepth))
		}
		depth = clamped
	}

	if cfg.Projection == nil {
		return "data", depth, nil
	}

	includes, excludes, err := splitProjection(cfg.Projection)
	if err != nil {
		return "", 0, err
	}

	if len(includes) == 0 && len(excludes) > 0 {
		expr := "data"
		for _, name := range excludes {
			// The - operator only deletes top-level keys; nested paths
			// need #- with the full path.
			if strings.Contains(name, ".") {
				expr += " #- '{" + strings.ReplaceAll(name, ".", ",") + "}'"
			} else {
				expr += " - '" + name + "'"
			}
		}
		return expr + " AS data", depth, nil
	}

	for _, name := range excludes {
		b.notice(query.NoticeUnsupportedExclusion, name, "",
			"exclusions cannot mix with an inclusion projection; the exclusion was ignored")
	}

	expr, err := c.buildObject(cfg.Projection, b, nil, 0)
	if err != nil {
		return "", 0, err
	}
	return expr + " AS data", depth, nil
}

// buildObject renders a jsonb_build_object expression for one projection
// level. prefix is the JSONB path to this level.
func (c *Compiler) buildObject(p query.Projection, b *builder, prefix []string, depth int) (string, error) {
	if depth > query.MaxTreeDepth {
		return "", &query.StructuralError{Reason: fmt.Sprintf("projection nesting exceeds %d levels", query.MaxTreeDepth)}
	}

	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names)*2)
	for _, name := range names {
		if !query.ValidFieldPath(name) {
			return "", &query.StructuralError{Field: name, Reason: "projection field name is not a valid field path"}
		}
		// Identity fields already travel as columns.
		if depth == 0 && isSystemField(name) {
			continue
		}

		field := p[name]
		kind, err := field.Kind()
		if err != nil {
			return "", err
		}

		path := append(append([]string{}, prefix...), strings.Split(name, ".")...)
		switch kind {
		case query.FieldInclude:
			pairs = append(pairs, "'"+name+"'", pathExpr(path))

		case query.FieldExclude:
			// Handled by splitProjection / compileProjection.

		case query.FieldNested:
			sub, err := c.buildObject(field.Nested, b, path, depth+1)
			if err != nil {
				return "", err
			}
			pairs = append(pairs, "'"+name+"'", sub)

		case query.FieldAlias:
			if !query.ValidFieldPath(field.Alias) {
				return "", &query.StructuralError{Field: name, Reason: "projection alias path is not a valid field path"}
			}
			pairs = append(pairs, "'"+name+"'", pathExpr(strings.Split(field.Alias, ".")))

		case query.FieldFunc:
			b.notice(query.NoticeUnsupportedFunction, name, "",
				"the document store cannot evaluate computed fields; the descriptor was dropped")

		case query.FieldExpand:
			pairs = append(pairs, "'"+name+"'", pathExpr(path))
			b.notice(query.NoticeDeferredExpansion, name, "",
				"the document store resolves references out-of-band to the compiled resolve depth")
		}
	}

	if len(pairs) == 0 {
		return "'{}'::jsonb", nil
	}
	return "jsonb_build_object(" + strings.Join(pairs, ", ") + ")", nil
}

func pathExpr(path []string) string {
	return "data #> '{" + strings.Join(path, ",") + "}'"
}

// splitProjection validates every top-level entry and partitions exclusions
// from the rest.
func splitProjection(p query.Projection) (includes, excludes []string, err error) {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !query.ValidFieldPath(name) {
			return nil, nil, &query.StructuralError{Field: name, Reason: "projection field name is not a valid field path"}
		}
		field := p[name]
		kind, err := field.Kind()
		if err != nil {
			return nil, nil, err
		}
		if kind == query.FieldExclude {
			excludes = append(excludes, name)
		} else {
			includes = append(includes, name)
		}
	}
	return includes, excludes, nil
}

func expandRequested(p query.Projection) bool {
	for _, f := range p {
		if f.Expand != nil {
			return true
		}
		if f.Nested != nil && expandRequested(f.Nested) {
			return true
		}
	}
	return false
}

func isSystemField(name string) bool {
	_, ok := systemColumns[name]
	return ok
}
