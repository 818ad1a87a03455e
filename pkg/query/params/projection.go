package params

import (
	"sort"
	"strings"

	"github.com/ncklrs/contentbridge-sub000/pkg/query"
)

// compileProjection emits the select parameter. The target only selects
// top-level fields: sub-selections flatten to their parent field, aliases and
// computed fields have no syntax at all, and each narrowing is noticed. The
// sys envelope is always selected for document reconstruction.
func (c *Compiler) compileProjection(cfg query.Config, st *state) error {
	if cfg.Projection == nil {
		return nil
	}

	names := make([]string, 0, len(cfg.Projection))
	for name := range cfg.Projection {
		names = append(names, name)
	}
	sort.Strings(names)

	selected := []string{"sys"}
	for _, name := range names {
		if !query.ValidFieldPath(name) {
			return &query.StructuralError{Field: name, Reason: "projection field name is not a valid field path"}
		}

		field := cfg.Projection[name]
		kind, err := field.Kind()
		if err != nil {
			return err
		}

		switch kind {
		case query.FieldInclude:
			selected = appendField(selected, name)

		case query.FieldExclude:
			st.notice(query.NoticeUnsupportedExclusion, name, "",
				"the parameter-map target has no field-exclusion syntax; the exclusion was ignored")

		case query.FieldNested:
			selected = appendField(selected, name)
			st.notice(query.NoticeFlattenedProjection, name, "",
				"the parameter-map target selects whole top-level fields; the sub-selection was flattened to the full field")

		case query.FieldAlias:
			st.notice(query.NoticeUnsupportedAlias, name, "",
				"the parameter-map target cannot rename fields; the alias was dropped")

		case query.FieldFunc:
			st.notice(query.NoticeUnsupportedFunction, name, "",
				"the parameter-map target cannot evaluate computed fields; the descriptor was dropped")

		case query.FieldExpand:
			selected = appendField(selected, name)
			st.notice(query.NoticeDeferredExpansion, name, "",
				"the parameter-map target resolves links out-of-band via the include depth parameter")
		}
	}

	st.set("select", strings.Join(selected, ","))
	return nil
}

// appendField adds a field to the select list under its target key, skipping
// identity fields already covered by sys.
func appendField(selected []string, name string) []string {
	key := fieldKey(name)
	if strings.HasPrefix(key, "sys") {
		return selected
	}
	return append(selected, key)
}
