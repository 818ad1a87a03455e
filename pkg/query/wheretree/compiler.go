// Package wheretree compiles a query.Config into the nested boolean "where"
// tree consumed by the API-client style content backend: and/or groups nest
// natively, leaves are {"field": {"operator": value}} objects, and sort,
// pagination, locale, and resolve depth travel as sibling options.
package wheretree

import (
	"fmt"

	"github.com/ncklrs/contentbridge-sub000/pkg/query"
)

// Compiled is the output of one Compile call: the client's native option
// object, decomposed.
type Compiled struct {
	// Collection is the document collection to query.
	Collection string `json:"collection,omitempty"`

	// Where is the nested boolean filter tree, nil when the query has no
	// filter at all.
	Where map[string]any `json:"where,omitempty"`

	// Sort entries use a - prefix for descending order.
	Sort []string `json:"sort,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// Depth is the reference-resolution depth.
	Depth int `json:"depth,omitempty"`

	Locale         string `json:"locale,omitempty"`
	FallbackLocale string `json:"fallbackLocale,omitempty"`

	// Select maps field names to true (or nested maps) when the caller
	// projected fields.
	Select map[string]any `json:"select,omitempty"`

	// Draft includes unpublished documents.
	Draft bool `json:"draft,omitempty"`

	// Options carries the opaque passthrough parameters.
	Options map[string]any `json:"options,omitempty"`

	Notices []query.Notice `json:"notices,omitempty"`
}

// Compiler translates query configs to where trees. Instances hold only
// constructor-time settings and are safe for concurrent use.
type Compiler struct {
	opts query.Options
}

// New creates a Compiler with the given options.
func New(opts query.Options) *Compiler {
	return &Compiler{opts: opts.Normalize()}
}

type state struct {
	notices []query.Notice
}

func (st *state) notice(code query.NoticeCode, field string, op query.Operator, reason string) {
	st.notices = append(st.notices, query.Notice{Code: code, Field: field, Operator: op, Reason: reason})
}

// Compile translates cfg into the client's option object.
func (c *Compiler) Compile(cfg query.Config) (*Compiled, error) {
	st := &state{}
	out := &Compiled{}

	switch len(cfg.Types) {
	case 0:
	case 1:
		out.Collection = cfg.Types[0]
	default:
		out.Collection = cfg.Types[0]
		st.notice(query.NoticeFirstTypeOnly, "", "",
			fmt.Sprintf("the where-tree target queries one collection per request; compiled %q and dropped %d more", cfg.Types[0], len(cfg.Types)-1))
	}

	conds := append(append([]query.Condition{}, c.opts.GlobalFilter...), cfg.Filter...)
	where, err := c.compileConditions(conds, st, 0)
	if err != nil {
		return nil, err
	}
	out.Where = where

	if cfg.Projection != nil {
		sel, err := c.compileProjection(cfg.Projection, st, 0)
		if err != nil {
			return nil, err
		}
		out.Select = sel
	}

	for _, o := range cfg.OrderBy {
		if !query.ValidFieldPath(o.Field) {
			st.notice(query.NoticeInvalidValue, o.Field, "", "sort field is not a valid field path")
			continue
		}
		if o.Descending {
			out.Sort = append(out.Sort, "-"+o.Field)
		} else {
			out.Sort = append(out.Sort, o.Field)
		}
	}

	if cfg.Cursor != "" {
		st.notice(query.NoticeIgnoredCursor, "", "",
			"the where-tree target pages with limit and offset; the opaque cursor was ignored")
	}
	out.Limit = cfg.Limit
	if out.Limit <= 0 {
		out.Limit = c.opts.DefaultLimit
	}
	out.Offset = cfg.Offset

	if cfg.ResolveReferences > 0 {
		depth, clamped := c.opts.ClampResolveDepth(cfg.ResolveReferences)
		if clamped {
			st.notice(query.NoticeClampedDepth, "", "",
				fmt.Sprintf("requested resolve depth %d exceeds the configured maximum %d", cfg.ResolveReferences, c.opts.MaxResolveDepth))
		}
		out.Depth = depth
	}

	out.Locale = pick(cfg.Locale, c.opts.DefaultLocale)
	out.FallbackLocale = cfg.FallbackLocale
	if out.FallbackLocale == "" && len(c.opts.FallbackLocales) > 0 {
		out.FallbackLocale = c.opts.FallbackLocales[0]
	}

	out.Draft = c.opts.IncludeDrafts
	if len(cfg.Params) > 0 {
		out.Options = cfg.Params
	}

	if c.opts.Strict && len(st.notices) > 0 {
		return nil, &query.DegradeError{Notices: st.notices}
	}
	out.Notices = st.notices
	return out, nil
}

// compileProjection builds the select map. Nesting is native; aliases and
// computed fields are not.
func (c *Compiler) compileProjection(p query.Projection, st *state, depth int) (map[string]any, error) {
	if depth > query.MaxTreeDepth {
		return nil, &query.StructuralError{Reason: fmt.Sprintf("projection nesting exceeds %d levels", query.MaxTreeDepth)}
	}

	sel := make(map[string]any, len(p)+3)
	if depth == 0 {
		// Identity fields are returned regardless of the caller's selection.
		sel["id"] = true
		sel["createdAt"] = true
		sel["updatedAt"] = true
	}

	for name, field := range p {
		if !query.ValidFieldPath(name) {
			return nil, &query.StructuralError{Field: name, Reason: "projection field name is not a valid field path"}
		}
		kind, err := field.Kind()
		if err != nil {
			return nil, err
		}

		switch kind {
		case query.FieldInclude:
			sel[name] = true

		case query.FieldExclude:
			st.notice(query.NoticeUnsupportedExclusion, name, "",
				"select lists on the where-tree target are include-only; the exclusion was ignored")

		case query.FieldNested:
			sub, err := c.compileProjection(field.Nested, st, depth+1)
			if err != nil {
				return nil, err
			}
			sel[name] = sub

		case query.FieldAlias:
			st.notice(query.NoticeUnsupportedAlias, name, "",
				"the where-tree target cannot rename fields; the alias was dropped")

		case query.FieldFunc:
			st.notice(query.NoticeUnsupportedFunction, name, "",
				"the where-tree target cannot evaluate computed fields; the descriptor was dropped")

		case query.FieldExpand:
			sel[name] = true
			st.notice(query.NoticeDeferredExpansion, name, "",
				"the where-tree target resolves references out-of-band via the depth option")
		}
	}
	return sel, nil
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// GetByID compiles the standard fetch-one-document-by-ID query.
func (c *Compiler) GetByID(docType, id string) (*Compiled, error) {
	return c.Compile(query.GetByID(docType, id))
}

// GetByType compiles the standard list-documents-of-type query.
func (c *Compiler) GetByType(docType string, limit, offset int) (*Compiled, error) {
	return c.Compile(query.GetByType(docType, limit, offset))
}

// ReferencedBy compiles the query for documents referencing the given ID.
func (c *Compiler) ReferencedBy(id string) (*Compiled, error) {
	return c.Compile(query.ReferencedBy(id))
}
