// Package expr compiles a query.Config into a single query string in the
// CBQL expression language (the string-expression dialect understood by the
// expression-evaluating content backend), plus a named-parameter map for safe
// late binding. Literal values never appear inline in the query text; every
// one becomes a $pN placeholder.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ncklrs/contentbridge-sub000/pkg/query"
)

// Compiled is the output of one Compile call. It is never mutated after
// return.
type Compiled struct {
	// Query is the full expression, e.g.
	// *[_type == "post" && status == $p0] | order(publishedAt desc) [0...10]
	Query string `json:"query"`

	// Params maps placeholder names (without the $ sigil) to literal values.
	Params map[string]any `json:"parameters,omitempty"`

	Notices []query.Notice `json:"notices,omitempty"`
}

// Compiler translates query configs to CBQL. A Compiler holds only
// constructor-time settings; all per-call state lives on the stack of
// Compile, so one instance is safe for concurrent use.
type Compiler struct {
	opts query.Options
}

// New creates a Compiler with the given options.
func New(opts query.Options) *Compiler {
	return &Compiler{opts: opts.Normalize()}
}

// state is the call-scoped compilation context: the parameter counter and
// map, and accumulated notices. A fresh state is allocated on every Compile
// invocation.
type state struct {
	params  map[string]any
	n       int
	notices []query.Notice
}

func newState(passthrough map[string]any) *state {
	st := &state{params: make(map[string]any, len(passthrough))}
	for k, v := range passthrough {
		st.params[k] = v
	}
	return st
}

// bind registers v under the next free placeholder name and returns the $pN
// reference for the query text.
func (st *state) bind(v any) string {
	for {
		name := "p" + strconv.Itoa(st.n)
		st.n++
		if _, taken := st.params[name]; taken {
			continue
		}
		st.params[name] = v
		return "$" + name
	}
}

func (st *state) notice(code query.NoticeCode, field string, op query.Operator, reason string) {
	st.notices = append(st.notices, query.Notice{Code: code, Field: field, Operator: op, Reason: reason})
}

// Compile translates cfg into a CBQL query. Structural errors (malformed
// condition nodes, unsafe field paths, excessive nesting) fail the whole
// compilation; everything else degrades with a notice.
func (c *Compiler) Compile(cfg query.Config) (*Compiled, error) {
	st := newState(cfg.Params)

	clauses, err := c.baseSelector(cfg, st)
	if err != nil {
		return nil, err
	}

	conds := append(append([]query.Condition{}, c.opts.GlobalFilter...), cfg.Filter...)
	for _, cond := range conds {
		frag, err := c.compileCondition(&cond, st, 0)
		if err != nil {
			return nil, err
		}
		if frag != "" {
			clauses = append(clauses, frag)
		}
	}

	var b strings.Builder
	if len(clauses) == 0 {
		b.WriteString("*")
	} else {
		b.WriteString("*[")
		b.WriteString(strings.Join(clauses, " && "))
		b.WriteString("]")
	}

	if cfg.Projection != nil {
		proj, err := c.compileProjection(cfg.Projection, st, 0)
		if err != nil {
			return nil, err
		}
		b.WriteString(" ")
		b.WriteString(proj)
	}

	if clause := c.compileOrder(cfg.OrderBy, st); clause != "" {
		b.WriteString(" | ")
		b.WriteString(clause)
	}

	if rng := c.compileRange(cfg, st); rng != "" {
		b.WriteString(" ")
		b.WriteString(rng)
	}

	c.checkResolve(cfg, st)

	if cfg.Locale != "" {
		st.notice(query.NoticeIgnoredLocale, "", "",
			"the expression target stores localized values as plain fields; query-level locale selection is not available")
	}

	if c.opts.Strict && len(st.notices) > 0 {
		return nil, &query.DegradeError{Notices: st.notices}
	}

	out := &Compiled{Query: b.String(), Notices: st.notices}
	if len(st.params) > 0 {
		out.Params = st.params
	}
	return out, nil
}

// baseSelector emits the document-type clause and the published-only guard.
// Type names are compiler-controlled and rendered inline; everything caller
// supplied still goes through placeholders.
func (c *Compiler) baseSelector(cfg query.Config, st *state) ([]string, error) {
	var clauses []string

	switch len(cfg.Types) {
	case 0:
	case 1:
		clauses = append(clauses, "_type == "+quoteString(cfg.Types[0]))
	default:
		quoted := make([]string, len(cfg.Types))
		for i, t := range cfg.Types {
			quoted[i] = quoteString(t)
		}
		clauses = append(clauses, "_type in ["+strings.Join(quoted, ", ")+"]")
	}

	if !c.opts.IncludeDrafts {
		clauses = append(clauses, "draft != true")
	}
	return clauses, nil
}

// compileOrder renders order(field asc, field desc). Input order is
// preserved; the first entry is the primary key.
func (c *Compiler) compileOrder(orderBy []query.Order, st *state) string {
	if len(orderBy) == 0 {
		return ""
	}
	parts := make([]string, 0, len(orderBy))
	for _, o := range orderBy {
		if !query.ValidFieldPath(o.Field) {
			st.notice(query.NoticeInvalidValue, o.Field, "", "sort field is not a valid field path")
			continue
		}
		dir := "asc"
		if o.Descending {
			dir = "desc"
		}
		parts = append(parts, fieldPath(o.Field)+" "+dir)
	}
	if len(parts) == 0 {
		return ""
	}
	return "order(" + strings.Join(parts, ", ") + ")"
}

// compileRange renders the slice suffix. Offset+limit is the half-open range
// [offset...offset+limit); a bare offset runs to the end of the result set,
// which is intentional. Cursors have no native form here.
func (c *Compiler) compileRange(cfg query.Config, st *state) string {
	if cfg.Cursor != "" {
		st.notice(query.NoticeIgnoredCursor, "", "",
			"the expression target has no cursor pagination; use offset and limit")
	}

	limit := cfg.Limit
	if limit <= 0 {
		limit = c.opts.DefaultLimit
	}

	switch {
	case limit > 0:
		return fmt.Sprintf("[%d...%d]", cfg.Offset, cfg.Offset+limit)
	case cfg.Offset > 0:
		return fmt.Sprintf("[%d...]", cfg.Offset)
	}
	return ""
}

// checkResolve accounts for an out-of-band resolve-depth request. The
// expression target expands references inline through projection expand
// descriptors only.
func (c *Compiler) checkResolve(cfg query.Config, st *state) {
	if cfg.ResolveReferences <= 0 {
		return
	}
	if _, clamped := c.opts.ClampResolveDepth(cfg.ResolveReferences); clamped {
		st.notice(query.NoticeClampedDepth, "", "",
			fmt.Sprintf("requested resolve depth %d exceeds the configured maximum %d", cfg.ResolveReferences, c.opts.MaxResolveDepth))
	}
	if cfg.Projection == nil {
		st.notice(query.NoticeDeferredExpansion, "", "",
			"the expression target expands references inline via projection expand descriptors; a bare resolve depth has no effect")
	}
}

// fieldPath maps a canonical field path to the target's naming. Only the
// identity/system fields differ.
func fieldPath(field string) string {
	switch field {
	case "id":
		return "_id"
	case "type":
		return "_type"
	case "createdAt":
		return "_createdAt"
	case "updatedAt":
		return "_updatedAt"
	}
	return field
}

// quoteString renders a compiler-controlled string (a type name) as an
// inline literal.
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
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
