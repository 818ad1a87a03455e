// Package params compiles a query.Config into the flat key/operator REST
// parameter map used by the delivery-API style content backend
// (content_type=post, fields.status[in]=a,b, order=-fields.publishedAt,
// skip/limit, include=<depth>, locale). A flat map can express far less than
// the condition tree; every narrowing is reported as a degrade notice.
package params

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ncklrs/contentbridge-sub000/pkg/query"
)

// Compiled is the output of one Compile call.
type Compiled struct {
	// Values is ready for url.Values.Encode or an API client's option map.
	Values url.Values `json:"values"`

	Notices []query.Notice `json:"notices,omitempty"`
}

// Compiler translates query configs to flat REST parameters. Instances hold
// only constructor-time settings and are safe for concurrent use.
type Compiler struct {
	opts query.Options
}

// New creates a Compiler with the given options.
func New(opts query.Options) *Compiler {
	return &Compiler{opts: opts.Normalize()}
}

type state struct {
	values  url.Values
	notices []query.Notice
}

func (st *state) set(key, value string) {
	// A flat map cannot hold two constraints under one key. Later writes win;
	// this flattening hazard is inherent to the target and documented rather
	// than hidden.
	st.values.Set(key, value)
}

func (st *state) notice(code query.NoticeCode, field string, op query.Operator, reason string) {
	st.notices = append(st.notices, query.Notice{Code: code, Field: field, Operator: op, Reason: reason})
}

// Compile translates cfg into a flat parameter map.
func (c *Compiler) Compile(cfg query.Config) (*Compiled, error) {
	st := &state{values: url.Values{}}

	switch len(cfg.Types) {
	case 0:
	case 1:
		st.set("content_type", cfg.Types[0])
	default:
		st.set("content_type", cfg.Types[0])
		st.notice(query.NoticeFirstTypeOnly, "", "",
			fmt.Sprintf("the parameter-map target queries one content type per request; compiled %q and dropped %d more", cfg.Types[0], len(cfg.Types)-1))
	}

	conds := append(append([]query.Condition{}, c.opts.GlobalFilter...), cfg.Filter...)
	for i := range conds {
		if err := c.compileCondition(&conds[i], st, 0); err != nil {
			return nil, err
		}
	}

	if err := c.compileProjection(cfg, st); err != nil {
		return nil, err
	}
	c.compileOrder(cfg.OrderBy, st)
	c.compilePagination(cfg, st)
	c.compileResolve(cfg, st)

	if locale := pick(cfg.Locale, c.opts.DefaultLocale); locale != "" {
		st.set("locale", locale)
	}
	if cfg.FallbackLocale != "" {
		st.notice(query.NoticeIgnoredLocale, "", "",
			"locale fallback is configured on the backend space, not per query")
	}

	for k, v := range cfg.Params {
		st.set(k, fmt.Sprint(v))
	}

	if c.opts.Strict && len(st.notices) > 0 {
		return nil, &query.DegradeError{Notices: st.notices}
	}
	return &Compiled{Values: st.values, Notices: st.notices}, nil
}

func (c *Compiler) compileOrder(orderBy []query.Order, st *state) {
	if len(orderBy) == 0 {
		return
	}
	parts := make([]string, 0, len(orderBy))
	for _, o := range orderBy {
		if !query.ValidFieldPath(o.Field) {
			st.notice(query.NoticeInvalidValue, o.Field, "", "sort field is not a valid field path")
			continue
		}
		key := fieldKey(o.Field)
		if o.Descending {
			key = "-" + key
		}
		parts = append(parts, key)
	}
	if len(parts) > 0 {
		st.set("order", strings.Join(parts, ","))
	}
}

func (c *Compiler) compilePagination(cfg query.Config, st *state) {
	if cfg.Cursor != "" {
		st.notice(query.NoticeIgnoredCursor, "", "",
			"the parameter-map target pages with skip and limit; the opaque cursor was ignored")
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = c.opts.DefaultLimit
	}
	if limit > 0 {
		st.set("limit", strconv.Itoa(limit))
	}
	if cfg.Offset > 0 {
		st.set("skip", strconv.Itoa(cfg.Offset))
	}
}

// compileResolve emits the out-of-band reference-resolution depth. The
// parameter-map target has no inline expansion syntax; include=<depth>
// instructs the backend to bundle linked documents.
func (c *Compiler) compileResolve(cfg query.Config, st *state) {
	depth := int(cfg.ResolveReferences)
	if expandRequested(cfg.Projection) && depth < 1 {
		depth = 1
	}
	if depth <= 0 {
		return
	}
	clamped, wasClamped := c.opts.ClampResolveDepth(query.ResolveRefs(depth))
	if wasClamped {
		st.notice(query.NoticeClampedDepth, "", "",
			fmt.Sprintf("requested resolve depth %d exceeds the configured maximum %d", depth, c.opts.MaxResolveDepth))
	}
	st.set("include", strconv.Itoa(clamped))
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

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// fieldKey maps a canonical field path to the target's key namespace: the
// identity fields live under sys, everything else under fields.
func fieldKey(field string) string {
	switch field {
	case "id":
		return "sys.id"
	case "type":
		return "sys.contentType.sys.id"
	case "createdAt":
		return "sys.createdAt"
	case "updatedAt":
		return "sys.updatedAt"
	}
	return "fields." + field
}

// GetByID compiles the standard fetch-one-document-by-ID query.
func (c *Compiler) GetByID(docType, id string) (*Compiled, error) {
	return c.Compile(query.GetByID(docType, id))
}

// GetByType compiles the standard list-documents-of-type query.
func (c *Compiler) GetByType(docType string, limit, offset int) (*Compiled, error) {
	return c.Compile(query.GetByType(docType, limit, offset))
}

// ReferencedBy compiles the query for documents linking to the given ID.
func (c *Compiler) ReferencedBy(id string) (*Compiled, error) {
	return c.Compile(query.ReferencedBy(id))
}
