// Package sqlstore compiles a query.Config into parameterized Postgres SQL
// over the self-hosted document store: one documents table with the system
// envelope in columns and the document body in a JSONB data column. All
// literal values bind as positional parameters ($1..$n); only vetted field
// paths are interpolated into SQL text.
package sqlstore

import (
	"strconv"
	"strings"

	"github.com/ncklrs/contentbridge-sub000/pkg/query"
)

// Table is the document store's single table.
const Table = "documents"

// systemColumns maps canonical identity fields to their columns. Everything
// else lives under the data JSONB column.
var systemColumns = map[string]string{
	"id":        "id",
	"type":      "type",
	"locale":    "locale",
	"published": "published",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// Compiled is the output of one Compile call.
type Compiled struct {
	// SQL is the data query; CountSQL counts the unpaginated result set.
	SQL      string `json:"sql"`
	CountSQL string `json:"countSql"`

	// Args are the positional bind arguments for SQL. CountArgs is the
	// prefix of Args the count query uses (everything before LIMIT/OFFSET).
	Args      []any `json:"args"`
	CountArgs []any `json:"countArgs"`

	// ResolveDepth asks the store layer to expand references out-of-band.
	ResolveDepth int `json:"resolveDepth,omitempty"`

	// Params carries the opaque passthrough parameters.
	Params map[string]any `json:"params,omitempty"`

	Notices []query.Notice `json:"notices,omitempty"`
}

// Compiler translates query configs to SQL. Instances hold only
// constructor-time settings and are safe for concurrent use.
type Compiler struct {
	opts query.Options
}

// New creates a Compiler with the given options.
func New(opts query.Options) *Compiler {
	return &Compiler{opts: opts.Normalize()}
}

// builder is the call-scoped compilation state: the WHERE fragment, the
// positional argument list and its index counter, and accumulated notices.
// A fresh builder is allocated on every Compile invocation.
type builder struct {
	where   strings.Builder
	args    []any
	idx     int
	notices []query.Notice
}

func newBuilder() *builder {
	return &builder{idx: 1}
}

// bind registers v as the next positional argument and returns its $n
// placeholder.
func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	n := b.idx
	b.idx++
	return "$" + strconv.Itoa(n)
}

func (b *builder) and(clause string) {
	b.where.WriteString(" AND ")
	b.where.WriteString(clause)
}

func (b *builder) notice(code query.NoticeCode, field string, op query.Operator, reason string) {
	b.notices = append(b.notices, query.Notice{Code: code, Field: field, Operator: op, Reason: reason})
}

// Compile translates cfg into a data query and a count query.
func (c *Compiler) Compile(cfg query.Config) (*Compiled, error) {
	b := newBuilder()

	// Base selector.
	switch len(cfg.Types) {
	case 0:
	case 1:
		b.and("type = " + b.bind(cfg.Types[0]))
	default:
		b.and("type = ANY(" + b.bind([]string(cfg.Types)) + ")")
	}
	if !c.opts.IncludeDrafts {
		b.and("published = TRUE")
	}
	if locale := pick(cfg.Locale, c.opts.DefaultLocale); locale != "" {
		b.and("locale = " + b.bind(locale))
	}
	if cfg.FallbackLocale != "" {
		b.notice(query.NoticeIgnoredLocale, "", "",
			"locale fallback resolves at fetch time in the store layer, not in SQL")
	}

	conds := append(append([]query.Condition{}, c.opts.GlobalFilter...), cfg.Filter...)
	for i := range conds {
		clause, err := c.compileCondition(&conds[i], b, 0)
		if err != nil {
			return nil, err
		}
		if clause != "" {
			b.and(clause)
		}
	}

	dataExpr, resolveDepth, err := c.compileProjection(cfg, b)
	if err != nil {
		return nil, err
	}

	orderClause := c.compileOrder(cfg.OrderBy, b)

	where := b.where.String()
	countSQL := "SELECT COUNT(*) FROM " + Table + " WHERE 1=1" + where
	countArgs := append([]any{}, b.args...)

	sql := "SELECT id, type, locale, published, created_at, updated_at, " + dataExpr +
		" FROM " + Table + " WHERE 1=1" + where + orderClause

	if cfg.Cursor != "" {
		b.notice(query.NoticeIgnoredCursor, "", "",
			"the document store pages with LIMIT and OFFSET; the opaque cursor was ignored")
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = c.opts.DefaultLimit
	}
	if limit > 0 {
		sql += " LIMIT " + b.bind(limit)
	}
	if cfg.Offset > 0 {
		sql += " OFFSET " + b.bind(cfg.Offset)
	}

	if c.opts.Strict && len(b.notices) > 0 {
		return nil, &query.DegradeError{Notices: b.notices}
	}

	return &Compiled{
		SQL:          sql,
		CountSQL:     countSQL,
		Args:         b.args,
		CountArgs:    countArgs,
		ResolveDepth: resolveDepth,
		Params:       cfg.Params,
		Notices:      b.notices,
	}, nil
}

// compileOrder follows the NULLS LAST convention for descending sorts so
// documents missing the field sort after real values.
func (c *Compiler) compileOrder(orderBy []query.Order, b *builder) string {
	if len(orderBy) == 0 {
		return ""
	}
	parts := make([]string, 0, len(orderBy))
	for _, o := range orderBy {
		if !query.ValidFieldPath(o.Field) {
			b.notice(query.NoticeInvalidValue, o.Field, "", "sort field is not a valid field path")
			continue
		}
		expr := textExpr(o.Field)
		if o.Descending {
			parts = append(parts, expr+" DESC NULLS LAST")
		} else {
			parts = append(parts, expr+" ASC")
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// jsonExpr renders a JSONB path expression for a vetted field path.
func jsonExpr(field string) string {
	return "data #> '{" + strings.ReplaceAll(field, ".", ",") + "}'"
}

// textExpr renders the text form of a field: its column for system fields,
// the JSONB text extraction otherwise.
func textExpr(field string) string {
	if col, ok := systemColumns[field]; ok {
		return col
	}
	return "data #>> '{" + strings.ReplaceAll(field, ".", ",") + "}'"
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
