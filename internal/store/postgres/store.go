// Package postgres executes compiled document queries against the
// self-hosted Postgres content store: a single documents table with the
// system envelope in columns and the document body in a JSONB data column.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ncklrs/contentbridge-sub000/pkg/query"
	"github.com/ncklrs/contentbridge-sub000/pkg/query/sqlstore"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("document not found")

// Document is one row of the content store with its body decoded.
type Document struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Locale    string         `json:"locale,omitempty"`
	Published bool           `json:"published"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	Data      map[string]any `json:"data"`
}

// SearchResult carries one page of matching documents, the unpaginated
// total, and any notices the compiler recorded.
type SearchResult struct {
	Documents []*Document    `json:"documents"`
	Total     int            `json:"total"`
	Notices   []query.Notice `json:"notices,omitempty"`
}

// Store runs content queries against a pgx pool.
type Store struct {
	pool     *pgxpool.Pool
	compiler *sqlstore.Compiler
}

// New creates a Store compiling with the given options.
func New(pool *pgxpool.Pool, opts query.Options) *Store {
	return &Store{pool: pool, compiler: sqlstore.New(opts)}
}

// Search compiles cfg and executes both the data and count queries. When the
// compiled output requests reference resolution, matched references are
// expanded in-place before returning.
func (s *Store) Search(ctx context.Context, cfg query.Config) (*SearchResult, error) {
	compiled, err := s.compiler.Compile(cfg)
	if err != nil {
		return nil, err
	}

	var total int
	if err := s.pool.QueryRow(ctx, compiled.CountSQL, compiled.CountArgs...).Scan(&total); err != nil {
		return nil, err
	}

	docs, err := s.queryDocuments(ctx, compiled.SQL, compiled.Args)
	if err != nil {
		return nil, err
	}

	if compiled.ResolveDepth > 0 {
		if err := s.resolveReferences(ctx, docs, compiled.ResolveDepth); err != nil {
			return nil, err
		}
	}

	return &SearchResult{Documents: docs, Total: total, Notices: compiled.Notices}, nil
}

// GetByID fetches a single document through the standard by-ID pipeline.
func (s *Store) GetByID(ctx context.Context, docType, id string) (*Document, error) {
	compiled, err := s.compiler.GetByID(docType, id)
	if err != nil {
		return nil, err
	}
	docs, err := s.queryDocuments(ctx, compiled.SQL, compiled.Args)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return docs[0], nil
}

// ReferencedBy lists the documents whose body references the given ID.
func (s *Store) ReferencedBy(ctx context.Context, id string) ([]*Document, error) {
	compiled, err := s.compiler.ReferencedBy(id)
	if err != nil {
		return nil, err
	}
	return s.queryDocuments(ctx, compiled.SQL, compiled.Args)
}

// Put upserts a document. The refs column is rebuilt from the reference
// markers found in the body so fieldless reference queries stay accurate.
func (s *Store) Put(ctx context.Context, doc *Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	refs := collectRefIDs(doc.Data)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO documents (id, type, locale, published, data, refs)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type, locale = EXCLUDED.locale,
			published = EXCLUDED.published, data = EXCLUDED.data,
			refs = EXCLUDED.refs, updated_at = NOW()`,
		doc.ID, doc.Type, doc.Locale, doc.Published, doc.Data, refs,
	)
	return err
}

// Delete removes a document by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) queryDocuments(ctx context.Context, sql string, args []any) ([]*Document, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []*Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(rows pgx.Rows) (*Document, error) {
	var d Document
	err := rows.Scan(&d.ID, &d.Type, &d.Locale, &d.Published, &d.CreatedAt, &d.UpdatedAt, &d.Data)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// resolveReferences expands reference markers breadth-first, one fetch per
// depth level, replacing each marker with the referenced document's body.
// Dangling references are left as-is.
func (s *Store) resolveReferences(ctx context.Context, docs []*Document, depth int) error {
	bodies := make([]map[string]any, len(docs))
	for i, d := range docs {
		bodies[i] = d.Data
	}
	for level := 0; level < depth; level++ {
		ids := []string{}
		seen := map[string]bool{}
		for _, body := range bodies {
			for _, id := range collectRefIDs(body) {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		if len(ids) == 0 {
			return nil
		}

		fetched, err := s.fetchByIDs(ctx, ids)
		if err != nil {
			return err
		}

		next := []map[string]any{}
		for _, body := range bodies {
			next = append(next, substituteRefs(body, fetched)...)
		}
		bodies = next
	}
	return nil
}

func (s *Store) fetchByIDs(ctx context.Context, ids []string) (map[string]*Document, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, locale, published, created_at, updated_at, data
		FROM documents WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*Document, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		byID[doc.ID.String()] = doc
	}
	return byID, rows.Err()
}

// refID reports the target ID when v is a reference marker, a map carrying a
// string _ref key.
func refID(v any) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := m["_ref"].(string)
	return id, ok && id != ""
}

// collectRefIDs walks a document body and returns every referenced ID, in
// encounter order with duplicates preserved.
func collectRefIDs(v any) []string {
	var ids []string
	var walk func(any)
	walk = func(node any) {
		if id, ok := refID(node); ok {
			ids = append(ids, id)
			return
		}
		switch t := node.(type) {
		case map[string]any:
			for _, child := range t {
				walk(child)
			}
		case []any:
			for _, child := range t {
				walk(child)
			}
		}
	}
	walk(v)
	return ids
}

// inlined renders a resolved document as an embedded body: the data fields
// plus the system envelope under underscore keys.
func inlined(doc *Document) map[string]any {
	body := make(map[string]any, len(doc.Data)+2)
	for k, v := range doc.Data {
		body[k] = v
	}
	body["_id"] = doc.ID.String()
	body["_type"] = doc.Type
	return body
}

// substituteRefs replaces reference markers whose target was fetched with the
// inlined target body, in place. It returns the bodies that were substituted
// in, the frontier for the next resolution level.
func substituteRefs(body map[string]any, fetched map[string]*Document) []map[string]any {
	var frontier []map[string]any
	var walk func(container any)

	replace := func(v any) (any, bool) {
		id, ok := refID(v)
		if !ok {
			return nil, false
		}
		doc, ok := fetched[id]
		if !ok {
			return nil, false
		}
		inl := inlined(doc)
		frontier = append(frontier, inl)
		return inl, true
	}

	walk = func(container any) {
		switch t := container.(type) {
		case map[string]any:
			for k, v := range t {
				if repl, ok := replace(v); ok {
					t[k] = repl
					continue
				}
				walk(v)
			}
		case []any:
			for i, v := range t {
				if repl, ok := replace(v); ok {
					t[i] = repl
					continue
				}
				walk(v)
			}
		}
	}
	walk(body)
	return frontier
}
