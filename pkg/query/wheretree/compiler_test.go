package wheretree

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ncklrs/contentbridge-sub000/pkg/query"
)

func TestCompileEndToEnd(t *testing.T) {
	c := New(query.Options{})
	got, err := c.Compile(query.Config{
		Types: query.TypeList{"post"},
		Filter: []query.Condition{
			{Field: "status", Operator: query.OpEqual, Value: "published"},
			{Field: "views", Operator: query.OpGreaterThan, Value: 100},
		},
		OrderBy: []query.Order{{Field: "publishedAt", Descending: true}},
		Limit:   10,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if got.Collection != "post" {
		t.Errorf("Collection = %q, want post", got.Collection)
	}
	wantWhere := map[string]any{"and": []any{
		map[string]any{"status": map[string]any{"equals": "published"}},
		map[string]any{"views": map[string]any{"greater_than": 100}},
	}}
	if !reflect.DeepEqual(got.Where, wantWhere) {
		t.Errorf("Where = %v, want %v", got.Where, wantWhere)
	}
	if !reflect.DeepEqual(got.Sort, []string{"-publishedAt"}) {
		t.Errorf("Sort = %v", got.Sort)
	}
	if got.Limit != 10 || got.Offset != 0 {
		t.Errorf("Limit/Offset = %d/%d", got.Limit, got.Offset)
	}
	if len(got.Notices) != 0 {
		t.Errorf("Notices = %v, want none", got.Notices)
	}
}

func TestCompileEmptyFilter(t *testing.T) {
	c := New(query.Options{})
	got, err := c.Compile(query.Config{Types: query.TypeList{"post"}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got.Where != nil {
		t.Errorf("Where = %v, want nil (no filter clause at all)", got.Where)
	}
}

func TestCompileSingleConditionUnwraps(t *testing.T) {
	c := New(query.Options{})
	got, err := c.Compile(query.Config{Filter: []query.Condition{
		{Field: "status", Operator: query.OpEqual, Value: "live"},
	}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	want := map[string]any{"status": map[string]any{"equals": "live"}}
	if !reflect.DeepEqual(got.Where, want) {
		t.Errorf("Where = %v, want the bare leaf %v", got.Where, want)
	}
}

func TestCompileCombinators(t *testing.T) {
	tests := []struct {
		name       string
		filter     []query.Condition
		wantWhere  map[string]any
		wantNotice query.NoticeCode
	}{
		{
			"or nests natively",
			[]query.Condition{{Or: []query.Condition{
				{Field: "a", Operator: query.OpEqual, Value: 1},
				{Field: "b", Operator: query.OpEqual, Value: 2},
			}}},
			map[string]any{"or": []any{
				map[string]any{"a": map[string]any{"equals": 1}},
				map[string]any{"b": map[string]any{"equals": 2}},
			}},
			"",
		},
		{
			"nested and",
			[]query.Condition{{And: []query.Condition{
				{Field: "a", Operator: query.OpEqual, Value: 1},
				{Field: "b", Operator: query.OpNotEqual, Value: 2},
			}}},
			map[string]any{"and": []any{
				map[string]any{"a": map[string]any{"equals": 1}},
				map[string]any{"b": map[string]any{"not_equals": 2}},
			}},
			"",
		},
		{
			"empty and is vacuous",
			[]query.Condition{{And: []query.Condition{}}},
			nil,
			"",
		},
		{
			"empty or drops with notice",
			[]query.Condition{{Or: []query.Condition{}}},
			nil,
			query.NoticeEmptyOr,
		},
		{
			"or with uncompilable branch drops whole group",
			[]query.Condition{{Or: []query.Condition{
				{Field: "a", Operator: query.OpEqual, Value: 1},
				{Field: "b", Operator: "regex", Value: ".*"},
			}}},
			nil,
			query.NoticeNarrowedOr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(query.Options{})
			got, err := c.Compile(query.Config{Filter: tt.filter})
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if !reflect.DeepEqual(got.Where, tt.wantWhere) {
				t.Errorf("Where = %v, want %v", got.Where, tt.wantWhere)
			}
			if tt.wantNotice == "" {
				if len(got.Notices) != 0 {
					t.Errorf("Notices = %v, want none", got.Notices)
				}
				return
			}
			// In per-group drop cases the unknown-operator notice from the
			// branch precedes the group notice.
			last := got.Notices[len(got.Notices)-1]
			if last.Code != tt.wantNotice {
				t.Errorf("Notices = %v, want trailing %s", got.Notices, tt.wantNotice)
			}
		})
	}
}

func TestCompileNotComplements(t *testing.T) {
	tests := []struct {
		name  string
		inner query.Condition
		want  map[string]any
	}{
		{"equal", query.Condition{Field: "a", Operator: query.OpEqual, Value: 1},
			map[string]any{"a": map[string]any{"not_equals": 1}}},
		{"greater than", query.Condition{Field: "a", Operator: query.OpGreaterThan, Value: 1},
			map[string]any{"a": map[string]any{"less_than_equal": 1}}},
		{"less or equal", query.Condition{Field: "a", Operator: query.OpLessOrEqual, Value: 1},
			map[string]any{"a": map[string]any{"greater_than": 1}}},
		{"in", query.Condition{Field: "a", Operator: query.OpIn, Value: []any{1, 2}},
			map[string]any{"a": map[string]any{"not_in": []any{1, 2}}}},
		{"defined flips exists", query.Condition{Field: "a", Operator: query.OpDefined},
			map[string]any{"a": map[string]any{"exists": false}}},
		{"undefined flips exists", query.Condition{Field: "a", Operator: query.OpUndefined},
			map[string]any{"a": map[string]any{"exists": true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(query.Options{})
			inner := tt.inner
			got, err := c.Compile(query.Config{Filter: []query.Condition{{Not: &inner}}})
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if !reflect.DeepEqual(got.Where, tt.want) {
				t.Errorf("Where = %v, want %v", got.Where, tt.want)
			}
			if len(got.Notices) != 0 {
				t.Errorf("Notices = %v, want none", got.Notices)
			}
		})
	}
}

func TestCompileNotWithoutComplementDegrades(t *testing.T) {
	c := New(query.Options{})
	got, err := c.Compile(query.Config{Filter: []query.Condition{
		{Not: &query.Condition{Field: "tags", Operator: query.OpContains, Value: "go"}},
	}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got.Where != nil {
		t.Errorf("Where = %v, want nil", got.Where)
	}
	if len(got.Notices) != 1 || got.Notices[0].Code != query.NoticeUnsupportedNot {
		t.Errorf("Notices = %v, want one unsupported-not", got.Notices)
	}
}

func TestCompileLeafOperators(t *testing.T) {
	tests := []struct {
		name string
		cond query.Condition
		want map[string]any
	}{
		{"exists", query.Condition{Field: "publishedAt", Operator: query.OpDefined},
			map[string]any{"publishedAt": map[string]any{"exists": true}}},
		{"not exists", query.Condition{Field: "deletedAt", Operator: query.OpUndefined},
			map[string]any{"deletedAt": map[string]any{"exists": false}}},
		{"contains", query.Condition{Field: "tags", Operator: query.OpContains, Value: "go"},
			map[string]any{"tags": map[string]any{"contains": "go"}}},
		{"containsAll listifies", query.Condition{Field: "tags", Operator: query.OpContainsAll, Value: "go"},
			map[string]any{"tags": map[string]any{"all": []any{"go"}}}},
		{"match maps to like", query.Condition{Field: "title", Operator: query.OpMatch, Value: "intro"},
			map[string]any{"title": map[string]any{"like": "intro"}}},
		{"field reference matches the relation", query.Condition{Field: "author", Operator: query.OpReferences, Value: "person-1"},
			map[string]any{"author": map[string]any{"equals": "person-1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(query.Options{})
			got, err := c.Compile(query.Config{Filter: []query.Condition{tt.cond}})
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if !reflect.DeepEqual(got.Where, tt.want) {
				t.Errorf("Where = %v, want %v", got.Where, tt.want)
			}
		})
	}
}

func TestCompileDocumentReferenceDegrades(t *testing.T) {
	c := New(query.Options{})
	got, err := c.Compile(query.Config{Filter: []query.Condition{
		{Operator: query.OpReferences, Value: "person-1"},
	}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got.Where != nil {
		t.Errorf("Where = %v, want nil", got.Where)
	}
	if len(got.Notices) != 1 || got.Notices[0].Code != query.NoticeUnknownOperator {
		t.Errorf("Notices = %v, want one unknown-operator", got.Notices)
	}
}

func TestCompileProjection(t *testing.T) {
	c := New(query.Options{})
	got, err := c.Compile(query.Config{
		Projection: query.Projection{
			"title":  query.Include(),
			"body":   {Nested: query.Projection{"html": query.Include()}},
			"hero":   {Alias: "mainImage"},
			"author": {Expand: &query.ExpandSpec{}},
		},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	want := map[string]any{
		"id":        true,
		"createdAt": true,
		"updatedAt": true,
		"title":     true,
		"body":      map[string]any{"html": true},
		"author":    true,
	}
	if !reflect.DeepEqual(got.Select, want) {
		t.Errorf("Select = %v, want %v", got.Select, want)
	}

	codes := make(map[query.NoticeCode]int)
	for _, n := range got.Notices {
		codes[n.Code]++
	}
	if codes[query.NoticeUnsupportedAlias] != 1 || codes[query.NoticeDeferredExpansion] != 1 || len(got.Notices) != 2 {
		t.Errorf("Notices = %v, want one unsupported-alias and one deferred-expansion", got.Notices)
	}
}

func TestCompileOptionFields(t *testing.T) {
	c := New(query.Options{
		DefaultLocale:   "en",
		FallbackLocales: []string{"en"},
		DefaultLimit:    25,
		MaxResolveDepth: 3,
		IncludeDrafts:   true,
	})
	got, err := c.Compile(query.Config{
		Types:             query.TypeList{"post"},
		Locale:            "de",
		ResolveReferences: 5,
		Offset:            40,
		Params:            map[string]any{"preview": true},
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if got.Locale != "de" {
		t.Errorf("Locale = %q, want de", got.Locale)
	}
	if got.FallbackLocale != "en" {
		t.Errorf("FallbackLocale = %q, want en", got.FallbackLocale)
	}
	if got.Limit != 25 {
		t.Errorf("Limit = %d, want the default 25", got.Limit)
	}
	if got.Offset != 40 {
		t.Errorf("Offset = %d, want 40", got.Offset)
	}
	if got.Depth != 3 {
		t.Errorf("Depth = %d, want clamped 3", got.Depth)
	}
	if !got.Draft {
		t.Error("Draft = false, want true")
	}
	if !reflect.DeepEqual(got.Options, map[string]any{"preview": true}) {
		t.Errorf("Options = %v", got.Options)
	}
	if len(got.Notices) != 1 || got.Notices[0].Code != query.NoticeClampedDepth {
		t.Errorf("Notices = %v, want one clamped-depth", got.Notices)
	}
}

func TestCompileMultiTypeTakesFirst(t *testing.T) {
	c := New(query.Options{})
	got, err := c.Compile(query.Config{Types: query.TypeList{"post", "page"}})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got.Collection != "post" {
		t.Errorf("Collection = %q, want post", got.Collection)
	}
	if len(got.Notices) != 1 || got.Notices[0].Code != query.NoticeFirstTypeOnly {
		t.Errorf("Notices = %v, want one first-type-only", got.Notices)
	}
}

func TestCompileCursorIgnoredWithNotice(t *testing.T) {
	c := New(query.Options{})
	got, err := c.Compile(query.Config{Cursor: "opaque-token"})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(got.Notices) != 1 || got.Notices[0].Code != query.NoticeIgnoredCursor {
		t.Errorf("Notices = %v, want one ignored-cursor", got.Notices)
	}
}

func TestCompileRepeatable(t *testing.T) {
	c := New(query.Options{})
	cfg := query.Config{
		Types: query.TypeList{"post"},
		Filter: []query.Condition{
			{Field: "a", Operator: query.OpEqual, Value: 1},
			{Or: []query.Condition{
				{Field: "b", Operator: query.OpEqual, Value: 2},
				{Field: "c", Operator: query.OpEqual, Value: 3},
			}},
		},
	}
	first, err := c.Compile(cfg)
	if err != nil {
		t.Fatalf("first Compile: %v", err)
	}
	second, err := c.Compile(cfg)
	if err != nil {
		t.Fatalf("second Compile: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("repeat compile diverged:\n first: %+v\nsecond: %+v", first, second)
	}
}

func TestCompileStructuralErrors(t *testing.T) {
	deep := query.Condition{Field: "a", Operator: query.OpEqual, Value: 1}
	for i := 0; i < query.MaxTreeDepth+2; i++ {
		inner := deep
		deep = query.Condition{And: []query.Condition{inner}}
	}

	tests := []struct {
		name   string
		filter []query.Condition
	}{
		{"empty node", []query.Condition{{}}},
		{"leaf and combinator", []query.Condition{{Field: "a", Operator: query.OpEqual, And: []query.Condition{}}}},
		{"excessive nesting", []query.Condition{deep}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(query.Options{})
			_, err := c.Compile(query.Config{Filter: tt.filter})
			var serr *query.StructuralError
			if !errors.As(err, &serr) {
				t.Fatalf("Compile error = %v, want *StructuralError", err)
			}
		})
	}
}

func TestCompileStrictMode(t *testing.T) {
	c := New(query.Options{Strict: true})
	_, err := c.Compile(query.Config{Cursor: "tok"})
	var derr *query.DegradeError
	if !errors.As(err, &derr) {
		t.Fatalf("Compile error = %v, want *DegradeError", err)
	}
}

func TestBuilders(t *testing.T) {
	c := New(query.Options{})

	byID, err := c.GetByID("post", "abc-123")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.Collection != "post" || byID.Limit != 1 {
		t.Errorf("GetByID = %+v", byID)
	}
	want := map[string]any{"id": map[string]any{"equals": "abc-123"}}
	if !reflect.DeepEqual(byID.Where, want) {
		t.Errorf("GetByID where = %v, want %v", byID.Where, want)
	}
}
