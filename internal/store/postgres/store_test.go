package postgres

import (
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCollectRefIDs(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
		want []string
	}{
		{
			name: "no references",
			body: map[string]any{"title": "hello", "views": 10},
			want: nil,
		},
		{
			name: "top level reference",
			body: map[string]any{"author": map[string]any{"_ref": "a1"}},
			want: []string{"a1"},
		},
		{
			name: "references nested in arrays and maps",
			body: map[string]any{
				"related": []any{
					map[string]any{"_ref": "r1"},
					map[string]any{"_ref": "r2"},
				},
				"meta": map[string]any{
					"cover": map[string]any{"_ref": "img1"},
				},
			},
			want: []string{"img1", "r1", "r2"},
		},
		{
			name: "empty ref is not a reference",
			body: map[string]any{"author": map[string]any{"_ref": ""}},
			want: nil,
		},
		{
			name: "non-string ref is not a reference",
			body: map[string]any{"author": map[string]any{"_ref": 42}},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectRefIDs(tt.body)
			sort.Strings(got)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("collectRefIDs() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRefID(t *testing.T) {
	if id, ok := refID(map[string]any{"_ref": "abc"}); !ok || id != "abc" {
		t.Errorf("expected (abc, true), got (%s, %v)", id, ok)
	}
	if _, ok := refID("abc"); ok {
		t.Error("plain string should not be a reference")
	}
	if _, ok := refID(map[string]any{"ref": "abc"}); ok {
		t.Error("map without _ref should not be a reference")
	}
}

func TestSubstituteRefs(t *testing.T) {
	authorID := uuid.New()
	fetched := map[string]*Document{
		authorID.String(): {
			ID:   authorID,
			Type: "author",
			Data: map[string]any{"name": "Ada"},
		},
	}

	body := map[string]any{
		"title":  "post one",
		"author": map[string]any{"_ref": authorID.String()},
		"links": []any{
			map[string]any{"_ref": "missing"},
		},
	}

	frontier := substituteRefs(body, fetched)

	author, ok := body["author"].(map[string]any)
	if !ok {
		t.Fatalf("author was not substituted: %#v", body["author"])
	}
	if author["name"] != "Ada" {
		t.Errorf("expected resolved name Ada, got %v", author["name"])
	}
	if author["_id"] != authorID.String() {
		t.Errorf("expected _id %s, got %v", authorID, author["_id"])
	}
	if author["_type"] != "author" {
		t.Errorf("expected _type author, got %v", author["_type"])
	}

	// The dangling reference stays a marker.
	links := body["links"].([]any)
	if got := links[0].(map[string]any)["_ref"]; got != "missing" {
		t.Errorf("dangling reference was modified: %v", got)
	}

	if len(frontier) != 1 {
		t.Fatalf("expected frontier of 1 substituted body, got %d", len(frontier))
	}
	if frontier[0]["name"] != "Ada" {
		t.Errorf("frontier should carry the inlined body, got %v", frontier[0])
	}
}

func TestSubstituteRefs_InsideArray(t *testing.T) {
	id := uuid.New()
	fetched := map[string]*Document{
		id.String(): {ID: id, Type: "page", Data: map[string]any{"slug": "about"}},
	}
	body := map[string]any{
		"pages": []any{map[string]any{"_ref": id.String()}},
	}

	substituteRefs(body, fetched)

	page := body["pages"].([]any)[0].(map[string]any)
	if page["slug"] != "about" {
		t.Errorf("expected array element substituted, got %#v", page)
	}
}

func TestInlined_DoesNotMutateSource(t *testing.T) {
	doc := &Document{
		ID:        uuid.New(),
		Type:      "post",
		CreatedAt: time.Now(),
		Data:      map[string]any{"title": "t"},
	}

	body := inlined(doc)
	body["title"] = "changed"

	if doc.Data["title"] != "t" {
		t.Error("inlined body must be a copy of the source data")
	}
	if _, ok := doc.Data["_id"]; ok {
		t.Error("source data must not gain envelope keys")
	}
}
