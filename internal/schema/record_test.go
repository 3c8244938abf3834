// internal/schema/record_test.go
package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileCreate(t *testing.T) {
	s := postsSchema()

	rec, errs := CompileCreate(s, map[string]any{
		"title":  "Hello",
		"views":  float64(3),
		"author": "user_1",
		"tags":   []any{"t1", "t2"},
	})
	require.Nil(t, errs)

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, []string{"id", "created_at", "updated_at", "title", "views"}, rec.Columns[:5])
	// Single relations land on the owning table, Many relations in join rows.
	assert.Contains(t, rec.Columns, "author")
	assert.NotContains(t, rec.Columns, "tags")
	assert.Equal(t, []string{"t1", "t2"}, rec.ManyRelations["tags"])

	// System values are injected, never read from input.
	assert.Equal(t, rec.ID, rec.Values[0])
	_, ok := rec.Values[1].(time.Time)
	assert.True(t, ok)
}

func TestCompileCreateIgnoresSystemKeys(t *testing.T) {
	s := postsSchema()

	rec, errs := CompileCreate(s, map[string]any{
		"title": "Hello",
		"id":    "attacker-chosen",
	})
	require.Nil(t, errs)
	assert.NotEqual(t, "attacker-chosen", rec.ID)
}

func TestCompileCreateCollectsAllErrors(t *testing.T) {
	s := &TableSchema{
		Name:         "posts",
		StringFields: []StringField{{Name: "title", Required: true}},
		NumberFields: []NumberField{{Name: "views", Min: int64Ptr(0)}},
		EmailFields:  []EmailField{{Name: "contact_mail"}},
	}

	_, errs := CompileCreate(s, map[string]any{
		"views":       float64(-5),
		"contactMail": "not-an-email",
	})
	require.NotNil(t, errs)

	// Every invalid field is reported at once, keyed by its wire name.
	assert.Len(t, errs, 3)
	assert.Contains(t, errs, "title")
	assert.Contains(t, errs, "views")
	assert.Contains(t, errs, "contactMail")
}

func TestCompileUpdatePartial(t *testing.T) {
	s := postsSchema()

	rec, errs := CompileUpdate(s, map[string]any{"views": float64(9)})
	require.Nil(t, errs)

	// Only updated_at and the touched field.
	assert.Equal(t, []string{"updated_at", "views"}, rec.Columns)
	assert.Empty(t, rec.ManyRelations)

	// An explicit null on a Many relation clears it.
	rec, errs = CompileUpdate(s, map[string]any{"tags": nil})
	require.Nil(t, errs)
	ids, touched := rec.ManyRelations["tags"]
	assert.True(t, touched)
	assert.Empty(t, ids)
}

func TestDecodeRow(t *testing.T) {
	s := &TableSchema{
		Name:          "posts",
		StringFields:  []StringField{{Name: "title"}},
		BooleanFields: []BooleanField{{Name: "published"}},
		DateFields:    []DateField{{Name: "published_at"}},
		SelectFields:  []SelectField{{Name: "labels", Options: []string{"a", "b"}}},
		RelationFields: []RelationField{
			{Name: "author", Table: "users", Cardinality: CardinalitySingle},
			{Name: "tags", Table: "tags", Cardinality: CardinalityMany},
		},
	}

	now := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	raw := map[string]any{
		"id":           "rec_1",
		"created_at":   now,
		"updated_at":   nil,
		"title":        []byte("Hello"),
		"published":    nil,
		"published_at": now,
		"labels":       []byte(`["a","b"]`),
		"author":       []byte(`{"id":"user_1","name":"Ana"}`),
		"tags":         nil,
	}

	doc := DecodeRow(s, raw)

	assert.Equal(t, "rec_1", doc["id"])
	assert.Equal(t, "2026-08-28T10:00:00Z", doc["createdAt"])
	assert.Nil(t, doc["updatedAt"])
	assert.Equal(t, "Hello", doc["title"])
	// Booleans read back as false, never null.
	assert.Equal(t, false, doc["published"])
	assert.Equal(t, "2026-08-28T10:00:00Z", doc["publishedAt"])
	assert.Equal(t, []any{"a", "b"}, doc["labels"])

	author, ok := doc["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user_1", author["id"])
	// Empty Many relations decode to an empty list, not null.
	assert.Equal(t, []any{}, doc["tags"])
}
