// internal/schema/ddl_test.go
package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateTableSQL(t *testing.T) {
	s := &TableSchema{
		Name: "posts",
		StringFields: []StringField{
			{Name: "title", Required: true},
			{Name: "slug", Required: true, Unique: true},
		},
		NumberFields:  []NumberField{{Name: "views"}},
		BooleanFields: []BooleanField{{Name: "published"}},
		DateFields:    []DateField{{Name: "published_at"}},
		RelationFields: []RelationField{
			{Name: "author", Table: "users", Cardinality: CardinalitySingle, Required: true, CascadeDelete: true},
			{Name: "tags", Table: "tags", Cardinality: CardinalityMany},
		},
	}

	sql := CreateTableSQL(s)

	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS posts")
	assert.Contains(t, sql, "id TEXT PRIMARY KEY")
	assert.Contains(t, sql, "created_at TIMESTAMPTZ NOT NULL DEFAULT now()")
	assert.Contains(t, sql, "updated_at TIMESTAMPTZ")
	assert.Contains(t, sql, "title TEXT NOT NULL")
	assert.Contains(t, sql, "slug TEXT NOT NULL UNIQUE")
	assert.Contains(t, sql, "views BIGINT")
	assert.Contains(t, sql, "published BOOLEAN NOT NULL DEFAULT false")
	assert.Contains(t, sql, "published_at TIMESTAMPTZ")
	assert.Contains(t, sql, "author TEXT NOT NULL REFERENCES users (id) ON UPDATE CASCADE ON DELETE CASCADE")
	// Many relations live in a join table, not on the owning table.
	assert.NotContains(t, sql, "tags")
}

func TestJoinTableSQLs(t *testing.T) {
	s := &TableSchema{
		Name: "posts",
		RelationFields: []RelationField{
			{Name: "author", Table: "users", Cardinality: CardinalitySingle},
			{Name: "tags", Table: "tags", Cardinality: CardinalityMany},
		},
	}

	stmts := JoinTableSQLs(s)
	if len(stmts) != 1 {
		t.Fatalf("JoinTableSQLs = %d statements; want 1", len(stmts))
	}
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS posts_tags_to_tags")
	assert.Contains(t, stmts[0], "posts_id TEXT NOT NULL REFERENCES posts (id) ON UPDATE CASCADE ON DELETE CASCADE")
	assert.Contains(t, stmts[0], "tags_id TEXT NOT NULL REFERENCES tags (id) ON UPDATE CASCADE ON DELETE CASCADE")
}

func TestSelectColumns(t *testing.T) {
	s := &TableSchema{
		Name:         "posts",
		StringFields: []StringField{{Name: "title"}},
		SelectFields: []SelectField{
			{Name: "status", Options: []string{"draft", "live"}, MaxSelected: intPtr(1)},
			{Name: "labels", Options: []string{"a", "b"}},
		},
		RelationFields: []RelationField{
			{Name: "author", Table: "users", Cardinality: CardinalitySingle},
			{Name: "tags", Table: "tags", Cardinality: CardinalityMany},
		},
	}

	cols := SelectColumns(s)
	joined := strings.Join(cols, ", ")

	assert.Equal(t, "posts.id", cols[0])
	assert.Contains(t, joined, "posts.title")
	assert.Contains(t, joined, "posts.status")
	assert.Contains(t, joined, "to_json(posts.labels) AS labels")
	assert.Contains(t, joined, "row_to_json")
	assert.Contains(t, joined, "json_agg")
	assert.Contains(t, joined, "posts_tags_to_tags")
	// The raw FK column never appears as its own projection entry; the embed
	// is aliased to the field name instead.
	assert.NotContains(t, cols, "posts.author")
	assert.Contains(t, joined, "AS author")
}
