// internal/schema/relation_test.go
package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinTableSQLSelfReference(t *testing.T) {
	f := RelationField{Name: "friends", Table: "users", Cardinality: CardinalityMany}

	sql := JoinTableSQL("users", f)

	// Both endpoints are the same table, so the columns fall back to
	// source_id/target_id instead of colliding on users_id.
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS users_friends_to_users")
	assert.Contains(t, sql, "source_id TEXT NOT NULL REFERENCES users (id)")
	assert.Contains(t, sql, "target_id TEXT NOT NULL REFERENCES users (id)")
	assert.Equal(t, 1, strings.Count(sql, "source_id"))
	assert.Equal(t, 1, strings.Count(sql, "target_id"))

	assert.Equal(t,
		"INSERT INTO users_friends_to_users (id, source_id, target_id) VALUES ($1, $2, $3)",
		JoinInsertSQL("users", f))
	assert.Equal(t,
		"DELETE FROM users_friends_to_users WHERE source_id = $1",
		JoinDeleteSQL("users", f))
}

func TestJoinTableSQLDistinctTables(t *testing.T) {
	f := RelationField{Name: "tags", Table: "tags", Cardinality: CardinalityMany}

	sql := JoinTableSQL("posts", f)
	assert.Contains(t, sql, "posts_id TEXT NOT NULL REFERENCES posts (id)")
	assert.Contains(t, sql, "tags_id TEXT NOT NULL REFERENCES tags (id)")
	assert.Equal(t,
		"INSERT INTO posts_tags_to_tags (id, posts_id, tags_id) VALUES ($1, $2, $3)",
		JoinInsertSQL("posts", f))
}

func TestSelfReferenceEmbedsKeepCorrelation(t *testing.T) {
	s := &TableSchema{
		Name: "users",
		RelationFields: []RelationField{
			{Name: "manager", Table: "users", Cardinality: CardinalitySingle},
			{Name: "friends", Table: "users", Cardinality: CardinalityMany},
		},
	}

	cols := SelectColumns(s)
	require.Len(t, cols, 5)

	single := cols[3]
	// The inner table is aliased, so users.manager resolves to the outer row
	// instead of being shadowed by the embedded SELECT's own FROM.
	assert.Contains(t, single, "FROM users tgt")
	assert.Contains(t, single, "tgt.id = users.manager")
	assert.Contains(t, single, "AS manager")
	assert.NotContains(t, single, "users.id = users.manager")

	many := cols[4]
	assert.Contains(t, many, "FROM users tgt")
	assert.Contains(t, many, "SELECT target_id FROM users_friends_to_users WHERE source_id = users.id")
	assert.Contains(t, many, "AS friends")
}
