// internal/schema/diff_test.go
package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postsSchema() *TableSchema {
	return &TableSchema{
		Name:         "posts",
		StringFields: []StringField{{Name: "title", Required: true}},
		NumberFields: []NumberField{{Name: "views"}},
		RelationFields: []RelationField{
			{Name: "author", Table: "users", Cardinality: CardinalitySingle},
			{Name: "tags", Table: "tags", Cardinality: CardinalityMany},
		},
	}
}

func TestDiffAddAndDropColumns(t *testing.T) {
	change := ChangeSet{Actions: []FieldAction{
		{Type: FieldActionCreate, Field: StringField{Name: "summary"}},
		{Type: FieldActionDelete, FieldName: "views"},
	}}

	m, err := Diff(postsSchema(), change)
	require.NoError(t, err)

	// Adds and drops batch into one ALTER TABLE.
	require.Len(t, m.Statements, 1)
	assert.Contains(t, m.Statements[0], "ALTER TABLE posts")
	assert.Contains(t, m.Statements[0], "ADD COLUMN summary TEXT")
	assert.Contains(t, m.Statements[0], "DROP COLUMN views")

	_, exists := m.Updated.FieldByName("summary")
	assert.True(t, exists)
	_, exists = m.Updated.FieldByName("views")
	assert.False(t, exists)
}

func TestDiffRenameColumnStandalone(t *testing.T) {
	change := ChangeSet{Actions: []FieldAction{
		{Type: FieldActionUpdate, FieldName: "views", Field: NumberField{Name: "view_count"}},
		{Type: FieldActionCreate, Field: BooleanField{Name: "published"}},
	}}

	m, err := Diff(postsSchema(), change)
	require.NoError(t, err)

	// Postgres cannot batch RENAME COLUMN with other alterations, so the
	// rename comes first on its own, then the batched ALTER.
	require.Len(t, m.Statements, 2)
	assert.Equal(t, "ALTER TABLE posts RENAME COLUMN views TO view_count;", m.Statements[0])
	assert.Contains(t, m.Statements[1], "ADD COLUMN published BOOLEAN NOT NULL DEFAULT false")
}

func TestDiffConstraintToggles(t *testing.T) {
	change := ChangeSet{Actions: []FieldAction{
		{Type: FieldActionUpdate, FieldName: "title", Field: StringField{Name: "title", Required: false, Unique: true}},
	}}

	m, err := Diff(postsSchema(), change)
	require.NoError(t, err)
	require.Len(t, m.Statements, 1)
	assert.Contains(t, m.Statements[0], "ALTER COLUMN title DROP NOT NULL")
	assert.Contains(t, m.Statements[0], "ADD CONSTRAINT posts_title_key UNIQUE (title)")
}

func TestDiffTypeChangeDropsAndReadds(t *testing.T) {
	change := ChangeSet{Actions: []FieldAction{
		{Type: FieldActionUpdate, FieldName: "views", Field: StringField{Name: "views"}},
	}}

	m, err := Diff(postsSchema(), change)
	require.NoError(t, err)
	require.Len(t, m.Statements, 1)
	assert.Contains(t, m.Statements[0], "DROP COLUMN views")
	assert.Contains(t, m.Statements[0], "ADD COLUMN views TEXT")
}

func TestDiffSingleToMany(t *testing.T) {
	change := ChangeSet{Actions: []FieldAction{
		{Type: FieldActionUpdate, FieldName: "author", Field: RelationField{Name: "author", Table: "users", Cardinality: CardinalityMany}},
	}}

	m, err := Diff(postsSchema(), change)
	require.NoError(t, err)
	require.Len(t, m.Statements, 3)

	// Create the join table, backfill it from the FK column, then drop the
	// column. Order matters: the populate reads the column.
	assert.Contains(t, m.Statements[0], "CREATE TABLE IF NOT EXISTS posts_author_to_users")
	assert.Contains(t, m.Statements[1], "INSERT INTO posts_author_to_users")
	assert.Contains(t, m.Statements[1], "gen_random_uuid()::text")
	assert.Contains(t, m.Statements[1], "WHERE author IS NOT NULL")
	assert.Contains(t, m.Statements[2], "DROP COLUMN author")
}

func TestDiffManyToSingle(t *testing.T) {
	change := ChangeSet{Actions: []FieldAction{
		{Type: FieldActionUpdate, FieldName: "tags", Field: RelationField{Name: "tags", Table: "tags", Cardinality: CardinalitySingle}},
	}}

	m, err := Diff(postsSchema(), change)
	require.NoError(t, err)
	require.Len(t, m.Statements, 3)

	assert.Contains(t, m.Statements[0], "ADD COLUMN tags TEXT")
	// The most recently created related row wins; join row id breaks ties.
	assert.Contains(t, m.Statements[1], "ORDER BY rel.created_at DESC, jt.id ASC LIMIT 1")
	assert.Contains(t, m.Statements[2], "DROP TABLE IF EXISTS posts_tags_to_tags")
}

func TestDiffManyToSingleRequired(t *testing.T) {
	change := ChangeSet{Actions: []FieldAction{
		{Type: FieldActionUpdate, FieldName: "tags", Field: RelationField{Name: "tags", Table: "tags", Cardinality: CardinalitySingle, Required: true}},
	}}

	m, err := Diff(postsSchema(), change)
	require.NoError(t, err)
	require.Len(t, m.Statements, 4)

	// The column must arrive nullable: adding it NOT NULL would fail on any
	// non-empty table. The constraint tightens only after the backfill.
	assert.Contains(t, m.Statements[0], "ADD COLUMN tags TEXT")
	assert.NotContains(t, m.Statements[0], "NOT NULL")
	assert.Contains(t, m.Statements[1], "UPDATE posts SET tags")
	assert.Equal(t, "ALTER TABLE posts ALTER COLUMN tags SET NOT NULL;", m.Statements[2])
	assert.Equal(t, "DROP TABLE IF EXISTS posts_tags_to_tags;", m.Statements[3])
}

func TestDiffSelfRelationCardinalityChange(t *testing.T) {
	users := &TableSchema{
		Name:           "users",
		RelationFields: []RelationField{{Name: "manager", Table: "users", Cardinality: CardinalitySingle}},
	}
	change := ChangeSet{Actions: []FieldAction{
		{Type: FieldActionUpdate, FieldName: "manager", Field: RelationField{Name: "manager", Table: "users", Cardinality: CardinalityMany}},
	}}

	m, err := Diff(users, change)
	require.NoError(t, err)
	require.Len(t, m.Statements, 3)

	// Self-referencing join tables use the source_id/target_id fallback, and
	// the backfill writes into those columns.
	assert.Contains(t, m.Statements[0], "source_id TEXT NOT NULL REFERENCES users (id)")
	assert.Contains(t, m.Statements[1], "INSERT INTO users_manager_to_users (id, source_id, target_id)")
	assert.Contains(t, m.Statements[2], "DROP COLUMN manager")
}

func TestDiffManyRelationDrop(t *testing.T) {
	change := ChangeSet{Actions: []FieldAction{
		{Type: FieldActionDelete, FieldName: "tags"},
	}}

	m, err := Diff(postsSchema(), change)
	require.NoError(t, err)
	require.Len(t, m.Statements, 1)
	assert.Equal(t, "DROP TABLE IF EXISTS posts_tags_to_tags;", m.Statements[0])
}

func TestDiffManyRelationRename(t *testing.T) {
	change := ChangeSet{Actions: []FieldAction{
		{Type: FieldActionUpdate, FieldName: "tags", Field: RelationField{Name: "topics", Table: "tags", Cardinality: CardinalityMany}},
	}}

	m, err := Diff(postsSchema(), change)
	require.NoError(t, err)
	require.Len(t, m.Statements, 1)
	assert.Equal(t, "ALTER TABLE posts_tags_to_tags RENAME TO posts_topics_to_tags;", m.Statements[0])
}

func TestDiffTableRename(t *testing.T) {
	change := ChangeSet{Rename: "articles"}

	m, err := Diff(postsSchema(), change)
	require.NoError(t, err)
	require.Len(t, m.Statements, 2)

	// Join tables embed the owner name, so they move before the table itself.
	assert.Equal(t, "ALTER TABLE posts_tags_to_tags RENAME TO articles_tags_to_tags;", m.Statements[0])
	assert.Equal(t, "ALTER TABLE posts RENAME TO articles;", m.Statements[1])
	assert.Equal(t, "articles", m.Updated.Name)
}

func TestDiffGroupOrdering(t *testing.T) {
	change := ChangeSet{
		Rename: "articles",
		Actions: []FieldAction{
			{Type: FieldActionUpdate, FieldName: "views", Field: NumberField{Name: "view_count"}},
			{Type: FieldActionCreate, Field: StringField{Name: "summary"}},
			{Type: FieldActionDelete, FieldName: "tags"},
		},
	}

	m, err := Diff(postsSchema(), change)
	require.NoError(t, err)
	require.Len(t, m.Statements, 4)

	// Column rename, batched ALTER, join-table drop, table rename, in that
	// order so every earlier statement still sees the original table name.
	assert.Equal(t, "ALTER TABLE posts RENAME COLUMN views TO view_count;", m.Statements[0])
	assert.Contains(t, m.Statements[1], "ALTER TABLE posts ")
	assert.Contains(t, m.Statements[1], "ADD COLUMN summary TEXT")
	assert.Equal(t, "DROP TABLE IF EXISTS posts_tags_to_tags;", m.Statements[2])
	assert.Equal(t, "ALTER TABLE posts RENAME TO articles;", m.Statements[3])
	assert.Equal(t, "articles", m.Updated.Name)
}

func TestDiffPermissionsReplacement(t *testing.T) {
	rule := "@request.user == author"
	change := ChangeSet{Permissions: &Permissions{View: strPtr(rule), Strict: false}}

	m, err := Diff(postsSchema(), change)
	require.NoError(t, err)
	assert.Empty(t, m.Statements)
	require.NotNil(t, m.Updated.Permissions.View)
	assert.Equal(t, rule, *m.Updated.Permissions.View)
}

func TestDiffRejectsBadActions(t *testing.T) {
	for name, change := range map[string]ChangeSet{
		"duplicate create": {Actions: []FieldAction{{Type: FieldActionCreate, Field: StringField{Name: "title"}}}},
		"unknown delete":   {Actions: []FieldAction{{Type: FieldActionDelete, FieldName: "nope"}}},
		"missing field":    {Actions: []FieldAction{{Type: FieldActionCreate}}},
		"unknown action":   {Actions: []FieldAction{{Type: "replace", FieldName: "title"}}},
		"bad rename":       {Rename: "Bad Name"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Diff(postsSchema(), change)
			assert.ErrorIs(t, err, ErrInvalidSchema)
		})
	}
}
