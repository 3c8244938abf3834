// internal/storage/record_repo_test.go
package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/pulsar-base/pulsar-backend/internal/schema"
)

func TestMapWriteError(t *testing.T) {
	s := &schema.TableSchema{Name: "posts"}

	testCases := []struct {
		name        string
		err         error
		wantErr     error
		wantMessage string
	}{
		{
			"unique violation on owning table",
			&pgconn.PgError{Code: "23505", ConstraintName: "posts_slug_key"},
			ErrUniqueViolation,
			"column 'slug'",
		},
		{
			// Join-table constraints carry the join table's prefix; the raw
			// constraint name passes through instead of a mangled column.
			"unique violation from a join table",
			&pgconn.PgError{Code: "23505", ConstraintName: "posts_tags_to_tags_pkey"},
			ErrUniqueViolation,
			"constraint posts_tags_to_tags_pkey",
		},
		{
			"foreign key violation",
			&pgconn.PgError{Code: "23503", ConstraintName: "posts_author_fkey"},
			ErrRelationNotFound,
			"posts_author_fkey",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapWriteError(tc.err, s)
			assert.ErrorIs(t, got, tc.wantErr)
			assert.Contains(t, got.Error(), tc.wantMessage)
		})
	}

	t.Run("unrelated errors pass through", func(t *testing.T) {
		plain := fmt.Errorf("connection reset")
		assert.Equal(t, plain, mapWriteError(plain, s))
	})

	t.Run("other pg codes pass through", func(t *testing.T) {
		pgErr := &pgconn.PgError{Code: "57014"}
		got := mapWriteError(pgErr, s)
		var out *pgconn.PgError
		assert.True(t, errors.As(got, &out))
		assert.False(t, errors.Is(got, ErrUniqueViolation))
	})
}
