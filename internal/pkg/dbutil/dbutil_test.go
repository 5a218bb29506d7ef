package dbutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestFinalizeRewritesLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM documents WHERE title=? ORDER BY ctime DESC LIMIT ?,?", []interface{}{"a", uint(10), uint(20)})
	require.Equal(t, "SELECT id FROM documents WHERE title=$1 ORDER BY ctime DESC LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{"a", uint(20), uint(10)}, args)
}

func TestFinalizeWithoutLimit(t *testing.T) {
	query, args := Finalize("DELETE FROM documents WHERE id=?", []interface{}{"d1"})
	require.Equal(t, "DELETE FROM documents WHERE id=$1", query)
	require.Equal(t, []interface{}{"d1"}, args)
}

func TestIsConflict(t *testing.T) {
	require.True(t, IsConflict(fmt.Errorf("insert: %w", &pq.Error{Code: "23505"})))
	require.False(t, IsConflict(&pq.Error{Code: "23503"}))
	require.False(t, IsConflict(errors.New("boom")))
}
