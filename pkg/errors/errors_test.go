package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_ELSE"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
	assert.True(t, meta.Retryable)
}

func TestAsFindsWrappedError(t *testing.T) {
	typed := New(CodeScopeMissing, "no cart in scope")
	wrapped := fmt.Errorf("handler: %w", typed)

	got := As(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, CodeScopeMissing, got.Code())
	assert.True(t, IsCode(wrapped, CodeScopeMissing))
	assert.False(t, IsCode(wrapped, CodeValidation))
	assert.Nil(t, As(fmt.Errorf("plain")))
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	assert.Equal(t, CodeInternal, e.Code())
	assert.Empty(t, e.Message())
	assert.Nil(t, e.Details())
	assert.Nil(t, e.Unwrap())
}

func TestDumpCollectsChainAndPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "cart_snapshots_pkey", TableName: "cart_snapshots", Message: "duplicate key value"}
	err := Wrap(CodeDependency, fmt.Errorf("upsert: %w", pgErr), "persist cart")

	dump := Dump(err)
	assert.Equal(t, CodeDependency, dump.Code)
	assert.Len(t, dump.Chain, 3)
	assert.Equal(t, "23505", dump.PGCode)
	assert.Equal(t, "cart_snapshots_pkey", dump.PGConstraint)

	fields := dump.Fields()
	assert.Equal(t, "23505", fields["pg_code"])

	plain := Dump(fmt.Errorf("boom")).Fields()
	_, ok := plain["pg_code"]
	assert.False(t, ok)
}
