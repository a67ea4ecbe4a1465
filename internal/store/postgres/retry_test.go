package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"martpos/backend/internal/store"
)

func TestIsRetryableMatchesConflictCodes(t *testing.T) {
	for _, code := range []string{"23505", "40001", "40P01"} {
		if !isRetryable(&pgconn.PgError{Code: code}) {
			t.Fatalf("expected code %s to be retryable", code)
		}
	}
	if isRetryable(&pgconn.PgError{Code: "23503"}) {
		t.Fatal("foreign key violation must not be retryable")
	}
	if isRetryable(errors.New("connection reset")) {
		t.Fatal("non-pg errors must not be retryable")
	}
	if !isRetryable(fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})) {
		t.Fatal("wrapped serialization failure must be retryable")
	}
}

func TestRetryExhaustedSurfacesAsConflict(t *testing.T) {
	last := &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	err := retryExhausted("checkout", txnIDMaxAttempts, last)

	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected conflict classification, got %v", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		t.Fatal("driver error must not remain unwrappable from the result")
	}
}
