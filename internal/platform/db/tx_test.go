package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestTxFromContext_Nil(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Error("expected nil tx from empty context")
	}
}

func TestTxFromContext_WithWrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), txKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Error("expected nil when context value is wrong type")
	}
}

func TestWithTx_NoPool(t *testing.T) {
	_, _, err := WithTx(context.Background(), nil)
	if !errors.Is(err, ErrNoPool) {
		t.Errorf("expected ErrNoPool, got %v", err)
	}
}

func TestInTx_NoPool(t *testing.T) {
	called := false
	err := InTx(context.Background(), nil, func(ctx context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNoPool) {
		t.Errorf("expected ErrNoPool, got %v", err)
	}
	if called {
		t.Error("fn must not run without a transaction")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert visit: %w", &pgconn.PgError{Code: "23505", ConstraintName: "visit_one_active_per_patient"})

	if !IsUniqueViolation(err, "") {
		t.Error("expected unique violation")
	}
	if !IsUniqueViolation(err, "visit_one_active_per_patient") {
		t.Error("expected constraint match")
	}
	if IsUniqueViolation(err, "consultation_visit_id_key") {
		t.Error("expected constraint mismatch")
	}
	if IsUniqueViolation(errors.New("boom"), "") {
		t.Error("plain error is not a unique violation")
	}
	if IsForeignKeyViolation(err) {
		t.Error("unique violation is not a foreign key violation")
	}
}

func TestIsNoRows(t *testing.T) {
	if !IsNoRows(fmt.Errorf("get visit: %w", pgx.ErrNoRows)) {
		t.Error("expected wrapped ErrNoRows to match")
	}
	if IsNoRows(errors.New("other")) {
		t.Error("unexpected match")
	}
}
