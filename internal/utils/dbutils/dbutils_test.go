package dbutils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
)

func TestUniqueViolation(t *testing.T) {
	dup := &pq.Error{Code: "23505", Constraint: "rule_schemas_v1_pkey"}
	if got := UniqueViolation(fmt.Errorf("insert schema: %w", dup)); got == nil || got.Constraint != "rule_schemas_v1_pkey" {
		t.Errorf("expected a wrapped unique violation, got %v", got)
	}
	if UniqueViolation(&pq.Error{Code: "23503"}) != nil {
		t.Error("a foreign key violation is not a unique violation")
	}
	if UniqueViolation(errors.New("23505")) != nil {
		t.Error("only pq errors carry a code")
	}
}
