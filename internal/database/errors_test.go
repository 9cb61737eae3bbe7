package database

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"go.uber.org/multierr"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassPermanent},
		{"serialization", &pq.Error{Code: "40001"}, ErrorClassSerialization},
		{"deadlock", fmt.Errorf("lock user: %w", &pq.Error{Code: "40P01"}), ErrorClassDeadlock},
		{"lock not available", &pq.Error{Code: "55P03"}, ErrorClassTransient},
		{"unique", &pq.Error{Code: "23505"}, ErrorClassPermanent},
		{"no rows", sql.ErrNoRows, ErrorClassPermanent},
		{"plain", errors.New("boom"), ErrorClassPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestIsRetryableThroughMultiErr(t *testing.T) {
	err := multierr.Append(&pq.Error{Code: "40001"}, errors.New("rollback failed"))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(&pq.Error{Code: "23503"}))
}

func TestIsOrderNumberTaken(t *testing.T) {
	taken := fmt.Errorf("insert order: %w", &pq.Error{Code: "23505", Constraint: "orders_order_number_key"})
	other := &pq.Error{Code: "23505", Constraint: "users_email_key"}

	assert.True(t, IsOrderNumberTaken(taken))
	assert.True(t, IsOrderNumberTaken(ErrOrderNumberTaken))
	assert.False(t, IsOrderNumberTaken(other))
	assert.True(t, IsUniqueViolation(other, ""))
	assert.False(t, IsUniqueViolation(errors.New("duplicate"), ""))
}
