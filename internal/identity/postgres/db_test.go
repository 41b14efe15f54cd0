// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sayedAmaan-6104/tpo-react/pkg/errutil"
)

func TestUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unique violation", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "identities_email_key"}, "identities_email_key"},
		{"wrapped unique violation", fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "x"}), "x"},
		{"foreign key violation", &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "fk"}, ""},
		{"plain error", errors.New("boom"), ""},
		{"nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, uniqueViolation(tt.err))
		})
	}
}

func TestParseID(t *testing.T) {
	id := ulid.Make()
	got, err := parseID(id.String(), "identity_id")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = parseID("not-a-ulid", "identity_id")
	errutil.AssertErrorCode(t, err, "ROW_INVALID_ID")
}

func TestConnPrefersTransactionInContext(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	assert.Equal(t, querier(mock), conn(context.Background(), mock))

	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), txKey{}, tx)
	assert.Equal(t, querier(tx), conn(ctx, mock))
}
