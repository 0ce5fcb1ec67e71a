package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "results", []string{"a", "b"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"results"}, []string{"a", "b"}).WillReturnResult(3)

	rows := [][]any{{1, "x"}, {2, "y"}, {3, "z"}}
	n, err := CopyFrom(context.Background(), mock, "results", []string{"a", "b"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_ShortWrite(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"results"}, []string{"a"}).WillReturnResult(1)

	_, err = CopyFrom(context.Background(), mock, "results", []string{"a"}, [][]any{{1}, {2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wrote 1 of 2")
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"results"}, []string{"a", "b"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "results", []string{"a", "b"}, [][]any{{1, "x"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO results")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertSQL(t *testing.T) {
	tests := []struct {
		name string
		cfg  UpsertConfig
		ph   Placeholder
		want string
	}{
		{
			name: "postgres default update columns",
			cfg: UpsertConfig{
				Table:        "resistor_profiles",
				Columns:      []string{"name", "data"},
				ConflictKeys: []string{"name"},
			},
			ph:   Dollar,
			want: `INSERT INTO "resistor_profiles" ("name", "data") VALUES ($1, $2) ON CONFLICT ("name") DO UPDATE SET "data" = EXCLUDED."data"`,
		},
		{
			name: "sqlite explicit update columns",
			cfg: UpsertConfig{
				Table:        "t",
				Columns:      []string{"k", "a", "b"},
				ConflictKeys: []string{"k"},
				UpdateCols:   []string{"b"},
			},
			ph:   Question,
			want: `INSERT INTO "t" ("k", "a", "b") VALUES (?, ?, ?) ON CONFLICT ("k") DO UPDATE SET "b" = EXCLUDED."b"`,
		},
		{
			name: "keys only",
			cfg: UpsertConfig{
				Table:        "t",
				Columns:      []string{"k"},
				ConflictKeys: []string{"k"},
			},
			ph:   Question,
			want: `INSERT INTO "t" ("k") VALUES (?) ON CONFLICT ("k") DO NOTHING`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UpsertSQL(tt.cfg, tt.ph)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUpsertSQL_Invalid(t *testing.T) {
	_, err := UpsertSQL(UpsertConfig{Table: "t", ConflictKeys: []string{"k"}}, Dollar)
	assert.Error(t, err)

	_, err = UpsertSQL(UpsertConfig{Table: "t", Columns: []string{"k"}}, Dollar)
	assert.Error(t, err)
}
