package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mesh-intelligence/rowstore/pkg/types"
)

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"people"`, quoteIdent("people"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
	assert.Equal(t, `"select"`, quoteIdent("select"))
}

func TestWhereClause(t *testing.T) {
	tests := []struct {
		name      string
		tmpl      types.Template
		wantQuery string
		wantArgs  []any
	}{
		{"empty", nil, "", nil},
		{"single", types.Template{"id": "a"}, ` WHERE "id" = ?`, []any{"a"}},
		{"sorted", types.Template{"yearID": 2004, "playerID": "x"}, ` WHERE "playerID" = ? AND "yearID" = ?`, []any{"x", 2004}},
		{"null", types.Template{"note": nil}, ` WHERE "note" IS ?`, []any{nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := whereClause(tt.tmpl)
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestSelectStatement(t *testing.T) {
	known := map[string]bool{"id": true, "year": true}

	tests := []struct {
		name      string
		tmpl      types.Template
		opts      types.FindOptions
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "all rows",
			wantQuery: `SELECT * FROM "t"`,
		},
		{
			name:      "template",
			tmpl:      types.Template{"year": "1990"},
			wantQuery: `SELECT * FROM "t" WHERE "year" = ?`,
			wantArgs:  []any{"1990"},
		},
		{
			name:      "order drops unknown columns",
			opts:      types.FindOptions{OrderBy: []string{"-year", "ghost", "id"}},
			wantQuery: `SELECT * FROM "t" ORDER BY "year" DESC, "id" ASC`,
		},
		{
			name:      "limit",
			opts:      types.FindOptions{Limit: 2},
			wantQuery: `SELECT * FROM "t" LIMIT ? OFFSET ?`,
			wantArgs:  []any{2, 0},
		},
		{
			name:      "offset without limit",
			opts:      types.FindOptions{Offset: 3},
			wantQuery: `SELECT * FROM "t" LIMIT ? OFFSET ?`,
			wantArgs:  []any{-1, 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			query, args := selectStatement("t", tt.tmpl, &opts, known)
			assert.Equal(t, tt.wantQuery, query)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestMutationStatements(t *testing.T) {
	query, args := deleteStatement("t", types.Template{"id": "a"})
	assert.Equal(t, `DELETE FROM "t" WHERE "id" = ?`, query)
	assert.Equal(t, []any{"a"}, args)

	query, args = countStatement("t", nil)
	assert.Equal(t, `SELECT COUNT(*) FROM "t"`, query)
	assert.Nil(t, args)

	query, args = updateStatement("t", types.Template{"id": "a"}, types.Row{"year": "2000", "city": "Denver"})
	assert.Equal(t, `UPDATE "t" SET "city" = ?, "year" = ? WHERE "id" = ?`, query)
	assert.Equal(t, []any{"Denver", "2000", "a"}, args)

	query, args = insertStatement("t", types.Row{"id": "a", "year": "2000"})
	assert.Equal(t, `INSERT INTO "t" ("id", "year") VALUES (?, ?)`, query)
	assert.Equal(t, []any{"a", "2000"}, args)

	query, args = insertStatement("t", types.Row{})
	assert.Equal(t, `INSERT INTO "t" DEFAULT VALUES`, query)
	assert.Nil(t, args)
}

func TestSchemaStatements(t *testing.T) {
	assert.Equal(t,
		`SELECT "playerID", "yearID", COUNT(*) FROM "t" WHERE "playerID" IS NOT NULL AND "yearID" IS NOT NULL GROUP BY "playerID", "yearID" HAVING COUNT(*) > 1`,
		duplicateKeyProbe("t", []string{"playerID", "yearID"}))

	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "t" ("id" TEXT, "year" TEXT, PRIMARY KEY ("id"))`,
		createTableStatement("t", []string{"id", "year"}, []string{"id"}))

	assert.Equal(t,
		`CREATE TABLE IF NOT EXISTS "t" ("id" TEXT)`,
		createTableStatement("t", []string{"id"}, nil))
}
