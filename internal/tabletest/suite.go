// Package tabletest holds the behavioral suite every types.Table backend
// must pass. Backend packages call Run from their own tests with a Factory
// that builds a table over the given fixture.
package tabletest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/rowstore/pkg/types"
)

// Fixture describes the table a Factory must build. Every value is a string.
type Fixture struct {
	Name       string
	KeyColumns []string
	Columns    []string
	Rows       []types.Row
}

// Factory builds a table holding exactly f.Rows. It registers any cleanup
// with t.
type Factory func(t *testing.T, f Fixture) types.Table

// PeopleColumns is the column set of the People fixture.
var PeopleColumns = []string{"playerID", "nameFirst", "nameLast", "birthYear", "birthCity"}

// People returns a small player table keyed by playerID.
func People() Fixture {
	return Fixture{
		Name:       "people",
		KeyColumns: []string{"playerID"},
		Columns:    PeopleColumns,
		Rows: []types.Row{
			{"playerID": "aardsda01", "nameFirst": "David", "nameLast": "Aardsma", "birthYear": "1981", "birthCity": "Denver"},
			{"playerID": "abbeybe01", "nameFirst": "Bert", "nameLast": "Abbey", "birthYear": "1869", "birthCity": "Essex"},
			{"playerID": "barbeja01", "nameFirst": "Jap", "nameLast": "Barbeau", "birthYear": "1882", "birthCity": "New York"},
			{"playerID": "bardda01", "nameFirst": "Daniel", "nameLast": "Bard", "birthYear": "1985", "birthCity": "Houston"},
			{"playerID": "aaronha01", "nameFirst": "Hank", "nameLast": "Aaron", "birthYear": "1934", "birthCity": "Mobile"},
		},
	}
}

// Appearances returns a table keyed by the composite (playerID, yearID).
func Appearances() Fixture {
	return Fixture{
		Name:       "appearances",
		KeyColumns: []string{"playerID", "yearID"},
		Columns:    []string{"playerID", "yearID", "teamID", "games"},
		Rows: []types.Row{
			{"playerID": "aardsda01", "yearID": "2004", "teamID": "SFN", "games": "11"},
			{"playerID": "aardsda01", "yearID": "2006", "teamID": "CHN", "games": "45"},
			{"playerID": "aaronha01", "yearID": "1954", "teamID": "ML1", "games": "122"},
		},
	}
}

// Births returns the two-row table used by the end-to-end delete scenario.
func Births() Fixture {
	return Fixture{
		Name:       "births",
		KeyColumns: []string{"id"},
		Columns:    []string{"id", "year"},
		Rows: []types.Row{
			{"id": "a", "year": "1990"},
			{"id": "b", "year": "1990"},
		},
	}
}

func rowCount(t *testing.T, tbl types.Table) int {
	t.Helper()
	rows, err := tbl.Rows()
	require.NoError(t, err)
	return len(rows)
}

// Run executes the full suite against tables built by newTable.
func Run(t *testing.T, newTable Factory) {
	t.Run("FindByPrimaryKey", func(t *testing.T) { testFindByPrimaryKey(t, newTable) })
	t.Run("FindByTemplate", func(t *testing.T) { testFindByTemplate(t, newTable) })
	t.Run("FindOptions", func(t *testing.T) { testFindOptions(t, newTable) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newTable) })
	t.Run("Insert", func(t *testing.T) { testInsert(t, newTable) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newTable) })
	t.Run("CompositeKey", func(t *testing.T) { testCompositeKey(t, newTable) })
	t.Run("NoPrimaryKey", func(t *testing.T) { testNoPrimaryKey(t, newTable) })
	t.Run("EndToEnd", func(t *testing.T) { testEndToEnd(t, newTable) })
}

func testFindByPrimaryKey(t *testing.T, newTable Factory) {
	tbl := newTable(t, People())

	got, err := tbl.FindByPrimaryKey([]any{"aardsda01"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Aardsma", got[0]["nameLast"])

	got, err = tbl.FindByPrimaryKey([]any{"nobody01"})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = tbl.FindByPrimaryKey([]any{"aardsda01", "1981"})
	assert.ErrorIs(t, err, types.ErrInvalidKeyArity)

	_, err = tbl.FindByPrimaryKey(nil)
	assert.ErrorIs(t, err, types.ErrInvalidKeyArity)

	got, err = tbl.FindByPrimaryKey([]any{"aardsda01"}, "nameFirst", "nameLast", "birthCity")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, types.Row{"nameFirst": "David", "nameLast": "Aardsma", "birthCity": "Denver"}, got[0])

	_, err = tbl.FindByPrimaryKey([]any{"aardsda01"}, "personality")
	assert.ErrorIs(t, err, types.ErrInvalidField)
}

func testFindByTemplate(t *testing.T, newTable Factory) {
	tbl := newTable(t, People())

	t.Run("nil and empty templates return every row", func(t *testing.T) {
		all, err := tbl.FindByTemplate(nil, nil)
		require.NoError(t, err)
		assert.Len(t, all, 5)

		all, err = tbl.FindByTemplate(types.Template{}, &types.FindOptions{})
		require.NoError(t, err)
		assert.Len(t, all, 5)
	})

	t.Run("every result satisfies the template", func(t *testing.T) {
		tmpl := types.Template{"nameFirst": "David", "birthCity": "Denver"}
		got, err := tbl.FindByTemplate(tmpl, nil)
		require.NoError(t, err)
		require.Len(t, got, 1)
		for _, row := range got {
			for k, v := range tmpl {
				assert.Equal(t, v, row[k])
			}
		}
	})

	t.Run("projection keeps result length", func(t *testing.T) {
		tmpl := types.Template{"birthYear": "1882"}
		full, err := tbl.FindByTemplate(tmpl, nil)
		require.NoError(t, err)
		proj, err := tbl.FindByTemplate(tmpl, &types.FindOptions{Fields: []string{"birthYear"}})
		require.NoError(t, err)
		assert.Len(t, proj, len(full))
		assert.Equal(t, types.Row{"birthYear": "1882"}, proj[0])
	})

	t.Run("projection onto missing field fails", func(t *testing.T) {
		_, err := tbl.FindByTemplate(types.Template{}, &types.FindOptions{Fields: []string{"nonexistent_col"}})
		assert.ErrorIs(t, err, types.ErrInvalidField)
	})

	t.Run("projection is not checked when nothing matches", func(t *testing.T) {
		got, err := tbl.FindByTemplate(types.Template{"playerID": "nobody01"},
			&types.FindOptions{Fields: []string{"nonexistent_col"}})
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("unknown template column matches nothing", func(t *testing.T) {
		got, err := tbl.FindByTemplate(types.Template{"deathYear": "2001"}, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("results are copies", func(t *testing.T) {
		got, err := tbl.FindByPrimaryKey([]any{"aardsda01"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		got[0]["nameLast"] = "Changed"

		again, err := tbl.FindByPrimaryKey([]any{"aardsda01"})
		require.NoError(t, err)
		assert.Equal(t, "Aardsma", again[0]["nameLast"])
	})
}

func testFindOptions(t *testing.T, newTable Factory) {
	tbl := newTable(t, People())

	got, err := tbl.FindByTemplate(nil, &types.FindOptions{OrderBy: []string{"playerID"}, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "aardsda01", got[0]["playerID"])
	assert.Equal(t, "aaronha01", got[1]["playerID"])

	got, err = tbl.FindByTemplate(nil, &types.FindOptions{OrderBy: []string{"playerID"}, Offset: 3})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "barbeja01", got[0]["playerID"])

	got, err = tbl.FindByTemplate(nil, &types.FindOptions{OrderBy: []string{"-birthYear"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bardda01", got[0]["playerID"])

	got, err = tbl.FindByTemplate(nil, &types.FindOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testDelete(t *testing.T, newTable Factory) {
	t.Run("by key", func(t *testing.T) {
		tbl := newTable(t, People())
		before := rowCount(t, tbl)

		n, err := tbl.DeleteByPrimaryKey([]any{"abbeybe01"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, before-1, rowCount(t, tbl))

		n, err = tbl.DeleteByPrimaryKey([]any{"hjm2133"})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, before-1, rowCount(t, tbl))

		got, err := tbl.FindByPrimaryKey([]any{"abbeybe01"})
		require.NoError(t, err)
		assert.Empty(t, got)

		_, err = tbl.DeleteByPrimaryKey([]any{"a", "b"})
		assert.ErrorIs(t, err, types.ErrInvalidKeyArity)
	})

	t.Run("by template", func(t *testing.T) {
		tbl := newTable(t, People())
		before := rowCount(t, tbl)

		tmpl := types.Template{"playerID": "barbeja01", "birthYear": "1882"}
		n, err := tbl.DeleteByTemplate(tmpl)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, before-1, rowCount(t, tbl))

		got, err := tbl.FindByTemplate(tmpl, nil)
		require.NoError(t, err)
		assert.Empty(t, got)

		n, err = tbl.DeleteByTemplate(types.Template{"playerID": "bardda01", "birthYear": "1999"})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		assert.Equal(t, before-1, rowCount(t, tbl))
	})

	t.Run("other rows survive", func(t *testing.T) {
		tbl := newTable(t, People())
		_, err := tbl.DeleteByTemplate(types.Template{"playerID": "abbeybe01"})
		require.NoError(t, err)

		got, err := tbl.FindByTemplate(nil, &types.FindOptions{Fields: []string{"playerID"}, OrderBy: []string{"playerID"}})
		require.NoError(t, err)
		ids := make([]any, len(got))
		for i, r := range got {
			ids[i] = r["playerID"]
		}
		assert.Equal(t, []any{"aardsda01", "aaronha01", "barbeja01", "bardda01"}, ids)
	})

	t.Run("empty template removes everything", func(t *testing.T) {
		tbl := newTable(t, People())
		n, err := tbl.DeleteByTemplate(nil)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, 0, rowCount(t, tbl))
	})
}

func testInsert(t *testing.T, newTable Factory) {
	t.Run("round trip", func(t *testing.T) {
		tbl := newTable(t, People())
		rec := types.Row{"playerID": "ruthba01", "nameFirst": "Babe", "nameLast": "Ruth", "birthYear": "1895", "birthCity": "Baltimore"}
		require.NoError(t, tbl.Insert(rec))
		assert.Equal(t, 6, rowCount(t, tbl))

		got, err := tbl.FindByPrimaryKey([]any{"ruthba01"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, rec, got[0])

		got, err = tbl.FindByPrimaryKey([]any{"ruthba01"}, "nameLast")
		require.NoError(t, err)
		assert.Equal(t, []types.Row{{"nameLast": "Ruth"}}, got)
	})

	t.Run("duplicate key is rejected", func(t *testing.T) {
		tbl := newTable(t, People())
		before := rowCount(t, tbl)
		err := tbl.Insert(types.Row{"playerID": "aardsda01", "nameFirst": "Other", "nameLast": "Player", "birthYear": "2000", "birthCity": "Nowhere"})
		assert.ErrorIs(t, err, types.ErrDuplicateKey)
		assert.Equal(t, before, rowCount(t, tbl))

		got, err := tbl.FindByPrimaryKey([]any{"aardsda01"})
		require.NoError(t, err)
		assert.Equal(t, "David", got[0]["nameFirst"])
	})

	t.Run("missing key field is rejected", func(t *testing.T) {
		tbl := newTable(t, People())
		before := rowCount(t, tbl)
		err := tbl.Insert(types.Row{"nameFirst": "No", "nameLast": "Key"})
		assert.ErrorIs(t, err, types.ErrMissingPrimaryKey)

		err = tbl.Insert(types.Row{"playerID": nil, "nameLast": "Key"})
		assert.ErrorIs(t, err, types.ErrMissingPrimaryKey)
		assert.Equal(t, before, rowCount(t, tbl))
	})

	t.Run("caller record is copied", func(t *testing.T) {
		tbl := newTable(t, People())
		rec := types.Row{"playerID": "mayswi01", "nameFirst": "Willie", "nameLast": "Mays", "birthYear": "1931", "birthCity": "Westfield"}
		require.NoError(t, tbl.Insert(rec))
		rec["nameLast"] = "Changed"

		got, err := tbl.FindByPrimaryKey([]any{"mayswi01"})
		require.NoError(t, err)
		assert.Equal(t, "Mays", got[0]["nameLast"])
	})
}

func testUpdate(t *testing.T, newTable Factory) {
	t.Run("by key", func(t *testing.T) {
		tbl := newTable(t, People())
		n, err := tbl.UpdateByPrimaryKey([]any{"aardsda01"}, types.Row{"nameFirst": "Dave", "birthCity": "Boulder"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := tbl.FindByPrimaryKey([]any{"aardsda01"})
		require.NoError(t, err)
		assert.Equal(t, "Dave", got[0]["nameFirst"])
		assert.Equal(t, "Boulder", got[0]["birthCity"])
		assert.Equal(t, "Aardsma", got[0]["nameLast"])

		n, err = tbl.UpdateByPrimaryKey([]any{"nobody01"}, types.Row{"nameFirst": "X"})
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		_, err = tbl.UpdateByPrimaryKey([]any{}, types.Row{"nameFirst": "X"})
		assert.ErrorIs(t, err, types.ErrInvalidKeyArity)
	})

	t.Run("by template counts matches", func(t *testing.T) {
		tbl := newTable(t, Births())
		n, err := tbl.UpdateByTemplate(types.Template{"year": "1990"}, types.Row{"year": "1991"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		got, err := tbl.FindByTemplate(types.Template{"year": "1991"}, nil)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("empty new values still counts matches", func(t *testing.T) {
		tbl := newTable(t, Births())
		n, err := tbl.UpdateByTemplate(types.Template{"year": "1990"}, types.Row{})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("key change to an unused value", func(t *testing.T) {
		tbl := newTable(t, People())
		n, err := tbl.UpdateByPrimaryKey([]any{"aardsda01"}, types.Row{"playerID": "aardsda02"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		got, err := tbl.FindByPrimaryKey([]any{"aardsda02"})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("key collision with another row is rejected", func(t *testing.T) {
		tbl := newTable(t, People())
		_, err := tbl.UpdateByPrimaryKey([]any{"aardsda01"}, types.Row{"playerID": "abbeybe01", "nameFirst": "Dup"})
		assert.ErrorIs(t, err, types.ErrDuplicateKey)

		got, err := tbl.FindByPrimaryKey([]any{"aardsda01"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "David", got[0]["nameFirst"])
		assert.Equal(t, 5, rowCount(t, tbl))
	})

	t.Run("batch collision is rejected as a whole", func(t *testing.T) {
		tbl := newTable(t, Births())
		_, err := tbl.UpdateByTemplate(types.Template{"year": "1990"}, types.Row{"id": "z", "year": "2000"})
		assert.ErrorIs(t, err, types.ErrDuplicateKey)

		got, err := tbl.FindByTemplate(types.Template{"year": "1990"}, nil)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func testCompositeKey(t *testing.T, newTable Factory) {
	tbl := newTable(t, Appearances())

	got, err := tbl.FindByPrimaryKey([]any{"aardsda01", "2006"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "CHN", got[0]["teamID"])

	_, err = tbl.FindByPrimaryKey([]any{"aardsda01"})
	assert.ErrorIs(t, err, types.ErrInvalidKeyArity)

	require.NoError(t, tbl.Insert(types.Row{"playerID": "aardsda01", "yearID": "2007", "teamID": "CHA", "games": "25"}))
	err = tbl.Insert(types.Row{"playerID": "aardsda01", "yearID": "2004", "teamID": "XXX", "games": "1"})
	assert.ErrorIs(t, err, types.ErrDuplicateKey)
	err = tbl.Insert(types.Row{"playerID": "aardsda01", "teamID": "XXX"})
	assert.ErrorIs(t, err, types.ErrMissingPrimaryKey)

	n, err := tbl.UpdateByPrimaryKey([]any{"aardsda01", "2004"}, types.Row{"yearID": "2006"})
	assert.ErrorIs(t, err, types.ErrDuplicateKey)
	assert.Equal(t, 0, n)

	n, err = tbl.DeleteByTemplate(types.Template{"playerID": "aardsda01"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, rowCount(t, tbl))
}

func testNoPrimaryKey(t *testing.T, newTable Factory) {
	f := Births()
	f.KeyColumns = nil
	tbl := newTable(t, f)

	_, err := tbl.FindByPrimaryKey([]any{"a"})
	assert.ErrorIs(t, err, types.ErrNoPrimaryKey)
	_, err = tbl.DeleteByPrimaryKey([]any{"a"})
	assert.ErrorIs(t, err, types.ErrNoPrimaryKey)
	_, err = tbl.UpdateByPrimaryKey([]any{"a"}, types.Row{"year": "2000"})
	assert.ErrorIs(t, err, types.ErrNoPrimaryKey)

	got, err := tbl.FindByTemplate(types.Template{"id": "a"}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func testEndToEnd(t *testing.T, newTable Factory) {
	tbl := newTable(t, Births())

	got, err := tbl.FindByTemplate(types.Template{"year": "1990"}, nil)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	n, err := tbl.DeleteByTemplate(types.Template{"year": "1990"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, rowCount(t, tbl))

	got, err = tbl.FindByPrimaryKey([]any{"a"})
	require.NoError(t, err)
	assert.Empty(t, got)
}
