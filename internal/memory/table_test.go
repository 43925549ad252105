package memory

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/rowstore/internal/tabletest"
	"github.com/mesh-intelligence/rowstore/pkg/types"
)

func newSeededTable(t *testing.T, f tabletest.Fixture) types.Table {
	t.Helper()
	tbl, err := NewTable(types.TableConfig{
		Name:       f.Name,
		Backend:    types.BackendMemory,
		KeyColumns: f.KeyColumns,
	}, WithRows(f.Rows))
	require.NoError(t, err)
	t.Cleanup(func() { tbl.Close() })
	return tbl
}

func TestTable_Conformance(t *testing.T) {
	tabletest.Run(t, newSeededTable)
}

// writeFile creates name under dir with content and returns dir.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	return dir
}

const peopleCSV = "playerID,nameFirst,nameLast,birthYear\n" +
	"aardsda01,David,Aardsma,1981\n" +
	"abbeybe01,Bert,Abbey,1869\n" +
	"aaronha01,Hank,Aaron,1934\n"

func peopleConfig(dir string) types.TableConfig {
	return types.TableConfig{
		Name:       "people",
		Backend:    types.BackendMemory,
		KeyColumns: []string{"playerID"},
		Connect:    types.ConnectInfo{Directory: dir, FileName: "People.csv"},
	}
}

func TestNewTable_LoadsCSV(t *testing.T) {
	dir := writeFile(t, t.TempDir(), "People.csv", peopleCSV)

	tbl, err := NewTable(peopleConfig(dir))
	require.NoError(t, err)

	rows, err := tbl.Rows()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, types.Row{"playerID": "aardsda01", "nameFirst": "David", "nameLast": "Aardsma", "birthYear": "1981"}, rows[0])
	assert.Equal(t, []string{"playerID", "nameFirst", "nameLast", "birthYear"}, tbl.Columns())
	assert.Equal(t, "people", tbl.Name())
	assert.Equal(t, []string{"playerID"}, tbl.KeyColumns())
}

func TestNewTable_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewTable(peopleConfig(t.TempDir()))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("no source and no rows", func(t *testing.T) {
		_, err := NewTable(types.TableConfig{Name: "people", Backend: types.BackendMemory})
		assert.ErrorIs(t, err, types.ErrSourceMissing)
	})

	t.Run("invalid config", func(t *testing.T) {
		_, err := NewTable(types.TableConfig{Backend: types.BackendMemory}, WithRows(nil))
		assert.ErrorIs(t, err, types.ErrTableNameEmpty)
	})
}

func TestTable_SaveRoundTrip(t *testing.T) {
	dir := writeFile(t, t.TempDir(), "People.csv", peopleCSV)

	tbl, err := NewTable(peopleConfig(dir))
	require.NoError(t, err)

	_, err = tbl.DeleteByPrimaryKey([]any{"abbeybe01"})
	require.NoError(t, err)
	require.NoError(t, tbl.Insert(types.Row{"playerID": "ruthba01", "nameFirst": "Babe", "nameLast": "Ruth", "birthYear": "1895"}))
	_, err = tbl.UpdateByPrimaryKey([]any{"aardsda01"}, types.Row{"nameFirst": "Dave"})
	require.NoError(t, err)
	require.NoError(t, tbl.Save())

	data, err := os.ReadFile(filepath.Join(dir, "People.csv"))
	require.NoError(t, err)
	assert.Equal(t, "playerID,nameFirst,nameLast,birthYear\n"+
		"aardsda01,Dave,Aardsma,1981\n"+
		"aaronha01,Hank,Aaron,1934\n"+
		"ruthba01,Babe,Ruth,1895\n", string(data))

	reloaded, err := NewTable(peopleConfig(dir))
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Len())
}

func TestTable_SaveAddsNewColumns(t *testing.T) {
	dir := writeFile(t, t.TempDir(), "People.csv", peopleCSV)

	tbl, err := NewTable(peopleConfig(dir))
	require.NoError(t, err)
	_, err = tbl.UpdateByPrimaryKey([]any{"aaronha01"}, types.Row{"deathYear": "2021"})
	require.NoError(t, err)
	require.NoError(t, tbl.Save())

	reloaded, err := NewTable(peopleConfig(dir))
	require.NoError(t, err)
	got, err := reloaded.FindByPrimaryKey([]any{"aaronha01"}, "deathYear")
	require.NoError(t, err)
	assert.Equal(t, []types.Row{{"deathYear": "2021"}}, got)

	// Rows that never had the column come back with an empty value.
	got, err = reloaded.FindByPrimaryKey([]any{"aardsda01"}, "deathYear")
	require.NoError(t, err)
	assert.Equal(t, []types.Row{{"deathYear": ""}}, got)
}

func TestTable_SaveEmptyIsNoop(t *testing.T) {
	dir := writeFile(t, t.TempDir(), "People.csv", peopleCSV)

	tbl, err := NewTable(peopleConfig(dir))
	require.NoError(t, err)
	n, err := tbl.DeleteByTemplate(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, tbl.Save())

	data, err := os.ReadFile(filepath.Join(dir, "People.csv"))
	require.NoError(t, err)
	assert.Equal(t, peopleCSV, string(data))
}

func TestTable_SaveWithoutSource(t *testing.T) {
	tbl, err := NewTable(types.TableConfig{Name: "births", Backend: types.BackendMemory, KeyColumns: []string{"id"}},
		WithRows(tabletest.Births().Rows))
	require.NoError(t, err)
	assert.ErrorIs(t, tbl.Save(), types.ErrSourceMissing)
}

func TestTable_SyncStrategies(t *testing.T) {
	tests := []struct {
		name         string
		sync         string
		wantAfterOp  bool
		wantAfterEnd bool
	}{
		{name: "manual", sync: types.SyncManual, wantAfterOp: false, wantAfterEnd: false},
		{name: "immediate", sync: types.SyncImmediate, wantAfterOp: true, wantAfterEnd: true},
		{name: "on_close", sync: types.SyncOnClose, wantAfterOp: false, wantAfterEnd: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFile(t, t.TempDir(), "People.csv", peopleCSV)
			cfg := peopleConfig(dir)
			cfg.Sync = tt.sync

			tbl, err := NewTable(cfg)
			require.NoError(t, err)
			require.NoError(t, tbl.Insert(types.Row{"playerID": "ruthba01", "nameFirst": "Babe", "nameLast": "Ruth", "birthYear": "1895"}))

			persisted := func() bool {
				reloaded, err := NewTable(peopleConfig(dir))
				require.NoError(t, err)
				got, err := reloaded.FindByPrimaryKey([]any{"ruthba01"})
				require.NoError(t, err)
				return len(got) == 1
			}

			assert.Equal(t, tt.wantAfterOp, persisted())
			require.NoError(t, tbl.Close())
			assert.Equal(t, tt.wantAfterEnd, persisted())
		})
	}
}

func TestTable_InjectedRowsAreCopied(t *testing.T) {
	rows := []types.Row{{"id": "a", "year": "1990"}}
	tbl, err := NewTable(types.TableConfig{Name: "births", Backend: types.BackendMemory, KeyColumns: []string{"id"}}, WithRows(rows))
	require.NoError(t, err)

	rows[0]["year"] = "2000"
	got, err := tbl.FindByPrimaryKey([]any{"a"})
	require.NoError(t, err)
	assert.Equal(t, "1990", got[0]["year"])
}

func TestTable_TypedKeysStayDistinct(t *testing.T) {
	tbl, err := NewTable(types.TableConfig{Name: "nums", Backend: types.BackendMemory, KeyColumns: []string{"id"}},
		WithRows([]types.Row{{"id": "1"}}))
	require.NoError(t, err)

	require.NoError(t, tbl.Insert(types.Row{"id": 1}))
	assert.ErrorIs(t, tbl.Insert(types.Row{"id": 1}), types.ErrDuplicateKey)

	got, err := tbl.FindByPrimaryKey([]any{1})
	require.NoError(t, err)
	assert.Equal(t, []types.Row{{"id": 1}}, got)
}

func TestTable_RaggedRowsDoNotMatchMissingColumns(t *testing.T) {
	dir := writeFile(t, t.TempDir(), "People.csv", "playerID,nameFirst,birthYear\naardsda01,David\nabbeybe01,Bert,1869\n")

	tbl, err := NewTable(peopleConfig(dir))
	require.NoError(t, err)

	got, err := tbl.FindByTemplate(types.Template{"birthYear": ""}, nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = tbl.FindByTemplate(nil, &types.FindOptions{Fields: []string{"birthYear"}})
	assert.ErrorIs(t, err, types.ErrInvalidField)
}

func TestTable_Load(t *testing.T) {
	dir := writeFile(t, t.TempDir(), "People.csv", peopleCSV)
	cfg := peopleConfig(dir)
	cfg.Sync = types.SyncImmediate
	tbl, err := NewTable(cfg)
	require.NoError(t, err)

	tests := []struct {
		name    string
		rows    []types.Row
		wantErr error
	}{
		{"existing key", []types.Row{{"playerID": "ruthba01"}, {"playerID": "aaronha01"}}, types.ErrDuplicateKey},
		{"duplicate within batch", []types.Row{{"playerID": "ruthba01"}, {"playerID": "ruthba01"}}, types.ErrDuplicateKey},
		{"missing key", []types.Row{{"playerID": "ruthba01"}, {"nameLast": "Gehrig"}}, types.ErrMissingPrimaryKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tbl.Load(tt.rows)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 3, tbl.Len(), "rejected batch adds nothing")
		})
	}

	n, err := tbl.Load([]types.Row{
		{"playerID": "ruthba01", "nameLast": "Ruth"},
		{"playerID": "gehrilo01", "nameLast": "Gehrig"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 5, tbl.Len())

	data, err := os.ReadFile(filepath.Join(dir, "People.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "gehrilo01,,Gehrig,\n", "immediate sync saves after the batch")
}

var errDiskFull = errors.New("disk full")

// failingSource stores nothing and fails every write.
type failingSource struct{}

func (failingSource) Load() ([]string, []types.Row, error) { return nil, nil, nil }
func (failingSource) Store([]string, []types.Row) error    { return errDiskFull }
func (failingSource) Path() string                         { return "unwritable.csv" }

func TestTable_FailedSaveLeavesRowsUntouched(t *testing.T) {
	seedRows := []types.Row{{"id": "a", "year": "1990"}, {"id": "c", "year": "1995"}}
	newTable := func(t *testing.T) *Table {
		t.Helper()
		tbl, err := NewTable(types.TableConfig{
			Name:       "births",
			Backend:    types.BackendMemory,
			KeyColumns: []string{"id"},
			Sync:       types.SyncImmediate,
		}, WithRows(seedRows), WithSource(failingSource{}))
		require.NoError(t, err)
		return tbl
	}

	tests := []struct {
		name string
		op   func(tbl *Table) error
	}{
		{"insert", func(tbl *Table) error { return tbl.Insert(types.Row{"id": "b"}) }},
		{"load", func(tbl *Table) error {
			_, err := tbl.Load([]types.Row{{"id": "b"}, {"id": "d"}})
			return err
		}},
		{"delete", func(tbl *Table) error {
			_, err := tbl.DeleteByPrimaryKey([]any{"a"})
			return err
		}},
		{"update", func(tbl *Table) error {
			_, err := tbl.UpdateByTemplate(nil, types.Row{"year": "2000"})
			return err
		}},
		{"update key", func(tbl *Table) error {
			_, err := tbl.UpdateByPrimaryKey([]any{"a"}, types.Row{"id": "b"})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := newTable(t)
			assert.ErrorIs(t, tt.op(tbl), errDiskFull)

			rows, err := tbl.Rows()
			require.NoError(t, err)
			assert.Equal(t, seedRows, rows)
		})
	}

	t.Run("retry after failure", func(t *testing.T) {
		tbl := newTable(t)
		assert.ErrorIs(t, tbl.Insert(types.Row{"id": "b"}), errDiskFull)
		err := tbl.Insert(types.Row{"id": "b"})
		assert.ErrorIs(t, err, errDiskFull)
		assert.NotErrorIs(t, err, types.ErrDuplicateKey)
	})
}

func TestTable_RowsKeepInsertionOrder(t *testing.T) {
	tbl, err := NewTable(types.TableConfig{Name: "people", Backend: types.BackendMemory, KeyColumns: []string{"playerID"}},
		WithRows([]types.Row{
			{"playerID": "ruthba01"},
			{"playerID": "aaronha01"},
			{"playerID": "mayswi01"},
			{"playerID": "cobbty01"},
		}))
	require.NoError(t, err)

	n, err := tbl.DeleteByPrimaryKey([]any{"aaronha01"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, tbl.Insert(types.Row{"playerID": "bondsba01"}))

	rows, err := tbl.Rows()
	require.NoError(t, err)
	assert.Equal(t, []types.Row{
		{"playerID": "ruthba01"},
		{"playerID": "mayswi01"},
		{"playerID": "cobbty01"},
		{"playerID": "bondsba01"},
	}, rows)
}

func TestTable_UpdateWithExistingDuplicates(t *testing.T) {
	tbl, err := NewTable(types.TableConfig{Name: "births", Backend: types.BackendMemory, KeyColumns: []string{"id"}},
		WithRows([]types.Row{
			{"id": "a", "year": "1990"},
			{"id": "a", "year": "1991"},
			{"id": "b", "year": "1992"},
		}))
	require.NoError(t, err)

	n, err := tbl.UpdateByTemplate(types.Template{"year": "1992"}, types.Row{"id": "c"})
	require.NoError(t, err, "moving a row to a free key ignores unrelated duplicates")
	assert.Equal(t, 1, n)

	_, err = tbl.UpdateByTemplate(types.Template{"id": "c"}, types.Row{"id": "a"})
	assert.ErrorIs(t, err, types.ErrDuplicateKey)

	got, err := tbl.FindByPrimaryKey([]any{"c"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
