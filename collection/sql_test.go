package collection

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

const speciesTable = `CREATE TABLE species (
	id INTEGER PRIMARY KEY,
	name TEXT,
	class TEXT,
	diet TEXT,
	legs INTEGER
)`

func newSQLiteCollection(t *testing.T, opts ...Option) *Collection {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// cada conexão :memory: é um banco distinto
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(speciesTable)
	require.NoError(t, err)

	coll, err := NewSQLCollection(SQLConfig{
		DB:      db,
		Table:   "species",
		Dialect: DialectSQLite,
		Records: animalSpecies(),
	}, opts...)
	require.NoError(t, err)
	require.NoError(t, coll.IsInitialized(context.Background()))
	return coll
}

func TestNewSQLBackend_Validation(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLBackend(SQLConfig{Table: "species"})
	assert.Error(t, err)

	_, err = NewSQLBackend(SQLConfig{DB: db, Table: "species; DROP TABLE x"})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = NewSQLBackend(SQLConfig{DB: db, Table: "species", Dialect: "oracle"})
	assert.ErrorIs(t, err, ErrUnsupportedDialect)

	b, err := NewSQLBackend(SQLConfig{DB: db, Table: "species"})
	require.NoError(t, err)
	assert.Equal(t, "id", b.Identity())
}

func TestSQLCollection_FindAndCount(t *testing.T) {
	ctx := context.Background()
	coll := newSQLiteCollection(t)

	n, err := coll.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	all, err := coll.Find(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, Record{"id": int64(1), "name": "Goldfish", "class": "Actinopterygii", "diet": "Omnivore", "legs": int64(0)}, all[0])

	fourLegs, err := coll.Find(ctx, Query{"legs": In(4)})
	require.NoError(t, err)
	assert.Len(t, fourLegs, 3)

	mammals, err := coll.Find(ctx, Query{"class": "Mammalia", "diet": "Herbivore"})
	require.NoError(t, err)
	require.Len(t, mammals, 1)
	assert.Equal(t, "Cow", mammals[0]["name"])

	empty, err := coll.Find(ctx, Query{"legs": In()})
	require.NoError(t, err)
	assert.Empty(t, empty)

	invalid, err := coll.Find(ctx, Query{"bad column": 1})
	require.NoError(t, err)
	assert.Empty(t, invalid)
}

func TestSQLCollection_FindOne(t *testing.T) {
	ctx := context.Background()
	coll := newSQLiteCollection(t)

	rec, ok, err := coll.FindOne(ctx, ByIdentity("3"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Eagle", rec["name"])

	rec, ok, err = coll.FindOne(ctx, ByQuery(Query{"class": "Mammalia"}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Tiger", rec["name"])

	_, ok, err = coll.FindOne(ctx, ByIdentity(42))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLCollection_Mutations(t *testing.T) {
	ctx := context.Background()
	coll := newSQLiteCollection(t)

	inserted, ok, err := coll.Insert(ctx, honeyBadger())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(6), inserted["id"])
	assert.Equal(t, "Honey Badger", inserted["name"])

	updated, ok, err := coll.UpdateOne(ctx, ByIdentity(3), Record{
		"name": "Beagle", "class": "Mammalia", "diet": "Carnivore", "legs": 4,
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Beagle", updated["name"])

	found, _, err := coll.FindOne(ctx, ByIdentity(3))
	require.NoError(t, err)
	assert.Equal(t, Record{"id": int64(3), "name": "Beagle", "class": "Mammalia", "diet": "Carnivore", "legs": int64(4)}, found)

	removed, ok, err := coll.DeleteOne(ctx, ByIdentity(2))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Tiger", removed["name"])

	_, ok, err = coll.DeleteOne(ctx, ByIdentity(2))
	require.NoError(t, err)
	assert.False(t, ok)

	n, _ := coll.Count(ctx)
	assert.Equal(t, 5, n)
}

func TestSQLCollection_VetoLeavesTableUntouched(t *testing.T) {
	ctx := context.Background()
	coll := newSQLiteCollection(t)
	coll.OnBeforeDelete(func(ctx context.Context, e BeforeDeleteEvent) bool { return false })

	_, ok, err := coll.DeleteOne(ctx, ByIdentity(1))
	require.NoError(t, err)
	assert.False(t, ok)

	n, _ := coll.Count(ctx)
	assert.Equal(t, 5, n)
}

func TestSQLCollection_ClearAndReset(t *testing.T) {
	ctx := context.Background()
	coll := newSQLiteCollection(t)

	removed, err := coll.Clear(ctx)
	require.NoError(t, err)
	assert.Len(t, removed, 5)

	n, _ := coll.Count(ctx)
	assert.Equal(t, 0, n)

	require.NoError(t, coll.Reset(ctx))
	n, _ = coll.Count(ctx)
	assert.Equal(t, 5, n)

	rec, _, err := coll.FindOne(ctx, First())
	require.NoError(t, err)
	assert.Equal(t, "Goldfish", rec["name"])
}

func TestSQLCollection_OrderByIdentity(t *testing.T) {
	ctx := context.Background()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	// sem chave primária a tabela não tem ordem própria pela identidade
	_, err = db.Exec(`CREATE TABLE keepers (id INTEGER, name TEXT)`)
	require.NoError(t, err)

	coll, err := NewSQLCollection(SQLConfig{
		DB:    db,
		Table: "keepers",
		Records: []Record{
			{"id": 3, "name": "Caio"},
			{"id": 1, "name": "Ana"},
			{"id": 2, "name": "Bia"},
		},
	})
	require.NoError(t, err)

	names := func() []any {
		all, err := coll.Find(ctx, nil)
		require.NoError(t, err)
		out := []any{}
		for _, r := range all {
			out = append(out, r["name"])
		}
		return out
	}
	assert.Equal(t, []any{"Ana", "Bia", "Caio"}, names())

	_, ok, err := coll.UpdateOne(ctx, ByIdentity(1), Record{"name": "Ana Maria"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []any{"Ana Maria", "Bia", "Caio"}, names())

	first, ok, err := coll.FindOne(ctx, First())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), first["id"])
}
