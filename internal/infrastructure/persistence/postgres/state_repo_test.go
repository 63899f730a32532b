package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/class-bell/class-bell/internal/domain/market"
	"github.com/class-bell/class-bell/internal/domain/snapshot"
)

// fakeDB keeps rows in a map and understands the two statements the
// repository issues.
type fakeDB struct {
	rows    map[string][]byte
	execErr error
	lastSQL string
}

type fakeRow struct {
	data []byte
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.data
	return nil
}

func (db *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.lastSQL = sql
	if db.execErr != nil {
		return pgconn.CommandTag{}, db.execErr
	}
	db.rows[args[0].(string)] = args[1].([]byte)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (db *fakeDB) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	data, ok := db.rows[args[0].(string)]
	if !ok {
		return fakeRow{err: pgx.ErrNoRows}
	}
	return fakeRow{data: data}
}

func TestStateRepository_LoadMissingRow(t *testing.T) {
	repo := NewStateRepository(&fakeDB{rows: map[string][]byte{}}, "")

	doc, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snapshot.Empty(), doc)
}

func TestStateRepository_SaveIsAnUpsert(t *testing.T) {
	db := &fakeDB{rows: map[string][]byte{}}
	repo := NewStateRepository(db, "class-2d")
	ctx := context.Background()

	doc := snapshot.Empty()
	doc.TrackedItems = []market.TrackedItem{{Name: "Glove Case", MinPrice: 100, MaxPrice: 300, AuthorID: "7"}}
	require.NoError(t, repo.Save(ctx, doc))
	require.NoError(t, repo.Save(ctx, doc))
	assert.Contains(t, db.lastSQL, "ON CONFLICT (id) DO UPDATE")
	assert.Len(t, db.rows, 1)

	got, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc.TrackedItems, got.TrackedItems)
}

func TestStateRepository_Errors(t *testing.T) {
	db := &fakeDB{rows: map[string][]byte{DefaultStateID: []byte("not json")}, execErr: errors.New("down")}
	repo := NewStateRepository(db, "")

	_, err := repo.Load(context.Background())
	assert.Error(t, err)
	assert.Error(t, repo.Save(context.Background(), snapshot.Empty()))
}

func TestConfig_DSN(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Password = "secret"
	assert.Contains(t, cfg.DSN(), "dbname=classbell")
	assert.Contains(t, cfg.DSN(), "sslmode=disable")

	cfg.URL = "postgres://u:p@db:5432/x"
	assert.Equal(t, "postgres://u:p@db:5432/x", cfg.DSN())
}
