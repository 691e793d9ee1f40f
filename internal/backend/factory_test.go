package backend

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bizdash/internal/config"
	"bizdash/internal/core"
	"bizdash/internal/records"
	"bizdash/internal/session"
)

func TestFactoryMemoryTables(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, records.TableExpenses+".json"),
		[]byte(`[{"description":"Fuel","amount":"12.50"}]`), 0600))

	tables, err := NewFactory(nil).Tables(context.Background(), &config.Config{DataBackend: config.BackendMemory, DataDir: dir})
	require.NoError(t, err)

	rows, err := tables.Client.Find(context.Background(), records.TableExpenses, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 12.5, core.NormalizeExpense(rows[0]).Amount)
}

func TestFactoryRemoteTablesValidates(t *testing.T) {
	_, err := NewFactory(nil).Tables(context.Background(), &config.Config{DataBackend: config.BackendRemote})
	assert.Error(t, err)
}

func TestFactoryUnknownBackends(t *testing.T) {
	f := NewFactory(nil)
	_, err := f.Tables(context.Background(), &config.Config{DataBackend: "nope"})
	assert.Error(t, err)
	_, err = f.Sessions(&config.Config{SessionBackend: "nope"})
	assert.Error(t, err)
}

func TestFactorySessions(t *testing.T) {
	f := NewFactory(nil)

	mem, err := f.Sessions(&config.Config{SessionBackend: config.SessionMemory})
	require.NoError(t, err)
	assert.Nil(t, mem.Repo)
	assert.IsType(t, &session.MemoryStore{}, mem.Store)

	sq, err := f.Sessions(&config.Config{SessionBackend: config.SessionSQLite, SQLiteDBPath: filepath.Join(t.TempDir(), "s.db")})
	require.NoError(t, err)
	require.NotNil(t, sq.Repo)
	t.Cleanup(func() { Close(sq.Cleanup) })

	m := session.NewManager(sq.Store, time.Hour, nil)
	s, err := m.Init(context.Background(), core.User{Username: "ana"})
	require.NoError(t, err)
	got, err := m.Read(context.Background(), s.Token)
	require.NoError(t, err)
	assert.Equal(t, "ana", got.User.Username)
}

func TestClose(t *testing.T) {
	calls := 0
	ok := func() error {
		calls++
		return nil
	}
	boom := func() error {
		calls++
		return errors.New("boom")
	}

	err := Close(ok, nil, boom, ok)
	assert.EqualError(t, err, "boom")
	assert.Equal(t, 3, calls)
	assert.NoError(t, Close())
}
