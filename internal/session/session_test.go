package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenStoreRoundTrip(t *testing.T) {
	store := NewTokenStore(NewMemoryStorage())
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	_, ok := store.Token()
	assert.False(t, ok)

	require.NoError(t, store.Save("abc", now.Add(24*time.Hour)))
	tok, ok := store.Token()
	require.True(t, ok)
	assert.Equal(t, "abc", tok)

	c, err := store.Current()
	require.NoError(t, err)
	assert.True(t, c.Valid(now))
	assert.False(t, c.Valid(now.Add(24*time.Hour)))
}

func TestTokenStoreClearsExpired(t *testing.T) {
	mem := NewMemoryStorage()
	store := NewTokenStore(mem)
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	require.NoError(t, store.Save("abc", now))

	_, ok := store.Token()
	assert.False(t, ok)
	_, present, _ := mem.Get(TokenKey)
	assert.False(t, present)
	_, present, _ = mem.Get(ExpiresKey)
	assert.False(t, present)
}

func TestTokenStoreGarbageExpiryIsAbsent(t *testing.T) {
	mem := NewMemoryStorage()
	require.NoError(t, mem.Set(TokenKey, "abc"))
	require.NoError(t, mem.Set(ExpiresKey, "tomorrow"))
	c, err := NewTokenStore(mem).Current()
	require.NoError(t, err)
	assert.Nil(t, c)
	_, present, _ := mem.Get(TokenKey)
	assert.False(t, present)
}

func TestTokenStoreClearsExpiryWithoutToken(t *testing.T) {
	mem := NewMemoryStorage()
	require.NoError(t, mem.Set(ExpiresKey, time.Now().Add(time.Hour).UTC().Format(time.RFC3339)))
	c, err := NewTokenStore(mem).Current()
	require.NoError(t, err)
	assert.Nil(t, c)
	_, present, _ := mem.Get(ExpiresKey)
	assert.False(t, present)
}

func TestTokenStoreClearsTokenWithoutExpiry(t *testing.T) {
	mem := NewMemoryStorage()
	require.NoError(t, mem.Set(TokenKey, "abc"))
	c, err := NewTokenStore(mem).Current()
	require.NoError(t, err)
	assert.Nil(t, c)
	_, present, _ := mem.Get(TokenKey)
	assert.False(t, present)
}

func TestTokenStoreRejectsEmptyToken(t *testing.T) {
	assert.Error(t, NewTokenStore(NewMemoryStorage()).Save("", time.Now()))
}

func TestFlagStore(t *testing.T) {
	flags := NewFlagStore(NewMemoryStorage())
	assert.False(t, flags.Authenticated())
	require.NoError(t, flags.Set(true))
	assert.True(t, flags.Authenticated())
	require.NoError(t, flags.Set(false))
	assert.False(t, flags.Authenticated())
}

func TestFileStoragePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "session.json")
	require.NoError(t, NewFileStorage(path).Set(TokenKey, "abc"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	v, ok, err := NewFileStorage(path).Get(TokenKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", v)

	require.NoError(t, NewFileStorage(path).Delete(TokenKey))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestFileStorageCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, _, err := NewFileStorage(path).Get(TokenKey)
	assert.Error(t, err)
}
