package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/localspot/localspot-go/store"
	"github.com/stretchr/testify/require"
)

const testPassphrase = "device-bound-secret"

func openTestStore(t *testing.T, path string) *store.FileStore {
	t.Helper()
	fs, err := store.OpenFile(path, testPassphrase, store.KDFParams{Time: 1, MemKiB: 1024, Par: 1})
	require.NoError(t, err)
	return fs
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	fs := openTestStore(t, filepath.Join(t.TempDir(), "secure.bin"))

	require.NoError(t, fs.Set(ctx, "accessToken", []byte("abc123")))

	got, err := fs.Get(ctx, "accessToken")
	require.NoError(t, err)
	require.Equal(t, []byte("abc123"), got)

	require.NoError(t, fs.Delete(ctx, "accessToken"))
	_, err = fs.Get(ctx, "accessToken")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestFileStoreGetMissingKey(t *testing.T) {
	fs := openTestStore(t, filepath.Join(t.TempDir(), "secure.bin"))

	_, err := fs.Get(context.Background(), "nope")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestFileStoreDeleteMissingKeyIsNoError(t *testing.T) {
	fs := openTestStore(t, filepath.Join(t.TempDir(), "secure.bin"))

	require.NoError(t, fs.Delete(context.Background(), "nope"))
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "secure.bin")

	fs := openTestStore(t, path)
	require.NoError(t, fs.Set(ctx, "refreshToken", []byte("rt-1")))
	require.NoError(t, fs.Set(ctx, "user", []byte(`{"id":"u1"}`)))

	reopened := openTestStore(t, path)
	got, err := reopened.Get(ctx, "refreshToken")
	require.NoError(t, err)
	require.Equal(t, []byte("rt-1"), got)
}

func TestFileStoreWrongPassphrase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "secure.bin")

	fs := openTestStore(t, path)
	require.NoError(t, fs.Set(ctx, "accessToken", []byte("abc")))

	_, err := store.OpenFile(path, "not-the-passphrase", store.KDFParams{Time: 1, MemKiB: 1024, Par: 1})
	require.Error(t, err)
	require.Contains(t, err.Error(), "wrong passphrase")
}

func TestFileStoreKeysFiltersByPrefix(t *testing.T) {
	ctx := context.Background()
	fs := openTestStore(t, filepath.Join(t.TempDir(), "secure.bin"))

	require.NoError(t, fs.Set(ctx, "cache/businesses", []byte("a")))
	require.NoError(t, fs.Set(ctx, "cache/reviews", []byte("b")))
	require.NoError(t, fs.Set(ctx, "favorites", []byte("c")))

	keys, err := fs.Keys(ctx, "cache/")
	require.NoError(t, err)
	require.Equal(t, []string{"cache/businesses", "cache/reviews"}, keys)
}
