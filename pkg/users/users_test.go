package users

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s, err := Open(filepath.Join(t.TempDir(), "users.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)

	ok, err := s.IsAuthorized(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutGet(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Put(User{ID: 5, Language: "ru", Authorized: true}))

	u, err := s.Get(5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), u.ID)
	assert.Equal(t, "ru", u.Language)
	assert.True(t, u.Authorized)
	assert.False(t, u.CreatedAt.IsZero())
}

func TestSeedKeepsLanguage(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetLanguage(7, "ru"))
	require.NoError(t, s.Seed([]int64{7, 8}))

	u, err := s.Get(7)
	require.NoError(t, err)
	assert.True(t, u.Authorized)
	assert.Equal(t, "ru", u.Language)

	ok, err := s.IsAuthorized(8)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Authorize(8, false))
	ok, err = s.IsAuthorized(8)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResolveLanguage(t *testing.T) {
	s := openTestStore(t)
	assert.Equal(t, "en", s.ResolveLanguage(1, "", "en"))
	assert.Equal(t, "de", s.ResolveLanguage(1, "de", "en"))

	require.NoError(t, s.SetLanguage(1, "ru"))
	assert.Equal(t, "ru", s.ResolveLanguage(1, "de", "en"))
}

func TestReopen(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	path := filepath.Join(t.TempDir(), "users.db")

	s, err := Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, s.Authorize(3, true))
	require.NoError(t, s.Close())

	s, err = Open(path, logger)
	require.NoError(t, err)
	defer s.Close()
	ok, err := s.IsAuthorized(3)
	require.NoError(t, err)
	assert.True(t, ok)
}
