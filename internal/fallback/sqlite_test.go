package fallback

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizflow/internal/wizard"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "nested", "fallback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetOverwrite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fixed := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Put(ctx, wizard.KeyResponses, []byte(`{"user-type":{"value":"personal"}}`)))
	require.NoError(t, s.Put(ctx, wizard.KeyResponses, []byte(`{"user-type":{"value":"professional"}}`)))

	e, err := s.Get(ctx, wizard.KeyResponses)
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.JSONEq(t, `{"user-type":{"value":"professional"}}`, string(e.Value))
	assert.Equal(t, fixed, e.UpdatedAt)
}

func TestGetMissing(t *testing.T) {
	e, err := newTestStore(t).Get(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, e)
}

func TestKeysAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Put(ctx, wizard.KeyUTM, []byte(`{}`)))
	require.NoError(t, s.Put(ctx, wizard.KeyResponses, []byte(`{}`)))

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{wizard.KeyResponses, wizard.KeyUTM}, keys)

	require.NoError(t, s.Delete(ctx, wizard.KeyUTM))
	require.NoError(t, s.Delete(ctx, wizard.KeyUTM))
	keys, err = s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{wizard.KeyResponses}, keys)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fallback.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, wizard.KeyUTM, []byte(`{"utm_source":"show"}`)))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()
	e, err := s.Get(ctx, wizard.KeyUTM)
	require.NoError(t, err)
	assert.JSONEq(t, `{"utm_source":"show"}`, string(e.Value))
}
