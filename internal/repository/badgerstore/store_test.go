package badgerstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/orchids/sandtube/internal/domain"
)

func TestBadgerStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	_, err = s.Get(ctx, "sandtube:social")
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	require.NoError(t, s.Set(ctx, "sandtube:social", []byte(`{"v":1}`)))
	require.NoError(t, s.Set(ctx, "sandtube:social", []byte(`{"v":2}`)))

	got, err := s.Get(ctx, "sandtube:social")
	require.NoError(t, err)
	require.JSONEq(t, `{"v":2}`, string(got))

	require.NoError(t, s.Delete(ctx, "sandtube:social"))
	_, err = s.Get(ctx, "sandtube:social")
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestBadgerStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(got))
}
