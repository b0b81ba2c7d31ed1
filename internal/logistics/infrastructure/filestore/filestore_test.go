package filestore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveOpenDelete(t *testing.T) {
	store, err := New(t.TempDir(), 0)
	require.NoError(t, err)
	ctx := context.Background()

	n, err := store.Save(ctx, "pod-1.pdf", strings.NewReader("signed copy"))
	require.NoError(t, err)
	require.EqualValues(t, len("signed copy"), n)

	rc, err := store.Open(ctx, "pod-1.pdf")
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "signed copy", string(body))

	require.NoError(t, store.Delete(ctx, "pod-1.pdf"))
	_, err = store.Open(ctx, "pod-1.pdf")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, store.Delete(ctx, "pod-1.pdf"))
}

func TestRejectsTraversalAndOversize(t *testing.T) {
	store, err := New(t.TempDir(), 4)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Save(ctx, "../escape", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = store.Save(ctx, "big", strings.NewReader("too large"))
	require.ErrorIs(t, err, ErrTooLarge)
	_, err = store.Open(ctx, "big")
	require.ErrorIs(t, err, ErrNotFound)
}
