package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T, dir, layer, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, layer+".json"), []byte(body), 0o644))
}

func TestStore_LoadCachesGraph(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "vtds", `{"layer":"vtds","nodes":["A","B"],"edges":[["A","B"]]}`)
	store := NewStore(dir)

	g, err := store.Load(context.Background(), "vtds")
	require.NoError(t, err)
	assert.Equal(t, 2, g.NumNodes())

	// the cached graph survives the artifact changing on disk
	writeArtifact(t, dir, "vtds", `{"layer":"vtds","nodes":["A"],"edges":[]}`)
	g, err = store.Load(context.Background(), "vtds")
	require.NoError(t, err)
	assert.Equal(t, 2, g.NumNodes())

	store.Invalidate("vtds")
	g, err = store.Load(context.Background(), "vtds")
	require.NoError(t, err)
	assert.Equal(t, 1, g.NumNodes())
}

func TestStore_FailedLoadIsNotCached(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "blocks", `not json`)
	store := NewStore(dir)

	_, err := store.Load(context.Background(), "blocks")
	require.Error(t, err)

	// fixing the artifact must succeed without an Invalidate
	writeArtifact(t, dir, "blocks", `{"layer":"blocks","nodes":["x"],"edges":[]}`)
	g, err := store.Load(context.Background(), "blocks")
	require.NoError(t, err)
	assert.Equal(t, 1, g.NumNodes())
}

func TestStore_MissingArtifact(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Load(context.Background(), "nope")
	assert.Error(t, err)
}
