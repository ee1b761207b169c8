package materialize

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voltpkg/volt/internal/cas"
)

func TestMaterializeWritesAllFilesFromMap(t *testing.T) {
	store, err := cas.Open(t.TempDir())
	require.NoError(t, err)

	files := map[string]string{
		"index.js":     "module.exports = {}",
		"package.json": `{"name":"left-pad"}`,
		"lib/util.js":  "exports.util = 1",
	}

	fm := make(cas.FileMap, len(files))
	for path, content := range files {
		d, err := store.WriteBlob([]byte(content))
		require.NoError(t, err)
		fm[path] = d
	}
	require.NoError(t, store.WriteMap("left-pad@1.3.0#sha512-x", fm))

	root := t.TempDir()
	require.NoError(t, Materialize(context.Background(), store, "left-pad@1.3.0#sha512-x", root, 4))

	for path, content := range files {
		got, err := os.ReadFile(filepath.Join(root, path))
		require.NoError(t, err)
		require.Equal(t, content, string(got))
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	store, err := cas.Open(t.TempDir())
	require.NoError(t, err)

	d, err := store.WriteBlob([]byte("content"))
	require.NoError(t, err)
	fm := cas.FileMap{"index.js": d}
	require.NoError(t, store.WriteMap("pkg@1.0.0#sha512-x", fm))

	root := t.TempDir()
	require.NoError(t, Materialize(context.Background(), store, "pkg@1.0.0#sha512-x", root, 2))
	require.NoError(t, Materialize(context.Background(), store, "pkg@1.0.0#sha512-x", root, 2))

	got, err := os.ReadFile(filepath.Join(root, "index.js"))
	require.NoError(t, err)
	require.Equal(t, "content", string(got))
}

func TestMaterializeHandlesMoreFilesThanChunkSize(t *testing.T) {
	store, err := cas.Open(t.TempDir())
	require.NoError(t, err)

	fm := make(cas.FileMap)
	for i := 0; i < chunkSize*3+2; i++ {
		name := filepath.Join("lib", string(rune('a'+i))+".js")
		d, err := store.WriteBlob([]byte(name))
		require.NoError(t, err)
		fm[name] = d
	}
	require.NoError(t, store.WriteMap("big@1.0.0#sha512-x", fm))

	root := t.TempDir()
	require.NoError(t, Materialize(context.Background(), store, "big@1.0.0#sha512-x", root, 4))

	for name := range fm {
		_, err := os.Stat(filepath.Join(root, name))
		require.NoError(t, err)
	}
}
