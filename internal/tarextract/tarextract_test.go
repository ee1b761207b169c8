package tarextract

import (
	"archive/tar"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voltpkg/volt/internal/cas"
)

func buildTar(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func TestExtractStripsNpmPrefixAndWritesFileMap(t *testing.T) {
	store, err := cas.Open(t.TempDir())
	require.NoError(t, err)

	data := buildTar(t, map[string]string{
		"package/index.js":   "module.exports = require('./lib');",
		"package/package.json": `{"name":"left-pad"}`,
	})

	fm, err := Extract(store, "left-pad@1.3.0#sha512-x", data)
	require.NoError(t, err)
	require.Len(t, fm, 2)
	require.Contains(t, fm, "index.js")
	require.Contains(t, fm, "package.json")

	has, err := store.HasMap("left-pad@1.3.0#sha512-x")
	require.NoError(t, err)
	require.True(t, has)
}

func TestExtractRejectsPathTraversal(t *testing.T) {
	store, err := cas.Open(t.TempDir())
	require.NoError(t, err)

	data := buildTar(t, map[string]string{
		"package/../../etc/passwd": "malicious",
	})

	_, err = Extract(store, "evil@1.0.0#sha512-x", data)
	require.Error(t, err)
}

func TestExtractRejectsAbsolutePath(t *testing.T) {
	store, err := cas.Open(t.TempDir())
	require.NoError(t, err)

	data := buildTar(t, map[string]string{
		"/etc/passwd": "malicious",
	})

	_, err = Extract(store, "evil@1.0.0#sha512-x", data)
	require.Error(t, err)
}

func TestExtractRejectsSymlinkEntries(t *testing.T) {
	store, err := cas.Open(t.TempDir())
	require.NoError(t, err)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "package/link",
		Typeflag: tar.TypeSymlink,
		Linkname: "/etc/passwd",
	}))
	require.NoError(t, tw.Close())

	_, err = Extract(store, "evil@1.0.0#sha512-x", buf.Bytes())
	require.Error(t, err)
}

func TestExtractSkipsDirectoryEntries(t *testing.T) {
	store, err := cas.Open(t.TempDir())
	require.NoError(t, err)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name:     "package/lib/",
		Typeflag: tar.TypeDir,
	}))
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "package/lib/index.js",
		Size: 2,
	}))
	_, err = tw.Write([]byte("ok"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())

	fm, err := Extract(store, "pkg@1.0.0#sha512-x", buf.Bytes())
	require.NoError(t, err)
	require.Len(t, fm, 1)
	require.Contains(t, fm, "lib/index.js")
}
