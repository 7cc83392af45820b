package build

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lear94/raven/internal/fetch"
	"github.com/lear94/raven/internal/recipe"
)

func makeTarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		hdr := &tar.Header{
			Name: name,
			Mode: 0o644,
			Size: int64(len(content)),
		}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestSynthesizeScript_NoQEMU(t *testing.T) {
	r := &recipe.Recipe{
		BuildCommands:   []string{"./configure", "make"},
		InstallCommands: []string{"make install"},
	}
	script := synthesizeScript(r, false)
	assert.NotContains(t, script, "CROSS_COMPILE")
	assert.Contains(t, script, "export DESTDIR=/out")
	assert.Contains(t, script, "cd /src")
	assert.Contains(t, script, "./configure")
	assert.Contains(t, script, "make install")
}

func TestSynthesizeScript_WithQEMU(t *testing.T) {
	r := &recipe.Recipe{
		BuildCommands: []string{"make"},
	}
	script := synthesizeScript(r, true)
	assert.Contains(t, script, "CROSS_COMPILE=aarch64-linux-gnu-")
	assert.Contains(t, script, "CC=aarch64-linux-gnu-gcc")
}

func TestPrepareWorkspace_CreatesSkeleton(t *testing.T) {
	base := t.TempDir()
	pkgDir := filepath.Join(base, "foo-build")
	srcDir := filepath.Join(pkgDir, "src")
	outDir := filepath.Join(pkgDir, "out")

	require.NoError(t, prepareWorkspace(pkgDir, srcDir, outDir))

	assert.DirExists(t, srcDir)
	assert.DirExists(t, outDir)
	assert.DirExists(t, filepath.Join(pkgDir, "proc"))
	assert.DirExists(t, filepath.Join(pkgDir, "tmp"))
}

func TestPrepareWorkspace_RemovesStaleDir(t *testing.T) {
	base := t.TempDir()
	pkgDir := filepath.Join(base, "foo-build")
	require.NoError(t, os.MkdirAll(pkgDir, 0o755))
	stale := filepath.Join(pkgDir, "stale-marker")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	require.NoError(t, prepareWorkspace(pkgDir, filepath.Join(pkgDir, "src"), filepath.Join(pkgDir, "out")))

	assert.NoFileExists(t, stale)
}

func TestUnpackTarGz(t *testing.T) {
	dest := t.TempDir()
	archive := makeTarGz(t, map[string]string{
		"pkg-1.0/main.c":        "int main(){return 0;}",
		"pkg-1.0/sub/helper.c":  "void helper(){}",
	})

	tarball := filepath.Join(t.TempDir(), "source.tar")
	require.NoError(t, os.WriteFile(tarball, archive, 0o644))

	require.NoError(t, unpackTarGz(tarball, dest))

	content, err := os.ReadFile(filepath.Join(dest, "pkg-1.0", "main.c"))
	require.NoError(t, err)
	assert.Equal(t, "int main(){return 0;}", string(content))

	content2, err := os.ReadFile(filepath.Join(dest, "pkg-1.0", "sub", "helper.c"))
	require.NoError(t, err)
	assert.Equal(t, "void helper(){}", string(content2))
}

func TestUnpackTarGz_RejectsPathEscape(t *testing.T) {
	dest := t.TempDir()
	archive := makeTarGz(t, map[string]string{
		"../../etc/passwd": "pwned",
	})
	tarball := filepath.Join(t.TempDir(), "source.tar")
	require.NoError(t, os.WriteFile(tarball, archive, 0o644))

	err := unpackTarGz(tarball, dest)
	require.Error(t, err)
}

func TestUnpackAsync(t *testing.T) {
	dest := t.TempDir()
	archive := makeTarGz(t, map[string]string{"a.txt": "hello"})
	tarball := filepath.Join(t.TempDir(), "source.tar")
	require.NoError(t, os.WriteFile(tarball, archive, 0o644))

	require.NoError(t, unpackAsync(context.Background(), tarball, dest))
	content, err := os.ReadFile(filepath.Join(dest, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestBuild_FetchFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := &recipe.Recipe{
		Name:      "demo",
		SourceURL: srv.URL + "/demo.tar.gz",
		SHA256Sum: recipe.HashSum(hex.EncodeToString(sha256.New().Sum(nil))),
	}

	b := New(t.TempDir(), WithFetcher(fetch.NewClient()))
	_, err := b.Build(context.Background(), r, nil)
	require.Error(t, err)
}
