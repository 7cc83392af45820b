// Package build implements raven's Builder: one fetch -> unpack ->
// sandboxed-compile -> install-to-staging cycle per recipe.
package build

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/errgroup"

	"github.com/lear94/raven/internal/fetch"
	"github.com/lear94/raven/internal/logx"
	"github.com/lear94/raven/internal/recipe"
	"github.com/lear94/raven/internal/rverr"
	"github.com/lear94/raven/internal/sandbox"
)

// qemuBinary is the static QEMU user-mode emulator copied into the sandbox
// when cross-compiling. The hard-coded aarch64 target is a known
// limitation shared with the system this was modeled on.
const qemuBinary = "/usr/bin/qemu-aarch64-static"

// crossEnvPrelude is prepended to the build script when target_arch
// differs from the host architecture.
const crossEnvPrelude = "export CC=aarch64-linux-gnu-gcc\n" +
	"export CXX=aarch64-linux-gnu-g++\n" +
	"export CROSS_COMPILE=aarch64-linux-gnu-\n"

// Builder orchestrates one build-and-install-to-staging cycle per recipe.
type Builder struct {
	WorkDir string
	Fetcher *fetch.Client
	Logger  logx.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the Builder's logger.
func WithLogger(l logx.Logger) Option {
	return func(b *Builder) { b.Logger = l }
}

// WithFetcher overrides the Builder's download client (used by tests to
// inject a client pointed at a local test server).
func WithFetcher(c *fetch.Client) Option {
	return func(b *Builder) { b.Fetcher = c }
}

// New creates a Builder that stages builds under workDir.
func New(workDir string, opts ...Option) *Builder {
	b := &Builder{
		WorkDir: workDir,
		Fetcher: fetch.NewClient(),
		Logger:  logx.NewNoop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ProgressFunc reports download progress during Build.
type ProgressFunc = fetch.ProgressFunc

// Build runs the full fetch/unpack/sandbox cycle for r and returns the
// host-visible path to the directory holding its install output
// (<pkg>/out/).
func (b *Builder) Build(ctx context.Context, r *recipe.Recipe, progress ProgressFunc) (string, error) {
	pkgDir := filepath.Join(b.WorkDir, string(r.Name)+"-build")
	srcDir := filepath.Join(pkgDir, "src")
	outDir := filepath.Join(pkgDir, "out")

	if err := prepareWorkspace(pkgDir, srcDir, outDir); err != nil {
		return "", err
	}

	// Recipes may name the host architecture either the uname way
	// ("x86_64", "aarch64") or the Go way ("amd64", "arm64").
	hostArch := runtime.GOARCH
	switch hostArch {
	case "amd64":
		hostArch = "x86_64"
	case "arm64":
		hostArch = "aarch64"
	}
	needsQEMU := r.TargetArch != "" && r.TargetArch != hostArch && r.TargetArch != runtime.GOARCH
	if needsQEMU {
		if err := copyQEMU(pkgDir); err != nil {
			return "", err
		}
	}

	b.Logger.Info("fetching source", "package", r.Name, "url", r.SourceURL)
	tarball := filepath.Join(pkgDir, "source.tar")
	if err := b.Fetcher.Fetch(r.SourceURL, tarball, r.SHA256Sum, string(r.Name), progress); err != nil {
		return "", err
	}

	b.Logger.Info("unpacking source", "package", r.Name)
	if err := unpackAsync(ctx, tarball, srcDir); err != nil {
		return "", err
	}

	script := synthesizeScript(r, needsQEMU)

	logPath := filepath.Join(pkgDir, "build.log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return "", rverr.NewIOError("create build log", err)
	}
	defer logFile.Close()

	b.Logger.Info("running sandboxed build", "package", r.Name)
	sb := sandbox.New(pkgDir)
	if err := sb.Run(script, logFile, logPath); err != nil {
		return "", err
	}

	return outDir, nil
}

// prepareWorkspace allocates a fresh <work>/<name>-build/ tree with src,
// out, and the Unix skeleton directories, removing any preexisting
// same-named directory first to ensure hermeticity.
func prepareWorkspace(pkgDir, srcDir, outDir string) error {
	if _, err := os.Stat(pkgDir); err == nil {
		if err := os.RemoveAll(pkgDir); err != nil {
			return rverr.NewIOError("remove stale build dir", err)
		}
	}
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return rverr.NewIOError("create src dir", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return rverr.NewIOError("create out dir", err)
	}
	for _, d := range sandbox.SkeletonDirs {
		if err := os.MkdirAll(filepath.Join(pkgDir, d), 0o755); err != nil {
			return rverr.NewIOError("create skeleton dir "+d, err)
		}
	}
	return nil
}

// copyQEMU copies the static QEMU user emulator into the sandbox's
// usr/bin/, when present on the host.
func copyQEMU(pkgDir string) error {
	if _, err := os.Stat(qemuBinary); err != nil {
		return nil
	}
	dest := filepath.Join(pkgDir, "usr", "bin", filepath.Base(qemuBinary))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return rverr.NewIOError("create qemu dest dir", err)
	}
	in, err := os.Open(qemuBinary)
	if err != nil {
		return rverr.NewIOError("open qemu binary", err)
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return rverr.NewIOError("create qemu copy", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return rverr.NewIOError("copy qemu binary", err)
	}
	return nil
}

// unpackAsync extracts a gzip-compressed tar archive into dest on a worker
// goroutine, joined via errgroup, since decompression is CPU-bound and the
// rest of the Builder's orchestration is otherwise asynchronous.
func unpackAsync(ctx context.Context, tarball, dest string) error {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return unpackTarGz(tarball, dest)
	})
	return g.Wait()
}

func unpackTarGz(tarball, dest string) error {
	f, err := os.Open(tarball)
	if err != nil {
		return rverr.NewIOError("open tarball", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return rverr.NewIOError("open gzip stream", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return rverr.NewIOError("read tar entry", err)
		}

		target := filepath.Join(dest, hdr.Name)
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) && target != filepath.Clean(dest) {
			return rverr.NewIOError("unpack", fmt.Errorf("tar entry %q escapes destination", hdr.Name))
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return rverr.NewIOError("mkdir "+target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return rverr.NewIOError("mkdir "+filepath.Dir(target), err)
			}
			out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return rverr.NewIOError("create "+target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return rverr.NewIOError("write "+target, err)
			}
			if err := out.Close(); err != nil {
				return rverr.NewIOError("close "+target, err)
			}
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return rverr.NewIOError("mkdir "+filepath.Dir(target), err)
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return rverr.NewIOError("symlink "+target, err)
			}
		}
	}
	return nil
}

// synthesizeScript constructs the in-sandbox shell script.
func synthesizeScript(r *recipe.Recipe, needsQEMU bool) string {
	var b strings.Builder
	if needsQEMU {
		b.WriteString(crossEnvPrelude)
	}
	b.WriteString("export DESTDIR=/out\n")
	b.WriteString("cd /src\n")
	b.WriteString(`DIR=$(ls -d */ | head -n 1)` + "\n")
	b.WriteString(`if [ -n "$DIR" ]; then cd "$DIR"; fi` + "\n")
	for _, cmd := range r.BuildCommands {
		b.WriteString(cmd)
		b.WriteString("\n")
	}
	for _, cmd := range r.InstallCommands {
		b.WriteString(cmd)
		b.WriteString("\n")
	}
	return b.String()
}
