//go:build linux

package sandbox

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/lear94/raven/internal/rverr"
)

// Sandbox runs a single shell script inside a filesystem/UTS-isolated
// chroot rooted at Root. It is single-use: construct a new Sandbox per
// build, pointed at a fresh root directory.
type Sandbox struct {
	Root string
}

// New returns a Sandbox rooted at root. root must already contain the
// skeleton directories the Builder prepares (SkeletonDirs).
func New(root string) *Sandbox {
	return &Sandbox{Root: root}
}

// Run executes script inside the sandbox, writing combined stdout/stderr to
// log. logPath is used only to produce a helpful error message on failure.
//
// Implementation: Go cannot run arbitrary code between fork and exec in the
// traditional sense, so step 1 (entering new namespaces) happens via
// os/exec's Cloneflags when re-execing the current binary; steps 2-5
// (private mount propagation, /proc, bind mounts, chroot) then run inside
// that re-exec'd process, which already lives in the new namespaces, before
// it finally execs /bin/sh in place of itself (step 6).
func (s *Sandbox) Run(script string, log io.Writer, logPath string) error {
	scriptFile, err := os.CreateTemp("", "raven-sandbox-script-*.sh")
	if err != nil {
		return rverr.NewIOError("create sandbox script file", err)
	}
	defer os.Remove(scriptFile.Name())
	if _, err := scriptFile.WriteString(script); err != nil {
		scriptFile.Close()
		return rverr.NewIOError("write sandbox script file", err)
	}
	if err := scriptFile.Close(); err != nil {
		return rverr.NewIOError("close sandbox script file", err)
	}

	self, err := os.Executable()
	if err != nil {
		return rverr.NewIOError("resolve raven executable", err)
	}

	cmd := exec.Command(self)
	cmd.Env = append(os.Environ(),
		envExec+"=1",
		envRoot+"="+s.Root,
		envScript+"="+scriptFile.Name(),
	)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: syscall.CLONE_NEWNS | syscall.CLONE_NEWUTS,
	}
	cmd.Stdout = log
	cmd.Stderr = log

	if err := cmd.Run(); err != nil {
		return rverr.NewDependencyError("build failed, see %s: %v", logPath, err)
	}
	return nil
}

// RunInner is the entry point for the re-exec'd child: it performs the
// namespace/mount/chroot setup and then execs
// /bin/sh -c <script> in place of itself (step 6). Called from main()
// before normal CLI dispatch when ReexecRequested() is true. Returns the
// process exit code to use; it only returns at all if setup failed before
// the final exec (a successful exec never returns).
func RunInner() int {
	root := os.Getenv(envRoot)
	scriptPath := os.Getenv(envScript)
	if root == "" || scriptPath == "" {
		fmt.Fprintln(os.Stderr, "raven sandbox: missing root or script environment")
		return 1
	}

	script, err := os.ReadFile(scriptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "raven sandbox: read script: %v\n", err)
		return 1
	}

	if err := setupMounts(root); err != nil {
		fmt.Fprintf(os.Stderr, "raven sandbox: %v\n", err)
		return 1
	}

	if err := unix.Chroot(root); err != nil {
		fmt.Fprintf(os.Stderr, "raven sandbox: chroot: %v\n", err)
		return 1
	}
	if err := unix.Chdir("/"); err != nil {
		fmt.Fprintf(os.Stderr, "raven sandbox: chdir: %v\n", err)
		return 1
	}

	argv := []string{"/bin/sh", "-c", string(script)}
	if err := unix.Exec("/bin/sh", argv, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "raven sandbox: exec /bin/sh: %v\n", err)
		return 1
	}
	// unix.Exec only returns on error.
	return 1
}

// setupMounts makes the whole mount tree private, mounts a fresh proc, and
// recursively bind-mounts the host's
// toolchain directories into root.
func setupMounts(root string) error {
	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("mark / private: %w", err)
	}

	procDir := filepath.Join(root, "proc")
	if _, err := os.Stat(procDir); err == nil {
		if err := unix.Mount("proc", procDir, "proc", 0, ""); err != nil {
			return fmt.Errorf("mount proc: %w", err)
		}
	}

	for _, dir := range BindDirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		target := filepath.Join(root, dir)
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", target, err)
		}
		if err := unix.Mount(dir, target, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
			return fmt.Errorf("bind mount %s: %w", dir, err)
		}
	}

	return nil
}
