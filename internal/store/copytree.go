package store

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/lear94/raven/internal/rverr"
)

// copyTree recursively copies the tree rooted at src into dest, preserving
// symlinks, permissions, and the modification times of regular files
// (directory times are not restored). A failure partway through
// surfaces as an I/O error; dest may be left partially populated.
func copyTree(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return rverr.NewIOError("walk artifact tree", err)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return rverr.NewIOError("compute relative path", err)
		}
		target := filepath.Join(dest, rel)

		info, err := d.Info()
		if err != nil {
			return rverr.NewIOError("stat artifact entry", err)
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			linkTarget, err := os.Readlink(path)
			if err != nil {
				return rverr.NewIOError("readlink "+path, err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return rverr.NewIOError("mkdir parent of "+target, err)
			}
			if err := os.Symlink(linkTarget, target); err != nil {
				return rverr.NewIOError("create symlink "+target, err)
			}
		case info.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()); err != nil {
				return rverr.NewIOError("mkdir "+target, err)
			}
		default:
			if err := copyFilePreserving(path, target, info); err != nil {
				return err
			}
		}
		return nil
	})
}

func copyFilePreserving(src, dest string, info os.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return rverr.NewIOError("mkdir parent of "+dest, err)
	}
	in, err := os.Open(src)
	if err != nil {
		return rverr.NewIOError("open "+src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return rverr.NewIOError("create "+dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return rverr.NewIOError("copy contents to "+dest, err)
	}
	if err := out.Close(); err != nil {
		return rverr.NewIOError("close "+dest, err)
	}
	if err := os.Chtimes(dest, time.Now(), info.ModTime()); err != nil {
		return rverr.NewIOError("preserve mtime on "+dest, err)
	}
	return nil
}
