// Package store implements raven's Transaction Manager: the embedded
// metadata database and staging-to-root install/remove flow, built on
// modernc.org/sqlite via database/sql.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/lear94/raven/internal/logx"
	"github.com/lear94/raven/internal/recipe"
	"github.com/lear94/raven/internal/rverr"
)

const schema = `
CREATE TABLE IF NOT EXISTS packages (
	name TEXT PRIMARY KEY,
	version TEXT NOT NULL,
	hash TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS package_files (
	package_name TEXT NOT NULL,
	filepath TEXT NOT NULL,
	PRIMARY KEY (package_name, filepath)
);
CREATE TABLE IF NOT EXISTS dependencies (
	package TEXT NOT NULL,
	depends_on TEXT NOT NULL,
	PRIMARY KEY (package, depends_on)
);
`

// InstalledPackage is one row of packages, as returned by ListInstalled.
type InstalledPackage struct {
	Name    recipe.PackageName
	Version string
	Hash    recipe.HashSum
}

// Store owns the metadata database at <root>/metadata.db and the staging
// root used during install.
type Store struct {
	db         *sql.DB
	stagingDir string
	// hostRoot is where package_files paths are rooted. It is "/" in
	// production; tests point it at a temp directory so installs never
	// touch the real filesystem root.
	hostRoot string
	logger   logx.Logger
}

// Open opens (creating if absent) the metadata database at dbPath and
// prepares the schema. stagingDir is the transient per-package staging
// root. Installed files are placed under hostRoot, which is "/" in
// production.
func Open(dbPath, stagingDir, hostRoot string, logger logx.Logger) (*Store, error) {
	if logger == nil {
		logger = logx.NewNoop()
	}
	if hostRoot == "" {
		hostRoot = "/"
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, rverr.NewDBError("open", err)
	}
	db.SetMaxOpenConns(1) // single-writer
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, rverr.NewDBError("create schema", err)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		db.Close()
		return nil, rverr.NewIOError("create staging root", err)
	}
	return &Store{db: db, stagingDir: stagingDir, hostRoot: hostRoot, logger: logger}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InstallPackage copies artifactRoot's tree into a per-package staging
// directory, moves its files into place under the store's host root ("/"
// in production), and records
// the package, its files, and its dependency edges in one transaction.
func (s *Store) InstallPackage(r *recipe.Recipe, artifactRoot string) error {
	version, err := r.Version()
	if err != nil {
		return err
	}

	stageDir := filepath.Join(s.stagingDir, fmt.Sprintf("%s_%s", r.Name, version.String()))
	if err := os.RemoveAll(stageDir); err != nil {
		return rverr.NewIOError("clear stale staging dir", err)
	}
	if err := copyTree(artifactRoot, stageDir); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return rverr.NewDBError("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := installFromStaging(tx, string(r.Name), stageDir, s.hostRoot); err != nil {
		return err
	}

	deps, err := r.ParseDependencies()
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if _, err := tx.Exec(
			`INSERT OR IGNORE INTO dependencies (package, depends_on) VALUES (?, ?)`,
			string(r.Name), string(dep.Name),
		); err != nil {
			return rverr.NewDBError("insert dependency edge", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO packages (name, version, hash) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET version = excluded.version, hash = excluded.hash`,
		string(r.Name), version.String(), string(r.SHA256Sum),
	); err != nil {
		return rverr.NewDBError("upsert package row", err)
	}

	if err := tx.Commit(); err != nil {
		return rverr.NewDBError("commit install", err)
	}

	if err := os.RemoveAll(stageDir); err != nil {
		s.logger.Warn("failed to remove staging dir after commit", "dir", stageDir, "err", err)
	}
	return nil
}

// installFromStaging walks stageDir, moving each regular file to its
// host-rooted destination and recording a package_files row. Symlinks and
// directories are created at the destination but not separately recorded.
func installFromStaging(tx *sql.Tx, name, stageDir, hostRoot string) error {
	return filepath.WalkDir(stageDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return rverr.NewIOError("walk staging tree", err)
		}
		if path == stageDir {
			return nil
		}
		rel, err := filepath.Rel(stageDir, path)
		if err != nil {
			return rverr.NewIOError("compute relative path", err)
		}
		dest := filepath.Join(hostRoot, rel)

		info, err := d.Info()
		if err != nil {
			return rverr.NewIOError("stat staging entry", err)
		}

		switch {
		case info.IsDir():
			if err := os.MkdirAll(dest, info.Mode().Perm()); err != nil {
				return rverr.NewIOError("mkdir "+dest, err)
			}
			return nil
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return rverr.NewIOError("readlink "+path, err)
			}
			os.Remove(dest)
			if err := os.Symlink(target, dest); err != nil {
				return rverr.NewIOError("symlink "+dest, err)
			}
			return nil
		default:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return rverr.NewIOError("mkdir parent of "+dest, err)
			}
			if _, err := os.Stat(dest); err == nil {
				if err := os.Remove(dest); err != nil {
					return rverr.NewIOError("remove existing "+dest, err)
				}
			}
			if err := moveFile(path, dest); err != nil {
				return err
			}
			if _, err := tx.Exec(
				`INSERT OR REPLACE INTO package_files (package_name, filepath) VALUES (?, ?)`,
				name, dest,
			); err != nil {
				return rverr.NewDBError("insert package_files row", err)
			}
			return nil
		}
	})
}

// moveFile renames S to D, falling back to copy-then-delete-source on a
// cross-device rename failure.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return rverr.NewIOError("open source for copy", err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return rverr.NewIOError("stat source for copy", err)
	}
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return rverr.NewIOError("create destination", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return rverr.NewIOError("copy file contents", err)
	}
	if err := out.Close(); err != nil {
		return rverr.NewIOError("close destination", err)
	}
	if err := os.Remove(src); err != nil {
		return rverr.NewIOError("remove source after copy", err)
	}
	return nil
}

// RemovePackage detaches name: refuses if another installed package
// depends on it, otherwise deletes its files (best-effort) and its rows
// in one transaction.
func (s *Store) RemovePackage(name recipe.PackageName) error {
	tx, err := s.db.Begin()
	if err != nil {
		return rverr.NewDBError("begin transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.Query(`SELECT package FROM dependencies WHERE depends_on = ?`, string(name))
	if err != nil {
		return rverr.NewDBError("query reverse dependencies", err)
	}
	var dependents []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return rverr.NewDBError("scan reverse dependency", err)
		}
		dependents = append(dependents, p)
	}
	rows.Close()
	if len(dependents) > 0 {
		return rverr.NewDependencyError("cannot remove %s, required by: %v", name, dependents)
	}

	fileRows, err := tx.Query(`SELECT filepath FROM package_files WHERE package_name = ?`, string(name))
	if err != nil {
		return rverr.NewDBError("query package files", err)
	}
	var files []string
	for fileRows.Next() {
		var f string
		if err := fileRows.Scan(&f); err != nil {
			fileRows.Close()
			return rverr.NewDBError("scan package file", err)
		}
		files = append(files, f)
	}
	fileRows.Close()

	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove installed file", "file", f, "err", err)
		}
		// Non-recursive; silently leaves shared directories intact.
		os.Remove(filepath.Dir(f))
	}

	if _, err := tx.Exec(`DELETE FROM package_files WHERE package_name = ?`, string(name)); err != nil {
		return rverr.NewDBError("delete package_files rows", err)
	}
	if _, err := tx.Exec(`DELETE FROM dependencies WHERE package = ?`, string(name)); err != nil {
		return rverr.NewDBError("delete dependency rows", err)
	}
	if _, err := tx.Exec(`DELETE FROM packages WHERE name = ?`, string(name)); err != nil {
		return rverr.NewDBError("delete package row", err)
	}

	if err := tx.Commit(); err != nil {
		return rverr.NewDBError("commit remove", err)
	}
	return nil
}

// ListInstalled returns every row of packages.
func (s *Store) ListInstalled() ([]InstalledPackage, error) {
	rows, err := s.db.Query(`SELECT name, version, hash FROM packages ORDER BY name`)
	if err != nil {
		return nil, rverr.NewDBError("list installed", err)
	}
	defer rows.Close()

	var out []InstalledPackage
	for rows.Next() {
		var p InstalledPackage
		var name, hash string
		if err := rows.Scan(&name, &p.Version, &hash); err != nil {
			return nil, rverr.NewDBError("scan installed row", err)
		}
		p.Name = recipe.PackageName(name)
		p.Hash = recipe.HashSum(hash)
		out = append(out, p)
	}
	return out, nil
}
