// Package reposync keeps the local recipe tree in sync with its git
// remote, via go-git/go-git/v5.
package reposync

import (
	"errors"
	"os"

	"github.com/go-git/go-git/v5"

	"github.com/lear94/raven/internal/logx"
	"github.com/lear94/raven/internal/rverr"
)

// Sync clones repoURL into dir if dir does not exist; otherwise it opens dir
// as a git checkout and pulls. A clone failure, or an existing dir that is
// not a git checkout, is fatal; a pull failure is logged as a warning and
// treated as non-fatal.
func Sync(repoURL, dir string, logger logx.Logger) error {
	if logger == nil {
		logger = logx.NewNoop()
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Info("cloning recipe repository", "url", repoURL, "dir", dir)
		_, err := git.PlainClone(dir, false, &git.CloneOptions{
			URL: repoURL,
		})
		if err != nil {
			return &rverr.GitError{Op: "clone", Err: err}
		}
		return nil
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return &rverr.GitError{Op: "open", Err: err}
	}
	wt, err := repo.Worktree()
	if err != nil {
		return &rverr.GitError{Op: "worktree", Err: err}
	}

	logger.Info("pulling recipe repository", "dir", dir)
	err = wt.Pull(&git.PullOptions{RemoteName: "origin"})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		logger.Warn("recipe repository pull failed", "err", err)
		return nil
	}
	return nil
}
