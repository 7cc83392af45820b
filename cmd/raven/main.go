package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lear94/raven/internal/build"
	"github.com/lear94/raven/internal/driver"
	"github.com/lear94/raven/internal/logx"
	"github.com/lear94/raven/internal/recipe"
	"github.com/lear94/raven/internal/rootlayout"
	"github.com/lear94/raven/internal/sandbox"
	"github.com/lear94/raven/internal/store"
)

var (
	verboseFlag bool
	debugFlag   bool
)

var globalCtx context.Context
var globalCancel context.CancelFunc

var logger logx.Logger

var rootCmd = &cobra.Command{
	Use:   "raven",
	Short: "A source-based package manager for Unix software",
	Long: `raven builds Unix software from declarative recipes inside a Linux
namespace sandbox, verifies artifact integrity, resolves dependency
graphs with version constraints, and installs results into the host
filesystem under a transactional metadata store.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "show info-level output")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "show debug-level output")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) { initLogger() }

	rootCmd.AddCommand(installCmd, removeCmd, updateCmd, upgradeCmd, searchCmd, configCmd)
}

func initLogger() {
	level := slog.LevelWarn
	switch {
	case debugFlag:
		level = slog.LevelDebug
	case verboseFlag:
		level = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = logx.New(handler)
}

// newDriver wires the Resolver, Builder, and Transaction Manager together
// for one invocation, loading the recipe tree and opening the metadata
// store under the resolved filesystem layout.
func newDriver() (*driver.Driver, error) {
	layout := rootlayout.Resolve()
	if err := layout.EnsureDirs(); err != nil {
		return nil, err
	}

	recipes, err := recipe.Load(layout.RecipesDir())
	if err != nil {
		return nil, err
	}

	st, err := store.Open(layout.MetadataDBPath(), layout.Staging, "/", logger)
	if err != nil {
		return nil, err
	}

	b := build.New(layout.Work, build.WithLogger(logger))

	return driver.New(recipes, b, st, logger), nil
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, driver.FormatError(err))
	exitWithCode(ExitGeneral)
}

func main() {
	// Before any CLI dispatch: if this process was re-exec'd to enter the
	// sandbox's namespaces, run the inner setup instead of the CLI.
	if sandbox.ReexecRequested() {
		os.Exit(sandbox.RunInner())
	}

	globalCtx, globalCancel = signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer globalCancel()

	if err := rootCmd.ExecuteContext(globalCtx); err != nil {
		fail(err)
	}
}
