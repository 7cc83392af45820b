package main

import "os"

// Exit codes. raven's error taxonomy collapses to a single binary signal
// at the CLI boundary: 0 on success, 1 on any surfaced error.
const (
	ExitSuccess = 0
	ExitGeneral = 1
)

func exitWithCode(code int) {
	os.Exit(code)
}
