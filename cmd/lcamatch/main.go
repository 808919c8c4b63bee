// Command lcamatch matches building materials to LCA datasets and computes
// embodied emissions, from the command line or over HTTP.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rshade/lcamatch/internal/cli"
	"github.com/rshade/lcamatch/internal/lcaerr"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev" //nolint:gochecknoglobals // set by the linker

// Exit codes by error kind.
const (
	exitOK            = 0
	exitFailure       = 1
	exitValidation    = 2
	exitNotFound      = 3
	exitUpstream      = 4
	exitDataIntegrity = 5
)

func run() error {
	return cli.NewRootCmd(version).ExecuteContext(context.Background())
}

// exitCode maps err to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	switch lcaerr.KindOf(err) {
	case lcaerr.KindValidation:
		return exitValidation
	case lcaerr.KindNotFound:
		return exitNotFound
	case lcaerr.KindUpstream:
		return exitUpstream
	case lcaerr.KindDataIntegrity:
		return exitDataIntegrity
	default:
		return exitFailure
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}
