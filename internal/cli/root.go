package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

const name = "forestpipe"

// version is overridden at build time with -ldflags
// "-X .../internal/cli.version=...".
var version = "dev"

// Root builds the top-level command tree: one subcommand per worker role.
func Root() *cli.Command {
	return &cli.Command{
		Name:                  name,
		EnableShellCompletion: true,
		Usage:                 "Forest snapshot pipeline worker",
		Version:               version,
		Description: fmt.Sprintf(`%s runs one of the snapshot pipeline's four worker roles:

  compute   drives chain computation forward in batches
  build     exports lite/diff/latest snapshot artifacts
  upload    conveys built artifacts to object storage
  validate  runs primary and secondary-daemon validation on uploaded artifacts

Every worker is configured primarily through environment variables (see
internal/config); command-line flags exist for local development and,
when set, take precedence over an already-exported environment variable.`, name),
		Commands: []*cli.Command{
			computeCmd(),
			buildCmd(),
			uploadCmd(),
			validateCmd(),
		},
	}
}

// Execute runs the CLI with ctx, returning any error for main to report.
func Execute(ctx context.Context, args []string) error {
	return Root().Run(ctx, args)
}
