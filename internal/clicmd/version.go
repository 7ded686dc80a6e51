package clicmd

import (
	"github.com/urfave/cli/v2"

	"github.com/henry40408/lmb/internal/clirender"
)

// Version is the canonical project version, lockstep across cmd/lmb.
const Version = "0.1.0"

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// VersionCommand returns the version command.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := clirender.NewRenderer(c, nil)
		if err != nil {
			return err
		}
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", exitConfigError)
		}
		return r.Render(VersionResponse{Version: Version, Commit: commit})
	}
}
