package clicmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/henry40408/lmb/internal/clirender"
	"github.com/henry40408/lmb/internal/examples"
	"github.com/henry40408/lmb/internal/lmblog"
	"github.com/henry40408/lmb/internal/sandbox"
)

// ExampleCommand returns the `example` command group: list and run the
// bundled sample scripts (§8), a companion surface for exploring the
// runtime without writing a script file first.
func ExampleCommand(builder *sandbox.Builder, log *lmblog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "example",
		Usage: "List or run bundled example scripts",
		Subcommands: []*cli.Command{
			exampleListCommand(),
			exampleEvalCommand(builder, log),
		},
	}
}

func exampleListCommand() *cli.Command {
	return &cli.Command{
		Name:   "ls",
		Usage:  "List bundled example names",
		Flags:  ReadOnlyFlags(),
		Action: exampleListAction,
	}
}

func exampleListAction(c *cli.Context) error {
	names, err := examples.Names()
	if err != nil {
		return cli.Exit(fmt.Sprintf("list examples: %v", err), exitConfigError)
	}
	r, err := clirender.NewRenderer(c, nil)
	if err != nil {
		return err
	}
	return r.Render(names)
}

func exampleEvalCommand(builder *sandbox.Builder, log *lmblog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "eval",
		Usage: "Run a bundled example by name",
		Flags: []cli.Flag{
			ConfigFlag,
			FormatFlag,
			&cli.StringFlag{Name: "name", Usage: "Bundled example name", Required: true},
		},
		Action: exampleEvalAction(builder, log),
	}
}

func exampleEvalAction(builder *sandbox.Builder, log *lmblog.Logger) cli.ActionFunc {
	return func(c *cli.Context) error {
		src, err := examples.Source(c.String("name"))
		if err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		return runSourceAsEval(c, builder, log, src)
	}
}
