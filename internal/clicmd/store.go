package clicmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/henry40408/lmb/internal/clirender"
	"github.com/henry40408/lmb/internal/clitui"
	"github.com/henry40408/lmb/internal/store"
)

// StoreCommand returns the `store` command group: read-only inspection
// over a store file, independent of any running evaluation.
func StoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "store",
		Usage: "Inspect a store file",
		Subcommands: []*cli.Command{
			storeInspectCommand(),
		},
	}
}

func storeInspectCommand() *cli.Command {
	flags := append([]cli.Flag{
		&cli.StringFlag{Name: "store", Aliases: []string{"s"}, Usage: "Path to the SQLite store file", Required: true},
	}, ReadOnlyFlags()...)
	return &cli.Command{
		Name:   "inspect",
		Usage:  "List every key in the store with its type and size",
		Flags:  flags,
		Action: storeInspectAction,
	}
}

func storeInspectAction(c *cli.Context) error {
	st, err := store.Open(c.String("store"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("open store: %v", err), exitConfigError)
	}
	defer st.Close()

	keys, err := st.List(c.Context)
	if err != nil {
		return cli.Exit(fmt.Sprintf("list keys: %v", err), exitConfigError)
	}

	r, err := clirender.NewRenderer(c, clitui.Run)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("store_inspect", keys)
	}
	return r.Render(keys)
}
