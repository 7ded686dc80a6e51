package clicmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/henry40408/lmb/internal/clirender"
	"github.com/henry40408/lmb/internal/clitui"
)

// StatsCommand returns the `stats` command: reads a live scheduler
// activity snapshot from a running `lmb serve` process's /_stats
// endpoint.
func StatsCommand() *cli.Command {
	flags := append([]cli.Flag{
		&cli.StringFlag{Name: "url", Usage: "Base URL of a running lmb serve process", Value: "http://localhost:8080"},
	}, ReadOnlyFlags()...)
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show scheduler activity for a running serve process",
		Flags:  flags,
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	base := strings.TrimSuffix(c.String("url"), "/")
	resp, err := http.Get(base + "/_stats")
	if err != nil {
		return cli.Exit(fmt.Sprintf("fetch stats: %v", err), exitConfigError)
	}
	defer resp.Body.Close()

	var snapshot clitui.SchedulerSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return cli.Exit(fmt.Sprintf("decode stats: %v", err), exitConfigError)
	}

	r, err := clirender.NewRenderer(c, clitui.Run)
	if err != nil {
		return err
	}
	if c.Bool("tui") {
		return r.RenderTUI("stats_scheduler", snapshot)
	}
	return r.Render(snapshot)
}
