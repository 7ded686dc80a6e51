// Package main provides the lmb CLI entrypoint.
//
// The CLI is a thin front end over the core runtime: every command either
// evaluates a script once (`eval`), serves one as an HTTP handler
// (`serve`), or inspects ambient state (`store`, `example`, `version`).
//
// Usage:
//
//	lmb <command> [subcommand] [options]
//
// Exit codes per CONTRACT_EVAL.md:
//   - 0: success
//   - 1: user script error
//   - 2: invocation/config error
//   - 3: timeout
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/bindings/crypto"
	"github.com/henry40408/lmb/internal/bindings/json"
	"github.com/henry40408/lmb/internal/bindings/jsonpath"
	"github.com/henry40408/lmb/internal/bindings/logging"
	"github.com/henry40408/lmb/internal/bindings/toml"
	"github.com/henry40408/lmb/internal/bindings/yaml"
	"github.com/henry40408/lmb/internal/clicmd"
	"github.com/henry40408/lmb/internal/fsbinding"
	"github.com/henry40408/lmb/internal/httpclient"
	"github.com/henry40408/lmb/internal/lmbconfig"
	"github.com/henry40408/lmb/internal/lmblog"
	"github.com/henry40408/lmb/internal/sandbox"
	"github.com/henry40408/lmb/internal/scheduler"
)

// commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	log := lmblog.New(lmblog.EvalMeta{Mode: "cli"})
	builder := newBuilder(log)

	app := &cli.App{
		Name:           "lmb",
		Usage:          "Sandboxed Lua scripting runtime",
		Version:        fmt.Sprintf("%s (commit: %s)", clicmd.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			clicmd.EvalCommand(builder, log),
			clicmd.ServeCommand(builder, log),
			clicmd.ExampleCommand(builder, log),
			clicmd.StoreCommand(),
			clicmd.StatsCommand(),
			clicmd.VersionCommand(commit),
		},
	}

	if err := app.Run(os.Args); err != nil {
		os.Exit(exitConfigError)
	}
}

const exitConfigError = 2

// newBuilder constructs the one sandbox.Builder shared across every eval
// and serve invocation this process runs, with every @lmb/* module wired
// in. fs's object-storage helpers are gated by lmb.yaml's allow-list,
// loaded here once at startup rather than per-evaluation.
func newBuilder(log *lmblog.Logger) *sandbox.Builder {
	cfg, err := lmbconfig.LoadOptional("lmb.yaml")
	if err != nil {
		cfg = &lmbconfig.Config{}
	}

	builder := sandbox.New(log)

	httpClient := httpclient.New()
	builder.RegisterSched("http", func(L *lua.LState, sched *scheduler.Scheduler) lua.LValue {
		return httpClient.Loader(sched)(L)
	})

	s3 := newS3Client(cfg)
	builder.Register("fs", fsbinding.Loader(s3))
	builder.Register("json", json.Loader())
	builder.Register("toml", toml.Loader())
	builder.Register("yaml", yaml.Loader())
	builder.Register("json-path", jsonpath.Loader())
	builder.Register("crypto", crypto.Loader())
	builder.Register("logging", logging.Loader(log, logging.Target{Name: "", Min: logging.LevelInfo}))

	return builder
}

// newS3Client builds @lmb/fs's s3_get/s3_put client from lmb.yaml's
// `fs.s3` block — distinct from `store.s3`, which configures the store's
// durability mirror (internal/store/mirror), not these script-facing
// helpers.
func newS3Client(cfg *lmbconfig.Config) *fsbinding.S3Client {
	if cfg.FS.S3 == nil {
		return nil
	}
	s3, err := fsbinding.NewS3Client(context.Background(), fsbinding.S3Config{
		Region:           cfg.FS.S3.Region,
		Endpoint:         cfg.FS.S3.Endpoint,
		UsePathStyle:     cfg.FS.S3.UsePathStyle,
		AllowedS3Buckets: cfg.FS.S3.AllowedBuckets,
	})
	if err != nil {
		return nil
	}
	return s3
}

// exitErrHandler preserves exit codes set via cli.Exit, matching the
// teacher's pattern of surfacing *cli.ExitCoder before falling back to a
// generic failure code.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}

	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
