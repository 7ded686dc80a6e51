package clicmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/henry40408/lmb/internal/codec"
	"github.com/henry40408/lmb/internal/evalctx"
	"github.com/henry40408/lmb/internal/frontmatter"
	"github.com/henry40408/lmb/internal/ioreader"
	"github.com/henry40408/lmb/internal/lmberr"
	"github.com/henry40408/lmb/internal/lmblog"
	"github.com/henry40408/lmb/internal/lmbconfig"
	"github.com/henry40408/lmb/internal/sandbox"
	"github.com/henry40408/lmb/internal/store"
)

// EvalCommand returns the `eval` command: compile and run one script
// through the four-step execution protocol (§4.4), writing its result
// to stdout as JSON.
func EvalCommand(builder *sandbox.Builder, log *lmblog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "eval",
		Usage: "Evaluate a Lua script once and print its result",
		Flags: []cli.Flag{
			ConfigFlag,
			FormatFlag,
			&cli.StringFlag{Name: "file", Aliases: []string{"F"}, Usage: "Script path, or - for stdin", Required: true},
			&cli.StringFlag{Name: "state", Usage: "JSON-encoded ctx.state value"},
			&cli.StringFlag{Name: "allow-env", Usage: "Comma-separated env vars visible to @lmb:getenv"},
			&cli.Int64Flag{Name: "timeout-ms", Usage: "Evaluation deadline in milliseconds, 0 disables"},
			&cli.StringFlag{Name: "store", Usage: "Path to a SQLite store file, binds ctx.store"},
		},
		Action: evalAction(builder, log),
	}
}

func evalAction(builder *sandbox.Builder, log *lmblog.Logger) cli.ActionFunc {
	return func(c *cli.Context) error {
		source, err := readSource(c.String("file"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("read script: %v", err), exitConfigError)
		}
		return runSourceAsEval(c, builder, log, source)
	}
}

// runSourceAsEval drives one script through the four-step execution
// protocol and writes its result to stdout as JSON. Shared by
// `eval --file` and `example eval --name`. If lmb.yaml configures a
// run-completion adapter, publishes the outcome after the run finishes.
func runSourceAsEval(c *cli.Context, builder *sandbox.Builder, log *lmblog.Logger, source string) error {
	cfg, err := lmbconfig.LoadOptional(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("load config: %v", err), exitConfigError)
	}

	md, _, err := frontmatter.Parse(source)
	if err != nil {
		return cli.Exit(fmt.Sprintf("parse front matter: %v", err), exitConfigError)
	}

	evalCtx, err := buildContext(c, md)
	if err != nil {
		return cli.Exit(fmt.Sprintf("build context: %v", err), exitConfigError)
	}
	if evalCtx.Store != nil {
		defer evalCtx.Store.Close()
		wireStoreMirror(evalCtx.Store, cfg, log)
	}

	req := evalctx.EvalRequest{
		Source:     source,
		Context:    evalCtx,
		Input:      ioreader.New(os.Stdin),
		AllowedEnv: allowedEnv(c, cfg),
		Limits:     cfg.Limits(),
		TimeoutMs:  timeoutMs(c, md, cfg),
	}

	adp, err := buildAdapter(cfg)
	if err != nil {
		log.Warn("adapter setup failed", map[string]any{"error": err.Error()})
		adp = nil
	}
	if adp != nil {
		defer func() { _ = adp.Close() }()
	}
	evalID := uuid.NewString()
	start := time.Now()

	evaluator := evalctx.NewEvaluator(builder)
	result, err := evaluator.Run(context.Background(), req)
	if err != nil {
		publishCompletion(adp, log, evalID, "eval", outcomeFor(err), time.Since(start))
		return evalExitErr(err)
	}
	publishCompletion(adp, log, evalID, "eval", "success", time.Since(start))

	enc, err := json.Marshal(codec.ToAny(result))
	if err != nil {
		return cli.Exit(fmt.Sprintf("encode result: %v", err), exitScriptError)
	}
	fmt.Fprintln(c.App.Writer, string(enc))
	return nil
}

// outcomeFor classifies a Run error for the adapter's outcome field.
func outcomeFor(err error) string {
	if lmberr.KindOf(err) == lmberr.KindTimeout {
		return "timeout"
	}
	return "script_error"
}

func readSource(path string) (string, error) {
	if path == "" || path == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func buildContext(c *cli.Context, md frontmatter.Metadata) (evalctx.Context, error) {
	ctx := evalctx.Context{}

	switch {
	case c.IsSet("state"):
		v, err := decodeJSONValue(c.String("state"))
		if err != nil {
			return ctx, fmt.Errorf("--state: %w", err)
		}
		ctx.State, ctx.HasState = v, true
	case md.HasState:
		ctx.State, ctx.HasState = md.State, true
	}

	storePath := c.String("store")
	if storePath == "" && md.HasStore && md.Store {
		storePath = "lmb.sqlite"
	}
	if storePath != "" {
		st, err := store.Open(storePath)
		if err != nil {
			return ctx, err
		}
		ctx.Store = st
	}

	return ctx, nil
}

func decodeJSONValue(raw string) (codec.Value, error) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return codec.Nil, err
	}
	return codec.FromAny(v), nil
}

func allowedEnv(c *cli.Context, cfg *lmbconfig.Config) sandbox.AllowedEnv {
	if c.IsSet("allow-env") {
		names := strings.Split(c.String("allow-env"), ",")
		allowed := make(sandbox.AllowedEnv, len(names))
		for _, n := range names {
			n = strings.TrimSpace(n)
			if n != "" {
				allowed[n] = true
			}
		}
		return allowed
	}
	return cfg.AllowedEnvMap()
}

func timeoutMs(c *cli.Context, md frontmatter.Metadata, cfg *lmbconfig.Config) int64 {
	if c.IsSet("timeout-ms") {
		return c.Int64("timeout-ms")
	}
	if md.HasTimeout {
		return md.TimeoutMs
	}
	return cfg.Eval.TimeoutMS
}

// evalExitErr maps a Run error to the exit code contract: script-raised
// and compile errors exit 1, a deadline exit 3, anything else falls back
// to a script error since it happened during evaluation, not invocation.
func evalExitErr(err error) error {
	kind := lmberr.KindOf(err)
	if kind == lmberr.KindTimeout {
		return cli.Exit(err.Error(), exitTimeout)
	}
	return cli.Exit(err.Error(), exitScriptError)
}
