package clicmd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/henry40408/lmb/internal/adapter"
	"github.com/henry40408/lmb/internal/codec"
	"github.com/henry40408/lmb/internal/evalctx"
	"github.com/henry40408/lmb/internal/frontmatter"
	"github.com/henry40408/lmb/internal/lmberr"
	"github.com/henry40408/lmb/internal/lmblog"
	"github.com/henry40408/lmb/internal/lmbconfig"
	"github.com/henry40408/lmb/internal/sandbox"
	"github.com/henry40408/lmb/internal/store"
)

// ServeCommand returns the `serve` command: runs one script as an HTTP
// request handler. Every request binds a fresh evalctx.Context whose
// ctx.request reflects the incoming request (§5/§6); a bounded worker
// pool caps the number of evaluations running concurrently, standing in
// for N schedulers dispatching requests among them.
func ServeCommand(builder *sandbox.Builder, log *lmblog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run a script as an HTTP request handler",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.StringFlag{Name: "file", Aliases: []string{"F"}, Usage: "Script path", Required: true},
			&cli.StringFlag{Name: "bind", Usage: "Listen address, host:port"},
			&cli.IntFlag{Name: "workers", Usage: "Maximum concurrent evaluations"},
			&cli.StringFlag{Name: "store", Usage: "Path to a SQLite store file, binds ctx.store"},
		},
		Action: serveAction(builder, log),
	}
}

func serveAction(builder *sandbox.Builder, log *lmblog.Logger) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, err := lmbconfig.LoadOptional(c.String("config"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("load config: %v", err), exitConfigError)
		}

		source, err := os.ReadFile(c.String("file"))
		if err != nil {
			return cli.Exit(fmt.Sprintf("read script: %v", err), exitConfigError)
		}
		md, _, err := frontmatter.Parse(string(source))
		if err != nil {
			return cli.Exit(fmt.Sprintf("parse front matter: %v", err), exitConfigError)
		}

		var st *store.Store
		storePath := c.String("store")
		if storePath == "" {
			storePath = cfg.Store.Path
		}
		if storePath != "" {
			st, err = store.Open(storePath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("open store: %v", err), exitConfigError)
			}
			defer st.Close()
			wireStoreMirror(st, cfg, log)
		}

		bind := c.String("bind")
		if bind == "" {
			bind = cfg.Server.Bind
		}
		if bind == "" {
			bind = ":8080"
		}

		workers := c.Int("workers")
		if workers == 0 {
			workers = cfg.Server.Workers
		}
		if workers <= 0 {
			workers = 4
		}

		adp, err := buildAdapter(cfg)
		if err != nil {
			log.Warn("adapter setup failed", map[string]any{"error": err.Error()})
			adp = nil
		}
		if adp != nil {
			defer func() { _ = adp.Close() }()
		}

		srv := &requestServer{
			evaluator: evalctx.NewEvaluator(builder),
			source:    string(source),
			timeoutMs: timeoutMs(c, md, cfg),
			store:     st,
			slots:     make(chan struct{}, workers),
			log:       log,
			adapter:   adp,
		}

		log.Info("serve listening", map[string]any{"bind": bind, "workers": workers})
		return http.ListenAndServe(bind, srv)
	}
}

type requestServer struct {
	evaluator *evalctx.Evaluator
	source    string
	timeoutMs int64
	store     *store.Store
	slots     chan struct{}
	log       *lmblog.Logger
	adapter   adapter.Adapter
	inFlight  int64
}

// ServeHTTP dispatches /_stats to a scheduler-activity snapshot (the
// number of evaluations currently occupying a worker slot, standing in
// for `lmb stats`'s per-scheduler pending-ops count since each request
// here gets its own short-lived scheduler rather than one of a persistent
// pool) and everything else to the script.
func (s *requestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/_stats" {
		w.Header().Set("Content-Type", "application/json")
		enc, _ := json.Marshal(map[string]int{"pending_ops": int(atomic.LoadInt64(&s.inFlight))})
		_, _ = w.Write(enc)
		return
	}

	s.slots <- struct{}{}
	atomic.AddInt64(&s.inFlight, 1)
	defer func() {
		atomic.AddInt64(&s.inFlight, -1)
		<-s.slots
	}()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeErrorResponse(w, lmberr.New(lmberr.KindFSIO, "read request body"))
		return
	}

	req := evalctx.EvalRequest{
		Source: s.source,
		Context: evalctx.Context{
			Store:   s.store,
			Request: requestInfoFrom(r, body),
		},
		TimeoutMs: s.timeoutMs,
	}

	evalID := uuid.NewString()
	start := time.Now()
	result, err := s.evaluator.Run(context.Background(), req)
	if err != nil {
		s.log.Error("evaluation failed", map[string]any{"error": err.Error()})
		publishCompletion(s.adapter, s.log, evalID, "serve", outcomeFor(err), time.Since(start))
		writeErrorResponse(w, lmberr.AsError(err))
		return
	}
	publishCompletion(s.adapter, s.log, evalID, "serve", "success", time.Since(start))
	writeResultResponse(w, result)
}

func requestInfoFrom(r *http.Request, body []byte) *evalctx.RequestInfo {
	query := make(map[string]string, len(r.URL.Query()))
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
	}
	headers := make(map[string]string, len(r.Header))
	for k, vs := range r.Header {
		if len(vs) > 0 {
			headers[strings.ToLower(k)] = vs[0]
		}
	}
	return &evalctx.RequestInfo{
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   query,
		Headers: headers,
		Body:    string(body),
	}
}

// writeResultResponse implements §6's HTTP response encoding: a returned
// map sets status_code (default 200) and headers, and its body key (or,
// without one, the whole result) is the body. A string body is written
// raw, base64-decoded first when is_base64_encoded is set; any other body
// is JSON-encoded.
func writeResultResponse(w http.ResponseWriter, result codec.Value) {
	status := 200
	isBase64 := false
	var bodyValue codec.Value
	hasBody := false

	if result.Kind() == codec.KindMap {
		if v, ok := result.Get(codec.StrKey("status_code")); ok {
			status = int(v.AsInt())
		}
		if v, ok := result.Get(codec.StrKey("headers")); ok && v.Kind() == codec.KindMap {
			for _, k := range v.Keys() {
				hv, _ := v.Get(k)
				w.Header().Set(k.String(), hv.AsString())
			}
		}
		if v, ok := result.Get(codec.StrKey("is_base64_encoded")); ok {
			isBase64 = v.AsBool()
		}
		if v, ok := result.Get(codec.StrKey("body")); ok {
			bodyValue, hasBody = v, true
		}
	}
	if !hasBody {
		bodyValue = result
	}

	var payload []byte
	switch bodyValue.Kind() {
	case codec.KindString:
		if isBase64 {
			decoded, err := base64.StdEncoding.DecodeString(bodyValue.AsString())
			if err != nil {
				writeErrorResponse(w, lmberr.Wrap(lmberr.KindValueCodec, "decode base64 body", err))
				return
			}
			payload = decoded
		} else {
			payload = []byte(bodyValue.AsString())
		}
	default:
		enc, err := json.Marshal(codec.ToAny(bodyValue))
		if err != nil {
			writeErrorResponse(w, lmberr.Wrap(lmberr.KindValueCodec, "encode response body", err))
			return
		}
		payload = enc
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
	}

	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func writeErrorResponse(w http.ResponseWriter, err *lmberr.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	enc, _ := json.Marshal(map[string]string{"kind": string(err.Kind), "message": err.Error()})
	_, _ = w.Write(enc)
}
