// Package logging implements the @lmb/logging binding (C9):
// error/warn/info/debug/trace(...args), args tab-joined and tables
// JSON-serialized with the same formatting RenderPrintArg gives the
// sandbox's print (§4.3), routed to a host internal/lmblog.Logger sink
// with level filtering by target.
package logging

import (
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/henry40408/lmb/internal/lmblog"
	"github.com/henry40408/lmb/internal/sandbox"
)

// Level is a logging threshold, ordered trace < debug < info < warn < error.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a level name to a Level, defaulting to LevelTrace (allow
// everything) for an unrecognized or empty name.
func ParseLevel(name string) Level {
	switch strings.ToLower(name) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelTrace
	}
}

// Target pins a minimum level for a named logging target. A target is an
// arbitrary caller-chosen string (e.g. a module or script name); calls
// below a target's threshold are dropped before reaching the sink.
type Target struct {
	Name string
	Min  Level
}

// Loader returns the @lmb/logging module loader. log is the host sink;
// targets pin per-name thresholds, and every call is filtered by the
// default target's (the empty string's) threshold. With no Target entry
// for the empty string, every level passes.
func Loader(log *lmblog.Logger, targets ...Target) sandbox.ModuleLoader {
	thresholds := make(map[string]Level, len(targets))
	for _, t := range targets {
		thresholds[t.Name] = t.Min
	}

	return func(L *lua.LState) lua.LValue {
		mod := L.NewTable()
		mod.RawSetString("trace", L.NewFunction(logFn(log, LevelTrace, thresholds)))
		mod.RawSetString("debug", L.NewFunction(logFn(log, LevelDebug, thresholds)))
		mod.RawSetString("info", L.NewFunction(logFn(log, LevelInfo, thresholds)))
		mod.RawSetString("warn", L.NewFunction(logFn(log, LevelWarn, thresholds)))
		mod.RawSetString("error", L.NewFunction(logFn(log, LevelError, thresholds)))
		return mod
	}
}

// logFn builds the LGFunction for one level, filtering by the default
// target's threshold before formatting or touching the sink.
func logFn(log *lmblog.Logger, level Level, thresholds map[string]Level) lua.LGFunction {
	return func(L *lua.LState) int {
		if level < thresholds[""] {
			return 0
		}

		top := L.GetTop()
		parts := make([]string, top)
		for i := 1; i <= top; i++ {
			parts[i-1] = sandbox.RenderPrintArg(L, L.Get(i))
		}
		message := strings.Join(parts, "\t")

		switch level {
		case LevelTrace:
			log.Trace(message, nil)
		case LevelDebug:
			log.Debug(message, nil)
		case LevelInfo:
			log.Info(message, nil)
		case LevelWarn:
			log.Warn(message, nil)
		case LevelError:
			log.Error(message, nil)
		}
		return 0
	}
}
