package klog

import "io"
import "log/slog"
import "os"
import "strings"
import "sync/atomic"

var cur atomic.Pointer[slog.Logger]

func init() {
	Init("warn", os.Stderr)
}

func Parselevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Init replaces the kernel logger. level is one of debug, info, warn or
// error; anything else means warn.
func Init(level string, w io.Writer) {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: Parselevel(level),
	})
	cur.Store(slog.New(h).With("module", "kernel"))
}

func L() *slog.Logger {
	return cur.Load()
}

// Sub returns a logger for one subsystem.
func Sub(name string) *slog.Logger {
	return L().With("sub", name)
}
