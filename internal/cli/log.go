// Logging for the flowlines commands.
//
// All commands support --verbose (-v) for debug-level logging. The root
// command attaches the CLI logger to the command context; commands fetch it
// with loggerFromContext and annotate per-snapshot lines with
// snapshotLogger.

package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	flerrors "github.com/matzehuels/flowlines/pkg/errors"
	"github.com/matzehuels/flowlines/pkg/scheduler"
)

// newLogger returns a logger writing to w at level, with "HH:MM:SS.ms"
// timestamps (e.g. "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs the completion of a one-shot operation with its elapsed
// time, e.g. "Rendered 3 artifacts (12ms)".
type progress struct {
	logger *log.Logger
	start  time.Time
	now    func() time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now(), now: time.Now}
}

func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, p.now().Sub(p.start).Round(time.Millisecond))
}

// snapshotLogger returns l annotated with the snapshot's sequence number and
// container size, plus the error code when the pass failed.
func snapshotLogger(l *log.Logger, snap *scheduler.Snapshot) *log.Logger {
	kv := []any{"seq", snap.Seq, "size", formatSize(snap.Dimensions.Width, snap.Dimensions.Height)}
	if snap.Failed() {
		kv = append(kv, "code", flerrors.GetCode(snap.Err))
	}
	return l.With(kv...)
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached by the root command, or
// log.Default() when the command runs outside it (tests, embedding).
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
