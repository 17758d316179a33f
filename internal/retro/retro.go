// Package retro finds the most recent error in a process's log file and
// reports it through the incident pipeline.
package retro

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/dbugger/internal/logwindow"
)

var tracer = otel.Tracer("github.com/linnemanlabs/dbugger/internal/retro")

// MaxReadBytes bounds how much of the end of a log file is scanned.
const MaxReadBytes = 16 << 20

// LogSource resolves the log file of a process.
type LogSource interface {
	LogPath(ctx context.Context, process string) (string, error)
}

// StaticPath is a LogSource that always returns the same file.
type StaticPath string

// LogPath implements LogSource.
func (p StaticPath) LogPath(context.Context, string) (string, error) {
	if p == "" {
		return "", errors.New("retro: empty log path")
	}
	return string(p), nil
}

// IncidentRunner runs the incident pipeline for raw log text.
type IncidentRunner interface {
	Run(ctx context.Context, raw string) bool
}

// Options configures a Runner.
type Options struct {
	ProcessName string
	Source      LogSource
	Extractor   logwindow.Extractor
	Pipeline    IncidentRunner
	Logger      log.Logger
}

// Runner performs one retrospective scan.
type Runner struct {
	process   string
	source    LogSource
	extractor logwindow.Extractor
	pipeline  IncidentRunner
	logger    log.Logger
}

// Result describes a finished scan.
type Result struct {
	Path       string
	Found      bool
	Dispatched bool
	Window     string
}

// New creates a Runner. Source and Pipeline are required.
func New(opts Options) *Runner {
	if opts.Source == nil {
		panic(xerrors.New("retro log source is required"))
	}
	if opts.Pipeline == nil {
		panic(xerrors.New("retro pipeline is required"))
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Runner{
		process:   opts.ProcessName,
		source:    opts.Source,
		extractor: opts.Extractor,
		pipeline:  opts.Pipeline,
		logger:    opts.Logger.With("process", opts.ProcessName),
	}
}

// Run reads the process log, extracts the window around the last keyword
// match and hands it to the pipeline. A log without matches is not an error:
// the result has Found false and the pipeline is not run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "retro.Run", trace.WithAttributes(
		attribute.String("dbugger.process", r.process),
	))
	defer span.End()

	path, err := r.source.LogPath(ctx, r.process)
	if err != nil {
		return nil, fmt.Errorf("resolve log path: %w", err)
	}
	res := &Result{Path: path}

	text, err := readTail(path, MaxReadBytes)
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	window, found := r.extractor.Extract(text)
	span.SetAttributes(attribute.Bool("dbugger.retro.found", found))
	if !found {
		r.logger.Info(ctx, "no recent errors found in the logs", "path", path)
		return res, nil
	}
	res.Found = true
	res.Window = window

	r.logger.Info(ctx, "found recent error", "path", path, "window_bytes", len(window))
	res.Dispatched = r.pipeline.Run(ctx, window)
	return res, nil
}

// readTail returns at most limit bytes from the end of the file. When the
// file is longer the first, partial, line is dropped.
func readTail(path string, limit int64) (string, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from pm2 or operator config
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	st, err := f.Stat()
	if err != nil {
		return "", err
	}
	if st.Size() <= limit {
		b, err := io.ReadAll(f)
		return string(b), err
	}

	b, err := io.ReadAll(io.NewSectionReader(f, st.Size()-limit, limit))
	if err != nil {
		return "", err
	}
	for i, c := range b {
		if c == '\n' {
			return string(b[i+1:]), nil
		}
	}
	return string(b), nil
}
