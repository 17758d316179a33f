package incident

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/dbugger/internal/guard"
)

const (
	// AnalysisMaxTokens caps the length of the AI response.
	AnalysisMaxTokens = 1024

	// DefaultAnalysisTimeout bounds a single analysis call.
	DefaultAnalysisTimeout = 60 * time.Second
)

// Enrichment outcomes reported through Hooks.OnEnrich.
const (
	EnrichSuccess = "success"
	EnrichError   = "error"
	EnrichSkipped = "skipped"
	EnrichBusy    = "busy"
)

// ErrEmptyAnalysis is returned when the analyzer answers with no text.
var ErrEmptyAnalysis = errors.New("analyzer returned no text")

// Enricher attaches an AI analysis to a Record. It allows one call in flight
// at a time; concurrent callers get their Record back untouched.
type Enricher struct {
	analyzer Analyzer
	model    string
	timeout  time.Duration
	logger   log.Logger
	hooks    Hooks

	inflight guard.Flag
}

// EnricherOptions configures an Enricher. A nil Analyzer disables enrichment.
type EnricherOptions struct {
	Analyzer Analyzer
	Model    string
	Timeout  time.Duration
	Logger   log.Logger
	Hooks    Hooks
}

// NewEnricher creates an Enricher.
func NewEnricher(opts EnricherOptions) *Enricher {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultAnalysisTimeout
	}
	return &Enricher{
		analyzer: opts.Analyzer,
		model:    opts.Model,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
		hooks:    opts.Hooks,
	}
}

// Enrich returns rec with Analysis set when the analyzer succeeds. Failures
// are logged and never returned.
func (e *Enricher) Enrich(ctx context.Context, rec *Record) *Record {
	L := e.logger.With("incident_id", rec.ID)

	if e.analyzer == nil {
		L.Warn(ctx, "AI analysis not configured, skipping enrichment")
		e.hooks.enrich(EnrichSkipped, 0)
		return rec
	}
	if rec.HasAnalysis() {
		return rec
	}
	if !e.inflight.TryAcquire() {
		L.Warn(ctx, "AI analysis already in flight, skipping enrichment")
		e.hooks.enrich(EnrichBusy, 0)
		return rec
	}
	defer e.inflight.Release()

	ctx, span := tracer.Start(ctx, "incident.enrich", trace.WithAttributes(
		attribute.String("dbugger.incident.id", rec.ID),
		attribute.String("dbugger.ai.model", e.model),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	L.Info(ctx, "requesting AI analysis", "model", e.model)

	text, err := e.analyzer.Analyze(ctx, &AnalysisRequest{
		Model:     e.model,
		MaxTokens: AnalysisMaxTokens,
		Prompt:    buildPrompt(rec),
	})
	text = strings.TrimSpace(text)
	if err == nil && text == "" {
		err = ErrEmptyAnalysis
	}
	dur := time.Since(start).Seconds()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "analysis failed")
		L.Error(ctx, err, "AI analysis failed, continuing without it", "duration", dur)
		e.hooks.enrich(EnrichError, dur)
		return rec
	}

	rec.Analysis = text
	L.Info(ctx, "AI analysis received", "outcome", "success", "duration", dur, "chars", len(text))
	e.hooks.enrich(EnrichSuccess, dur)
	return rec
}

func buildPrompt(rec *Record) string {
	return fmt.Sprintf(`Analyze the following error log and provide a brief explanation/possible cause of the issue:

Process: %s
Branch: %s
User: %s
Commit: %s
Log:
%s

Be concise and to the point, no more than 2 sentences. Readers are very technical and don't need long explanations.`,
		rec.ProcessName,
		rec.Branch,
		rec.User,
		rec.Commit,
		rec.RawLog,
	)
}
