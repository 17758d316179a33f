package incident

import (
	"context"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/linnemanlabs/dbugger/internal/incident")

// Pipeline turns raw error text into a delivered incident report.
type Pipeline struct {
	processName string
	vcs         VCSResolver
	enricher    *Enricher
	notifier    Notifier
	logger      log.Logger
	hooks       Hooks
}

// Options configures a Pipeline. VCS and Enricher are optional.
type Options struct {
	ProcessName string
	VCS         VCSResolver
	Enricher    *Enricher
	Notifier    Notifier
	Logger      log.Logger
	Hooks       Hooks
}

// NewPipeline creates a new incident pipeline.
func NewPipeline(opts Options) *Pipeline {
	if opts.Notifier == nil {
		panic(xerrors.New("incident notifier is required"))
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Pipeline{
		processName: opts.ProcessName,
		vcs:         opts.VCS,
		enricher:    opts.Enricher,
		notifier:    opts.Notifier,
		logger:      opts.Logger,
		hooks:       opts.Hooks,
	}
}

// Run executes context -> enrichment -> dispatch for one incident and reports
// whether the notifier accepted it. Stages run strictly in order; separate
// calls to Run are not serialized against each other.
func (p *Pipeline) Run(ctx context.Context, raw string) bool {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "incident.Run", trace.WithAttributes(
		attribute.String("dbugger.process", p.processName),
	))
	defer span.End()

	var vcs VCSContext
	if p.vcs != nil {
		vcs = p.vcs.Resolve(ctx)
	}
	rec := Build(raw, p.processName, vcs)
	span.SetAttributes(attribute.String("dbugger.incident.id", rec.ID))

	L := p.logger.With("incident_id", rec.ID, "process", rec.ProcessName)
	L.Info(ctx, "handling incident",
		"branch", rec.Branch,
		"user", rec.User,
		"commit", rec.Commit,
		"log_bytes", len(rec.RawLog),
	)

	if p.enricher != nil {
		rec = p.enricher.Enrich(ctx, rec)
	}

	ok := p.dispatch(ctx, L, rec)
	if ok {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, "dispatch failed")
	}
	p.hooks.complete(ok, time.Since(start).Seconds())
	return ok
}

// dispatch hands the record to the notifier. Failure ends the run; there is
// no retry.
func (p *Pipeline) dispatch(ctx context.Context, L log.Logger, rec *Record) bool {
	ctx, span := tracer.Start(ctx, "incident.dispatch", trace.WithAttributes(
		attribute.Bool("dbugger.incident.analysis", rec.HasAnalysis()),
	))
	defer span.End()

	start := time.Now()
	L.Info(ctx, "sending incident to notifier")
	err := p.notifier.Send(ctx, rec)
	dur := time.Since(start).Seconds()
	p.hooks.dispatch(err == nil, dur)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "notify failed")
		L.Error(ctx, err, "failed to send incident", "duration", dur)
		return false
	}
	L.Info(ctx, "incident sent", "outcome", "success", "duration", dur)
	return true
}
