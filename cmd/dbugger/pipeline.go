package main

import (
	"context"

	"github.com/linnemanlabs/go-core/log"

	vc "github.com/linnemanlabs/dbugger/internal/cfg"
	"github.com/linnemanlabs/dbugger/internal/cmdexec"
	"github.com/linnemanlabs/dbugger/internal/incident"
	"github.com/linnemanlabs/dbugger/internal/keyword"
	"github.com/linnemanlabs/dbugger/internal/llm/claude"
	"github.com/linnemanlabs/dbugger/internal/logwindow"
	"github.com/linnemanlabs/dbugger/internal/notify/slack"
	"github.com/linnemanlabs/dbugger/internal/vcs"
)

// newPipeline wires the collaborators named in the config into an incident
// pipeline. Enrichment is disabled when no Anthropic key is configured.
func newPipeline(conf *vc.Config, L log.Logger, hooks incident.Hooks) *incident.Pipeline {
	var analyzer incident.Analyzer
	if conf.AnthropicAPIKey != "" {
		analyzer = claude.New(conf.AnthropicAPIKey, conf.AnthropicModel)
	}

	enricher := incident.NewEnricher(incident.EnricherOptions{
		Analyzer: analyzer,
		Model:    conf.AnthropicModel,
		Timeout:  conf.AITimeout,
		Logger:   L,
		Hooks:    hooks,
	})

	return incident.NewPipeline(incident.Options{
		ProcessName: conf.ProcessName,
		VCS:         vcs.NewGit(conf.RepoDir, cmdexec.Exec{}, L),
		Enricher:    enricher,
		Notifier:    slack.New(conf.SlackWebhookURL, conf.SlackChannel, L),
		Logger:      L,
		Hooks:       hooks,
	})
}

func newExtractor(conf *vc.Config) logwindow.Extractor {
	return logwindow.Extractor{
		Keywords: keyword.New(conf.ErrorKeywords...),
		MaxLines: conf.WindowMaxLines,
	}
}

func logConfigWarnings(ctx context.Context, L log.Logger, conf *vc.Config) {
	for _, w := range conf.Warnings() {
		L.Warn(ctx, w)
	}
}
