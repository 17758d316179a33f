package main

import (
	"context"
	"fmt"

	vc "github.com/linnemanlabs/dbugger/internal/cfg"
	"github.com/linnemanlabs/dbugger/internal/incident"
	"github.com/linnemanlabs/dbugger/internal/pm2"
	"github.com/linnemanlabs/dbugger/internal/retro"
)

func (a *app) runSend(ctx context.Context) error {
	L := a.L

	conf, err := vc.Load(a.configPath)
	if err != nil {
		return err
	}
	logConfigWarnings(ctx, L, conf)

	if shutdownOtelx := a.startTracing(ctx); shutdownOtelx != nil {
		defer func() { _ = shutdownOtelx(context.Background()) }()
	}

	var source retro.LogSource
	if len(conf.LogPaths) > 0 {
		source = retro.StaticPath(conf.LogPaths[0])
	} else {
		source = pm2.New(conf.PM2Bin, nil)
	}

	runner := retro.New(retro.Options{
		ProcessName: conf.ProcessName,
		Source:      source,
		Extractor:   newExtractor(conf),
		Pipeline:    newPipeline(conf, L, incident.Hooks{}),
		Logger:      L,
	})

	res, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	switch {
	case !res.Found:
		// nothing to report is not a failure
	case res.Dispatched:
		L.Info(ctx, "error sent to slack", "outcome", "success", "path", res.Path)
	default:
		L.Warn(ctx, "failed to send error to slack", "path", res.Path)
	}
	return nil
}
