package main

import (
	"context"
	"fmt"
	"os"

	vc "github.com/linnemanlabs/dbugger/internal/cfg"
)

func (a *app) runInit(ctx context.Context) error {
	L := a.L

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	res, err := vc.Scaffold(wd)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}

	if res.ConfigCreated {
		L.Info(ctx, "created config with example values", "outcome", "success", "path", res.ConfigPath)
	} else {
		L.Info(ctx, "config already exists, skipping creation", "path", res.ConfigPath)
	}
	if res.GitignoreUpdated {
		L.Info(ctx, "added config to .gitignore", "outcome", "success")
	} else {
		L.Info(ctx, "config is already in .gitignore")
	}

	fmt.Fprintf(a.stdout, "Initialization complete. Please edit %s with your actual configuration.\n", vc.DefaultFile)
	return nil
}
