// Package vcs resolves repository metadata for incident reports.
package vcs

import (
	"context"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/dbugger/internal/cmdexec"
	"github.com/linnemanlabs/dbugger/internal/incident"
)

// Git reads branch, user and last commit from a working tree with the git
// CLI. Any failed lookup degrades to incident.Unknown.
type Git struct {
	dir    string
	bin    string
	runner cmdexec.Runner
	logger log.Logger
}

// NewGit creates a resolver for the repository at dir. An empty dir means
// the current working directory.
func NewGit(dir string, runner cmdexec.Runner, logger log.Logger) *Git {
	if runner == nil {
		runner = cmdexec.Exec{}
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Git{dir: dir, bin: "git", runner: runner, logger: logger}
}

// Resolve implements incident.VCSResolver.
func (g *Git) Resolve(ctx context.Context) incident.VCSContext {
	return incident.VCSContext{
		User:   g.lookup(ctx, "user", "config", "user.name"),
		Branch: g.lookup(ctx, "branch", "rev-parse", "--abbrev-ref", "HEAD"),
		Commit: g.lookup(ctx, "commit", "log", "-1", "--pretty=format:%h - %s"),
	}
}

func (g *Git) lookup(ctx context.Context, field string, args ...string) string {
	out, err := g.runner.Run(ctx, g.dir, g.bin, args...)
	if err != nil {
		g.logger.Warn(ctx, "git lookup failed", "field", field, "err", err)
		return incident.Unknown
	}
	v := strings.TrimSpace(string(out))
	if v == "" {
		return incident.Unknown
	}
	return v
}
