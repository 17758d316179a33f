// Package pm2 queries the pm2 process manager for process metadata.
package pm2

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/linnemanlabs/dbugger/internal/cmdexec"
)

// ErrProcessNotFound is returned when pm2 has no process with the given name.
var ErrProcessNotFound = errors.New("pm2: process not found")

// Process is the subset of a pm2 process description dbugger uses.
type Process struct {
	Name       string
	ID         int64
	PID        int64
	Status     string
	OutLogPath string
	ErrLogPath string
}

// Client shells out to the pm2 CLI.
type Client struct {
	bin    string
	runner cmdexec.Runner
}

// New creates a pm2 client. An empty bin means "pm2" on PATH.
func New(bin string, runner cmdexec.Runner) *Client {
	if bin == "" {
		bin = "pm2"
	}
	if runner == nil {
		runner = cmdexec.Exec{}
	}
	return &Client{bin: bin, runner: runner}
}

// List returns every process pm2 manages.
func (c *Client) List(ctx context.Context) ([]Process, error) {
	out, err := c.runner.Run(ctx, "", c.bin, "jlist")
	if err != nil {
		return nil, fmt.Errorf("pm2 jlist: %w", err)
	}
	return parseJList(out)
}

// Describe returns the first process named name.
func (c *Client) Describe(ctx context.Context, name string) (*Process, error) {
	procs, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range procs {
		if procs[i].Name == name {
			return &procs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
}

// LogPath returns the stdout log file of the named process.
func (c *Client) LogPath(ctx context.Context, name string) (string, error) {
	p, err := c.Describe(ctx, name)
	if err != nil {
		return "", err
	}
	if p.OutLogPath == "" {
		return "", fmt.Errorf("pm2: process %s has no out log path", name)
	}
	return p.OutLogPath, nil
}

// parseJList decodes `pm2 jlist` output. pm2 may print banner or update
// notices ahead of the JSON array, and those notices can themselves start
// with '[' ("[PM2] Spawning PM2 daemon"), so the array is the first line
// starting with '[' from which the rest of the output is valid JSON.
func parseJList(out []byte) ([]Process, error) {
	s, err := jsonArray(string(out))
	if err != nil {
		return nil, err
	}

	var procs []Process
	gjson.Parse(s).ForEach(func(_, v gjson.Result) bool {
		procs = append(procs, Process{
			Name:       v.Get("name").String(),
			ID:         v.Get("pm_id").Int(),
			PID:        v.Get("pid").Int(),
			Status:     v.Get("pm2_env.status").String(),
			OutLogPath: v.Get("pm2_env.pm_out_log_path").String(),
			ErrLogPath: v.Get("pm2_env.pm_err_log_path").String(),
		})
		return true
	})
	return procs, nil
}

func jsonArray(s string) (string, error) {
	seen := false
	for i := 0; i < len(s); {
		if s[i] == '[' {
			seen = true
			if rest := s[i:]; gjson.Valid(rest) && gjson.Parse(rest).IsArray() {
				return rest, nil
			}
		}
		nl := strings.IndexByte(s[i:], '\n')
		if nl < 0 {
			break
		}
		i += nl + 1
	}
	if !seen {
		return "", errors.New("pm2 jlist: no json array in output")
	}
	return "", errors.New("pm2 jlist: invalid json")
}
