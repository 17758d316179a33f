package incident

import (
	"context"
	"time"
)

// Unknown is stored for VCS fields the collaborator could not resolve.
const Unknown = "unknown"

// Record is one detected error occurrence. It is created by Build, gets at
// most one Analysis from the Enricher, and is consumed by dispatch.
type Record struct {
	ID          string    `json:"id"`
	ProcessName string    `json:"process_name"`
	Branch      string    `json:"branch"`
	User        string    `json:"user"`
	Commit      string    `json:"commit"`
	RawLog      string    `json:"raw_log"`
	Analysis    string    `json:"analysis,omitempty"`
	DetectedAt  time.Time `json:"detected_at"`
}

// HasAnalysis reports whether enrichment attached an analysis.
func (r *Record) HasAnalysis() bool {
	return r.Analysis != ""
}

// VCSContext is repository metadata attached to an incident.
type VCSContext struct {
	Branch string
	User   string
	Commit string
}

// VCSResolver looks up repository metadata. Implementations return Unknown
// (or empty) fields instead of failing.
type VCSResolver interface {
	Resolve(ctx context.Context) VCSContext
}

// Notifier delivers a finished Record.
type Notifier interface {
	Send(ctx context.Context, rec *Record) error
}

// Analyzer is the interface for any AI analysis backend.
type Analyzer interface {
	Analyze(ctx context.Context, req *AnalysisRequest) (string, error)
}

// AnalysisRequest is the input to an Analyzer.
type AnalysisRequest struct {
	Model     string
	MaxTokens int
	Prompt    string
}
