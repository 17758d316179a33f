package incident

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
)

// MaxRawLogBytes bounds the log text carried by a Record.
const MaxRawLogBytes = 64 * 1024

// Build assembles a Record from extracted log text and already-resolved VCS
// metadata. It does no I/O. Empty VCS fields are stored as Unknown.
func Build(raw, processName string, vcs VCSContext) *Record {
	return &Record{
		ID:          ulid.Make().String(),
		ProcessName: processName,
		Branch:      orUnknown(vcs.Branch),
		User:        orUnknown(vcs.User),
		Commit:      orUnknown(vcs.Commit),
		RawLog:      boundLog(raw, MaxRawLogBytes),
		DetectedAt:  time.Now(),
	}
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return Unknown
	}
	return s
}

// boundLog cuts s to at most limit bytes on a rune boundary, marking the cut.
func boundLog(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - len("...")
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
