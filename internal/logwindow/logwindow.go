// Package logwindow reconstructs the block of log lines that belongs to the
// most recent error in a log buffer.
//
// Log entries are assumed to start with a "YYYY-MM-DD HH:MM:SS:" prefix;
// lines without it (stack frames, wrapped messages) continue the entry above
// them. This is a heuristic: when no entry start can be found close enough to
// the matching line, the window is clamped to MaxLines lines so unrelated
// history is never pulled in.
package logwindow

import (
	"regexp"
	"strings"

	"github.com/linnemanlabs/dbugger/internal/keyword"
)

// DefaultMaxLines bounds a window when no entry start is found near the match.
const DefaultMaxLines = 200

var entryStartRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}:`)

// Extractor finds the latest error block in a log buffer.
type Extractor struct {
	Keywords keyword.Set
	// MaxLines caps the window size. Zero or negative means DefaultMaxLines.
	MaxLines int
}

// Extract returns the window around the last line matching a keyword, in
// chronological order. found is false when no line matches.
func (e Extractor) Extract(text string) (window string, found bool) {
	if text == "" {
		return "", false
	}
	maxLines := e.MaxLines
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}

	lines := strings.Split(text, "\n")

	tail := -1
	for i := len(lines) - 1; i >= 0; i-- {
		if e.Keywords.Match(lines[i]) {
			tail = i
			break
		}
	}
	if tail < 0 {
		return "", false
	}

	// walk back from the match (inclusive) to the line that opens the entry
	head, headFound := tail, false
	for i := tail; i >= 0 && tail-i < maxLines; i-- {
		if IsEntryStart(lines[i]) {
			head, headFound = i, true
			break
		}
	}
	if !headFound {
		head = max(0, tail-maxLines+1)
	}

	// with a real entry start, continuation lines after the match belong to
	// the same entry up to the next entry start
	end := tail
	if headFound {
		for j := tail + 1; j < len(lines) && j-head < maxLines; j++ {
			if IsEntryStart(lines[j]) {
				break
			}
			end = j
		}
		for end > tail && strings.TrimSpace(lines[end]) == "" {
			end--
		}
	}

	return strings.Join(lines[head:end+1], "\n"), true
}

// IsEntryStart reports whether line begins a new timestamped log entry.
func IsEntryStart(line string) bool {
	return entryStartRe.MatchString(line)
}
