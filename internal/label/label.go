// Package label derives display text for job identifiers: wrapped labels
// for graph nodes and free-text descriptions attached by hierarchical
// pattern keys.
package label

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/USEPA/git-job-log/internal/jobid"
)

// DefaultWidth is the line budget used when none is configured.
const DefaultWidth = 16

// Label wraps a job identifier onto lines of at most maxLen runes.
//
// Segments are packed greedily, each non-final segment keeping its trailing
// "/". A segment that would push the line past maxLen starts a new line;
// the trailing "/" is not counted, so lines are at most maxLen+1 runes. A
// single segment longer than maxLen is kept whole on its own line.
func Label(job jobid.ID, maxLen int) string {
	segments := job.Segments()
	var (
		lines []string
		line  string
	)
	for i, seg := range segments {
		piece := seg
		if i < len(segments)-1 {
			piece += jobid.Separator
		}
		candidate := strings.TrimSuffix(line+piece, jobid.Separator)
		if line != "" && utf8.RuneCountInString(candidate) > maxLen {
			lines = append(lines, line)
			line = ""
		}
		line += piece
	}
	if line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// Match reports whether some contiguous run of job's segments matches
// patterns position by position.
//
// Each pattern is a regular expression matched at the start of its segment
// (a prefix match, not whole-segment equality): "mo" matches "mow". The run
// may start at any segment, so "lawn/mow" matches "home/yard/lawn/mow".
func Match(job jobid.ID, patterns []string) (bool, error) {
	compiled, err := compile(patterns)
	if err != nil {
		return false, err
	}
	return match(job.Segments(), compiled), nil
}

func compile(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile("^(?:" + p + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		compiled[i] = re
	}
	return compiled, nil
}

func match(segments []string, patterns []*regexp.Regexp) bool {
	if len(patterns) == 0 {
		return false
	}
	for start := 0; start+len(patterns) <= len(segments); start++ {
		ok := true
		for i, re := range patterns {
			if !re.MatchString(segments[start+i]) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// Annotator attaches labels and descriptions to jobs.
type Annotator struct {
	width int
	keys  []descriptionKey
}

type descriptionKey struct {
	key      string
	patterns []*regexp.Regexp
	text     string
}

// NewAnnotator builds an annotator wrapping labels at width runes.
//
// Each key of descriptions is a "/"-separated pattern list (see Match); its
// value is attached to every job the key matches.
func NewAnnotator(width int, descriptions map[string]string) (*Annotator, error) {
	if width <= 0 {
		width = DefaultWidth
	}

	keys := make([]string, 0, len(descriptions))
	for key := range descriptions {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	a := &Annotator{width: width}
	for _, key := range keys {
		patterns, err := compile(strings.Split(strings.Trim(key, jobid.Separator), jobid.Separator))
		if err != nil {
			return nil, fmt.Errorf("description key %q: %w", key, err)
		}
		a.keys = append(a.keys, descriptionKey{key: key, patterns: patterns, text: descriptions[key]})
	}
	return a, nil
}

// Annotate returns the job's wrapped label and every matching description,
// in key order.
func (a *Annotator) Annotate(job jobid.ID) (string, []string) {
	segments := job.Segments()
	var descs []string
	for _, k := range a.keys {
		if match(segments, k.patterns) {
			descs = append(descs, k.text)
		}
	}
	return Label(job, a.width), descs
}
