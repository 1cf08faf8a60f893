// Package jobid defines hierarchical job identifiers.
//
// A job identifier is a "/"-separated sequence of opaque segments, for
// example "home/yard/lawn/mow". The identifier doubles as a relative
// directory path inside the run log replica, so Parse rejects anything that
// would escape or shadow the repository layout.
//
// This package imports nothing internal; store, graph and label all build
// on it.
package jobid

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Separator splits an identifier into segments.
const Separator = "/"

// RunFile is the name of the per-job run file inside a job's directory.
const RunFile = "RUN"

// ID is a normalized job identifier.
// The zero value is not a valid identifier.
type ID string

// Parse normalizes s into an ID.
//
// Leading and trailing separators are stripped and the text is NFC
// normalized, so "/home/yard/" and "home/yard" are the same job.
// Empty identifiers, empty inner segments, "." and ".." segments, ".git"
// segments (in any case) and RunFile segments are rejected: git never
// tracks a path through .git, and a RunFile segment would collide with
// its parent job's run file.
func Parse(s string) (ID, error) {
	trimmed := strings.Trim(norm.NFC.String(s), Separator)
	if trimmed == "" {
		return "", fmt.Errorf("invalid job id %q: empty", s)
	}

	segments := strings.Split(trimmed, Separator)
	for _, seg := range segments {
		switch {
		case seg == "":
			return "", fmt.Errorf("invalid job id %q: empty segment", s)
		case seg == "." || seg == "..":
			return "", fmt.Errorf("invalid job id %q: relative segment %q", s, seg)
		case strings.EqualFold(seg, ".git"), seg == RunFile:
			return "", fmt.Errorf("invalid job id %q: reserved segment %q", s, seg)
		}
	}

	return ID(trimmed), nil
}

// MustParse is like Parse but panics on error. Intended for fixtures.
func MustParse(s string) ID {
	id, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseAll parses every string in ss, failing on the first invalid one.
func ParseAll(ss []string) ([]ID, error) {
	ids := make([]ID, 0, len(ss))
	for _, s := range ss {
		id, err := Parse(s)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Segments returns the identifier's segments.
func (id ID) Segments() []string {
	if id == "" {
		return nil
	}
	return strings.Split(string(id), Separator)
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return string(id)
}

// Strings converts ids to plain strings, preserving order.
func Strings(ids []ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
