// Package depfile loads job dependency declarations from YAML or CUE files.
//
// Both formats carry the same two fields:
//
//	depends:
//	  - [home/yard/lawn/get_gas, home/yard/lawn/mow]
//	descriptions:
//	  lawn/mow: Mow front and back
//
// Each depends entry is a (parent, child) pair. Description keys are
// "/"-separated segment patterns, matched the way label.Match does.
package depfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/USEPA/git-job-log/internal/graph"
	"github.com/USEPA/git-job-log/internal/jobid"
)

// Spec is a parsed dependency file.
type Spec struct {
	Depends      [][2]string
	Descriptions map[string]string
}

// raw mirrors the file layout before pair validation.
type raw struct {
	Depends      [][]string        `yaml:"depends" json:"depends"`
	Descriptions map[string]string `yaml:"descriptions" json:"descriptions"`
}

// LoadError reports a malformed dependency file.
type LoadError struct {
	Path    string
	Message string
	Pos     token.Pos // CUE position if available
	Err     error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), msg)
	}
	return fmt.Sprintf("%s: %s", e.Path, msg)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads path, choosing the decoder by extension: .yaml and .yml use
// YAML, .cue uses CUE.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dependency file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return loadYAML(path, data)
	case ".cue":
		return loadCUE(path, data)
	default:
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("unsupported extension %q (want .yaml, .yml or .cue)", ext)}
	}
}

func loadYAML(path string, data []byte) (*Spec, error) {
	var r raw
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&r); err != nil {
		return nil, &LoadError{Path: path, Message: "failed to parse YAML", Err: err}
	}
	return fromRaw(path, r, func(int) token.Pos { return token.NoPos })
}

func loadCUE(path string, data []byte) (*Spec, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Path: path, Message: "building CUE value", Err: err}
	}

	var r raw
	if err := value.Decode(&r); err != nil {
		return nil, &LoadError{Path: path, Message: "decoding CUE value", Err: err}
	}

	pos := func(i int) token.Pos {
		return value.LookupPath(cue.MakePath(cue.Str("depends"), cue.Index(i))).Pos()
	}
	return fromRaw(path, r, pos)
}

func fromRaw(path string, r raw, pos func(int) token.Pos) (*Spec, error) {
	spec := &Spec{Descriptions: r.Descriptions}
	if spec.Descriptions == nil {
		spec.Descriptions = map[string]string{}
	}
	for i, pair := range r.Depends {
		if len(pair) != 2 {
			return nil, &LoadError{
				Path:    path,
				Message: fmt.Sprintf("depends[%d]: want [parent, child], got %d entries", i, len(pair)),
				Pos:     pos(i),
			}
		}
		spec.Depends = append(spec.Depends, [2]string{pair[0], pair[1]})
	}
	if len(spec.Depends) == 0 {
		return nil, &LoadError{Path: path, Message: "no depends entries"}
	}
	return spec, nil
}

// Edges parses every pair into a graph edge.
func (s *Spec) Edges() ([]graph.Edge, error) {
	edges := make([]graph.Edge, 0, len(s.Depends))
	for i, pair := range s.Depends {
		parent, err := jobid.Parse(pair[0])
		if err != nil {
			return nil, fmt.Errorf("depends[%d]: %w", i, err)
		}
		child, err := jobid.Parse(pair[1])
		if err != nil {
			return nil, fmt.Errorf("depends[%d]: %w", i, err)
		}
		edges = append(edges, graph.Edge{Parent: parent, Child: child})
	}
	return edges, nil
}
