package store

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PayloadKind tags the two payload shapes.
type PayloadKind int

const (
	// KindText is literal text, stored byte for byte.
	KindText PayloadKind = iota

	// KindStructured is a mapping or sequence, stored as YAML.
	KindStructured
)

func (k PayloadKind) String() string {
	if k == KindStructured {
		return "structured"
	}
	return "text"
}

// Payload is the data attached to a run.
//
// The zero value is empty text. Read back from a run file, a payload whose
// text parses as a YAML mapping or sequence is Structured; anything else,
// including YAML scalars, is Text. Raw always returns the stored text, so
// callers that want the literal never depend on that guess.
type Payload struct {
	kind  PayloadKind
	text  string
	value any
}

// Text returns a text payload.
func Text(s string) Payload {
	return Payload{kind: KindText, text: s}
}

// Structured returns a structured payload. A nil value is empty text.
func Structured(v any) Payload {
	if v == nil {
		return Text("")
	}
	return Payload{kind: KindStructured, value: v}
}

// Kind reports whether the payload is text or structured.
func (p Payload) Kind() PayloadKind {
	return p.kind
}

// Value returns the structured value, or nil for text payloads.
func (p Payload) Value() any {
	if p.kind != KindStructured {
		return nil
	}
	return p.value
}

// Raw returns the payload's stored text.
func (p Payload) Raw() string {
	if p.kind == KindText || p.text != "" {
		return p.text
	}
	return string(p.Encode())
}

// Encode returns the run file content for the payload.
//
// Structured values that YAML cannot represent are stored as their %v
// formatting.
func (p Payload) Encode() []byte {
	if p.kind == KindText {
		return []byte(p.text)
	}
	if p.text != "" {
		return []byte(p.text)
	}
	data, err := marshalStructured(p.value)
	if err != nil {
		slog.Warn("payload not encodable as YAML, storing string form", "error", err)
		return []byte(fmt.Sprintf("%v", p.value))
	}
	return data
}

// marshalStructured converts v to YAML.
// yaml.v3 panics on some unsupported kinds (channels, funcs), so the panic
// is turned into an error here.
func marshalStructured(v any) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("marshal payload: %v", r)
		}
	}()
	data, err = yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}

// DecodePayload parses run file content.
// Decoding never fails: content that is not a YAML mapping or sequence is
// returned as text.
func DecodePayload(data []byte) Payload {
	raw := stripRerunMarker(string(data))

	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err == nil {
		switch v.(type) {
		case map[string]any, map[any]any, []any:
			return Payload{kind: KindStructured, text: raw, value: v}
		}
	}
	return Text(raw)
}

// rerunMarker starts the line appended to a run file whose content would
// otherwise be unchanged. Git only records a path in a commit when its
// bytes differ, so logging an identical payload twice needs it. The "#"
// makes the line a YAML comment.
const rerunMarker = "\n#git-job-log:rerun "

func appendRerunMarker(content []byte, now time.Time) []byte {
	out := make([]byte, 0, len(content)+len(rerunMarker)+40)
	out = append(out, content...)
	out = append(out, rerunMarker...)
	out = append(out, now.Format(time.RFC3339Nano)...)
	return append(out, '\n')
}

func stripRerunMarker(s string) string {
	i := strings.LastIndex(s, rerunMarker)
	if i < 0 {
		return s
	}
	tail := strings.TrimSuffix(s[i+len(rerunMarker):], "\n")
	if strings.Contains(tail, "\n") {
		return s
	}
	return s[:i]
}
