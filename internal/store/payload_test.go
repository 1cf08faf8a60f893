package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPayload_ZeroValueIsEmptyText(t *testing.T) {
	var p Payload
	assert.Equal(t, KindText, p.Kind())
	assert.Equal(t, "", p.Raw())
	assert.Nil(t, p.Value())
	assert.Empty(t, p.Encode())
}

func TestPayload_StructuredNilIsEmptyText(t *testing.T) {
	p := Structured(nil)
	assert.Equal(t, KindText, p.Kind())
	assert.Equal(t, "", p.Raw())
}

func TestPayload_TextEncodesVerbatim(t *testing.T) {
	p := Text("mowed the front\n")
	assert.Equal(t, []byte("mowed the front\n"), p.Encode())
	assert.Equal(t, "mowed the front\n", p.Raw())
}

func TestPayload_StructuredEncodesYAML(t *testing.T) {
	p := Structured(map[string]any{"name": "mow", "count": 3})
	assert.Equal(t, "count: 3\nname: mow\n", string(p.Encode()))
	assert.Equal(t, "count: 3\nname: mow\n", p.Raw())
}

func TestPayload_UnencodableFallsBackToString(t *testing.T) {
	p := Structured(map[string]any{"ch": make(chan int)})

	var data []byte
	assert.NotPanics(t, func() { data = p.Encode() })
	assert.True(t, strings.HasPrefix(string(data), "map[ch:"), "got %q", data)
}

func TestDecodePayload(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		kind  PayloadKind
		value any
	}{
		{"empty", "", KindText, nil},
		{"plain text", "all done", KindText, nil},
		{"number stays text", "42", KindText, nil},
		{"mapping", "count: 3\nname: mow\n", KindStructured, map[string]any{"count": 3, "name": "mow"}},
		{"sequence", "- a\n- b\n", KindStructured, []any{"a", "b"}},
		{"invalid yaml", "key: [unclosed", KindText, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DecodePayload([]byte(tt.data))
			assert.Equal(t, tt.kind, p.Kind())
			assert.Equal(t, tt.value, p.Value())
			assert.Equal(t, tt.data, p.Raw())
		})
	}
}

func TestRerunMarker_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 535897932, time.UTC)

	for _, content := range []string{"", "done", "count: 3\n"} {
		marked := appendRerunMarker([]byte(content), now)
		assert.NotEqual(t, content, string(marked))
		assert.Contains(t, string(marked), "2026-03-14T15:09:26.535897932Z")
		assert.Equal(t, content, DecodePayload(marked).Raw())
	}
}

func TestRerunMarker_StructuredStillDecodes(t *testing.T) {
	marked := appendRerunMarker([]byte("count: 3\n"), time.Now())
	p := DecodePayload(marked)
	assert.Equal(t, KindStructured, p.Kind())
	assert.Equal(t, map[string]any{"count": 3}, p.Value())
}

func TestStripRerunMarker_IgnoresMidFileMarker(t *testing.T) {
	s := "first" + rerunMarker + "x\nsecond line\n"
	assert.Equal(t, s, stripRerunMarker(s))
}

func TestPayloadKind_String(t *testing.T) {
	assert.Equal(t, "text", KindText.String())
	assert.Equal(t, "structured", KindStructured.String())
}
