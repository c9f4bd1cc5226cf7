package llm

import (
	"reflect"
	"testing"
)

func TestLineBufferFeed(t *testing.T) {
	tests := []struct {
		name  string
		feeds []string
		want  []string
		rest  string
	}{
		{
			name:  "single complete line",
			feeds: []string{"data: hello\n"},
			want:  []string{"data: hello"},
		},
		{
			name:  "line split across feeds",
			feeds: []string{"data: hel", "lo\n"},
			want:  []string{"data: hello"},
		},
		{
			name:  "multiple lines in one feed",
			feeds: []string{"one\ntwo\nthree\n"},
			want:  []string{"one", "two", "three"},
		},
		{
			name:  "crlf normalized",
			feeds: []string{"one\r\ntwo\r\n"},
			want:  []string{"one", "two"},
		},
		{
			name:  "trailing partial retained",
			feeds: []string{"one\ntw"},
			want:  []string{"one"},
			rest:  "tw",
		},
		{
			name:  "byte at a time",
			feeds: []string{"a", "b", "\n", "c", "\n"},
			want:  []string{"ab", "c"},
		},
		{
			name:  "empty lines preserved",
			feeds: []string{"one\n\ntwo\n"},
			want:  []string{"one", "", "two"},
		},
		{
			name:  "empty feed",
			feeds: []string{""},
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf LineBuffer
			var got []string
			for _, feed := range tt.feeds {
				got = append(got, buf.Feed([]byte(feed))...)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("lines = %q, want %q", got, tt.want)
			}
			if buf.Rest() != tt.rest {
				t.Errorf("rest = %q, want %q", buf.Rest(), tt.rest)
			}
		})
	}
}

func TestLineBufferSplitsMidUTF8(t *testing.T) {
	line := "data: こんにちは\n"
	raw := []byte(line)

	// Every possible split point, including ones inside multi-byte runes,
	// must reassemble to the identical logical line.
	for cut := 0; cut <= len(raw); cut++ {
		var buf LineBuffer
		var got []string
		got = append(got, buf.Feed(raw[:cut])...)
		got = append(got, buf.Feed(raw[cut:])...)

		if len(got) != 1 || got[0] != "data: こんにちは" {
			t.Fatalf("split at %d: lines = %q", cut, got)
		}
	}
}

func TestCutData(t *testing.T) {
	tests := []struct {
		line    string
		payload string
		ok      bool
	}{
		{line: "data: {\"x\":1}", payload: "{\"x\":1}", ok: true},
		{line: "data: [DONE]", payload: "[DONE]", ok: true},
		{line: ": keepalive", ok: false},
		{line: "", ok: false},
		{line: "event: message", ok: false},
		{line: "data:no space", ok: false},
	}
	for _, tt := range tests {
		payload, ok := CutData(tt.line)
		if ok != tt.ok || (ok && payload != tt.payload) {
			t.Errorf("CutData(%q) = (%q, %v), want (%q, %v)", tt.line, payload, ok, tt.payload, tt.ok)
		}
	}
}
