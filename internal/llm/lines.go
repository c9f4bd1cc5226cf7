package llm

import (
	"bytes"
	"strings"
)

// SSE wire constants shared by the upstream client and the relay consumer.
const (
	// DataPrefix starts every payload-bearing SSE line.
	DataPrefix = "data: "
	// DoneSentinel is the payload of the stream terminator line.
	DoneSentinel = "[DONE]"
)

// LineBuffer reassembles logical lines from a byte stream whose reads may
// split lines, SSE frames, or multi-byte UTF-8 sequences at arbitrary
// offsets. Only complete lines (terminated by \n) are released; any trailing
// partial line is retained and prefixed to the next feed.
type LineBuffer struct {
	rest []byte
}

// Feed appends p to the buffer and returns every complete line it now holds,
// in order, without terminators. A trailing \r is stripped so CRLF streams
// parse the same as LF streams.
func (b *LineBuffer) Feed(p []byte) []string {
	if len(p) == 0 {
		return nil
	}
	b.rest = append(b.rest, p...)

	var lines []string
	for {
		i := bytes.IndexByte(b.rest, '\n')
		if i < 0 {
			return lines
		}
		line := string(b.rest[:i])
		b.rest = b.rest[i+1:]
		lines = append(lines, strings.TrimSuffix(line, "\r"))
	}
}

// Rest returns any buffered partial line. A non-empty rest after stream end
// means the upstream closed mid-line; callers decide whether to parse it.
func (b *LineBuffer) Rest() string {
	return string(b.rest)
}

// CutData strips the SSE data prefix from a line. ok is false for blank
// lines, comments, and anything else that does not carry a payload.
func CutData(line string) (payload string, ok bool) {
	return strings.CutPrefix(line, DataPrefix)
}
