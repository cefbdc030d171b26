// Package sse decodes a server-sent-event chat stream into discrete
// data frames. The parser owns an append-only text buffer and tolerates
// arbitrary split points introduced by network chunking: a trailing
// line without a terminator is never parsed speculatively, and a
// complete data line that fails to parse as JSON is re-queued once in
// case the transport split it mid-line.
package sse

import (
	"encoding/json"
	"log/slog"
	"strings"
)

const (
	dataPrefix    = "data: "
	commentPrefix = ":"
	doneSentinel  = "[DONE]"
)

// Frame is one decoded unit of the stream protocol. Data holds the raw
// JSON payload after the data prefix.
type Frame struct {
	Data []byte
}

// Parser reassembles protocol frames from raw text chunks.
type Parser struct {
	buf    string
	done   bool
	logger *slog.Logger
}

// NewParser creates a parser. logger may be nil.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Done reports whether the terminal sentinel has been seen. Once done,
// the parser emits no further frames.
func (p *Parser) Done() bool {
	return p.done
}

// Feed appends a chunk to the buffer and returns the frames completed
// by it, in arrival order. A recognized data line that is not yet valid
// JSON is put back at the head of the buffer and retried on the next
// Feed; it might be an artifact of a line split at the transport layer.
func (p *Parser) Feed(chunk []byte) []Frame {
	if p.done {
		return nil
	}
	p.buf += string(chunk)

	var frames []Frame
	for {
		idx := strings.IndexByte(p.buf, '\n')
		if idx < 0 {
			// Partial line, keep buffered for the next chunk.
			return frames
		}
		line := p.buf[:idx]
		p.buf = p.buf[idx+1:]

		payload, kind := classify(line)
		switch kind {
		case lineDiscard:
			continue
		case lineDone:
			p.done = true
			p.buf = ""
			return frames
		case lineData:
			if !json.Valid([]byte(payload)) {
				// Provisionally incomplete: re-queue and wait for more input.
				p.buf = line + "\n" + p.buf
				return frames
			}
			frames = append(frames, Frame{Data: []byte(payload)})
		}
	}
}

// Flush processes whatever remains in the buffer at stream end. The
// re-queue heuristic is disabled: with nothing left to wait for,
// malformed remnants are dropped.
func (p *Parser) Flush() []Frame {
	if p.done {
		p.buf = ""
		return nil
	}
	rest := p.buf
	p.buf = ""

	var frames []Frame
	for _, line := range strings.Split(rest, "\n") {
		payload, kind := classify(line)
		switch kind {
		case lineDiscard:
			continue
		case lineDone:
			p.done = true
			return frames
		case lineData:
			if !json.Valid([]byte(payload)) {
				p.logger.Debug("dropping malformed frame at flush", "payload", payload)
				continue
			}
			frames = append(frames, Frame{Data: []byte(payload)})
		}
	}
	return frames
}

type lineKind int

const (
	lineDiscard lineKind = iota
	lineDone
	lineData
)

func classify(line string) (payload string, kind lineKind) {
	line = strings.TrimSuffix(line, "\r")
	if line == "" || strings.HasPrefix(line, commentPrefix) {
		return "", lineDiscard
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return "", lineDiscard
	}
	payload = strings.TrimSpace(line[len(dataPrefix):])
	if payload == doneSentinel {
		return "", lineDone
	}
	return payload, lineData
}
