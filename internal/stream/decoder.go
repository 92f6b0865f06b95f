// Package stream decodes server-sent chat-completion streams: newline
// delimited "data: <json>" events terminated by "data: [DONE]".
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"
	readSize   = 4096
)

// Result is the outcome of a fully decoded stream.
type Result struct {
	// Text is the concatenation of every delta.
	Text string
	// Done is true when the stream ended with the [DONE] sentinel rather
	// than the reader reaching EOF.
	Done bool
}

// Decoder turns a raw completion body into text.
type Decoder struct {
	// OnDelta, if set, is called after every non-empty delta with the
	// fragment and the text accumulated so far.
	OnDelta func(delta, accumulated string)
	// Logger receives malformed-event warnings. Nil discards them.
	Logger *zap.Logger
}

type chunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decode reads r until [DONE] or EOF, whichever comes first. A trailing
// partial line is held across reads and completed by the next one. Lines
// whose JSON does not parse are logged and skipped.
func (d *Decoder) Decode(ctx context.Context, r io.Reader) (Result, error) {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		text    strings.Builder
		pending []byte
		buf     = make([]byte, readSize)
	)

	for {
		if err := ctx.Err(); err != nil {
			return Result{Text: text.String()}, err
		}

		n, readErr := r.Read(buf)
		pending = append(pending, buf[:n]...)

		start := 0
		for {
			i := bytes.IndexByte(pending[start:], '\n')
			if i < 0 {
				break
			}
			line := pending[start : start+i]
			start += i + 1
			if d.handleLine(line, &text, logger) {
				return Result{Text: text.String(), Done: true}, nil
			}
		}
		// Keep only the unterminated tail.
		pending = append(pending[:0], pending[start:]...)

		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				return Result{Text: text.String()}, fmt.Errorf("read stream: %w", readErr)
			}
			if len(pending) > 0 && d.handleLine(pending, &text, logger) {
				return Result{Text: text.String(), Done: true}, nil
			}
			return Result{Text: text.String()}, nil
		}
	}
}

// handleLine processes one complete line and reports whether it was the
// end-of-stream sentinel.
func (d *Decoder) handleLine(raw []byte, text *strings.Builder, logger *zap.Logger) bool {
	line := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(line, dataPrefix) {
		return false
	}
	payload := strings.TrimSpace(line[len(dataPrefix):])
	if payload == doneMarker {
		return true
	}
	if payload == "" {
		return false
	}

	var c chunk
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		logger.Warn("skipping malformed stream event", zap.String("payload", payload), zap.Error(err))
		return false
	}
	if len(c.Choices) == 0 || c.Choices[0].Delta.Content == "" {
		return false
	}

	delta := c.Choices[0].Delta.Content
	text.WriteString(delta)
	if d.OnDelta != nil {
		d.OnDelta(delta, text.String())
	}
	return false
}

// Decode is a convenience for (&Decoder{...}).Decode.
func Decode(ctx context.Context, r io.Reader, onDelta func(delta, accumulated string), logger *zap.Logger) (Result, error) {
	d := &Decoder{OnDelta: onDelta, Logger: logger}
	return d.Decode(ctx, r)
}
