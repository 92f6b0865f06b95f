package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func event(content string) string {
	return `data: {"choices":[{"delta":{"content":"` + content + `"}}]}` + "\n"
}

// chunkReader returns each chunk from a separate Read call.
type chunkReader struct {
	chunks []string
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0])
	c.chunks[0] = c.chunks[0][n:]
	if c.chunks[0] == "" {
		c.chunks = c.chunks[1:]
	}
	return n, nil
}

func TestDecode_AccumulatesUntilDone(t *testing.T) {
	body := event("ab") + event("cd") + "data: [DONE]\n"

	var deltas, accumulated []string
	res, err := Decode(context.Background(), strings.NewReader(body), func(delta, acc string) {
		deltas = append(deltas, delta)
		accumulated = append(accumulated, acc)
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "abcd", res.Text)
	assert.True(t, res.Done)
	assert.Equal(t, []string{"ab", "cd"}, deltas)
	assert.Equal(t, []string{"ab", "abcd"}, accumulated)
}

func TestDecode_LineSplitAcrossReads(t *testing.T) {
	full := event("hello") + event(" world") + "data: [DONE]\n"
	for split := 1; split < len(full); split++ {
		r := &chunkReader{chunks: []string{full[:split], full[split:]}}
		var calls int
		res, err := Decode(context.Background(), r, func(string, string) { calls++ }, nil)

		require.NoError(t, err, "split at %d", split)
		assert.Equal(t, "hello world", res.Text, "split at %d", split)
		assert.True(t, res.Done, "split at %d", split)
		assert.Equal(t, 2, calls, "split at %d", split)
	}
}

func TestDecode_OneByteReads(t *testing.T) {
	body := event("é✓") + "\r\n" + event("x") + "data: [DONE]\n"
	res, err := Decode(context.Background(), iotest.OneByteReader(strings.NewReader(body)), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "é✓x", res.Text)
	assert.True(t, res.Done)
}

func TestDecode_MalformedJSONSkipped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	body := event("a") + "data: {not json}\n" + event("b") + "data: [DONE]\n"

	res, err := Decode(context.Background(), strings.NewReader(body), nil, zap.New(core))

	require.NoError(t, err)
	assert.Equal(t, "ab", res.Text)
	assert.Equal(t, 1, logs.FilterMessage("skipping malformed stream event").Len())
}

func TestDecode_EOFWithoutDone(t *testing.T) {
	res, err := Decode(context.Background(), strings.NewReader(event("a")+event("b")), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "ab", res.Text)
	assert.False(t, res.Done)
}

func TestDecode_UnterminatedFinalLineProcessed(t *testing.T) {
	body := event("a") + strings.TrimSuffix(event("b"), "\n")
	res, err := Decode(context.Background(), strings.NewReader(body), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "ab", res.Text)
	assert.False(t, res.Done)
}

func TestDecode_UnterminatedDoneAtEOF(t *testing.T) {
	res, err := Decode(context.Background(), strings.NewReader(event("a")+"data: [DONE]"), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "a", res.Text)
	assert.True(t, res.Done)
}

func TestDecode_IgnoresEverythingAfterDone(t *testing.T) {
	body := event("a") + "data: [DONE]\n" + event("late")
	var calls int
	res, err := Decode(context.Background(), strings.NewReader(body), func(string, string) { calls++ }, nil)

	require.NoError(t, err)
	assert.Equal(t, "a", res.Text)
	assert.Equal(t, 1, calls)
}

func TestDecode_NonDataLinesAndEmptyDeltas(t *testing.T) {
	body := ": keep-alive\n" +
		"event: message\n" +
		"\n" +
		`data: {"choices":[{"delta":{"role":"assistant"}}]}` + "\n" +
		`data: {"choices":[]}` + "\n" +
		"data:\n" +
		`data:{"choices":[{"delta":{"content":"tight"}}]}` + "\n" +
		"data: [DONE]\n"

	var calls int
	res, err := Decode(context.Background(), strings.NewReader(body), func(string, string) { calls++ }, nil)

	require.NoError(t, err)
	assert.Equal(t, "tight", res.Text)
	assert.Equal(t, 1, calls)
}

func TestDecode_ReadError(t *testing.T) {
	boom := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader(event("partial")), iotest.ErrReader(boom))

	res, err := Decode(context.Background(), r, nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "read stream")
	assert.Equal(t, "partial", res.Text)
}

func TestDecode_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Decode(ctx, strings.NewReader(event("a")), nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
