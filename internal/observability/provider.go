package observability

import (
	"context"
	"errors"
	"io"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jgrana2/prompt-manager/internal/llm"
)

// Instrument returns llm middleware that traces each Stream call and feeds
// m. The span stays open until the caller closes the body. m may be nil.
func Instrument(model string, m *PromptMetrics) llm.Middleware {
	return func(next llm.Provider) llm.Provider {
		return &instrumented{next: next, model: model, metrics: m}
	}
}

type instrumented struct {
	next    llm.Provider
	model   string
	metrics *PromptMetrics
}

func (p *instrumented) Name() string { return p.next.Name() }

func (p *instrumented) Stream(ctx context.Context, req *llm.Request) (io.ReadCloser, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}
	ctx, span := StartLLMSpan(ctx, p.next.Name(), model, len(req.Messages))
	start := time.Now()
	if p.metrics != nil {
		p.metrics.LLMRequestsTotal.Inc()
	}

	body, err := p.next.Stream(ctx, req)
	if err != nil {
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			span.SetAttributes(attribute.Int("http.status_code", apiErr.Status))
		}
		RecordError(span, err)
		span.End()
		if p.metrics != nil {
			p.metrics.LLMErrorsTotal.Inc()
		}
		return nil, err
	}
	return &tracedBody{ReadCloser: body, span: span, start: start, metrics: p.metrics}, nil
}

type tracedBody struct {
	io.ReadCloser
	span    trace.Span
	start   time.Time
	metrics *PromptMetrics
	bytes   int64
	closed  bool
}

func (b *tracedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.bytes += int64(n)
	if err != nil && err != io.EOF {
		RecordError(b.span, err)
	}
	return n, err
}

func (b *tracedBody) Close() error {
	err := b.ReadCloser.Close()
	if !b.closed {
		b.closed = true
		b.span.SetAttributes(attribute.Int64("llm.stream.bytes", b.bytes))
		b.span.End()
		if b.metrics != nil {
			b.metrics.LLMStreamDuration.ObserveDuration(b.start)
		}
	}
	return err
}
