package session

import (
	"github.com/jgrana2/prompt-manager/internal/chain"
	"github.com/jgrana2/prompt-manager/internal/observability"
)

// MetricsSink updates m from transcript events.
func MetricsSink(m *observability.PromptMetrics) Sink {
	return SinkFunc(func(ev Event) {
		switch ev.Type {
		case EventRunStarted:
			m.RunsTotal.Inc()
			m.ActiveRuns.Inc()
		case EventRunFinished:
			m.ActiveRuns.Dec()
		case EventError:
			m.RunErrorsTotal.Inc()
		case EventAssistantDelta:
			m.StreamDeltasTotal.Inc()
		case EventChainStep:
			if ev.State == string(chain.StateRecorded) {
				m.ChainStepsTotal.Inc()
			}
		}
	})
}
