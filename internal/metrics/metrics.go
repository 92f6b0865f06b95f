package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jgrana2/prompt-manager/internal/chain"
	"github.com/jgrana2/prompt-manager/internal/session"
)

// RunReport collects statistics for one prompt run and its chain.
type RunReport struct {
	mu sync.Mutex

	RunID      string        `json:"run_id,omitempty"`
	Provider   string        `json:"provider"`
	Model      string        `json:"model"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration_ms,omitempty"`
	Main       StepMetrics   `json:"main"`
	Steps      []StepMetrics `json:"steps"`
	Errors     []string      `json:"errors,omitempty"`
}

// StepMetrics describes one streamed reply. Step 0 is the main prompt.
type StepMetrics struct {
	Step        int           `json:"step"`
	StepID      string        `json:"step_id,omitempty"`
	State       string        `json:"state,omitempty"`
	Deltas      int           `json:"deltas"`
	OutputBytes int           `json:"output_bytes"`
	Duration    time.Duration `json:"duration_ms"`

	started time.Time
}

// New starts a report for the given provider and model.
func New(provider, model string) *RunReport {
	return &RunReport{Provider: provider, Model: model, StartedAt: time.Now()}
}

// Emit implements session.Sink so a report can sit beside the UI sinks.
func (r *RunReport) Emit(ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Type {
	case session.EventRunStarted:
		r.RunID = ev.RunID
		r.StartedAt = ev.Timestamp
	case session.EventRunFinished:
		r.FinishedAt = ev.Timestamp
		r.Duration = r.FinishedAt.Sub(r.StartedAt)
	case session.EventAssistantStart:
		s := r.step(ev.Step, ev.StepID)
		s.started = ev.Timestamp
	case session.EventAssistantDelta:
		r.step(ev.Step, ev.StepID).Deltas++
	case session.EventAssistantDone:
		s := r.step(ev.Step, ev.StepID)
		s.OutputBytes = len(ev.Text)
		if !s.started.IsZero() {
			s.Duration = ev.Timestamp.Sub(s.started)
		}
	case session.EventChainStep:
		r.step(ev.Step, ev.StepID).State = ev.State
	case session.EventError:
		r.Errors = append(r.Errors, ev.Content)
	}
}

// step returns the entry for a badge, creating chain entries on first sight.
func (r *RunReport) step(badge int, id string) *StepMetrics {
	if badge == 0 {
		return &r.Main
	}
	for i := range r.Steps {
		if r.Steps[i].Step == badge {
			return &r.Steps[i]
		}
	}
	r.Steps = append(r.Steps, StepMetrics{Step: badge, StepID: id, State: string(chain.StatePending)})
	return &r.Steps[len(r.Steps)-1]
}

// Succeeded reports whether the run finished without errors.
func (r *RunReport) Succeeded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Errors) == 0
}

// PrintSummary writes a human-readable summary.
func (r *RunReport) PrintSummary(w io.Writer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║          PROMPTMGR RUN REPORT        ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "║ Provider:    %-23s║\n", r.Provider)
	fmt.Fprintf(w, "║ Model:       %-23s║\n", r.Model)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ MAIN PROMPT\n")
	fmt.Fprintf(w, "║   Deltas:      %d\n", r.Main.Deltas)
	fmt.Fprintf(w, "║   Output:      %s\n", formatBytes(r.Main.OutputBytes))
	fmt.Fprintf(w, "║   Time:        %s\n", r.Main.Duration.Round(time.Millisecond))
	if len(r.Steps) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ CHAIN\n")
		for _, s := range r.Steps {
			fmt.Fprintf(w, "║   #%-3d %-20s %8s  %s\n", s.Step, s.State, s.Duration.Round(time.Millisecond), formatBytes(s.OutputBytes))
		}
	}
	if len(r.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the report as formatted JSON.
func (r *RunReport) JSON() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return json.MarshalIndent(r, "", "  ")
}

func formatBytes(b int) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
