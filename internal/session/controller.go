// Package session owns the state behind both user interfaces: the selected
// prompt, the conversation, the chain and the credential. UIs call its
// methods as intents and render the Events it emits.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jgrana2/prompt-manager/internal/chain"
	"github.com/jgrana2/prompt-manager/internal/llm"
	"github.com/jgrana2/prompt-manager/internal/observability"
	"github.com/jgrana2/prompt-manager/internal/prompts"
	"github.com/jgrana2/prompt-manager/internal/storage"
	"github.com/jgrana2/prompt-manager/internal/stream"
	"github.com/jgrana2/prompt-manager/internal/vars"
)

var (
	// ErrNoPrompt is returned by Run before any prompt was selected.
	ErrNoPrompt = errors.New("select a prompt first")
	// ErrEmptyInput is returned by Run for blank input.
	ErrEmptyInput = errors.New("please enter some input before running the prompt")
	// ErrBusy is returned when a run is already in flight.
	ErrBusy = errors.New("a run is already in progress")
)

// IsAlert reports whether err is a validation or configuration error that
// belongs in a blocking alert rather than the transcript.
func IsAlert(err error) bool {
	return errors.Is(err, ErrNoPrompt) ||
		errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrBusy) ||
		errors.Is(err, llm.ErrMissingCredential) ||
		errors.Is(err, chain.ErrInvalidStepRef)
}

// Options configures a Controller.
type Options struct {
	Prompts     *prompts.Store
	Credentials *storage.Credentials
	Factory     *llm.ProviderFactory
	Provider    llm.ProviderConfig
	// Prompter answers manual chain variables. Nil uses their defaults.
	Prompter vars.Prompter
	Sink     Sink
	Logger   *zap.Logger
	// Now is the clock for system variables and event timestamps.
	Now func() time.Time
}

// Controller is the single owner of the mutable session state.
type Controller struct {
	prompts  *prompts.Store
	creds    *storage.Credentials
	factory  *llm.ProviderFactory
	cfg      llm.ProviderConfig
	resolver *vars.Resolver
	sink     Sink
	logger   *zap.Logger
	now      func() time.Time

	conv  Conversation
	chain *chain.Chain
	busy  atomic.Bool

	mu       sync.RWMutex
	selected string
}

// New creates a controller. Prompts, Credentials and Factory are required.
func New(opts Options) (*Controller, error) {
	if opts.Prompts == nil || opts.Credentials == nil || opts.Factory == nil {
		return nil, fmt.Errorf("session: prompts, credentials and factory are required")
	}
	if opts.Sink == nil {
		opts.Sink = Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		prompts:  opts.Prompts,
		creds:    opts.Credentials,
		factory:  opts.Factory,
		cfg:      opts.Provider,
		resolver: &vars.Resolver{Prompter: opts.Prompter, Now: opts.Now},
		sink:     opts.Sink,
		logger:   opts.Logger,
		now:      opts.Now,
		chain:    chain.New(),
	}, nil
}

// Prompts returns the prompt store.
func (c *Controller) Prompts() *prompts.Store { return c.prompts }

// Chain returns the editable chain.
func (c *Controller) Chain() *chain.Chain { return c.chain }

// Messages returns the current conversation.
func (c *Controller) Messages() []llm.Message { return c.conv.Messages() }

// Busy reports whether a run is in flight.
func (c *Controller) Busy() bool { return c.busy.Load() }

// Selected returns the selected prompt text.
func (c *Controller) Selected() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.selected
}

// SelectPrompt makes text the active prompt and resets the conversation to
// a single system message holding it.
func (c *Controller) SelectPrompt(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrNoPrompt
	}
	if c.busy.Load() {
		return ErrBusy
	}
	c.mu.Lock()
	c.selected = text
	c.mu.Unlock()

	c.conv.Reset(text)
	c.emit(Event{Type: EventConversationReset, Content: text})
	return nil
}

// AddPrompt saves a new prompt.
func (c *Controller) AddPrompt(ctx context.Context, text string) error {
	return c.prompts.Add(ctx, text)
}

// DeletePrompt removes a prompt. Deleting the selected prompt clears the
// selection but keeps the conversation.
func (c *Controller) DeletePrompt(ctx context.Context, text string) (bool, error) {
	removed, err := c.prompts.Delete(ctx, text)
	if err != nil || !removed {
		return removed, err
	}
	c.mu.Lock()
	if c.selected == text {
		c.selected = ""
	}
	c.mu.Unlock()
	return true, nil
}

// APIKey returns the configured credential masked for display, and where it
// came from. An unset credential returns ("", "", nil).
func (c *Controller) APIKey(ctx context.Context) (masked, source string, err error) {
	if c.cfg.APIKey != "" {
		return storage.Mask(c.cfg.APIKey), "config", nil
	}
	key, src, err := c.creds.Get(ctx)
	if errors.Is(err, storage.ErrNoCredential) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return storage.Mask(key), src, nil
}

// SetAPIKey stores the credential.
func (c *Controller) SetAPIKey(ctx context.Context, key string) error {
	return c.creds.Set(ctx, key)
}

// ClearAPIKey removes the stored credential.
func (c *Controller) ClearAPIKey(ctx context.Context) error {
	return c.creds.Clear(ctx)
}

// Run sends input against the selected prompt, streams the reply into the
// conversation and then runs the chain, if any, seeded with that reply. It
// returns the main reply.
func (c *Controller) Run(ctx context.Context, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", ErrEmptyInput
	}
	if c.Selected() == "" {
		return "", ErrNoPrompt
	}
	if !c.busy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer c.busy.Store(false)

	runID := uuid.NewString()
	items := c.chain.Items()
	ctx, span := observability.StartRunSpan(ctx, runID, len(items))
	defer span.End()

	c.emit(Event{Type: EventRunStarted, RunID: runID})
	defer c.emit(Event{Type: EventRunFinished, RunID: runID})

	provider, err := c.provider(ctx)
	if err != nil {
		observability.RecordError(span, err)
		return "", err
	}

	c.conv.Append(llm.RoleUser, llm.QuoteInput(input))
	c.emit(Event{Type: EventUserMessage, RunID: runID, Content: input})

	reply, err := c.stream(ctx, runID, 0, "", provider, c.conv.Messages())
	if err != nil {
		c.fail(runID, 0, "", err)
		observability.RecordError(span, err)
		return "", err
	}
	c.conv.Append(llm.RoleAssistant, reply)

	if len(items) > 0 {
		if err := c.runChain(ctx, runID, provider, reply, items); err != nil {
			observability.RecordError(span, err)
			return reply, err
		}
	}
	return reply, nil
}

// RunChain runs the current chain alone, seeded with initial.
func (c *Controller) RunChain(ctx context.Context, initial string) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.busy.Store(false)

	items := c.chain.Items()
	if len(items) == 0 {
		return nil
	}
	runID := uuid.NewString()
	ctx, span := observability.StartRunSpan(ctx, runID, len(items))
	defer span.End()

	c.emit(Event{Type: EventRunStarted, RunID: runID})
	defer c.emit(Event{Type: EventRunFinished, RunID: runID})

	provider, err := c.provider(ctx)
	if err != nil {
		return err
	}
	err = c.runChain(ctx, runID, provider, initial, items)
	observability.RecordError(span, err)
	return err
}

func (c *Controller) runChain(ctx context.Context, runID string, provider llm.Provider, initial string, items []chain.Item) error {
	runner := &chain.Runner{
		Resolver: c.resolver,
		Logger:   c.logger,
		Exec: func(ctx context.Context, i int, item chain.Item, msg string) (string, error) {
			step := chain.Badge(i)
			c.conv.Append(llm.RoleUser, msg)
			c.emit(Event{Type: EventUserMessage, RunID: runID, Step: step, StepID: item.ID, Content: msg})

			// Each step is a single user message; the conversation history
			// is not resent.
			reply, err := c.stream(ctx, runID, step, item.ID, provider, []llm.Message{{Role: llm.RoleUser, Content: msg}})
			if err != nil {
				return "", err
			}
			c.conv.Append(llm.RoleAssistant, reply)
			return reply, nil
		},
		Observer: func(ev chain.StepEvent) {
			c.emit(Event{Type: EventChainStep, RunID: runID, Step: chain.Badge(ev.Index), StepID: ev.StepID, State: string(ev.State)})
		},
	}

	_, err := runner.Run(ctx, initial, items)
	if err != nil {
		var stepErr *chain.StepError
		if errors.As(err, &stepErr) {
			c.fail(runID, chain.Badge(stepErr.Index), stepErr.StepID, err)
		} else {
			c.fail(runID, 0, "", err)
		}
	}
	return err
}

// stream performs one request and decodes the reply, emitting start, delta
// and done events. The caller appends the assistant message.
func (c *Controller) stream(ctx context.Context, runID string, step int, stepID string, provider llm.Provider, msgs []llm.Message) (string, error) {
	c.emit(Event{Type: EventAssistantStart, RunID: runID, Step: step, StepID: stepID})

	body, err := provider.Stream(ctx, &llm.Request{
		Model:     c.cfg.Model,
		Messages:  msgs,
		MaxTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		return "", err
	}
	defer body.Close()

	dec := &stream.Decoder{
		Logger: c.logger,
		OnDelta: func(delta, acc string) {
			c.emit(Event{Type: EventAssistantDelta, RunID: runID, Step: step, StepID: stepID, Content: delta, Text: acc})
		},
	}
	res, err := dec.Decode(ctx, body)
	if err != nil {
		return "", err
	}

	c.emit(Event{Type: EventAssistantDone, RunID: runID, Step: step, StepID: stepID, Text: res.Text})
	c.logger.Debug("stream finished",
		zap.String("run_id", runID),
		zap.Int("step", step),
		zap.Bool("done_marker", res.Done),
		zap.Int("chars", len(res.Text)))
	return res.Text, nil
}

func (c *Controller) provider(ctx context.Context) (llm.Provider, error) {
	cfg := c.cfg
	if cfg.APIKey == "" {
		key, _, err := c.creds.Get(ctx)
		switch {
		case err == nil:
			cfg.APIKey = key
		case !errors.Is(err, storage.ErrNoCredential):
			return nil, err
		}
	}
	return c.factory.Create(cfg)
}

func (c *Controller) fail(runID string, step int, stepID string, err error) {
	c.logger.Error("run failed", zap.String("run_id", runID), zap.Int("step", step), zap.Error(err))
	c.emit(Event{Type: EventError, RunID: runID, Step: step, StepID: stepID, Content: err.Error()})
}

func (c *Controller) emit(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = c.now()
	}
	c.sink.Emit(ev)
}
