package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jgrana2/prompt-manager/internal/chain"
	"github.com/jgrana2/prompt-manager/internal/metrics"
	"github.com/jgrana2/prompt-manager/internal/session"
	"github.com/jgrana2/prompt-manager/internal/vars"
)

// consoleSink streams transcript events to a terminal: assistant text to
// out, progress and errors to errOut.
type consoleSink struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
}

func (s *consoleSink) Emit(ev session.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Type {
	case session.EventAssistantStart:
		if ev.Step > 0 {
			fmt.Fprintf(s.errOut, "\n── step %d ──\n", ev.Step)
		}
	case session.EventAssistantDelta:
		fmt.Fprint(s.out, ev.Content)
	case session.EventAssistantDone:
		fmt.Fprintln(s.out)
	case session.EventError:
		fmt.Fprintf(s.errOut, "Error: %s\n", ev.Content)
	}
}

// mapPrompter answers manual variables from --var flags, falling back to
// each variable's default.
func mapPrompter(values map[string]string) vars.Prompter {
	return vars.PrompterFunc(func(_ context.Context, name, def string) (string, error) {
		if v, ok := values[name]; ok {
			return v, nil
		}
		return def, nil
	})
}

type runFlags struct {
	prompt    string
	input     string
	chainFile string
	vars      map[string]string
	json      bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Input text; '-' reads stdin")
	cmd.Flags().StringToStringVar(&f.vars, "var", nil, "Manual chain variable, name=value (repeatable)")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print a JSON run report instead of streaming")
}

func newRunCmd(opts *bootOptions) *cobra.Command {
	f := &runFlags{}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a prompt against input and stream the reply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, f)
		},
	}
	f.register(runCmd)
	runCmd.Flags().StringVarP(&f.prompt, "prompt", "p", "", "Prompt index (1-based) or literal prompt text")
	runCmd.Flags().StringVar(&f.chainFile, "chain", "", "Chain YAML file to run after the prompt")
	_ = runCmd.MarkFlagRequired("prompt")
	_ = runCmd.MarkFlagRequired("input")
	return runCmd
}

func newChainCmd(opts *bootOptions) *cobra.Command {
	f := &runFlags{}
	chainCmd := &cobra.Command{
		Use:   "chain",
		Short: "Run a chain defined in a YAML file",
		Long: `Run a chain defined in a YAML file. When the file names a prompt, the
input is sent to it first and its reply seeds the chain; otherwise the
input itself seeds the chain.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, f)
		},
	}
	f.register(chainCmd)
	chainCmd.Flags().StringVarP(&f.chainFile, "file", "f", "", "Chain YAML file")
	_ = chainCmd.MarkFlagRequired("file")
	return chainCmd
}

func execute(cmd *cobra.Command, opts *bootOptions, f *runFlags) error {
	input, err := argOrStdin(cmd, f.input)
	if err != nil {
		return err
	}

	var file *chain.File
	if f.chainFile != "" {
		file, err = chain.LoadFile(f.chainFile)
		if err != nil {
			return err
		}
	}

	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		report := metrics.New(a.cfg.LLM.Provider, a.cfg.LLM.Model)
		var sink session.Sink = report
		if !f.json {
			sink = session.Multi(&consoleSink{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}, report)
		}
		ctrl, err := a.controller(sink, mapPrompter(f.vars))
		if err != nil {
			return err
		}

		prompt := f.prompt
		if prompt != "" {
			if prompt, err = lookupPrompt(a.prompts, prompt); err != nil {
				return err
			}
		} else if file != nil {
			prompt = file.Prompt
		}
		if file != nil {
			if err := ctrl.Chain().Replace(file.Steps); err != nil {
				return err
			}
		}

		if strings.TrimSpace(prompt) != "" {
			if err := ctrl.SelectPrompt(prompt); err != nil {
				return err
			}
			_, err = ctrl.Run(ctx, input)
		} else {
			err = ctrl.RunChain(ctx, input)
		}

		if f.json {
			out, jerr := report.JSON()
			if jerr != nil {
				return jerr
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
		}
		return err
	})
}
