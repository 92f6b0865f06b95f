package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jgrana2/prompt-manager/internal/llm"
	"github.com/jgrana2/prompt-manager/internal/tui"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &bootOptions{}

	rootCmd := &cobra.Command{
		Use:          "promptmgr",
		Short:        "Manage reusable prompts and chat with them against OpenAI-compatible models",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), *opts)
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file path (default: user config dir)")
	rootCmd.PersistentFlags().StringVar(&opts.provider, "provider", "", "LLM provider override")
	rootCmd.PersistentFlags().StringVar(&opts.model, "model", "", "Model override")

	tuiCmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive terminal UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), *opts)
		},
	}

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available LLM providers",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			names := make([]string, 0, len(llm.KnownProviders))
			for name := range llm.KnownProviders {
				names = append(names, name)
			}
			sort.Strings(names)
			fmt.Fprintln(out, "Available LLM providers:")
			fmt.Fprintln(out)
			for _, name := range names {
				fmt.Fprintf(out, "  %-14s %s\n", name, llm.KnownProviders[name])
			}
			fmt.Fprintln(out, "  custom         (set base_url to any OpenAI-compatible endpoint)")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Configure in config.yaml or via environment:")
			fmt.Fprintln(out, "  PROMPTMGR_LLM_PROVIDER=groq")
			fmt.Fprintln(out, "  PROMPTMGR_LLM_MODEL=llama-3.3-70b-versatile")
			fmt.Fprintln(out, "  OPENAI_API_KEY=sk-...")
		},
	}

	rootCmd.AddCommand(
		tuiCmd,
		providersCmd,
		newPromptsCmd(opts),
		newKeyCmd(opts),
		newRunCmd(opts),
		newChainCmd(opts),
		newServeCmd(opts),
	)
	return rootCmd
}

func runTUI(ctx context.Context, opts bootOptions) error {
	opts.fileLog = true
	a, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()

	bridge := tui.NewBridge()
	ctrl, err := a.controller(bridge, bridge)
	if err != nil {
		return err
	}
	return tui.Run(ctx, ctrl, bridge, a.logger)
}
