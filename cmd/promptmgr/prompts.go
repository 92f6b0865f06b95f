package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/jgrana2/prompt-manager/internal/prompts"
	"github.com/jgrana2/prompt-manager/internal/storage"
)

var clipboardWriteAll = clipboard.WriteAll

// withApp bootstraps for a one-shot command and closes afterwards.
func withApp(cmd *cobra.Command, opts *bootOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := bootstrap(cmd.Context(), *opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a)
}

func newPromptsCmd(opts *bootOptions) *cobra.Command {
	promptsCmd := &cobra.Command{
		Use:     "prompts",
		Aliases: []string{"p"},
		Short:   "Manage stored prompts",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List prompts with their 1-based index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app) error {
				printPrompts(cmd.OutOrStdout(), a.prompts.List(), "")
				return nil
			})
		},
	}

	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "List prompts containing query, case-insensitively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app) error {
				printPrompts(cmd.OutOrStdout(), a.prompts.List(), args[0])
				return nil
			})
		},
	}

	addCmd := &cobra.Command{
		Use:   "add <text>|-",
		Short: "Add a prompt; '-' reads it from stdin",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := argOrStdin(cmd, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.prompts.Add(ctx, text); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added prompt %d\n", a.prompts.Len())
				return nil
			})
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <index|text>",
		Short: "Delete a prompt by index or exact text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				text, err := lookupPrompt(a.prompts, args[0])
				if err != nil {
					return err
				}
				removed, err := a.prompts.Delete(ctx, text)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("prompt not found")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", prompts.Label(text))
				return nil
			})
		},
	}

	copyCmd := &cobra.Command{
		Use:   "copy <index>",
		Short: "Copy a prompt to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app) error {
				text, err := lookupPrompt(a.prompts, args[0])
				if err != nil {
					return err
				}
				if err := clipboardWriteAll(text); err != nil {
					return fmt.Errorf("copy to clipboard: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Copied to clipboard")
				return nil
			})
		},
	}

	var exportPath string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export prompts to a JSON file ('-' for stdout)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(_ context.Context, a *app) error {
				now := time.Now()
				path := exportPath
				if path == "" {
					path = prompts.ExportFilename(now)
				}
				if path == "-" {
					return a.prompts.WriteExport(cmd.OutOrStdout(), now)
				}
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("create export file: %w", err)
				}
				if err := a.prompts.WriteExport(f, now); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d prompts to %s\n", a.prompts.Len(), path)
				return nil
			})
		},
	}
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "Output file (default prompts-export-YYYY-MM-DD.json)")

	importCmd := &cobra.Command{
		Use:   "import <file>|-",
		Short: "Merge prompts from an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open import file: %w", err)
				}
				defer f.Close()
				r = f
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				added, err := a.prompts.Import(ctx, r)
				if errors.Is(err, prompts.ErrInvalidFormat) {
					return fmt.Errorf("Invalid file format: %w", err)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new prompts (%d total)\n", added, a.prompts.Len())
				return nil
			})
		},
	}

	promptsCmd.AddCommand(listCmd, searchCmd, addCmd, deleteCmd, copyCmd, exportCmd, importCmd)
	return promptsCmd
}

func printPrompts(w io.Writer, list []string, query string) {
	shown := 0
	for i, p := range list {
		if query != "" && !prompts.Matches(p, query) {
			continue
		}
		fmt.Fprintf(w, "%3d  %s\n", i+1, prompts.Label(p))
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(w, "No prompts.")
	}
}

// lookupPrompt resolves a 1-based index, or returns ref as literal text.
func lookupPrompt(store *prompts.Store, ref string) (string, error) {
	n, err := strconv.Atoi(ref)
	if err != nil {
		return ref, nil
	}
	text, ok := store.Get(n - 1)
	if !ok {
		return "", fmt.Errorf("no prompt at index %d (have %d)", n, store.Len())
	}
	return text, nil
}

func argOrStdin(cmd *cobra.Command, arg string) (string, error) {
	if arg != "-" {
		return arg, nil
	}
	raw, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return string(raw), nil
}

func newKeyCmd(opts *bootOptions) *cobra.Command {
	keyCmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the stored API key",
	}

	setCmd := &cobra.Command{
		Use:   "set [key|-]",
		Short: "Store the API key; '-' or no argument reads stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := "-"
			if len(args) == 1 {
				arg = args[0]
			}
			key, err := argOrStdin(cmd, arg)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.creds.Set(ctx, key); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved key %s\n", storage.Mask(strings.TrimSpace(key)))
				return nil
			})
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the masked API key and where it comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if a.cfg.LLM.APIKey != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (config)\n", storage.Mask(a.cfg.LLM.APIKey))
					return nil
				}
				key, source, err := a.creds.Get(ctx)
				if errors.Is(err, storage.ErrNoCredential) {
					fmt.Fprintln(cmd.OutOrStdout(), "No API key configured")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", storage.Mask(key), source)
				return nil
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.creds.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "API key cleared")
				return nil
			})
		},
	}

	keyCmd.AddCommand(setCmd, showCmd, clearCmd)
	return keyCmd
}
